// Package workflow owns the image editing workflow state: the current upload
// batch and its previews, the single in-flight edit request, the result
// history, and the selection over it. The Controller is the sole writer of
// that state; every mutation goes through a named operation.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-photo-studio/internal/gemini"
	"github.com/fpang/gemini-photo-studio/internal/ingest"
	"github.com/fpang/gemini-photo-studio/internal/preview"
)

// msgMissingInput is the validation message for a submission without uploads
// or without an instruction.
const msgMissingInput = "choose at least one image and enter an instruction"

// Editor is the external image edit capability. One call covers the whole
// upload batch; the capability interprets multiple images jointly.
// *gemini.Client satisfies it.
type Editor interface {
	EditImages(ctx context.Context, images []ingest.Image, instruction string) (*gemini.EditResult, error)
}

// Previewer builds display previews for an upload batch, atomically and in
// input order. *preview.Builder satisfies it.
type Previewer interface {
	Build(ctx context.Context, images []ingest.Image) ([]string, error)
}

// Snapshot is a read-only copy of the workflow state.
type Snapshot struct {
	Uploads    []ingest.Image
	Previews   []string
	Results    []Result
	SelectedID map[string]bool
	Prompt     string
	Editing    bool
	ErrMessage string
}

// Controller coordinates the workflow. Safe for concurrent use; state is
// never exposed for direct mutation.
type Controller struct {
	editor   Editor
	previews Previewer

	mu      sync.Mutex
	uploads []ingest.Image
	uris    []string
	hist    history
	sel     *selection
	prompt  string
	editing bool
	errMsg  string

	// epoch identifies the current upload batch. Async resolutions carry
	// the epoch they were started under; a mismatch on completion means the
	// batch was replaced and the resolution is discarded.
	epoch uint64

	// seq feeds result id generation.
	seq uint64
}

// New creates a Controller around the given edit capability. A nil previewer
// falls back to the default preview builder.
func New(editor Editor, previewer Previewer) *Controller {
	if previewer == nil {
		previewer = preview.NewBuilder()
	}
	return &Controller{
		editor:   editor,
		previews: previewer,
		sel:      newSelection(),
	}
}

// SetBatch replaces the upload batch wholesale and builds its previews.
// Prior results, selection, and any displayed error are cleared immediately:
// a new batch invalidates everything derived from the old one, and an edit
// still in flight for the old batch will be discarded when it resolves.
// On preview failure the batch is still considered replaced; the old batch's
// previews do not come back.
func (c *Controller) SetBatch(ctx context.Context, images []ingest.Image) error {
	c.mu.Lock()
	c.epoch++
	myEpoch := c.epoch
	c.uploads = append([]ingest.Image(nil), images...)
	c.uris = nil
	c.hist.clear()
	c.sel.clear()
	c.errMsg = ""
	c.editing = false
	batch := c.uploads
	c.mu.Unlock()

	log.Info().Int("count", len(batch)).Uint64("batch", myEpoch).Msg("Upload batch replaced")

	if len(batch) == 0 {
		return nil
	}

	uris, err := c.previews.Build(ctx, batch)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != myEpoch {
		return ErrBatchSuperseded
	}
	if err != nil {
		ingErr := &IngestionError{Err: err}
		c.errMsg = ingErr.Error()
		log.Error().Err(err).Msg("Preview batch failed")
		return ingErr
	}
	c.uris = uris
	return nil
}

// SubmitEdit sends the current upload batch and the instruction to the edit
// capability as one request. It rejects a second submission while one is
// outstanding, validates its inputs before any network activity, and on
// success prepends a new uniquely-identified result to the history. The
// in-flight flag is cleared on every outcome; a resolution belonging to a
// replaced batch is discarded without touching the new batch's state.
func (c *Controller) SubmitEdit(ctx context.Context, instruction string) (*Result, error) {
	c.mu.Lock()
	if c.editing {
		c.mu.Unlock()
		return nil, ErrEditInFlight
	}

	c.prompt = instruction
	if len(c.uploads) == 0 || strings.TrimSpace(instruction) == "" {
		verr := &ValidationError{Reason: msgMissingInput}
		c.errMsg = verr.Reason
		c.mu.Unlock()
		return nil, verr
	}

	c.editing = true
	c.errMsg = ""
	myEpoch := c.epoch
	batch := c.uploads
	c.mu.Unlock()

	edited, err := c.editor.EditImages(ctx, batch, instruction)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != myEpoch {
		// The batch this edit was computed against is gone. SetBatch already
		// reset the editing flag for the new batch, so drop everything.
		log.Debug().Uint64("batch", myEpoch).Msg("Discarding stale edit resolution")
		return nil, ErrBatchSuperseded
	}

	c.editing = false

	if err != nil {
		msg := strings.TrimSpace(err.Error())
		if msg == "" {
			msg = msgEditFallback
		}
		editErr := &EditRequestError{Message: msg, Err: err}
		c.errMsg = editErr.Message
		return nil, editErr
	}
	if edited == nil || len(edited.ImageData) == 0 {
		// Treat an empty capability response the same as a failure.
		editErr := &EditRequestError{Message: msgEditFallback}
		c.errMsg = editErr.Message
		return nil, editErr
	}

	res := Result{
		ID:       c.nextID(),
		MIMEType: edited.ImageMIMEType,
		Data:     edited.ImageData,
		Note:     edited.Text,
	}
	c.hist.prepend(res)

	log.Info().Str("id", res.ID).Int("results", len(c.hist.items)).Msg("Edit result added to gallery")
	return &res, nil
}

// ToggleSelect flips the selection state of the given result id and reports
// whether it is selected afterwards. Ids not present in the history are
// ignored, so the selection can never reference a missing result.
func (c *Controller) ToggleSelect(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hist.contains(id) {
		return false
	}
	c.sel.toggle(id)
	return c.sel.has(id)
}

// ClearSelection empties the selection.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sel.clear()
}

// IsSelected reports whether the result id is currently selected.
func (c *Controller) IsSelected(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sel.has(id)
}

// SelectedResults returns the selected results in history order (newest
// first), so repeated downloads of the same selection name files stably.
func (c *Controller) SelectedResults() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Result
	for _, r := range c.hist.items {
		if c.sel.has(r.ID) {
			out = append(out, r)
		}
	}
	return out
}

// Results returns all results, newest first.
func (c *Controller) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hist.all()
}

// Snapshot returns a copy of the aggregate state for display.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	selected := make(map[string]bool, c.sel.size())
	for id := range c.sel.ids {
		selected[id] = true
	}

	return Snapshot{
		Uploads:    append([]ingest.Image(nil), c.uploads...),
		Previews:   append([]string(nil), c.uris...),
		Results:    c.hist.all(),
		SelectedID: selected,
		Prompt:     c.prompt,
		Editing:    c.editing,
		ErrMessage: c.errMsg,
	}
}

// nextID generates a result id that is unique for the process lifetime:
// a monotonic counter plus a random suffix. Ids are never reused.
func (c *Controller) nextID() string {
	c.seq++
	return fmt.Sprintf("edit-%d-%.8s", c.seq, uuid.NewString())
}
