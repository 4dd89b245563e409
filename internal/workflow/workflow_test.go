package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/fpang/gemini-photo-studio/internal/gemini"
	"github.com/fpang/gemini-photo-studio/internal/ingest"
)

// stubEditor is a controllable Editor. When block is non-nil, EditImages
// signals started and then waits until block is closed, so tests can observe
// the in-flight window.
type stubEditor struct {
	mu      sync.Mutex
	calls   int
	result  *gemini.EditResult
	err     error
	block   chan struct{}
	started chan struct{}
}

func (s *stubEditor) EditImages(ctx context.Context, images []ingest.Image, instruction string) (*gemini.EditResult, error) {
	s.mu.Lock()
	s.calls++
	block := s.block
	started := s.started
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

func (s *stubEditor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// previewFunc adapts a function to the Previewer interface.
type previewFunc func(ctx context.Context, images []ingest.Image) ([]string, error)

func (f previewFunc) Build(ctx context.Context, images []ingest.Image) ([]string, error) {
	return f(ctx, images)
}

// fakePreviews returns one placeholder preview per image, in input order.
var fakePreviews = previewFunc(func(ctx context.Context, images []ingest.Image) ([]string, error) {
	out := make([]string, len(images))
	for i, img := range images {
		out[i] = "data:" + img.MIMEType + ";preview-of-" + img.Name
	}
	return out, nil
})

func testBatch(n int) []ingest.Image {
	images := make([]ingest.Image, n)
	for i := range images {
		images[i] = ingest.Image{
			Name:     fmt.Sprintf("photo-%d.jpg", i+1),
			MIMEType: "image/jpeg",
			Data:     []byte{0xFF, 0xD8, byte(i)},
		}
	}
	return images
}

func editResult(tag string) *gemini.EditResult {
	return &gemini.EditResult{
		ImageData:     []byte("edited-" + tag),
		ImageMIMEType: "image/png",
		Text:          "note-" + tag,
	}
}

func TestSetBatchBuildsPreviewsInOrder(t *testing.T) {
	ed := &stubEditor{result: editResult("a")}
	c := New(ed, fakePreviews)

	images := testBatch(3)
	if err := c.SetBatch(context.Background(), images); err != nil {
		t.Fatalf("SetBatch: %v", err)
	}

	snap := c.Snapshot()
	if len(snap.Previews) != 3 {
		t.Fatalf("previews length = %d, want 3", len(snap.Previews))
	}
	for i, uri := range snap.Previews {
		want := "data:image/jpeg;preview-of-" + images[i].Name
		if uri != want {
			t.Errorf("preview[%d] = %q, want %q", i, uri, want)
		}
	}
}

func TestSubmitEditValidation(t *testing.T) {
	tests := []struct {
		name   string
		images []ingest.Image
		prompt string
	}{
		{"no uploads", nil, "watercolor style"},
		{"empty prompt", testBatch(1), ""},
		{"whitespace prompt", testBatch(1), "   "},
		{"both missing", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ed := &stubEditor{result: editResult("x")}
			c := New(ed, fakePreviews)
			if len(tt.images) > 0 {
				if err := c.SetBatch(context.Background(), tt.images); err != nil {
					t.Fatalf("SetBatch: %v", err)
				}
			}

			_, err := c.SubmitEdit(context.Background(), tt.prompt)

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if ed.callCount() != 0 {
				t.Errorf("editor invoked %d times, want 0", ed.callCount())
			}
			if snap := c.Snapshot(); snap.ErrMessage == "" {
				t.Error("expected a user-visible validation message")
			}
		})
	}
}

func TestSubmitEditPrependsResults(t *testing.T) {
	ed := &stubEditor{result: editResult("r1")}
	c := New(ed, fakePreviews)
	if err := c.SetBatch(context.Background(), testBatch(3)); err != nil {
		t.Fatalf("SetBatch: %v", err)
	}

	r1, err := c.SubmitEdit(context.Background(), "watercolor style")
	if err != nil {
		t.Fatalf("first edit: %v", err)
	}

	ed.mu.Lock()
	ed.result = editResult("r2")
	ed.mu.Unlock()

	r2, err := c.SubmitEdit(context.Background(), "add sunset")
	if err != nil {
		t.Fatalf("second edit: %v", err)
	}

	if r1.ID == r2.ID {
		t.Fatalf("result ids must be unique, both %q", r1.ID)
	}

	results := c.Results()
	if len(results) != 2 {
		t.Fatalf("history length = %d, want 2", len(results))
	}
	if results[0].ID != r2.ID || results[1].ID != r1.ID {
		t.Errorf("history order = [%s, %s], want newest first [%s, %s]",
			results[0].ID, results[1].ID, r2.ID, r1.ID)
	}
	if string(results[0].Data) != "edited-r2" {
		t.Errorf("newest result data = %q, want %q", results[0].Data, "edited-r2")
	}
	if results[0].Note != "note-r2" {
		t.Errorf("newest result note = %q, want %q", results[0].Note, "note-r2")
	}
}

func TestSecondSubmissionRejectedWhileEditing(t *testing.T) {
	ed := &stubEditor{
		result:  editResult("slow"),
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	c := New(ed, fakePreviews)
	if err := c.SetBatch(context.Background(), testBatch(1)); err != nil {
		t.Fatalf("SetBatch: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.SubmitEdit(context.Background(), "first")
		done <- err
	}()
	<-ed.started

	if snap := c.Snapshot(); !snap.Editing {
		t.Error("Editing flag should be true while request is in flight")
	}

	if _, err := c.SubmitEdit(context.Background(), "second"); !errors.Is(err, ErrEditInFlight) {
		t.Errorf("concurrent submit error = %v, want ErrEditInFlight", err)
	}

	close(ed.block)
	if err := <-done; err != nil {
		t.Fatalf("first edit: %v", err)
	}

	if snap := c.Snapshot(); snap.Editing {
		t.Error("Editing flag should be false after resolution")
	}
	if got := ed.callCount(); got != 1 {
		t.Errorf("editor invoked %d times, want 1", got)
	}
	if got := len(c.Results()); got != 1 {
		t.Errorf("history length = %d, want 1", got)
	}
}

func TestEditFailureSurfacesMessage(t *testing.T) {
	ed := &stubEditor{err: errors.New("quota exceeded for this model")}
	c := New(ed, fakePreviews)
	if err := c.SetBatch(context.Background(), testBatch(1)); err != nil {
		t.Fatalf("SetBatch: %v", err)
	}

	_, err := c.SubmitEdit(context.Background(), "sharpen")

	var editErr *EditRequestError
	if !errors.As(err, &editErr) {
		t.Fatalf("error = %v, want EditRequestError", err)
	}
	if editErr.Message != "quota exceeded for this model" {
		t.Errorf("message = %q, want the capability's message", editErr.Message)
	}

	snap := c.Snapshot()
	if snap.ErrMessage != editErr.Message {
		t.Errorf("state error = %q, want %q", snap.ErrMessage, editErr.Message)
	}
	if snap.Editing {
		t.Error("Editing flag must clear on failure")
	}
	if len(snap.Results) != 0 {
		t.Error("failed edit must not append to history")
	}
}

func TestEmptyCapabilityResponseIsEditError(t *testing.T) {
	ed := &stubEditor{result: &gemini.EditResult{}}
	c := New(ed, fakePreviews)
	if err := c.SetBatch(context.Background(), testBatch(1)); err != nil {
		t.Fatalf("SetBatch: %v", err)
	}

	_, err := c.SubmitEdit(context.Background(), "sharpen")

	var editErr *EditRequestError
	if !errors.As(err, &editErr) {
		t.Fatalf("error = %v, want EditRequestError", err)
	}
	if editErr.Message == "" {
		t.Error("fallback message must be non-empty")
	}
}

func TestSuccessfulEditClearsPriorError(t *testing.T) {
	ed := &stubEditor{err: errors.New("transient failure")}
	c := New(ed, fakePreviews)
	if err := c.SetBatch(context.Background(), testBatch(1)); err != nil {
		t.Fatalf("SetBatch: %v", err)
	}

	if _, err := c.SubmitEdit(context.Background(), "sharpen"); err == nil {
		t.Fatal("expected first edit to fail")
	}

	ed.mu.Lock()
	ed.err = nil
	ed.result = editResult("ok")
	ed.mu.Unlock()

	if _, err := c.SubmitEdit(context.Background(), "sharpen"); err != nil {
		t.Fatalf("second edit: %v", err)
	}
	if snap := c.Snapshot(); snap.ErrMessage != "" {
		t.Errorf("error message = %q, want cleared", snap.ErrMessage)
	}
}

func TestNewBatchClearsHistoryAndSelection(t *testing.T) {
	ed := &stubEditor{result: editResult("a")}
	c := New(ed, fakePreviews)
	if err := c.SetBatch(context.Background(), testBatch(3)); err != nil {
		t.Fatalf("SetBatch: %v", err)
	}

	res, err := c.SubmitEdit(context.Background(), "watercolor style")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	c.ToggleSelect(res.ID)

	if err := c.SetBatch(context.Background(), testBatch(1)); err != nil {
		t.Fatalf("second SetBatch: %v", err)
	}

	snap := c.Snapshot()
	if len(snap.Results) != 0 {
		t.Errorf("history length = %d, want 0 after new batch", len(snap.Results))
	}
	if len(snap.SelectedID) != 0 {
		t.Errorf("selection size = %d, want 0 after new batch", len(snap.SelectedID))
	}
	if len(snap.Previews) != 1 {
		t.Errorf("previews length = %d, want 1", len(snap.Previews))
	}
}

func TestStaleEditResolutionDiscarded(t *testing.T) {
	ed := &stubEditor{
		result:  editResult("stale"),
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	c := New(ed, fakePreviews)
	if err := c.SetBatch(context.Background(), testBatch(2)); err != nil {
		t.Fatalf("SetBatch: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.SubmitEdit(context.Background(), "old batch edit")
		done <- err
	}()
	<-ed.started

	// Replace the batch while the edit is in flight.
	if err := c.SetBatch(context.Background(), testBatch(1)); err != nil {
		t.Fatalf("replacement SetBatch: %v", err)
	}

	close(ed.block)
	if err := <-done; !errors.Is(err, ErrBatchSuperseded) {
		t.Fatalf("stale edit error = %v, want ErrBatchSuperseded", err)
	}

	snap := c.Snapshot()
	if len(snap.Results) != 0 {
		t.Error("stale result must not be appended to the new batch's history")
	}
	if snap.Editing {
		t.Error("new batch must not inherit the stale in-flight flag")
	}
	if snap.ErrMessage != "" {
		t.Errorf("stale resolution must not set an error, got %q", snap.ErrMessage)
	}

	// The new batch is fully usable.
	ed.mu.Lock()
	ed.block = nil
	ed.started = nil
	ed.result = editResult("fresh")
	ed.mu.Unlock()

	if _, err := c.SubmitEdit(context.Background(), "new batch edit"); err != nil {
		t.Fatalf("edit after replacement: %v", err)
	}
	if got := len(c.Results()); got != 1 {
		t.Errorf("history length = %d, want 1", got)
	}
}

func TestPreviewFailureIsIngestionError(t *testing.T) {
	failing := previewFunc(func(ctx context.Context, images []ingest.Image) ([]string, error) {
		return nil, errors.New("decode failed")
	})

	ed := &stubEditor{result: editResult("a")}
	c := New(ed, fakePreviews)
	if err := c.SetBatch(context.Background(), testBatch(1)); err != nil {
		t.Fatalf("SetBatch: %v", err)
	}
	if _, err := c.SubmitEdit(context.Background(), "sharpen"); err != nil {
		t.Fatalf("edit: %v", err)
	}

	c.previews = failing
	err := c.SetBatch(context.Background(), testBatch(2))

	var ingErr *IngestionError
	if !errors.As(err, &ingErr) {
		t.Fatalf("error = %v, want IngestionError", err)
	}

	snap := c.Snapshot()
	if snap.ErrMessage != "there was an error loading your images" {
		t.Errorf("error message = %q", snap.ErrMessage)
	}
	if len(snap.Previews) != 0 {
		t.Error("no partial preview set may be published")
	}
	// The failed batch still replaced the old one.
	if len(snap.Results) != 0 {
		t.Error("prior history must not survive a failed ingestion")
	}
	if len(snap.Uploads) != 2 {
		t.Errorf("uploads length = %d, want the new batch's 2", len(snap.Uploads))
	}
}

func TestToggleSelectUnknownIDIgnored(t *testing.T) {
	c := New(&stubEditor{result: editResult("a")}, fakePreviews)
	if c.ToggleSelect("no-such-id") {
		t.Error("toggling an unknown id must not select it")
	}
	if len(c.SelectedResults()) != 0 {
		t.Error("selection must stay empty")
	}
}

func TestSelectedResultsFollowHistoryOrder(t *testing.T) {
	ed := &stubEditor{result: editResult("r1")}
	c := New(ed, fakePreviews)
	if err := c.SetBatch(context.Background(), testBatch(1)); err != nil {
		t.Fatalf("SetBatch: %v", err)
	}

	r1, _ := c.SubmitEdit(context.Background(), "one")
	ed.mu.Lock()
	ed.result = editResult("r2")
	ed.mu.Unlock()
	r2, _ := c.SubmitEdit(context.Background(), "two")

	// Select oldest first; iteration order must still be history order.
	c.ToggleSelect(r1.ID)
	c.ToggleSelect(r2.ID)

	selected := c.SelectedResults()
	if len(selected) != 2 {
		t.Fatalf("selected count = %d, want 2", len(selected))
	}
	if selected[0].ID != r2.ID || selected[1].ID != r1.ID {
		t.Errorf("selected order = [%s, %s], want history order [%s, %s]",
			selected[0].ID, selected[1].ID, r2.ID, r1.ID)
	}

	c.ClearSelection()
	if len(c.SelectedResults()) != 0 {
		t.Error("ClearSelection must empty the set")
	}
}

func TestResultIDsNeverRepeat(t *testing.T) {
	ed := &stubEditor{result: editResult("a")}
	c := New(ed, fakePreviews)
	if err := c.SetBatch(context.Background(), testBatch(1)); err != nil {
		t.Fatalf("SetBatch: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		res, err := c.SubmitEdit(context.Background(), "again")
		if err != nil {
			t.Fatalf("edit %d: %v", i, err)
		}
		if seen[res.ID] {
			t.Fatalf("id %q repeated", res.ID)
		}
		seen[res.ID] = true

		// Ids stay unique across batch resets too.
		if i == 25 {
			if err := c.SetBatch(context.Background(), testBatch(1)); err != nil {
				t.Fatalf("mid-run SetBatch: %v", err)
			}
		}
	}
}
