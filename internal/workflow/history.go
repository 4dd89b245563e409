package workflow

// Result is one edited image produced by the external capability. Immutable
// once created; its ID is unique for the process lifetime so selection can
// reference it safely.
type Result struct {
	// ID is an opaque unique identifier (monotonic counter + random suffix).
	ID string
	// MIMEType of the edited image as reported by the capability.
	MIMEType string
	// Data is the raw edited image bytes.
	Data []byte
	// Note is any commentary the capability returned alongside the image.
	Note string
}

// history is the ordered collection of edited results, newest first.
// Only the Controller mutates it.
type history struct {
	items []Result
}

// prepend inserts a result at the front. No capacity bound, no deduplication.
func (h *history) prepend(r Result) {
	h.items = append([]Result{r}, h.items...)
}

// clear discards all results. Callers must clear the selection alongside,
// otherwise dangling ids would accumulate there.
func (h *history) clear() {
	h.items = nil
}

// all returns a copy of the results, newest first.
func (h *history) all() []Result {
	out := make([]Result, len(h.items))
	copy(out, h.items)
	return out
}

// contains reports whether an id is present in the history.
func (h *history) contains(id string) bool {
	for _, r := range h.items {
		if r.ID == id {
			return true
		}
	}
	return false
}
