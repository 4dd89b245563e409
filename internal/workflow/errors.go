package workflow

import "errors"

// User-visible messages for failures that have no better wording from the
// failing component itself.
const (
	msgIngestionFailed = "there was an error loading your images"
	msgEditFallback    = "something went wrong while editing your images"
)

// ErrEditInFlight is returned when a submission arrives while another edit
// is still outstanding. The first request keeps running; the second is never
// started.
var ErrEditInFlight = errors.New("an edit is already in progress")

// ErrBatchSuperseded is returned when an operation resolved against an upload
// batch that has since been replaced. The resolution is discarded without
// touching the new batch's state.
var ErrBatchSuperseded = errors.New("upload batch was replaced; stale result discarded")

// ValidationError reports a submission attempted without uploads or without
// a prompt. No request is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// IngestionError reports that building previews for a new upload batch
// failed. The batch is still considered replaced: the previous batch's
// previews do not come back.
type IngestionError struct {
	Err error
}

func (e *IngestionError) Error() string {
	return msgIngestionFailed
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// EditRequestError reports that the external edit capability failed. Message
// is always non-empty and user-visible; Err preserves the underlying cause.
type EditRequestError struct {
	Message string
	Err     error
}

func (e *EditRequestError) Error() string {
	return e.Message
}

func (e *EditRequestError) Unwrap() error {
	return e.Err
}
