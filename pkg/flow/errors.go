package flow

import "errors"

var (
	// ErrNoFileSelected is returned by Submit when no file is selected and
	// the missing-file policy rejects such submissions.
	ErrNoFileSelected = errors.New("no file selected")

	// ErrSubmissionInFlight is returned by Submit under the reject policy
	// while another submission is in flight.
	ErrSubmissionInFlight = errors.New("a submission is already in flight")

	// ErrSuperseded is returned to the caller of a submission that was
	// replaced by a newer one before it completed.
	ErrSuperseded = errors.New("submission superseded")

	// ErrClosed is returned once the flow has been closed
	ErrClosed = errors.New("flow closed")
)
