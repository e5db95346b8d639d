package flow

import (
	"github.com/gomcpgo/lithophane_client/pkg/types"
)

// State is an immutable snapshot of the flow. It only changes through Reduce;
// the File and Artifact it points to are never mutated after creation.
type State struct {
	Status       string
	File         *types.SelectedFile
	Artifact     *types.ResultArtifact
	SubmissionID string // current or most recent submission
	Err          error  // set while Status is failed
}

// InitialState is the state of a freshly created flow
func InitialState() State {
	return State{Status: types.StatusIdle}
}

// HasFile reports whether a file is selected
func (s State) HasFile() bool {
	return s.File != nil
}

// Action is an event that moves the flow from one state to the next
type Action interface {
	isAction()
}

// FileSelected replaces the selected file
type FileSelected struct {
	File *types.SelectedFile
}

// SubmitStarted begins a submission, superseding any in flight
type SubmitStarted struct {
	SubmissionID string
}

// SubmitSucceeded completes a submission with an artifact
type SubmitSucceeded struct {
	SubmissionID string
	Artifact     *types.ResultArtifact
}

// SubmitFailed completes a submission with an error
type SubmitFailed struct {
	SubmissionID string
	Err          error
}

// TornDown drops the selection and the artifact when the flow is closed
type TornDown struct{}

func (FileSelected) isAction()    {}
func (SubmitStarted) isAction()   {}
func (SubmitSucceeded) isAction() {}
func (SubmitFailed) isAction()    {}
func (TornDown) isAction()        {}

// Reduce returns the state that follows s after a. Outcomes of a submission
// that is not the current one are ignored.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case FileSelected:
		s.File = a.File

	case SubmitStarted:
		s.Status = types.StatusSubmitting
		s.SubmissionID = a.SubmissionID
		s.Err = nil

	case SubmitSucceeded:
		if !s.awaiting(a.SubmissionID) {
			return s
		}
		s.Status = types.StatusReady
		s.Artifact = a.Artifact
		s.Err = nil

	case SubmitFailed:
		if !s.awaiting(a.SubmissionID) {
			return s
		}
		// the previous artifact stays available
		s.Status = types.StatusFailed
		s.Err = a.Err

	case TornDown:
		return InitialState()
	}
	return s
}

func (s State) awaiting(id string) bool {
	return s.Status == types.StatusSubmitting && s.SubmissionID == id
}
