package flow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gomcpgo/lithophane_client/pkg/types"
)

func TestReduce(t *testing.T) {
	file := &types.SelectedFile{Name: "a.png"}
	other := &types.SelectedFile{Name: "b.png"}
	oldArtifact := &types.ResultArtifact{ID: "old"}
	newArtifact := &types.ResultArtifact{ID: "new"}
	boom := errors.New("boom")

	tests := []struct {
		name   string
		start  State
		action Action
		want   State
	}{
		{
			name:   "select file in idle",
			start:  InitialState(),
			action: FileSelected{File: file},
			want:   State{Status: types.StatusIdle, File: file},
		},
		{
			name:   "reselect keeps artifact",
			start:  State{Status: types.StatusReady, File: file, Artifact: oldArtifact, SubmissionID: "s1"},
			action: FileSelected{File: other},
			want:   State{Status: types.StatusReady, File: other, Artifact: oldArtifact, SubmissionID: "s1"},
		},
		{
			name:   "idle to submitting",
			start:  State{Status: types.StatusIdle, File: file},
			action: SubmitStarted{SubmissionID: "s1"},
			want:   State{Status: types.StatusSubmitting, File: file, SubmissionID: "s1"},
		},
		{
			name:   "failed to submitting clears error",
			start:  State{Status: types.StatusFailed, File: file, SubmissionID: "s1", Err: boom},
			action: SubmitStarted{SubmissionID: "s2"},
			want:   State{Status: types.StatusSubmitting, File: file, SubmissionID: "s2"},
		},
		{
			name:   "submitting to ready",
			start:  State{Status: types.StatusSubmitting, File: file, Artifact: oldArtifact, SubmissionID: "s2"},
			action: SubmitSucceeded{SubmissionID: "s2", Artifact: newArtifact},
			want:   State{Status: types.StatusReady, File: file, Artifact: newArtifact, SubmissionID: "s2"},
		},
		{
			name:   "submitting to failed keeps previous artifact",
			start:  State{Status: types.StatusSubmitting, File: file, Artifact: oldArtifact, SubmissionID: "s2"},
			action: SubmitFailed{SubmissionID: "s2", Err: boom},
			want:   State{Status: types.StatusFailed, File: file, Artifact: oldArtifact, SubmissionID: "s2", Err: boom},
		},
		{
			name:   "stale success ignored",
			start:  State{Status: types.StatusSubmitting, SubmissionID: "s2"},
			action: SubmitSucceeded{SubmissionID: "s1", Artifact: newArtifact},
			want:   State{Status: types.StatusSubmitting, SubmissionID: "s2"},
		},
		{
			name:   "stale failure ignored",
			start:  State{Status: types.StatusReady, Artifact: oldArtifact, SubmissionID: "s2"},
			action: SubmitFailed{SubmissionID: "s2", Err: boom},
			want:   State{Status: types.StatusReady, Artifact: oldArtifact, SubmissionID: "s2"},
		},
		{
			name:   "teardown",
			start:  State{Status: types.StatusReady, File: file, Artifact: oldArtifact, SubmissionID: "s2"},
			action: TornDown{},
			want:   InitialState(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.start
			got := Reduce(tt.start, tt.action)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, before, tt.start, "input state must not change")
		})
	}
}

func TestNewSelectedFile_SniffsType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	f := NewSelectedFile("photo", png, "")
	assert.Equal(t, "image/png", f.ContentType)

	f = NewSelectedFile("photo", png, "image/custom")
	assert.Equal(t, "image/custom", f.ContentType, "explicit type is kept")
}
