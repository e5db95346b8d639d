package responses

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomcpgo/lithophane_client/pkg/types"
)

func TestBuildSuccessResponse(t *testing.T) {
	artifact := &types.ResultArtifact{
		ID:           "abc12345",
		SubmissionID: "sub-1",
		Filename:     "lithophane.stl",
		ContentType:  "application/sla",
		Size:         10,
		Reference:    types.Reference{Path: "/tmp/abc12345/lithophane.stl", URL: "/artifacts/abc12345/lithophane.stl"},
	}

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(BuildSuccessResponse("submit", artifact, nil, nil)), &out))

	assert.Equal(t, true, out["success"])
	assert.Equal(t, "abc12345", out["id"])
	a := out["artifact"].(map[string]interface{})
	assert.Equal(t, "lithophane.stl", a["filename"])
	assert.Equal(t, "application/sla", a["content_type"])
	assert.NotContains(t, out, "remote_filename")
}

func TestBuildErrorResponse(t *testing.T) {
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(BuildErrorResponse("submit", "server_error", "boom", nil)), &out))

	assert.Equal(t, false, out["success"])
	e := out["error"].(map[string]interface{})
	assert.Equal(t, "boom", e["message"])
	assert.Equal(t, GetSuggestion("server_error"), e["suggestion"])
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&types.SubmissionError{StatusCode: 500}, "server_error"},
		{&types.SubmissionError{StatusCode: 400}, "request_rejected"},
		{&types.SubmissionError{StatusCode: 200}, "invalid_response"},
		{&types.SubmissionError{}, "network_error"},
		{fmt.Errorf("wrapped: %w", &types.SubmissionError{StatusCode: 502}), "server_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorType(tt.err), tt.err.Error())
	}
}

func TestGetSuggestion_Unknown(t *testing.T) {
	assert.Equal(t, "Please check your input and try again", GetSuggestion("whatever"))
}
