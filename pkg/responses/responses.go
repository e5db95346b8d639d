package responses

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gomcpgo/lithophane_client/pkg/types"
)

// BuildSuccessResponse creates a standardized success response for a ready artifact
func BuildSuccessResponse(operation string, artifact *types.ResultArtifact, params map[string]interface{}, metrics map[string]interface{}) string {
	response := map[string]interface{}{
		"success":       true,
		"operation":     operation,
		"id":            artifact.ID,
		"submission_id": artifact.SubmissionID,
		"artifact": map[string]interface{}{
			"filename":     artifact.Filename,
			"content_type": artifact.ContentType,
			"size":         artifact.Size,
			"sha256":       artifact.SHA256,
		},
		"paths": map[string]string{
			"file_path": artifact.Reference.Path,
			"url":       artifact.Reference.URL,
		},
		"parameters": params,
		"metrics":    metrics,
	}

	if artifact.RemoteFilename != "" {
		response["remote_filename"] = artifact.RemoteFilename
	}

	jsonBytes, _ := json.MarshalIndent(response, "", "  ")
	return string(jsonBytes)
}

// BuildErrorResponse creates a standardized error response
func BuildErrorResponse(operation string, errorType string, message string, details map[string]interface{}) string {
	response := map[string]interface{}{
		"success":   false,
		"operation": operation,
		"error": map[string]interface{}{
			"type":       errorType,
			"message":    message,
			"details":    details,
			"suggestion": GetSuggestion(errorType),
		},
	}

	jsonBytes, _ := json.MarshalIndent(response, "", "  ")
	return string(jsonBytes)
}

// BuildProcessingResponse creates a response for a submission still in flight
func BuildProcessingResponse(operation string, submissionID string, elapsed float64) string {
	response := map[string]interface{}{
		"success":       false,
		"operation":     operation,
		"status":        types.StatusSubmitting,
		"submission_id": submissionID,
		"elapsed":       elapsed,
		"message":       fmt.Sprintf("Submission still in progress. Use continue_operation with submission_id='%s' to check status.", submissionID),
	}

	jsonBytes, _ := json.MarshalIndent(response, "", "  ")
	return string(jsonBytes)
}

// BuildSimpleSuccessResponse creates a simple success response with just a message
func BuildSimpleSuccessResponse(operation string, message string, data map[string]interface{}) string {
	response := map[string]interface{}{
		"success":   true,
		"operation": operation,
		"message":   message,
	}

	// Merge additional data if provided
	for k, v := range data {
		response[k] = v
	}

	jsonBytes, _ := json.MarshalIndent(response, "", "  ")
	return string(jsonBytes)
}

// ErrorType classifies a submission error for the response envelope
func ErrorType(err error) string {
	var se *types.SubmissionError
	if !errors.As(err, &se) || se.StatusCode == 0 {
		return "network_error"
	}
	switch {
	case se.StatusCode >= 500:
		return "server_error"
	case se.StatusCode >= 400:
		return "request_rejected"
	default:
		return "invalid_response"
	}
}

// GetSuggestion provides helpful suggestions for different error types
func GetSuggestion(errorType string) string {
	suggestions := map[string]string{
		"file_not_found":     "Please check the file path and ensure the file exists",
		"no_file_selected":   "Select an image with select_file before submitting",
		"invalid_parameters": "Check the parameter values and ensure they meet the requirements",
		"submission_busy":    "A submission is already running. Use continue_operation to wait for it",
		"superseded":         "A newer submission replaced this one. Use get_status for the latest result",
		"server_error":       "The generator failed to process the image. Try a different image or retry later",
		"request_rejected":   "The generator rejected the upload. Check that the file is a readable image",
		"network_error":      "Check that the generator endpoint is reachable",
		"invalid_response":   "The generator returned no usable artifact. Retry the submission",
		"not_ready":          "No artifact is available yet. Submit an image first",
		"not_found":          "The submission id was never issued or has expired. Use get_status for the current submission",
		"permission_denied":  "Ensure you have the necessary permissions for this operation",
	}

	if suggestion, ok := suggestions[errorType]; ok {
		return suggestion
	}
	return "Please check your input and try again"
}
