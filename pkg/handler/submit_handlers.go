package handler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/gomcpgo/lithophane_client/pkg/flow"
	"github.com/gomcpgo/lithophane_client/pkg/responses"
	"github.com/gomcpgo/lithophane_client/pkg/storage"
	"github.com/gomcpgo/lithophane_client/pkg/types"
)

// maxWaitSeconds caps the wait_time argument
const maxWaitSeconds = 60

// handleSelectFile handles the select_file tool
func (h *LithophaneHandler) handleSelectFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("file_path")
	if err != nil || path == "" {
		return h.errorResponse("select_file", "invalid_parameters", "file_path parameter is required", nil)
	}

	file, err := flow.LoadFile(path)
	if err != nil {
		return h.errorResponse("select_file", "file_not_found", err.Error(), map[string]interface{}{"file_path": path})
	}
	if ct := req.GetString("content_type", ""); ct != "" {
		file.ContentType = ct
	}

	if err := h.flow.SelectFile(file); err != nil {
		return h.errorResponse("select_file", "permission_denied", err.Error(), nil)
	}

	response := responses.BuildSimpleSuccessResponse(
		"select_file",
		fmt.Sprintf("Selected %s", file.Name),
		map[string]interface{}{
			"file": fileInfo(file),
		},
	)
	return h.successResponse(response)
}

// handleSubmit handles the submit tool
func (h *LithophaneHandler) handleSubmit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := h.flow.Start()
	if err != nil {
		return h.flowErrorResponse("submit", err)
	}

	file := h.flow.Snapshot().File
	pending := &PendingSubmission{SubmissionID: id, StartTime: time.Now()}
	if file != nil {
		pending.FileName = file.Name
	}
	h.pending.Add(pending)
	h.logger.Info("submission started", zap.String("submission_id", id))

	return h.awaitOutcome(ctx, "submit", id, waitDuration(req, h.timeouts.InitialWait))
}

// handleContinueOperation handles the continue_operation tool
func (h *LithophaneHandler) handleContinueOperation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("submission_id", "")
	if id == "" {
		id = h.flow.Snapshot().SubmissionID
	}
	if id == "" {
		return h.errorResponse("continue_operation", "not_ready", "no submission has been started", nil)
	}

	return h.awaitOutcome(ctx, "continue_operation", id, waitDuration(req, h.timeouts.ContinueWait))
}

// awaitOutcome waits up to wait for submission id and reports where it ended up
func (h *LithophaneHandler) awaitOutcome(ctx context.Context, operation, id string, wait time.Duration) (*mcp.CallToolResult, error) {
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	st, err := h.flow.Wait(waitCtx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("failed to wait for submission: %w", err)
	}

	p, tracked := h.pending.Get(id)
	if st.SubmissionID != id {
		if !tracked {
			return h.errorResponse(operation, "not_found",
				fmt.Sprintf("unknown submission %s", id),
				map[string]interface{}{"current_submission_id": st.SubmissionID},
			)
		}
		return h.errorResponse(operation, "superseded",
			fmt.Sprintf("submission %s is no longer current", id),
			map[string]interface{}{
				"current_submission_id": st.SubmissionID,
				"file_name":             p.FileName,
			},
		)
	}

	started := time.Now()
	if tracked {
		started = p.StartTime
	}

	switch st.Status {
	case types.StatusSubmitting:
		h.logger.Debug("submission still in flight", zap.String("submission_id", id))
		return h.successResponse(responses.BuildProcessingResponse(operation, id, time.Since(started).Seconds()))

	case types.StatusReady:
		return h.successResponse(h.buildArtifactResponse(operation, st.Artifact))

	case types.StatusFailed:
		details := map[string]interface{}{"submission_id": id}
		var se *types.SubmissionError
		if errors.As(st.Err, &se) && se.StatusCode != 0 {
			details["status_code"] = se.StatusCode
			details["status_text"] = se.StatusText()
		}
		return h.errorResponse(operation, responses.ErrorType(st.Err), st.Err.Error(), details)

	default:
		return h.errorResponse(operation, "not_ready", "flow is idle", nil)
	}
}

// handleGetStatus handles the get_status tool
func (h *LithophaneHandler) handleGetStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := h.flow.Snapshot()

	data := map[string]interface{}{
		"status":        st.Status,
		"submission_id": st.SubmissionID,
	}
	if st.File != nil {
		data["file"] = fileInfo(st.File)
	}
	if st.Artifact != nil {
		data["artifact"] = st.Artifact
	}
	if st.Err != nil {
		data["error"] = st.Err.Error()
	}

	return h.successResponse(responses.BuildSimpleSuccessResponse("get_status", fmt.Sprintf("Flow is %s", st.Status), data))
}

// handleSaveArtifact handles the save_artifact tool
func (h *LithophaneHandler) handleSaveArtifact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	outputPath, err := req.RequireString("output_path")
	if err != nil || outputPath == "" {
		return h.errorResponse("save_artifact", "invalid_parameters", "output_path parameter is required", nil)
	}

	artifact := h.flow.Snapshot().Artifact
	if artifact == nil {
		return h.errorResponse("save_artifact", "not_ready", "no artifact is available", nil)
	}

	data, err := h.storage.ReadArtifact(artifact)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return h.errorResponse("save_artifact", "not_ready", "artifact was released", nil)
		}
		return nil, err
	}

	if info, err := os.Stat(outputPath); err == nil && info.IsDir() {
		outputPath = filepath.Join(outputPath, artifact.Filename)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return h.errorResponse("save_artifact", "permission_denied", err.Error(), nil)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return h.errorResponse("save_artifact", "permission_denied", err.Error(), nil)
	}

	h.logger.Info("artifact saved", zap.String("artifact_id", artifact.ID), zap.String("path", outputPath))
	return h.successResponse(responses.BuildSimpleSuccessResponse(
		"save_artifact",
		fmt.Sprintf("Saved %s", artifact.Filename),
		map[string]interface{}{
			"output_path":  outputPath,
			"size":         len(data),
			"content_type": artifact.ContentType,
		},
	))
}

// handleListArtifacts handles the list_artifacts tool
func (h *LithophaneHandler) handleListArtifacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	artifacts, err := h.storage.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	return h.successResponse(responses.BuildSimpleSuccessResponse(
		"list_artifacts",
		fmt.Sprintf("%d artifact(s) stored", len(artifacts)),
		map[string]interface{}{
			"artifacts": artifacts,
			"count":     len(artifacts),
		},
	))
}

// buildArtifactResponse builds a structured response for a ready artifact
func (h *LithophaneHandler) buildArtifactResponse(operation string, artifact *types.ResultArtifact) string {
	params := h.flow.Options().Parameters.AsMap()
	metrics := map[string]interface{}{
		"file_size": artifact.Size,
	}
	if m, err := h.storage.LoadMetadata(artifact.ID); err == nil && m.Result != nil {
		metrics["generation_time"] = m.Result.Duration
	}
	return responses.BuildSuccessResponse(operation, artifact, params, metrics)
}

// flowErrorResponse maps flow sentinel errors to response types
func (h *LithophaneHandler) flowErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, flow.ErrNoFileSelected):
		return h.errorResponse(operation, "no_file_selected", err.Error(), nil)
	case errors.Is(err, flow.ErrSubmissionInFlight):
		return h.errorResponse(operation, "submission_busy", err.Error(), map[string]interface{}{
			"submission_id": h.flow.Snapshot().SubmissionID,
		})
	case errors.Is(err, flow.ErrClosed):
		return h.errorResponse(operation, "permission_denied", err.Error(), nil)
	default:
		return h.errorResponse(operation, responses.ErrorType(err), err.Error(), nil)
	}
}

// errorResponse builds an error response
func (h *LithophaneHandler) errorResponse(operation, code, message string, details map[string]interface{}) (*mcp.CallToolResult, error) {
	h.logger.Warn("tool error", zap.String("operation", operation), zap.String("type", code), zap.String("message", message))
	return mcp.NewToolResultError(responses.BuildErrorResponse(operation, code, message, details)), nil
}

// successResponse wraps a JSON payload as a tool result
func (h *LithophaneHandler) successResponse(content string) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(content), nil
}

func fileInfo(f *types.SelectedFile) map[string]interface{} {
	return map[string]interface{}{
		"name":         f.Name,
		"content_type": f.ContentType,
		"size":         f.Size(),
	}
}

func waitDuration(req mcp.CallToolRequest, def time.Duration) time.Duration {
	secs := req.GetFloat("wait_time", -1)
	if secs < 0 {
		return def
	}
	if secs > maxWaitSeconds {
		secs = maxWaitSeconds
	}
	return time.Duration(secs * float64(time.Second))
}
