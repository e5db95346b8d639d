package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/gomcpgo/lithophane_client/pkg/config"
	"github.com/gomcpgo/lithophane_client/pkg/flow"
	"github.com/gomcpgo/lithophane_client/pkg/storage"
)

// LithophaneHandler handles MCP requests for the upload/download flow
type LithophaneHandler struct {
	flow     *flow.Flow
	storage  *storage.Storage
	pending  *PendingSubmissions
	timeouts config.TimeoutConfig
	logger   *zap.Logger
}

// NewLithophaneHandler creates a new handler instance
func NewLithophaneHandler(f *flow.Flow, store *storage.Storage, timeouts config.TimeoutConfig, logger *zap.Logger) *LithophaneHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LithophaneHandler{
		flow:     f,
		storage:  store,
		pending:  NewPendingSubmissions(pendingTTL),
		timeouts: timeouts,
		logger:   logger.With(zap.String("component", "mcp")),
	}
}

// Register adds every tool to the MCP server
func (h *LithophaneHandler) Register(s *server.MCPServer) {
	for _, tool := range h.ListTools() {
		s.AddTool(tool, h.CallTool)
	}
}

// CallTool handles execution of the flow tools
func (h *LithophaneHandler) CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.Params.Name
	if deadline, ok := ctx.Deadline(); ok {
		h.logger.Debug("tool call", zap.String("tool", name), zap.Duration("deadline_in", time.Until(deadline)))
	} else {
		h.logger.Debug("tool call", zap.String("tool", name))
	}

	switch name {
	case "select_file":
		return h.handleSelectFile(ctx, req)
	case "submit":
		return h.handleSubmit(ctx, req)
	case "continue_operation":
		return h.handleContinueOperation(ctx, req)
	case "get_status":
		return h.handleGetStatus(ctx, req)
	case "save_artifact":
		return h.handleSaveArtifact(ctx, req)
	case "list_artifacts":
		return h.handleListArtifacts(ctx, req)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}
