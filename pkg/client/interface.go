package client

import (
	"context"

	"github.com/gomcpgo/lithophane_client/pkg/types"
)

// Client defines the interface for talking to the generate endpoint
type Client interface {
	// Generate uploads the submission and returns the binary payload.
	// Every failure is reported as a *types.SubmissionError.
	Generate(ctx context.Context, sub *types.Submission) (*types.GenerateResponse, error)
}

// Ensure HTTPClient implements the Client interface
var _ Client = (*HTTPClient)(nil)
