package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gomcpgo/lithophane_client/pkg/types"
)

// MockClient is a mock implementation of the Client interface for testing
type MockClient struct {
	// Control behavior
	ResponseDelay time.Duration // How long each call takes
	ShouldFail    bool          // Whether calls should fail
	FailStatus    int           // Status code reported on failure
	FailMessage   string        // Custom failure message
	Payload       []byte        // Body returned on success

	// Gate, when set, blocks every call until it is closed or the context ends
	Gate chan struct{}

	// Track calls for assertions
	Calls []GenerateCall

	mu sync.Mutex
}

// GenerateCall records a call to Generate
type GenerateCall struct {
	Submission types.Submission
	Timestamp  time.Time
}

// NewMockClient creates a new mock client
func NewMockClient() *MockClient {
	return &MockClient{
		Payload: []byte("solid mock\nendsolid mock\n"),
		Calls:   []GenerateCall{},
	}
}

// Generate records the call and returns the scripted outcome
func (m *MockClient) Generate(ctx context.Context, sub *types.Submission) (*types.GenerateResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, GenerateCall{Submission: *sub, Timestamp: time.Now()})
	delay := m.ResponseDelay
	gate := m.Gate
	shouldFail := m.ShouldFail
	failStatus := m.FailStatus
	failMessage := m.FailMessage
	payload := append([]byte(nil), m.Payload...)
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &types.SubmissionError{SubmissionID: sub.ID, Message: "failed to send request", Err: ctx.Err()}
		}
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, &types.SubmissionError{SubmissionID: sub.ID, Message: "failed to send request", Err: ctx.Err()}
		}
	}

	if shouldFail {
		if failMessage == "" {
			failMessage = "mock client configured to fail"
		}
		return nil, &types.SubmissionError{SubmissionID: sub.ID, StatusCode: failStatus, Message: failMessage}
	}

	return &types.GenerateResponse{
		StatusCode:  200,
		ContentType: "application/octet-stream",
		Data:        payload,
	}, nil
}

// Helper methods for testing

// CallCount returns the number of Generate calls so far
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent call
func (m *MockClient) LastCall() (GenerateCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return GenerateCall{}, fmt.Errorf("no calls recorded")
	}
	return m.Calls[len(m.Calls)-1], nil
}

// SetPayload changes the body returned by future calls
func (m *MockClient) SetPayload(payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Payload = payload
}

// SetFailure makes future calls fail with the given status and message
func (m *MockClient) SetFailure(status int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldFail = true
	m.FailStatus = status
	m.FailMessage = message
}

// Block makes future calls wait until Release is called
func (m *MockClient) Block() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gate = make(chan struct{})
}

// Release unblocks all calls waiting on the gate
func (m *MockClient) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Gate != nil {
		close(m.Gate)
		m.Gate = nil
	}
}
