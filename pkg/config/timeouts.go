package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// TimeoutConfig holds all configurable timeout values
type TimeoutConfig struct {
	// Request bounds a single generate call. Zero leaves it to the transport.
	Request time.Duration

	// InitialWait is how long submit waits before reporting a processing status
	InitialWait time.Duration

	// ContinueWait is how long continue_operation waits for completion
	ContinueWait time.Duration

	// Shutdown bounds graceful shutdown of the web surface
	Shutdown time.Duration
}

// DefaultTimeouts returns the default timeout configuration
func DefaultTimeouts() TimeoutConfig {
	return TimeoutConfig{
		Request:      0,
		InitialWait:  15 * time.Second,
		ContinueWait: 30 * time.Second,
		Shutdown:     5 * time.Second,
	}
}

// LoadTimeouts loads timeout configuration from environment variables
func LoadTimeouts() TimeoutConfig {
	config := DefaultTimeouts()

	if val := os.Getenv("LITHOPHANE_REQUEST_TIMEOUT"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil && seconds >= 0 {
			config.Request = time.Duration(seconds) * time.Second
		}
	}

	if val := os.Getenv("LITHOPHANE_INITIAL_WAIT"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil && seconds > 0 {
			config.InitialWait = time.Duration(seconds) * time.Second
		}
	}

	if val := os.Getenv("LITHOPHANE_CONTINUE_WAIT"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil && seconds > 0 {
			config.ContinueWait = time.Duration(seconds) * time.Second
		}
	}

	return config
}

// Validate checks the timeout values
func (t TimeoutConfig) Validate() error {
	if t.Request < 0 {
		return fmt.Errorf("request timeout must not be negative")
	}
	if t.InitialWait <= 0 || t.ContinueWait <= 0 {
		return fmt.Errorf("wait timeouts must be positive")
	}
	return nil
}

// TestTimeouts returns timeout configuration suitable for testing
func TestTimeouts() TimeoutConfig {
	return TimeoutConfig{
		Request:      2 * time.Second,
		InitialWait:  200 * time.Millisecond,
		ContinueWait: 500 * time.Millisecond,
		Shutdown:     time.Second,
	}
}
