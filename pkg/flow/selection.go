package flow

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/gomcpgo/lithophane_client/pkg/types"
)

// NewSelectedFile wraps raw bytes as a selection. When contentType is empty or
// generic it is sniffed from the content. No type or size checks are made.
func NewSelectedFile(name string, data []byte, contentType string) *types.SelectedFile {
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(data).String()
	}
	return &types.SelectedFile{
		Name:        name,
		ContentType: contentType,
		Data:        data,
		SelectedAt:  time.Now(),
	}
}

// ReadSelectedFile reads a selection from r
func ReadSelectedFile(name string, r io.Reader, contentType string) (*types.SelectedFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return NewSelectedFile(name, data, contentType), nil
}

// LoadFile reads a selection from a local path
func LoadFile(path string) (*types.SelectedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return NewSelectedFile(filepath.Base(path), data, ""), nil
}
