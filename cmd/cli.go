package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gomcpgo/lithophane_client/pkg/flow"
)

// runOnce submits a single image and writes the artifact to outputPath.
// An empty outputPath writes the artifact filename into the working
// directory; a directory receives the artifact under that filename.
func runOnce(ctx context.Context, s *LithophaneServer, inputPath, outputPath string) error {
	file, err := flow.LoadFile(inputPath)
	if err != nil {
		return err
	}
	if err := s.flow.SelectFile(file); err != nil {
		return err
	}

	fmt.Printf("Submitting %s (%d bytes) to %s\n", file.Name, file.Size(), s.client.Endpoint())
	start := time.Now()
	artifact, err := s.flow.Submit(ctx)
	if err != nil {
		return err
	}

	data, err := s.storage.ReadArtifact(artifact)
	if err != nil {
		return err
	}

	if outputPath == "" {
		outputPath = artifact.Filename
	} else if info, err := os.Stat(outputPath); err == nil && info.IsDir() {
		outputPath = filepath.Join(outputPath, artifact.Filename)
	}
	if err := copyFile(outputPath, data); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	fmt.Printf("✅ Success! Time: %v\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("Saved %s (%d bytes, %s)\n", outputPath, artifact.Size, artifact.ContentType)
	return nil
}

func copyFile(dst string, data []byte) error {
	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(dst, data, 0644)
}
