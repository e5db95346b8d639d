package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gomcpgo/lithophane_client/pkg/types"
)

const metadataFile = "metadata.yaml"

// ErrNotFound is returned for unknown or released artifacts
var ErrNotFound = errors.New("artifact not found")

// Storage keeps transient artifacts on local disk. Each artifact lives in its
// own directory until it is released.
type Storage struct {
	rootPath string
	urlBase  string
	mu       sync.Mutex
}

// NewStorage creates a new storage instance
func NewStorage(rootPath string) *Storage {
	return &Storage{
		rootPath: rootPath,
		urlBase:  "/artifacts",
	}
}

// Root returns the storage root directory
func (s *Storage) Root() string {
	return s.rootPath
}

// GenerateID generates a unique 8-character alphanumeric ID and reserves its directory
func (s *Storage) GenerateID() (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	const idLength = 8
	maxRetries := 100

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.rootPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create storage root: %w", err)
	}

	for i := 0; i < maxRetries; i++ {
		b := make([]byte, idLength)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}

		id := make([]byte, idLength)
		for j := 0; j < idLength; j++ {
			id[j] = charset[b[j]%byte(len(charset))]
		}

		idStr := string(id)

		// Mkdir fails if the ID is already taken
		if err := os.Mkdir(filepath.Join(s.rootPath, idStr), 0755); err == nil {
			return idStr, nil
		} else if !os.IsExist(err) {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	return "", fmt.Errorf("failed to generate unique ID after %d attempts", maxRetries)
}

// SaveRequest describes a payload to store
type SaveRequest struct {
	SubmissionID   string
	Filename       string
	ContentType    string
	RemoteFilename string
	Data           []byte
	Metadata       *types.ArtifactMetadata // optional, completed by Save
}

// Save writes the payload and its metadata and returns the artifact with its reference
func (s *Storage) Save(req SaveRequest) (*types.ResultArtifact, error) {
	if req.Filename == "" || filepath.Base(req.Filename) != req.Filename {
		return nil, fmt.Errorf("invalid artifact filename %q", req.Filename)
	}

	id, err := s.GenerateID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ID: %w", err)
	}

	artifactPath := s.GetArtifactPath(id, req.Filename)
	if err := os.WriteFile(artifactPath, req.Data, 0644); err != nil {
		os.RemoveAll(filepath.Join(s.rootPath, id))
		return nil, fmt.Errorf("failed to save artifact: %w", err)
	}

	sum := sha256.Sum256(req.Data)
	artifact := &types.ResultArtifact{
		ID:             id,
		SubmissionID:   req.SubmissionID,
		Filename:       req.Filename,
		ContentType:    req.ContentType,
		Size:           int64(len(req.Data)),
		SHA256:         hex.EncodeToString(sum[:]),
		RemoteFilename: req.RemoteFilename,
		CreatedAt:      time.Now(),
		Reference: types.Reference{
			Path: artifactPath,
			URL:  s.URLFor(id, req.Filename),
		},
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = &types.ArtifactMetadata{}
	}
	metadata.ID = id
	metadata.SubmissionID = req.SubmissionID
	metadata.Result = &types.ArtifactResult{
		Filename:       artifact.Filename,
		ContentType:    artifact.ContentType,
		Size:           artifact.Size,
		SHA256:         artifact.SHA256,
		RemoteFilename: artifact.RemoteFilename,
		Duration:       resultDuration(metadata),
	}
	if err := s.SaveMetadata(id, metadata); err != nil {
		os.RemoveAll(filepath.Join(s.rootPath, id))
		return nil, err
	}

	return artifact, nil
}

func resultDuration(m *types.ArtifactMetadata) float64 {
	if m.Result != nil {
		return m.Result.Duration
	}
	return 0
}

// SaveMetadata saves metadata for an artifact
func (s *Storage) SaveMetadata(id string, metadata *types.ArtifactMetadata) error {
	metadataPath := filepath.Join(s.rootPath, id, metadataFile)

	// Ensure version is set
	if metadata.Version == "" {
		metadata.Version = "1.0"
	}

	// Ensure timestamp is set
	if metadata.Timestamp.IsZero() {
		metadata.Timestamp = time.Now()
	}

	data, err := yaml.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(metadataPath, data, 0644); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	return nil
}

// LoadMetadata loads metadata for an artifact
func (s *Storage) LoadMetadata(id string) (*types.ArtifactMetadata, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	metadataPath := filepath.Join(s.rootPath, id, metadataFile)

	data, err := os.ReadFile(metadataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata types.ArtifactMetadata
	if err := yaml.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &metadata, nil
}

// Get returns the artifact stored under id
func (s *Storage) Get(id string) (*types.ResultArtifact, error) {
	metadata, err := s.LoadMetadata(id)
	if err != nil {
		return nil, err
	}
	if metadata.Result == nil {
		return nil, fmt.Errorf("artifact %s has no result", id)
	}

	return &types.ResultArtifact{
		ID:             id,
		SubmissionID:   metadata.SubmissionID,
		Filename:       metadata.Result.Filename,
		ContentType:    metadata.Result.ContentType,
		Size:           metadata.Result.Size,
		SHA256:         metadata.Result.SHA256,
		RemoteFilename: metadata.Result.RemoteFilename,
		CreatedAt:      metadata.Timestamp,
		Reference: types.Reference{
			Path: s.GetArtifactPath(id, metadata.Result.Filename),
			URL:  s.URLFor(id, metadata.Result.Filename),
		},
	}, nil
}

// ReadArtifact returns the stored bytes of an artifact
func (s *Storage) ReadArtifact(artifact *types.ResultArtifact) ([]byte, error) {
	if artifact == nil {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(artifact.Reference.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

// Open resolves an id and filename, as found in a reference URL, to a file
func (s *Storage) Open(id, filename string) (*os.File, *types.ResultArtifact, error) {
	artifact, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if filename != artifact.Filename {
		return nil, nil, ErrNotFound
	}
	f, err := os.Open(artifact.Reference.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	return f, artifact, nil
}

// Release removes an artifact and invalidates its reference
func (s *Storage) Release(id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	dir := filepath.Join(s.rootPath, id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return ErrNotFound
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to release artifact %s: %w", id, err)
	}
	return nil
}

// ReleaseAll removes every artifact under the root
func (s *Storage) ReleaseAll() error {
	artifacts, err := s.List()
	if err != nil {
		return err
	}
	var errs []error
	for _, a := range artifacts {
		if err := s.Release(a.ID); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// List lists all live artifacts, oldest first
func (s *Storage) List() ([]types.ResultArtifact, error) {
	entries, err := os.ReadDir(s.rootPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []types.ResultArtifact{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	artifacts := []types.ResultArtifact{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		artifact, err := s.Get(entry.Name())
		if err != nil {
			// Skip entries without valid metadata
			continue
		}
		artifacts = append(artifacts, *artifact)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.Before(artifacts[j].CreatedAt)
	})
	return artifacts, nil
}

// GetArtifactPath returns the full path to an artifact file
func (s *Storage) GetArtifactPath(id string, filename string) string {
	return filepath.Join(s.rootPath, id, filename)
}

// URLFor returns the local URL path under which an artifact is served
func (s *Storage) URLFor(id, filename string) string {
	return s.urlBase + "/" + url.PathEscape(id) + "/" + url.PathEscape(filename)
}

func validID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
