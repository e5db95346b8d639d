package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/gomcpgo/lithophane_client/pkg/types"
)

func saveSample(t *testing.T, s *Storage, data []byte) *types.ResultArtifact {
	t.Helper()
	artifact, err := s.Save(SaveRequest{
		SubmissionID: "sub-1",
		Filename:     types.DefaultArtifactFilename,
		ContentType:  types.DefaultArtifactContentType,
		Data:         data,
	})
	require.NoError(t, err)
	return artifact
}

func TestGenerateID_Unique(t *testing.T) {
	s := NewStorage(t.TempDir())
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := s.GenerateID()
		require.NoError(t, err)
		assert.Len(t, id, 8)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true

		info, err := os.Stat(filepath.Join(s.Root(), id))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestSave_WritesArtifactAndMetadata(t *testing.T) {
	s := NewStorage(t.TempDir())
	artifact := saveSample(t, s, []byte("STLDATA123"))

	assert.Equal(t, "lithophane.stl", artifact.Filename)
	assert.Equal(t, "application/sla", artifact.ContentType)
	assert.EqualValues(t, 10, artifact.Size)
	assert.Equal(t, "/artifacts/"+artifact.ID+"/lithophane.stl", artifact.Reference.URL)
	assert.Len(t, artifact.SHA256, 64)

	data, err := s.ReadArtifact(artifact)
	require.NoError(t, err)
	assert.Equal(t, []byte("STLDATA123"), data)

	metadata, err := s.LoadMetadata(artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.0", metadata.Version)
	assert.Equal(t, "sub-1", metadata.SubmissionID)
	require.NotNil(t, metadata.Result)
	assert.Equal(t, artifact.SHA256, metadata.Result.SHA256)
}

func TestSave_RejectsPathInFilename(t *testing.T) {
	s := NewStorage(t.TempDir())
	_, err := s.Save(SaveRequest{Filename: "../escape.stl", Data: []byte("x")})
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	s := NewStorage(t.TempDir())
	artifact := saveSample(t, s, []byte("payload"))

	f, got, err := s.Open(artifact.ID, "lithophane.stl")
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
	assert.Equal(t, artifact.ID, got.ID)

	_, _, err = s.Open(artifact.ID, "other.stl")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = s.Open("../../etc", "passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRelease(t *testing.T) {
	s := NewStorage(t.TempDir())
	artifact := saveSample(t, s, []byte("payload"))

	require.NoError(t, s.Release(artifact.ID))

	_, err := s.ReadArtifact(artifact)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(artifact.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Release(artifact.ID), ErrNotFound)
}

func TestListAndReleaseAll(t *testing.T) {
	s := NewStorage(t.TempDir())
	saveSample(t, s, []byte("a"))
	saveSample(t, s, []byte("b"))

	// stray directories without metadata are ignored
	require.NoError(t, os.Mkdir(filepath.Join(s.Root(), "stray"), 0755))

	artifacts, err := s.List()
	require.NoError(t, err)
	assert.Len(t, artifacts, 2)

	require.NoError(t, s.ReleaseAll())
	artifacts, err = s.List()
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestList_MissingRoot(t *testing.T) {
	s := NewStorage(filepath.Join(t.TempDir(), "missing"))
	artifacts, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestSave_RoundTripProperty(t *testing.T) {
	s := NewStorage(t.TempDir())
	rapid.Check(t, func(rt *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 1, 4096).Draw(rt, "payload")

		artifact, err := s.Save(SaveRequest{
			Filename:    types.DefaultArtifactFilename,
			ContentType: types.DefaultArtifactContentType,
			Data:        payload,
		})
		if err != nil {
			rt.Fatalf("save: %v", err)
		}
		defer s.Release(artifact.ID)

		got, err := s.ReadArtifact(artifact)
		if err != nil {
			rt.Fatalf("read: %v", err)
		}
		if string(got) != string(payload) {
			rt.Fatalf("stored bytes differ from payload")
		}
		if artifact.Size != int64(len(payload)) {
			rt.Fatalf("size %d, want %d", artifact.Size, len(payload))
		}
	})
}
