package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomcpgo/lithophane_client/pkg/types"
)

type capturedRequest struct {
	method     string
	path       string
	fileName   string
	fileType   string
	fileData   []byte
	hasFile    bool
	imageValue []string
	brightness string
	fields     map[string][]string
}

func newGenerateServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		c := capturedRequest{
			method:     r.Method,
			path:       r.URL.Path,
			imageValue: r.MultipartForm.Value[types.FieldImage],
			brightness: r.FormValue(types.FieldBrightness),
			fields:     r.MultipartForm.Value,
		}
		if f, hdr, err := r.FormFile(types.FieldImage); err == nil {
			c.hasFile = true
			c.fileName = hdr.Filename
			c.fileType = hdr.Header.Get("Content-Type")
			c.fileData, _ = io.ReadAll(f)
			f.Close()
		}
		captured = append(captured, c)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func submission(file *types.SelectedFile) *types.Submission {
	return &types.Submission{
		ID:         "sub-1",
		File:       file,
		Parameters: types.SubmissionParameters{Brightness: 0.9},
	}
}

func TestGenerate_Success(t *testing.T) {
	srv, captured := newGenerateServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename=lithophane.stl`)
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("STLDATA123"))
	})

	c := NewHTTPClient(srv.URL + "/generate")
	file := &types.SelectedFile{Name: "photo.jpg", ContentType: "image/jpeg", Data: []byte("0123456789")}

	resp, err := c.Generate(context.Background(), submission(file))
	require.NoError(t, err)

	assert.Equal(t, []byte("STLDATA123"), resp.Data)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "lithophane.stl", resp.RemoteFilename)

	require.Len(t, *captured, 1, "exactly one request per call")
	req := (*captured)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/generate", req.path)
	assert.True(t, req.hasFile)
	assert.Equal(t, "photo.jpg", req.fileName)
	assert.Equal(t, "image/jpeg", req.fileType)
	assert.Equal(t, []byte("0123456789"), req.fileData)
	assert.Equal(t, "0.9", req.brightness)
}

func TestGenerate_ExtraParameters(t *testing.T) {
	srv, captured := newGenerateServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	sub := submission(&types.SelectedFile{Name: "a.png", Data: []byte{1}})
	sub.Parameters.Extra = map[string]string{"layer_height": "0.2", "num_levels": "10"}

	_, err := NewHTTPClient(srv.URL).Generate(context.Background(), sub)
	require.NoError(t, err)

	fields := (*captured)[0].fields
	assert.Equal(t, []string{"0.2"}, fields["layer_height"])
	assert.Equal(t, []string{"10"}, fields["num_levels"])
	assert.Equal(t, "application/octet-stream", (*captured)[0].fileType, "unknown type falls back to octet-stream")
}

func TestGenerate_NoFileSendsEmptyImageField(t *testing.T) {
	srv, captured := newGenerateServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	_, err := NewHTTPClient(srv.URL).Generate(context.Background(), submission(nil))
	require.NoError(t, err)

	req := (*captured)[0]
	assert.False(t, req.hasFile)
	assert.Equal(t, []string{""}, req.imageValue)
	assert.Equal(t, "0.9", req.brightness)
}

func TestGenerate_ServerErrorJSON(t *testing.T) {
	srv, _ := newGenerateServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Image not found or unable to load."}`))
	})

	_, err := NewHTTPClient(srv.URL).Generate(context.Background(), submission(&types.SelectedFile{Name: "a", Data: []byte{1}}))
	require.Error(t, err)

	var se *types.SubmissionError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "Image not found or unable to load.", se.Message)
	assert.Equal(t, "sub-1", se.SubmissionID)
}

func TestGenerate_ServerErrorText(t *testing.T) {
	srv, _ := newGenerateServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := NewHTTPClient(srv.URL).Generate(context.Background(), submission(nil))

	var se *types.SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, "bad gateway", se.Message)
}

func TestGenerate_EmptyBody(t *testing.T) {
	srv, _ := newGenerateServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := NewHTTPClient(srv.URL).Generate(context.Background(), submission(nil))
	require.Error(t, err)
	assert.True(t, types.IsSubmissionError(err))
	assert.Contains(t, err.Error(), "empty response body")
}

func TestGenerate_MaxArtifactSize(t *testing.T) {
	srv, _ := newGenerateServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	})

	_, err := NewHTTPClient(srv.URL, WithMaxArtifactSize(16)).Generate(context.Background(), submission(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "greater than the max size")

	resp, err := NewHTTPClient(srv.URL, WithMaxArtifactSize(64)).Generate(context.Background(), submission(nil))
	require.NoError(t, err)
	assert.Len(t, resp.Data, 64)
}

func TestGenerate_MaxArtifactSizeStopsReading(t *testing.T) {
	const total = 64 << 20
	var written atomic.Int64
	done := make(chan struct{})
	srv, _ := newGenerateServer(t, func(w http.ResponseWriter, r *http.Request) {
		defer close(done)
		chunk := make([]byte, 64<<10)
		for written.Load() < total {
			n, err := w.Write(chunk)
			written.Add(int64(n))
			if err != nil {
				return
			}
			w.(http.Flusher).Flush()
		}
	})

	_, err := NewHTTPClient(srv.URL, WithMaxArtifactSize(1024)).Generate(context.Background(), submission(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "greater than the max size of 1024 bytes")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server kept streaming after the client gave up")
	}
	assert.Less(t, written.Load(), int64(total), "body must not be drained to the end")
}

func TestGenerate_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPClient(url).Generate(context.Background(), submission(nil))

	var se *types.SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Zero(t, se.StatusCode)
	assert.NotNil(t, se.Err)
}

func TestGenerate_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPClient(srv.URL).Generate(ctx, submission(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestMockClient_Scripted(t *testing.T) {
	m := NewMockClient()
	m.SetPayload([]byte("abc"))

	resp, err := m.Generate(context.Background(), submission(nil))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), resp.Data)

	m.SetFailure(http.StatusInternalServerError, "boom")
	_, err = m.Generate(context.Background(), submission(nil))
	var se *types.SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, 2, m.CallCount())
}
