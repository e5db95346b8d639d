package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"go.uber.org/zap"

	"github.com/gomcpgo/lithophane_client/pkg/types"
)

// maxErrorBody bounds how much of a failed response is read for the message
const maxErrorBody = 4096

// HTTPClient posts submissions to the generate endpoint as multipart forms
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	maxSize    int64
	logger     *zap.Logger
}

// Option configures an HTTPClient
type Option func(*HTTPClient)

// WithMaxArtifactSize limits the response body. Zero means unlimited.
func WithMaxArtifactSize(n int64) Option {
	return func(c *HTTPClient) {
		c.maxSize = n
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

// NewHTTPClient creates a client for the given endpoint URL
func NewHTTPClient(endpoint string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "client"))
	return c
}

// Endpoint returns the configured endpoint URL
func (c *HTTPClient) Endpoint() string {
	return c.endpoint
}

// Generate uploads the submission and returns the binary payload
func (c *HTTPClient) Generate(ctx context.Context, sub *types.Submission) (*types.GenerateResponse, error) {
	body, contentType, err := EncodeSubmission(sub)
	if err != nil {
		return nil, &types.SubmissionError{SubmissionID: sub.ID, Message: "failed to encode request", Err: err}
	}

	c.logger.Debug("posting submission",
		zap.String("submission_id", sub.ID),
		zap.String("endpoint", c.endpoint),
		zap.Int("file_size", sub.File.Size()),
		zap.Int("body_size", body.Len()),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, &types.SubmissionError{SubmissionID: sub.ID, Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &types.SubmissionError{SubmissionID: sub.ID, Message: "failed to send request", Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("response received",
		zap.String("submission_id", sub.ID),
		zap.Int("status", resp.StatusCode),
		zap.Int64("content_length", resp.ContentLength),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &types.SubmissionError{
			SubmissionID: sub.ID,
			StatusCode:   resp.StatusCode,
			Message:      errorMessage(resp.Body),
		}
	}

	data, err := c.readPayload(resp.Body)
	if err != nil {
		return nil, &types.SubmissionError{SubmissionID: sub.ID, StatusCode: resp.StatusCode, Message: err.Error()}
	}

	return &types.GenerateResponse{
		StatusCode:     resp.StatusCode,
		ContentType:    resp.Header.Get("Content-Type"),
		RemoteFilename: dispositionFilename(resp.Header.Get("Content-Disposition")),
		Data:           data,
	}, nil
}

// readPayload reads the success body, enforcing the size limit
func (c *HTTPClient) readPayload(r io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if c.maxSize > 0 {
		// Headers can lie, so read one byte past the limit and stop there.
		data, err = io.ReadAll(io.LimitReader(r, c.maxSize+1))
		if err == nil && int64(len(data)) > c.maxSize {
			return nil, fmt.Errorf("artifact is greater than the max size of %d bytes", c.maxSize)
		}
	} else {
		data, err = io.ReadAll(r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	return data, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// EncodeSubmission builds the multipart body for a submission and returns it
// with its content type. A nil file is sent as an empty image field.
func EncodeSubmission(sub *types.Submission) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	if sub.File != nil {
		contentType := sub.File.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			types.FieldImage, quoteEscaper.Replace(sub.File.Name)))
		h.Set("Content-Type", contentType)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create image part: %w", err)
		}
		if _, err := part.Write(sub.File.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write image part: %w", err)
		}
	} else if err := w.WriteField(types.FieldImage, ""); err != nil {
		return nil, "", fmt.Errorf("failed to write image field: %w", err)
	}

	for _, f := range sub.Parameters.Fields() {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return body, w.FormDataContentType(), nil
}

// errorMessage extracts a message from a failed response. The generate
// backend answers errors with {"error": "..."}; anything else is used as text.
func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	var errorResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &errorResp); err == nil {
		if errorResp.Error != "" {
			return errorResp.Error
		}
		if errorResp.Message != "" {
			return errorResp.Message
		}
	}
	return string(raw)
}

func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}
