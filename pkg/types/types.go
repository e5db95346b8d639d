package types

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"
)

// Multipart field names understood by the generate endpoint
const (
	FieldImage      = "image"
	FieldBrightness = "brightness"
)

// Defaults for the downloadable artifact
const (
	DefaultArtifactFilename    = "lithophane.stl"
	DefaultArtifactContentType = "application/sla"
	DefaultEndpoint            = "http://localhost:5000/generate"
	DefaultBrightness          = 0.9
)

// Flow statuses
const (
	StatusIdle       = "idle"
	StatusSubmitting = "submitting"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// Policy for submit calls made while no file is selected
const (
	MissingFileReject = "reject"
	MissingFileAllow  = "allow"
)

// Policy for submit calls made while another submission is in flight
const (
	InFlightSupersede = "supersede"
	InFlightReject    = "reject"
	InFlightJoin      = "join"
)

// SelectedFile is the user-chosen binary blob that will be uploaded
type SelectedFile struct {
	Name        string
	ContentType string
	Data        []byte
	SelectedAt  time.Time
}

// Size returns the content length in bytes
func (f *SelectedFile) Size() int {
	if f == nil {
		return 0
	}
	return len(f.Data)
}

// SubmissionParameters are the scalar values attached to every submission
type SubmissionParameters struct {
	Brightness float64           `yaml:"brightness" json:"brightness"`
	Extra      map[string]string `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// Field is a single non-file multipart form field
type Field struct {
	Name  string
	Value string
}

// Fields returns the form fields for the parameters. Brightness comes first,
// extras follow in sorted key order.
func (p SubmissionParameters) Fields() []Field {
	fields := []Field{{
		Name:  FieldBrightness,
		Value: strconv.FormatFloat(p.Brightness, 'f', -1, 64),
	}}

	keys := make([]string, 0, len(p.Extra))
	for k := range p.Extra {
		if k == FieldBrightness || k == FieldImage {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, Field{Name: k, Value: p.Extra[k]})
	}
	return fields
}

// Validate checks the recognized options
func (p SubmissionParameters) Validate() error {
	if p.Brightness < 0 || p.Brightness > 1 {
		return fmt.Errorf("brightness must be within [0,1], got %v", p.Brightness)
	}
	return nil
}

// AsMap returns the parameters as a flat map for metadata and responses
func (p SubmissionParameters) AsMap() map[string]interface{} {
	m := make(map[string]interface{}, len(p.Extra)+1)
	for _, f := range p.Fields() {
		m[f.Name] = f.Value
	}
	m[FieldBrightness] = p.Brightness
	return m
}

// Submission is one upload request handed to a client
type Submission struct {
	ID         string
	File       *SelectedFile // nil when submitted without a selection
	Parameters SubmissionParameters
}

// GenerateResponse is the binary payload returned by the endpoint
type GenerateResponse struct {
	StatusCode     int
	ContentType    string
	RemoteFilename string // from Content-Disposition, informational only
	Data           []byte
}

// ResultArtifact is a downloadable payload produced by a successful submission
type ResultArtifact struct {
	ID             string    `json:"id"`
	SubmissionID   string    `json:"submission_id"`
	Filename       string    `json:"filename"`
	ContentType    string    `json:"content_type"`
	Size           int64     `json:"size"`
	SHA256         string    `json:"sha256"`
	RemoteFilename string    `json:"remote_filename,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	Reference      Reference `json:"reference"`
}

// Reference is the transient, locally scoped handle for an artifact
type Reference struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// ArtifactMetadata is stored alongside each artifact
type ArtifactMetadata struct {
	Version      string                 `yaml:"version"`
	ID           string                 `yaml:"id"`
	SubmissionID string                 `yaml:"submission_id"`
	Timestamp    time.Time              `yaml:"timestamp"`
	Endpoint     string                 `yaml:"endpoint"`
	Source       *SourceInfo            `yaml:"source,omitempty"`
	Parameters   map[string]interface{} `yaml:"parameters"`
	Result       *ArtifactResult        `yaml:"result,omitempty"`
}

// SourceInfo describes the uploaded file
type SourceInfo struct {
	Name        string `yaml:"name"`
	ContentType string `yaml:"content_type"`
	Size        int    `yaml:"size"`
}

// ArtifactResult describes the stored payload
type ArtifactResult struct {
	Filename       string  `yaml:"filename"`
	ContentType    string  `yaml:"content_type"`
	Size           int64   `yaml:"size"`
	SHA256         string  `yaml:"sha256"`
	RemoteFilename string  `yaml:"remote_filename,omitempty"`
	Duration       float64 `yaml:"duration"`
}

// SubmissionError is the single failure class for a submission: transport
// errors, non-success statuses and unusable bodies all end up here.
type SubmissionError struct {
	SubmissionID string
	StatusCode   int // 0 when no response was received
	Message      string
	Err          error
}

func (e *SubmissionError) Error() string {
	msg := "submission failed"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg = msg + ": " + e.Message
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// StatusText returns the HTTP reason phrase for the recorded status
func (e *SubmissionError) StatusText() string {
	if e.StatusCode == 0 {
		return ""
	}
	return http.StatusText(e.StatusCode)
}

// IsSubmissionError reports whether err is (or wraps) a SubmissionError
func IsSubmissionError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}
