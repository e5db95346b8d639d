package web

import (
	"errors"
	"fmt"
	"html/template"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gomcpgo/lithophane_client/pkg/flow"
	"github.com/gomcpgo/lithophane_client/pkg/storage"
	"github.com/gomcpgo/lithophane_client/pkg/types"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Lithophane Generator</title></head>
<body>
<h1>Lithophane Generator</h1>
<form action="/submit" method="post" enctype="multipart/form-data">
  <input type="file" name="image">
  <button type="submit">Generate STL</button>
</form>
{{if .File}}<p>Selected: {{.File.Name}} ({{.File.Size}} bytes)</p>{{end}}
<p>Status: {{.Status}}</p>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .DownloadURL}}<a href="{{.DownloadURL}}" download="{{.Artifact.Filename}}">Download STL</a>{{end}}
</body>
</html>
`))

type fileView struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

type statusView struct {
	Status       string                `json:"status"`
	SubmissionID string                `json:"submission_id,omitempty"`
	File         *fileView             `json:"file,omitempty"`
	Artifact     *types.ResultArtifact `json:"artifact,omitempty"`
	DownloadURL  string                `json:"download_url,omitempty"`
	Error        string                `json:"error,omitempty"`
}

func newStatusView(st flow.State) statusView {
	v := statusView{
		Status:       st.Status,
		SubmissionID: st.SubmissionID,
		Artifact:     st.Artifact,
	}
	if st.File != nil {
		v.File = &fileView{Name: st.File.Name, ContentType: st.File.ContentType, Size: st.File.Size()}
	}
	if st.Artifact != nil {
		v.DownloadURL = st.Artifact.Reference.URL
	}
	if st.Err != nil {
		v.Error = st.Err.Error()
	}
	return v
}

func (s *Server) handleIndex(c *gin.Context) {
	view := newStatusView(s.opts.Flow.Snapshot())
	// errors that never reach the state arrive with the redirect
	if msg := c.Query("error"); msg != "" {
		view.Error = msg
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(c.Writer, view); err != nil {
		c.Error(err)
	}
}

// handleSelectFile replaces the selection with the uploaded image field
func (s *Server) handleSelectFile(c *gin.Context) {
	fh, err := c.FormFile(types.FieldImage)
	if err != nil {
		if tooLarge(err) {
			respondError(c, http.StatusRequestEntityTooLarge, err.Error(), nil)
			return
		}
		respondError(c, http.StatusBadRequest, "No image provided", nil)
		return
	}
	if err := s.selectUpload(fh); err != nil {
		s.respondFlowError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, newStatusView(s.opts.Flow.Snapshot()), "file selected")
}

// handleSubmit selects the uploaded image, when present, and submits it
func (s *Server) handleSubmit(c *gin.Context) {
	fh, err := c.FormFile(types.FieldImage)
	switch {
	case err == nil:
		if err := s.selectUpload(fh); err != nil {
			s.respondSubmitError(c, err)
			return
		}
	case tooLarge(err):
		if wantsHTML(c) {
			redirectWithError(c, err)
			return
		}
		respondError(c, http.StatusRequestEntityTooLarge, err.Error(), nil)
		return
	}

	artifact, err := s.opts.Flow.Submit(c.Request.Context())
	if wantsHTML(c) {
		if err != nil {
			redirectWithError(c, err)
			return
		}
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	if err != nil {
		s.respondFlowError(c, err)
		return
	}

	s.logger.Debug("artifact served", zap.String("artifact_id", artifact.ID))
	respondSuccess(c, http.StatusOK, newStatusView(s.opts.Flow.Snapshot()), "artifact ready")
}

func (s *Server) handleStatus(c *gin.Context) {
	respondSuccess(c, http.StatusOK, newStatusView(s.opts.Flow.Snapshot()), "")
}

func (s *Server) handleDownload(c *gin.Context) {
	f, artifact, err := s.opts.Storage.Open(c.Param("id"), c.Param("filename"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(c, http.StatusNotFound, "artifact not found", nil)
			return
		}
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "failed to open artifact", nil)
		return
	}
	defer f.Close()

	c.DataFromReader(http.StatusOK, artifact.Size, artifact.ContentType, f, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": artifact.Filename}),
	})
}

func (s *Server) selectUpload(fh *multipart.FileHeader) error {
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	file, err := flow.ReadSelectedFile(fh.Filename, f, fh.Header.Get("Content-Type"))
	if err != nil {
		return err
	}
	return s.opts.Flow.SelectFile(file)
}

func (s *Server) respondFlowError(c *gin.Context, err error) {
	c.Error(err)

	var se *types.SubmissionError
	switch {
	case errors.Is(err, flow.ErrNoFileSelected):
		respondError(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, flow.ErrSubmissionInFlight), errors.Is(err, flow.ErrSuperseded):
		respondError(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, flow.ErrClosed):
		respondError(c, http.StatusServiceUnavailable, err.Error(), nil)
	case errors.As(err, &se):
		respondError(c, http.StatusBadGateway, err.Error(), gin.H{
			"status_code": se.StatusCode,
			"status_text": se.StatusText(),
		})
	default:
		respondError(c, http.StatusInternalServerError, err.Error(), nil)
	}
}

// respondSubmitError reports err as JSON or, for browser posts, on the page
func (s *Server) respondSubmitError(c *gin.Context, err error) {
	if wantsHTML(c) {
		c.Error(err)
		redirectWithError(c, err)
		return
	}
	s.respondFlowError(c, err)
}

func redirectWithError(c *gin.Context, err error) {
	c.Redirect(http.StatusSeeOther, "/?error="+url.QueryEscape(err.Error()))
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

func wantsHTML(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}
