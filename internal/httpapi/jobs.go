package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/scrivano/internal/config"
	"github.com/MrWong99/scrivano/internal/export"
	"github.com/MrWong99/scrivano/internal/job"
	"github.com/MrWong99/scrivano/internal/observe"
	"github.com/MrWong99/scrivano/internal/preflight"
	"github.com/MrWong99/scrivano/internal/transcript"
)

// jobResponse is the JSON representation of a job. Result is only present on
// completed jobs.
type jobResponse struct {
	ID         string                 `json:"job_id"`
	Status     string                 `json:"status"`
	Engine     string                 `json:"engine"`
	Language   string                 `json:"language"`
	Filename   string                 `json:"filename"`
	CreatedAt  time.Time              `json:"created_at"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Result     *transcript.Transcript `json:"result,omitempty"`
	Formatted  string                 `json:"formatted_transcript,omitempty"`
}

func toJobResponse(j job.Job, withResult bool) jobResponse {
	resp := jobResponse{
		ID:        j.ID,
		Status:    string(j.Status),
		Engine:    j.Engine,
		Language:  j.Language,
		Filename:  j.Filename,
		CreatedAt: j.CreatedAt,
		Error:     j.Err,
	}
	if !j.FinishedAt.IsZero() {
		t := j.FinishedAt
		resp.FinishedAt = &t
	}
	if withResult && j.Result != nil {
		resp.Result = j.Result
		resp.Formatted = j.Result.Formatted()
	}
	return resp
}

// handleTranscribe accepts a multipart upload (fields: file, optional
// language, optional engine), stages the audio on disk, and schedules a job.
// Responds 202 with the job id; processing happens in the background.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing form field: file")
		return
	}
	defer file.Close()

	cfg := s.cfg()

	engine := cfg.DefaultEngine()
	if v := r.FormValue("engine"); v != "" {
		engine = config.Engine(v)
		if !engine.IsValid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown engine %q", v))
			return
		}
	}

	provider, err := s.registry.CreateTranscriber(engine, cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("engine %q is not available: %v", engine, err))
		return
	}

	language := r.FormValue("language")
	if language == "" {
		language = cfg.DefaultLanguage()
	}

	if err := preflight.Validate(header.Filename, header.Size, provider.Limits()); err != nil {
		switch {
		case errors.Is(err, preflight.ErrPayloadTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	uploadPath, err := s.stageUpload(file, header.Filename)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	j := s.store.Create(string(engine), language, header.Filename, uploadPath)
	s.runner.Submit(s.baseCtx, j, provider)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": j.ID,
		"status": string(j.Status),
		"engine": j.Engine,
	})
}

// stageUpload copies the uploaded file into the upload directory under a
// random name, preserving the extension for the preflight step.
func (s *Server) stageUpload(src io.Reader, filename string) (string, error) {
	dir := s.uploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(filename)))

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	jobs := s.store.List()
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	j, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(j, true))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	// A deleted job will never publish completed/failed, so close out any
	// live event subscribers here.
	s.hub.PublishTerminal(id, "deleted", "")
	w.WriteHeader(http.StatusNoContent)
}

// handleExport renders a completed transcript as a downloadable document.
// The document is rendered into memory first so a rendering failure can still
// produce a clean error response.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.PathValue("format"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	j, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if j.Status != job.StatusCompleted {
		writeError(w, http.StatusConflict,
			fmt.Sprintf("job is %s; only completed jobs can be exported", j.Status))
		return
	}

	meta := export.Metadata{
		Filename:  j.Filename,
		CreatedAt: j.CreatedAt,
		Language:  j.Language,
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := export.Render(format, &buf, j.Result, meta); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render document")
		return
	}
	s.metrics.ExportDuration.Record(r.Context(), time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("format", string(format))))

	name := strings.TrimSuffix(j.Filename, filepath.Ext(j.Filename))
	if name == "" {
		name = "transcript"
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+format.Extension()))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, &buf)
}
