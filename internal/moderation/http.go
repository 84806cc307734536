package moderation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/your-org/modflow/internal/job"
)

// HTTPHandler exposes REST endpoints for the moderation service.
type HTTPHandler struct {
	service        *Service
	logger         *zap.Logger
	maxSizeBytes   int64
	formMemBytes   int64
	requestTimeout time.Duration
	router         chi.Router
}

// NewHTTPHandler constructs the HTTP handler and wires routes. requestTimeout
// bounds one whole session and must outlast the slowest acceptable job.
func NewHTTPHandler(service *Service, logger *zap.Logger, maxSizeBytes, formMemBytes int64, requestTimeout time.Duration) *HTTPHandler {
	h := &HTTPHandler{
		service:        service,
		logger:         logger,
		maxSizeBytes:   maxSizeBytes,
		formMemBytes:   formMemBytes,
		requestTimeout: requestTimeout,
	}
	h.buildRouter()
	return h
}

func (h *HTTPHandler) buildRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.requestTimeout))

	r.Get("/healthz", h.handleHealth)
	r.Post("/api/v1/moderations", h.handleModerate)

	h.router = r
}

// Router exposes the configured chi router.
func (h *HTTPHandler) Router() http.Handler {
	return h.router
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *HTTPHandler) handleModerate(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > 0 && r.ContentLength > h.maxSizeBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	if err := r.ParseMultipartForm(h.formMemBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxSizeBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds max size limit")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	opts := SessionOptions{
		MediaName:   header.Filename,
		ContentType: contentType,
	}
	if raw := r.FormValue("min_confidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil || v < 0 || v > 100 {
			writeError(w, http.StatusBadRequest, "min_confidence must be a number between 0 and 100")
			return
		}
		opts.MinConfidence = float32(v)
	}

	result, err := h.service.Moderate(r.Context(), file, header.Size, opts)
	if err != nil {
		h.logger.Error("moderation session failed", zap.Error(err))
		writeError(w, statusForError(err), "moderation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":  result.SessionID,
		"job_id":      result.JobID,
		"status":      result.Status,
		"categories":  result.Categories,
		"verdict":     result.Verdict,
		"started_at":  result.StartedAt,
		"finished_at": result.FinishedAt,
	})
}

func statusForError(err error) int {
	var timeout *job.TimeoutError
	if errors.As(err, &timeout) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}
