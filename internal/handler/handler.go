// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/Shivanand-hulikatti/advisor-match/internal/embedding"
	"github.com/Shivanand-hulikatti/advisor-match/internal/extract"
	"github.com/Shivanand-hulikatti/advisor-match/internal/index"
	"github.com/Shivanand-hulikatti/advisor-match/internal/logger"
	"github.com/Shivanand-hulikatti/advisor-match/internal/matcher"
	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
	"github.com/Shivanand-hulikatti/advisor-match/internal/repository"
	"github.com/Shivanand-hulikatti/advisor-match/internal/service"
	"github.com/Shivanand-hulikatti/advisor-match/internal/storage"
)

const maxJSONBody = 1 << 20

// Handler holds all HTTP handlers for the advisor matching API.
type Handler struct {
	profiles      *service.ProfileService
	documents     *service.DocumentService
	matches       *service.MatchService
	registrations *service.RegistrationService
	notifications *service.NotificationService
	index         index.Searcher
	log           *logger.Logger
	maxUpload     int64
}

// Services groups the handler's dependencies.
type Services struct {
	Profiles      *service.ProfileService
	Documents     *service.DocumentService
	Matches       *service.MatchService
	Registrations *service.RegistrationService
	Notifications *service.NotificationService
	Index         index.Searcher
}

// New constructs a Handler. maxUpload bounds multipart uploads in bytes.
func New(svc Services, log *logger.Logger, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{
		profiles:      svc.Profiles,
		documents:     svc.Documents,
		matches:       svc.Matches,
		registrations: svc.Registrations,
		notifications: svc.Notifications,
		index:         svc.Index,
		log:           log.With("component", "http"),
		maxUpload:     maxUpload,
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// nonNil returns an empty slice for nil so lists encode as [] not null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// writeServiceError maps domain errors to HTTP statuses in one place.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to send
		h.log.Debug("request cancelled", "path", r.URL.Path)
		return

	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, extract.ErrUnsupportedFormat),
		errors.Is(err, extract.ErrEmptyContent),
		errors.Is(err, extract.ErrMalformed):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")

	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")

	case errors.Is(err, repository.ErrDuplicateRegistration),
		errors.Is(err, repository.ErrCapacityExceeded),
		errors.Is(err, repository.ErrDocumentInUse),
		errors.Is(err, repository.ErrProfileExists),
		errors.Is(err, repository.ErrCapacityTooLow),
		errors.Is(err, model.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())

	case embedding.IsTransient(err),
		errors.Is(err, embedding.ErrRetriesExhausted),
		errors.Is(err, context.DeadlineExceeded):
		if d := embedding.RetryAfter(err); d > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
		}
		h.log.Warn("embedding provider unavailable", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, "embedding provider unavailable, retry later")

	case errors.Is(err, matcher.ErrEmptyIndex),
		errors.Is(err, index.ErrDimensionMismatch),
		errors.Is(err, embedding.ErrDimensionMismatch):
		h.log.Error("matching invariant violated", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())

	default:
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	snap := h.index.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"indexed_profiles": snap.Len(),
		"index_version":    snap.Version,
	})
}
