package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/postboard/postboard-backend/internal/posts"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies; img may be an inline data URI
const maxBodyBytes = 10 << 20

// MetricsInterface defines the interface for metrics recording
type MetricsInterface interface {
	RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration)
}

// Pinger is a dependency checked by /readyz
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	posts     *posts.Service
	validator *posts.Validator
	db        Pinger
	cache     Pinger
	logger    *zap.SugaredLogger
}

func NewHandler(
	postSvc *posts.Service,
	validator *posts.Validator,
	db Pinger,
	cache Pinger,
	logger *zap.SugaredLogger,
) *Handler {
	return &Handler{
		posts:     postSvc,
		validator: validator,
		db:        db,
		cache:     cache,
		logger:    logger,
	}
}

// Health and ops endpoints
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthDTO{Status: "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var reasons []string
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warnw("Readiness check failed", "dependency", "database", "error", err)
			reasons = append(reasons, "DATABASE_UNAVAILABLE")
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			h.logger.Warnw("Readiness check failed", "dependency", "cache", "error", err)
			reasons = append(reasons, "CACHE_UNAVAILABLE")
		}
	}

	if len(reasons) > 0 {
		h.writeJSON(w, http.StatusServiceUnavailable, HealthDTO{Status: "unavailable", Reasons: reasons})
		return
	}
	h.writeJSON(w, http.StatusOK, HealthDTO{Status: "ready"})
}

// Utility methods
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warnw("Failed to encode response", "status", status, "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("API error", "code", code, "message", message, "status", status)
	} else {
		h.logger.Debugw("API error", "code", code, "message", message, "status", status)
	}
	writeErrorBody(w, status, code, message)
}

func (h *Handler) writeValidationError(w http.ResponseWriter, errs posts.ValidationErrors) {
	h.writeJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
		Code:    "VALIDATION_ERROR",
		Message: "Invalid request",
		Errors:  errs,
	})
}

// writeErrorBody is shared with middleware, which has no Handler
func writeErrorBody(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// decodeJSON reads a bounded JSON body into dst, keeping numbers as json.Number
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(dst)
}

// writeDecodeError maps a decodeJSON failure onto 400, 413 or 422
func (h *Handler) writeDecodeError(w http.ResponseWriter, err error) {
	var typeErr *json.UnmarshalTypeError
	var sizeErr *http.MaxBytesError
	switch {
	case errors.As(err, &typeErr) && typeErr.Field != "":
		h.writeValidationError(w, posts.ValidationErrors{{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("%s must be a %s", typeErr.Field, jsonKind(typeErr.Type.String())),
		}})
	case errors.As(err, &sizeErr):
		h.writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Request body too large")
	default:
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Malformed JSON body")
	}
}

func jsonKind(goType string) string {
	switch goType {
	case "string", "*string":
		return "string"
	default:
		return goType
	}
}

// handleServiceError maps posts sentinels onto 404 and everything else onto 500
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if posts.IsNotFound(err) {
		if errors.Is(err, posts.ErrCategoryNotFound) {
			h.writeError(w, http.StatusNotFound, "CATEGORY_NOT_FOUND", MsgCategoryNotFound)
		} else {
			h.writeError(w, http.StatusNotFound, "POST_NOT_FOUND", MsgPostNotFound)
		}
		return
	}

	h.logger.Errorw("Request failed",
		"request_id", middleware.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
}
