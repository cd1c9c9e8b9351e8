package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/logging"
)

// SchemaVersion is reported in every response envelope so clients can detect
// incompatible server upgrades.
const SchemaVersion = "4.1"

// Error codes reported in the envelope's error_code field.
const (
	codeValidationFailed    = "VALIDATION_FAILED"
	codeDuplicateExternalID = "DUPLICATE_EXTERNAL_ID"
	codeTimeConflict        = "TIME_CONFLICT"
	codeNotFound            = "NOT_FOUND"
	codeForbidden           = "FORBIDDEN"
	codeInternal            = "INTERNAL_ERROR"
)

var (
	errBadRequestBody = errors.New("invalid request body")
	errMissingRef     = errors.New("id or externalId is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

// meta carries the envelope fields shared by every response body.
type meta struct {
	Success bool   `json:"success"`
	Version string `json:"version"`
}

func okMeta() meta {
	return meta{Success: true, Version: SchemaVersion}
}

type errorResponse struct {
	meta
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{
		meta:      meta{Success: false, Version: SchemaVersion},
		ErrorCode: code,
		Message:   message,
	})
}

// handleServiceError maps application errors onto the envelope. Duplicate
// external ids and slot conflicts both answer 409, distinguished by
// error_code so retrying clients can tell a replayed create from a genuine
// clash.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, codeInternal, errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	var conflict *application.ConflictError

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			meta:      meta{Success: false, Version: SchemaVersion},
			ErrorCode: codeForbidden,
			Message:   "administrative credentials are required for this operation",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			meta:      meta{Success: false, Version: SchemaVersion},
			ErrorCode: codeNotFound,
			Message:   "booking not found",
		})
	case errors.Is(err, application.ErrDuplicateExternalID):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			meta:      meta{Success: false, Version: SchemaVersion},
			ErrorCode: codeDuplicateExternalID,
			Message:   "a booking with this external id already exists",
		})
	case errors.As(err, &conflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			meta:      meta{Success: false, Version: SchemaVersion},
			ErrorCode: codeTimeConflict,
			Message:   conflict.Error(),
		})
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			meta:      meta{Success: false, Version: SchemaVersion},
			ErrorCode: codeValidationFailed,
			Message:   "validation failed",
			Errors:    vErr.FieldErrors,
		})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			meta:      meta{Success: false, Version: SchemaVersion},
			ErrorCode: codeInternal,
			Message:   "internal server error",
		})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}
