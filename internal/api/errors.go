package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/punchamoorthee/transactflow/internal/domain"
)

// errorResponse is the envelope every non-2xx response carries.
type errorResponse struct {
	Timestamp         time.Time `json:"timestamp"`
	Status            int       `json:"status"`
	Error             string    `json:"error"`
	Code              string    `json:"code"`
	Message           string    `json:"message"`
	RetryAfterSeconds *int64    `json:"retryAfterSeconds,omitempty"`
}

func newErrorResponse(status int, code, message string) errorResponse {
	return errorResponse{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Error:     http.StatusText(status),
		Code:      code,
		Message:   message,
	}
}

func respondWithError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, newErrorResponse(status, code, message))
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// statusFor maps a service error onto an HTTP status and machine code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrIdempotencyMismatch):
		return http.StatusUnprocessableEntity, "IDEMPOTENCY_MISMATCH"
	case errors.Is(err, domain.ErrIdempotencyInProgress):
		return http.StatusConflict, "REQUEST_IN_PROGRESS"
	case errors.Is(err, domain.ErrDuplicateTransaction):
		return http.StatusConflict, "DUPLICATE_TRANSACTION"
	case errors.Is(err, domain.ErrInactiveAccount):
		return http.StatusConflict, "ACCOUNT_INACTIVE"
	}

	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case domain.KindNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case domain.KindStateConflict:
		return http.StatusConflict, "CONFLICT"
	case domain.KindInsufficientBalance:
		return http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"
	case domain.KindRateLimited:
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized, "UNAUTHORIZED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func (h *Handler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("request_id", RequestIDFrom(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
	respondWithError(w, status, code, domain.Message(err))
}
