package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/viralforge/dbfleet/internal/domain"
)

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{
		"status":  "success",
		"message": message,
	})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

// mapDomainError translates domain failures into HTTP responses. Invalid
// credentials and unknown users share one response; only the lockout is
// distinguishable to callers.
func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, domain.ErrAccountLocked):
		return http.StatusLocked, "ACCOUNT_LOCKED", "account temporarily locked"
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrUserNotFound):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials"
	case errors.Is(err, domain.ErrSessionExpired):
		return http.StatusUnauthorized, "SESSION_EXPIRED", "session expired"
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusUnauthorized, "SESSION_INVALID", "session not found"
	case errors.Is(err, domain.ErrWeakPassword):
		return http.StatusUnprocessableEntity, "WEAK_PASSWORD", err.Error()
	case errors.Is(err, domain.ErrDuplicateUser):
		return http.StatusConflict, "DUPLICATE_USER", "username already exists"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "metadata store unavailable"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

func writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, code, msg := mapDomainError(err)
	logHTTPOperationError(ctx, operation, status, code, msg, err)
	writeError(w, status, code, msg)
}

func writeValidationError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	code := "VALIDATION_ERROR"
	msg := err.Error()
	logHTTPOperationError(ctx, operation, http.StatusBadRequest, code, msg, err)
	writeError(w, http.StatusBadRequest, code, msg)
}
