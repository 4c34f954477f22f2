package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"network-monitor/internal/adapters/har"
	"network-monitor/internal/usecase"
)

type apiErrorBody struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code string, message string, details interface{}) {
	if code == "" {
		code = http.StatusText(status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiErrorBody{Error: apiError{Code: code, Message: message, Details: details}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps service and adapter errors onto the error envelope.
func writeServiceError(w http.ResponseWriter, err error, details interface{}) {
	switch {
	case errors.Is(err, usecase.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", err.Error(), details)
	case errors.Is(err, usecase.ErrCursorNotFound):
		writeError(w, http.StatusConflict, "CURSOR_NOT_FOUND", err.Error(), details)
	case errors.Is(err, har.ErrInvalidHAR):
		writeError(w, http.StatusBadRequest, "INVALID_HAR", err.Error(), details)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "CANCELED", err.Error(), details)
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), details)
	}
}
