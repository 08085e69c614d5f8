package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/uxav/AVnetCore-sub001/internal/av"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeUnauthorized     = "unauthorised"
	ErrCodeForbidden        = "forbidden"
	ErrCodeConflict         = "conflict"
	ErrCodeBusy             = "busy"
	ErrCodeInvalidOperation = "invalid_operation"
	ErrCodeHookFailed       = "hook_failed"
	ErrCodeUnavailable      = "unavailable"
	ErrCodeInternal         = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeAVError maps room and source errors to HTTP responses.
func (s *Server) writeAVError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, av.ErrBusy):
		writeError(w, http.StatusConflict, ErrCodeBusy, err.Error())
	case errors.Is(err, av.ErrInvalidOperation):
		writeError(w, http.StatusConflict, ErrCodeInvalidOperation, err.Error())
	case errors.Is(err, av.ErrRoomNotFound), errors.Is(err, av.ErrSourceNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, av.ErrInvalidArgument):
		writeBadRequest(w, err.Error())
	case errors.Is(err, av.ErrHookFailed):
		writeError(w, http.StatusBadGateway, ErrCodeHookFailed, err.Error())
	default:
		s.logger.Error("room operation failed", "error", err)
		writeInternalError(w, "internal server error")
	}
}
