package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"reportdesk/core/comments"
	"reportdesk/core/incidents"
	"reportdesk/core/utils"
)

// UserHeader carries the caller identity set by the upstream authenticator.
const UserHeader = "X-User-ID"

const defaultMaxBodyBytes = 1 << 20

type ctxKey int

const userIDKey ctxKey = iota

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// CurrentUserID returns the caller identity or "" for anonymous requests.
func CurrentUserID(r *http.Request) string {
	v, _ := r.Context().Value(userIDKey).(string)
	return v
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

// writeServiceError maps core errors to HTTP statuses. Unexpected errors are
// logged and answered with a generic message.
func writeServiceError(w http.ResponseWriter, logger *utils.Logger, op string, err error) {
	switch {
	case errors.Is(err, incidents.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, incidents.ErrForbidden):
		WriteError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, incidents.ErrNotFound):
		WriteError(w, http.StatusNotFound, "Report not found for this event")
	case errors.Is(err, comments.ErrCommentNotFound):
		WriteError(w, http.StatusNotFound, "Comment not found")
	case errors.Is(err, incidents.ErrConflict):
		WriteError(w, http.StatusConflict, "Report was modified concurrently, reload and retry")
	default:
		logger.Errorf("%s: %v", op, err)
		WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, defaultMaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func parseIntDefault(raw string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 0 {
		return def
	}
	return v
}
