package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func urlParam(r *http.Request, key string) string {
	return strings.TrimSpace(chi.URLParam(r, key))
}

func scopeParams(r *http.Request) (eventID, incidentID string) {
	return urlParam(r, "eventID"), urlParam(r, "id")
}
