package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mwantia/folio/internal/auth"
	"github.com/mwantia/folio/internal/library"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeError maps library and auth errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *library.ValidationError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Message, Field: validation.Field})
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload exceeds the size limit"})
	case errors.Is(err, library.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, library.ErrFileMissing):
		writeJSON(w, http.StatusGone, errorResponse{Error: "stored file is missing"})
	case errors.Is(err, library.ErrStorageUnavailable):
		s.log.Error("Storage failure on %s %s [%s]: %v", r.Method, r.URL.Path, middleware.GetReqID(r.Context()), err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable"})
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	default:
		s.log.Error("Request %s %s [%s] failed: %v", r.Method, r.URL.Path, middleware.GetReqID(r.Context()), err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func urlID(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, &library.ValidationError{Field: "id", Message: "invalid id '" + raw + "'"}
	}
	return uint(id), nil
}
