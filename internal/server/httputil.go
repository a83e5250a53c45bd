package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/fieldforms/internal/export"
	"github.com/mesh-intelligence/fieldforms/internal/schema"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 20

// writeJSON marshals v as JSON and writes it with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writeJSON encode error", zap.Error(err))
	}
}

// writeError writes a structured JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// validationBody carries every message of a failed validation.
type validationBody struct {
	Error    string   `json:"error"`
	Code     string   `json:"code"`
	Messages []string `json:"messages,omitempty"`
	FieldIDs []string `json:"field_ids,omitempty"`
}

// writeServiceError maps domain errors to HTTP responses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var verr *types.ValidationError
	var missing *types.MissingRequiredFieldError
	switch {
	case errors.As(err, &verr):
		s.writeJSON(w, http.StatusBadRequest, validationBody{
			Error: err.Error(), Code: "VALIDATION_ERROR", Messages: verr.Messages,
		})
	case errors.As(err, &missing):
		s.writeJSON(w, http.StatusBadRequest, validationBody{
			Error: err.Error(), Code: "MISSING_REQUIRED_FIELD", FieldIDs: missing.FieldIDs,
		})
	case errors.Is(err, types.ErrUnauthenticated), errors.Is(err, types.ErrInvalidCredentials):
		s.writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
	case errors.Is(err, types.ErrForbidden):
		s.writeError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, types.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, types.ErrDuplicateName), errors.Is(err, types.ErrDuplicateCode),
		errors.Is(err, types.ErrDuplicateEmail),
		errors.Is(err, types.ErrHasChildren), errors.Is(err, types.ErrHasForms),
		errors.Is(err, types.ErrHasAgents), errors.Is(err, types.ErrCycle):
		s.writeError(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, types.ErrInvalidData), errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrInvalidFilter), errors.Is(err, types.ErrInvalidName),
		errors.Is(err, types.ErrInvalidValue), errors.Is(err, types.ErrInvalidIndex),
		errors.Is(err, types.ErrUnknownProperty), errors.Is(err, schema.ErrUnsupportedFormat):
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, export.ErrNothingToExport):
		s.writeError(w, http.StatusNotFound, "NOTHING_TO_EXPORT", err.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// decodeJSON decodes the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// isFormPost reports whether the body is an urlencoded or multipart form.
func isFormPost(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(ct, "multipart/form-data")
}
