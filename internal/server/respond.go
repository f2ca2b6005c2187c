package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ragdesk/console/internal/core/domain"
	"github.com/ragdesk/console/internal/session"
)

type errorResponse struct {
	Detail    string           `json:"detail"`
	Type      domain.ErrorType `json:"type"`
	Code      domain.ErrorCode `json:"code,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to a JSON error response. Errors that carry no API
// classification are reported as 500 without their text.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)

	resp := errorResponse{RequestID: GetRequestID(r.Context())}
	status := http.StatusInternalServerError

	var apiErr *domain.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode()
		resp.Detail = apiErr.Message
		resp.Type = apiErr.Type
		resp.Code = apiErr.Code
	case errors.Is(err, session.ErrSuperseded):
		status = http.StatusConflict
		resp.Detail = err.Error()
		resp.Type = domain.ErrorTypeConflict
	case errors.Is(err, domain.ErrNoCredentials):
		status = http.StatusUnauthorized
		resp.Detail = "not authenticated"
		resp.Type = domain.ErrorTypeAuthentication
	default:
		resp.Detail = "internal error"
		resp.Type = domain.ErrorTypeServer
	}
	writeJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrInvalidRequest("invalid request body: " + err.Error())
	}
	return nil
}
