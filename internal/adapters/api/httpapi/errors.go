package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ragdesk/console/internal/core/domain"
)

// errorResponse is the backend's error body. Detail is a string for most
// errors and a list of field errors for validation failures.
type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
	Code   string          `json:"code,omitempty"`
}

type fieldError struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

func parseErrorResponse(status int, body []byte) *domain.APIError {
	message := http.StatusText(status)
	var code string

	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil {
		code = er.Code
		if m := detailMessage(er.Detail); m != "" {
			message = m
		}
	} else if s := strings.TrimSpace(string(body)); s != "" && len(s) < 512 {
		message = s
	}

	apiErr := domain.NewAPIError(domain.ErrorTypeForStatus(status), message).WithStatusCode(status)
	if code != "" {
		apiErr.WithCode(domain.ErrorCode(code))
	}
	return apiErr
}

func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var fields []fieldError
	if err := json.Unmarshal(raw, &fields); err == nil && len(fields) > 0 {
		msgs := make([]string, 0, len(fields))
		for _, f := range fields {
			msgs = append(msgs, f.Msg)
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
