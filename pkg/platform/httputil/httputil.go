package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "chronicle/pkg/domain-errors"
)

// WriteJSON encodes v as the response body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders a domain error as a JSON error envelope. Internal
// errors hide their message from clients; everything else passes the
// message through as error_description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	body := map[string]string{"error": wireCode(code)}
	if code != dErrors.CodeInternal {
		var dErr *dErrors.Error
		if errors.As(err, &dErr) && dErr.Message != "" {
			body["error_description"] = dErr.Message
		}
	}
	WriteJSON(w, status, body)
}

func wireCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeInvalidInput:
		return "invalid_input"
	case dErrors.CodeInvalidRange:
		return "invalid_range"
	case dErrors.CodeUnauthorized:
		return "unauthorized"
	case dErrors.CodeNotFound:
		return "not_found"
	default:
		return "internal_error"
	}
}
