// Package shared centralizes JSON envelopes so every handler returns the same
// shapes for errors and payloads.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "evscan/pkg/domain-errors"
)

type errorBody struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

// WriteError translates a domain error into an HTTP response. Unknown errors
// collapse to a bare 500 without leaking internals.
func WriteError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		de = dErrors.New(dErrors.CodeInternal, "")
	}

	body := errorBody{Error: string(de.Code)}
	if de.Code != dErrors.CodeInternal {
		body.Message = de.Message
		body.Details = de.Details
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(de.Code))
	_ = json.NewEncoder(w).Encode(body)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
