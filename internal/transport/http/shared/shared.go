// Package shared centralizes JSON envelopes so every handler renders
// successes and failures the same way.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "certo/pkg/domain-errors"
)

// ErrorResponse is the JSON error envelope. Field-level details carry the
// store's validation output verbatim when present.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message,omitempty"`
	Fields  map[string][]string `json:"errors,omitempty"`
}

// WriteJSON renders v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope.
// Uncoded errors render as internal without leaking their text.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.Message = dErrors.MessageOf(err)
		resp.Fields = dErrors.FieldsOf(err)
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}
