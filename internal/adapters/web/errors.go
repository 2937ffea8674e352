package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"flower-pos/internal/core"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type errorResponse struct {
	Success   bool      `json:"success"`
	Error     errorBody `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	writeErrorBody(w, r, status, errorBody{Code: code, Message: message, Details: details})
}

func writeErrorBody(w http.ResponseWriter, r *http.Request, status int, body errorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:     body,
		RequestID: requestIDFromContext(r.Context()),
	})
}

// writeServiceError maps a ledger error to its HTTP status. Internal causes never leave the
// process; they are logged by the service that produced them.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	le := core.AsLedgerError(err)
	writeErrorBody(w, r, le.HTTPStatus(), errorBody{
		Code:      le.Code,
		Message:   le.Message,
		Details:   le.Details,
		Retryable: le.Retryable(),
	})
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE", "request body too large", nil)
			return false
		}
		writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body: "+err.Error(), nil)
		return false
	}
	return true
}
