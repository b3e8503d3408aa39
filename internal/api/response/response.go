// Package response holds the JSON envelope helpers shared by middleware and
// any handler that does not shape its own payload.
package response

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorResponse is the error body the API returns for rejected requests.
// Details carries optional extra context, such as which field failed.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// RespondJSON writes data as JSON with the given status. A nil data writes
// the status alone. Encoding failures are logged, not surfaced; the status
// line is already on the wire by then.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("failed to encode JSON response: %v", err)
		}
	}
}

// RespondError writes an ErrorResponse with the given status. details may be
// an error string, a field map, or nil.
func RespondError(w http.ResponseWriter, status int, message string, details interface{}) {
	RespondJSON(w, status, ErrorResponse{
		Error:   message,
		Details: details,
	})
}
