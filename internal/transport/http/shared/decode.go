package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"cardadmin/internal/transport/http/api"
)

// DecodeJSON reads a single JSON object into dst. Unknown fields are rejected
// and an empty body is allowed when allowEmpty is set.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool, requestID string) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) && allowEmpty {
		return true
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", requestID)
			return false
		}
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return false
	}
	if dec.More() {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "request body must contain a single JSON object", requestID)
		return false
	}
	return true
}
