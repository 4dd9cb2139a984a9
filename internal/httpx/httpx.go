// internal/httpx/httpx.go
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"farmmarket/internal/fault"
)

// HeaderUserID carries the authenticated caller identity. The gateway in
// front of the engine is trusted to have populated it; the engine enforces
// only role and ownership checks.
const HeaderUserID = "X-User-ID"

var validate = validator.New()

// Decode reads a JSON body into dst and runs struct validation.
func Decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

// CallerID extracts the authenticated user ID from the request.
func CallerID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(HeaderUserID)
	if raw == "" {
		return uuid.Nil, errors.New("missing " + HeaderUserID + " header")
	}
	return uuid.Parse(raw)
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error onto the wire.
func WriteError(w http.ResponseWriter, err error) {
	code := fault.HTTPStatus(err)
	WriteJSON(w, code, map[string]string{"error": err.Error()})
}

// WriteBadRequest reports a malformed or invalid request body.
func WriteBadRequest(w http.ResponseWriter, err error) {
	WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}
