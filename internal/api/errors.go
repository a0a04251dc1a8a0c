package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/doorkeeper-core/internal/auth"
	"github.com/nerrad567/doorkeeper-core/internal/door"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeNotFound           = "not_found"
	ErrCodeUserNotFound       = "user_not_found"
	ErrCodeUnauthorized       = "unauthorised"
	ErrCodeNoAuthHeader       = "no_auth_header"
	ErrCodeInvalidAuthHeader  = "invalid_auth_header"
	ErrCodeInvalidToken       = "invalid_token"
	ErrCodeNoPermission       = "no_permission"
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeHash               = "hash_error"
	ErrCodeConflict           = "conflict"
	ErrCodePersistence        = "persistence_error"
	ErrCodeActuator           = "actuator_error"
	ErrCodeInvalidButton      = "invalid_button"
	ErrCodeInternal           = "internal_error"
)

// errorMapping ties a domain sentinel to its HTTP rendering. Order matters:
// a conflict is also a persistence error and must match first.
var errorMapping = []struct {
	err error
	Error
}{
	{auth.ErrNoAuthHeader, Error{http.StatusUnauthorized, ErrCodeNoAuthHeader, "authorization header is required"}},
	{auth.ErrInvalidAuthHeader, Error{http.StatusUnauthorized, ErrCodeInvalidAuthHeader, "authorization header must be a bearer token"}},
	{auth.ErrTokenInvalid, Error{http.StatusUnauthorized, ErrCodeInvalidToken, "invalid or expired token"}},
	{auth.ErrNoPermission, Error{http.StatusForbidden, ErrCodeNoPermission, "not allowed"}},
	{auth.ErrInvalidCredentials, Error{http.StatusBadRequest, ErrCodeInvalidCredentials, "invalid credentials"}},
	{auth.ErrUserNotFound, Error{http.StatusNotFound, ErrCodeUserNotFound, "user not found"}},
	{auth.ErrHash, Error{http.StatusBadRequest, ErrCodeHash, "stored password could not be verified"}},
	{auth.ErrInvalidInput, Error{http.StatusBadRequest, ErrCodeBadRequest, "missing required fields"}},
	{auth.ErrEmailExists, Error{http.StatusConflict, ErrCodeConflict, "email already registered"}},
	{door.ErrNotFound, Error{http.StatusNotFound, ErrCodeNotFound, "door not found"}},
	{door.ErrConflict, Error{http.StatusConflict, ErrCodeConflict, "door state changed, try again"}},
	{door.ErrPersistence, Error{http.StatusInternalServerError, ErrCodePersistence, "door state could not be saved"}},
	{door.ErrActuator, Error{http.StatusServiceUnavailable, ErrCodeActuator, "door actuator unavailable"}},
	{door.ErrInvalidButton, Error{http.StatusNotAcceptable, ErrCodeInvalidButton, "button must be \"pushed\""}},
}

// errorFor maps err onto its response. Unknown errors become a 500 that
// does not reveal the cause.
func errorFor(err error) Error {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.Error
		}
	}
	return Error{http.StatusInternalServerError, ErrCodeInternal, "internal server error"}
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeServiceError renders a domain error.
func writeServiceError(w http.ResponseWriter, err error) {
	e := errorFor(err)
	writeJSON(w, e.Status, e)
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
