package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
)

const (
	// maxBodyBytes caps the bodies of the account, conversation and feedback endpoints.
	maxBodyBytes = 1 << 20
	// maxHistoryBytes caps the chat history posted to the relay.
	maxHistoryBytes = 8 << 20
)

type errorResponse struct {
	Error string `json:"error"`
}

type idResponse struct {
	ID string `json:"id"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// limitBody stops reading the request body after n bytes.
func limitBody(n int64, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, n)
		next(w, r)
	}
}

// decodeJSON decodes the request body into v. On failure it writes the error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, bodyErrorStatus(err), "invalid request body")
		return false
	}
	return true
}

// bodyErrorStatus answers 413 for bodies cut off by limitBody and 400 for anything else.
func bodyErrorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
