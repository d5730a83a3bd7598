// pkg/middleware/validation.go

package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
)

const maxBodySize = 1 << 20

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string      `json:"error"`
	Field string      `json:"field,omitempty"`
	Value interface{} `json:"value,omitempty"`
}

// ValidateRequest rejects malformed write requests before they reach a handler.
func ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			contentType := r.Header.Get("Content-Type")
			if contentType != "" && !strings.Contains(contentType, "application/json") {
				WriteError(w, http.StatusUnsupportedMediaType, "invalid Content-Type, expected application/json")
				return
			}

			if r.ContentLength == 0 {
				WriteError(w, http.StatusBadRequest, "request body cannot be empty")
				return
			}
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

		next.ServeHTTP(w, r)
	})
}

// WriteError writes a JSON error reply.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteFieldError writes a JSON error reply naming the offending field.
func WriteFieldError(w http.ResponseWriter, err error, field, value string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Field: field, Value: value})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
