package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client-facing error texts. Upstream detail never reaches a response body.
const (
	msgMethodNotAllowed = "Method Not Allowed"
	msgNotFound         = "Not Found"
	msgBadBody          = "Invalid request body"
	msgTranscript       = "Transcript is required"
	msgUnknownMode      = "Unknown mode"
	msgNotConfigured    = "Server configuration error: GEMINI_API_KEY not set"
	msgUpstream         = "Failed to get response from AI"
	msgInvalidResponse  = "Invalid AI response structure"
	msgInternal         = "Internal Server Error"
)

// maxBodyBytes bounds request bodies read by DecodeJSON.
const maxBodyBytes = 1 << 20

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteRawJSON writes an already-encoded JSON document unchanged.
func WriteRawJSON(w http.ResponseWriter, status int, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(raw)
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// DecodeJSON reads and decodes a JSON request body into v. An empty body
// leaves v untouched.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == io.EOF {
		return nil
	}
	return err
}
