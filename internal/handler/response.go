package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// resultResponse is the body of every marketplace write endpoint.
type resultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// WriteResult writes {"success": true} for 2xx statuses and
// {"success": false, "message": ...} otherwise.
func WriteResult(w http.ResponseWriter, status int, message string) {
	ok := status >= 200 && status < 300
	if ok {
		message = ""
	}
	WriteJSON(w, status, resultResponse{Success: ok, Message: message})
}

// ParseJSON decodes the request body as JSON into v.
// It validates that the Content-Type header is application/json and
// returns an error for missing/incorrect content type or malformed JSON.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return errors.New("Request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON: %v", err)
	}

	return nil
}
