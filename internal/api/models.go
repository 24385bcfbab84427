package api

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Response is the JSON envelope every endpoint returns.
type Response struct {
	Error   bool         `json:"error"`
	Message string       `json:"message"`
	Data    interface{}  `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type startBreakRequest struct {
	StartTime string `json:"startTime"`
}

type endBreakRequest struct {
	EndTime string `json:"endTime"`
}

type workTimeRequest struct {
	Minutes *int `json:"minutes"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":true,"message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeSuccess writes a success envelope.
func writeSuccess(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	writeJSON(w, statusCode, Response{
		Message: message,
		Data:    data,
	})
}

// writeError writes an error envelope.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, Response{
		Error:   true,
		Message: message,
	})
}

// writeValidationErrors writes a 400 envelope with per-field messages.
func writeValidationErrors(w http.ResponseWriter, errs []FieldError) {
	writeJSON(w, http.StatusBadRequest, Response{
		Error:   true,
		Message: "Validation failed",
		Errors:  errs,
	})
}

// decodeBody decodes a JSON request body, rejecting malformed payloads.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
