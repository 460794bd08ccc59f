package httpapi

import (
	"encoding/json"
	"net/http"
)

const (
	statusOK     = "ok"
	statusFailed = "failed"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Name     string `json:"name"`
	Message  string `json:"message"`
	Min      int    `json:"min,omitempty"`
	Max      int    `json:"max,omitempty"`
	Required string `json:"required,omitempty"`
}

type failedResponse struct {
	Status string       `json:"status"`
	Errors []FieldError `json:"errors"`
}

type registerResponse struct {
	Status string `json:"status"`
	User   string `json:"user"`
}

type tokenResponse struct {
	Status       string `json:"status"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// payloadResponse carries verified claims under the key of their type.
type payloadResponse struct {
	Status       string `json:"status"`
	AccessToken  any    `json:"accessToken,omitempty"`
	RefreshToken any    `json:"refreshToken,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeFailed(w http.ResponseWriter, status int, errs ...FieldError) {
	writeJSON(w, status, failedResponse{Status: statusFailed, Errors: errs})
}
