package httpapi

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// MessageResponse is the standard informational body.
type MessageResponse struct {
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, ErrorResponse{Detail: detail})
}
