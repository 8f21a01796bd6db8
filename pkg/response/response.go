// Package response renders spec §6's HTTP envelope:
// {status: "success"|"error", message, data?, code?, errors?}.
package response

import (
	"encoding/json"
	"net/http"

	"delixmi-order-core/internal/apperr"
)

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Code    string `json:"code,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Success writes a 200 envelope with the given data.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, envelope{Status: "success", Data: data})
}

// Created writes a 201 envelope with the given data.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, envelope{Status: "success", Data: data})
}

// Error renders an *apperr.Error using its own status/code/details.
func Error(w http.ResponseWriter, err *apperr.Error) {
	ErrorEnvelope(w, string(err.Code), err.StatusCode, err.Message, err.Details)
}

// ErrorEnvelope is the low-level writer used by middleware that has not yet
// constructed an *apperr.Error (e.g. auth rejection before claims parse).
func ErrorEnvelope(w http.ResponseWriter, code string, status int, message string, details any) {
	JSON(w, status, envelope{Status: "error", Message: message, Code: code, Errors: details})
}
