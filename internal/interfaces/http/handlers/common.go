// Package handlers implements the HTTP endpoints of the verification API.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/medcheck/MedCheck-Engine/pkg/errors"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeAppError maps an application error to its HTTP status via the error
// code table. Server-side codes are masked so internals never leak.
func writeAppError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	msg := err.Error()
	if errors.IsServerError(code) {
		msg = errors.DefaultMessageForCode(code)
	}

	writeJSON(w, status, ErrorResponse{Code: code.String(), Message: msg})
}
