package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"annadata-backend/internal/middleware"
	"annadata-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorStatus is 400 for caller mistakes and 500 for everything else.
func errorStatus(err error) int {
	var vErr *services.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// handleServiceError writes {key: "⚠️ ..."} with the mapped status.
func handleServiceError(w http.ResponseWriter, r *http.Request, key string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logServiceError(r, err)
	}
	writeJSON(w, status, map[string]string{key: services.UserMessage(err)})
}

func logServiceError(r *http.Request, err error) {
	log.Printf("[%s] %s %s: %v", middleware.GetRequestID(r), r.Method, r.URL.Path, err)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &services.ValidationError{Fields: map[string]string{"body": "Invalid request body"}}
	}
	return nil
}
