package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// writeJSON writes data as a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// sendErrorResponse sends an error response in the expected format
func sendErrorResponse(w http.ResponseWriter, statusCode int, code, description, field string) {
	writeJSON(w, statusCode, BaseError{
		Code:        code,
		Description: description,
		Field:       field,
		Id:          uuid.New(),
	})
}
