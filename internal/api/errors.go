package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nav-tracker/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Common error codes
const (
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// mapServiceError maps service errors to HTTP status codes. Provider
// failures surface as 502 so clients can tell upstream outages apart from
// bad requests.
func mapServiceError(err error) (int, string, string) {
	var serviceErr *types.ServiceError
	if errors.As(err, &serviceErr) {
		switch serviceErr.Code {
		case types.CodeInvalidInput, types.CodeInvalidThresholds, types.CodeInvalidSnapshot:
			return http.StatusBadRequest, serviceErr.Code, serviceErr.Message
		case types.CodeETFNotFound, types.CodeSymbolNotFound:
			return http.StatusNotFound, serviceErr.Code, serviceErr.Message
		case types.CodeTickerExists:
			return http.StatusConflict, serviceErr.Code, serviceErr.Message
		case types.CodeProviderUnavailable, types.CodeEmptyHistory:
			return http.StatusBadGateway, serviceErr.Code, serviceErr.Message
		default:
			return http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred"
		}
	}

	// Default to internal server error
	return http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred"
}

// handleServiceError writes the mapped error response.
func handleServiceError(w http.ResponseWriter, err error) {
	status, code, message := mapServiceError(err)

	var serviceErr *types.ServiceError
	var details map[string]interface{}
	if errors.As(err, &serviceErr) && status != http.StatusInternalServerError {
		details = serviceErr.Details
	}
	respondError(w, status, code, message, details)
}
