package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	svcerrors "github.com/R3E-Network/worldstore/internal/errors"
)

// DefaultMaxBodyBytes caps request bodies accepted by DecodeJSON.
const DefaultMaxBodyBytes = 4 << 20

// ErrorResponse is the JSON body written for failed requests.
type ErrorResponse struct {
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteErrorResponse writes an error body with the given status.
func WriteErrorResponse(w http.ResponseWriter, status int, message string, details map[string]interface{}) {
	WriteJSON(w, status, ErrorResponse{Message: message, Details: details})
}

// WriteServiceError writes err using its ServiceError status and message.
// Errors outside the taxonomy become a generic 500 so internals never leak.
func WriteServiceError(w http.ResponseWriter, err error) {
	serviceErr := svcerrors.GetServiceError(err)
	if serviceErr == nil {
		InternalError(w, "Internal server error")
		return
	}
	WriteErrorResponse(w, serviceErr.HTTPStatus, serviceErr.Message, serviceErr.Details)
}

// BadRequest writes a 400 response.
func BadRequest(w http.ResponseWriter, message string) {
	WriteErrorResponse(w, http.StatusBadRequest, message, nil)
}

// Unauthorized writes a 401 response.
func Unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Not authorized"
	}
	WriteErrorResponse(w, http.StatusUnauthorized, message, nil)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, message string) {
	WriteErrorResponse(w, http.StatusNotFound, message, nil)
}

// InternalError writes a 500 response.
func InternalError(w http.ResponseWriter, message string) {
	WriteErrorResponse(w, http.StatusInternalServerError, message, nil)
}

// DecodeJSON decodes the request body into v, writing a 400 and returning false on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	return DecodeJSONLimit(w, r, v, DefaultMaxBodyBytes)
}

// DecodeJSONLimit is DecodeJSON with an explicit body cap; larger bodies get a 413.
func DecodeJSONLimit(w http.ResponseWriter, r *http.Request, v interface{}, maxBytes int64) bool {
	if r.Body == nil || r.Body == http.NoBody {
		BadRequest(w, "Request body is required")
		return false
	}
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			WriteErrorResponse(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
		case errors.Is(err, io.EOF):
			BadRequest(w, "Request body is required")
		default:
			BadRequest(w, "Invalid JSON body")
		}
		return false
	}
	return true
}
