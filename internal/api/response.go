package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/graffic/clackquotes/internal/quotes"
)

// ErrorBody is the JSON body of every error response
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MessageBody is the JSON body of responses that only confirm an action
type MessageBody struct {
	Message string `json:"message"`
}

// JSONResponse writes data as a JSON response
func JSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse writes a JSON error response
func ErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	JSONResponse(w, statusCode, ErrorBody{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// ParseJSONBody decodes the request body into v
func ParseJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return nil
}

// StatusFor maps a gateway error to an HTTP status code
func StatusFor(err error) int {
	if quotes.IsTimeout(err) {
		return http.StatusServiceUnavailable
	}
	switch quotes.KindOf(err) {
	case quotes.KindOK:
		return http.StatusOK
	case quotes.KindValidation:
		return http.StatusBadRequest
	case quotes.KindNotFound:
		return http.StatusNotFound
	case quotes.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// gatewayError writes the response for a failed gateway call. Database
// details stay in the log.
func gatewayError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("gateway call failed", "op", op, "kind", quotes.KindOf(err).String(), "error", err)
		message := "Something went wrong"
		if quotes.IsTimeout(err) {
			message = "Database timed out"
		}
		ErrorResponse(w, status, message)
		return
	}
	ErrorResponse(w, status, err.Error())
}
