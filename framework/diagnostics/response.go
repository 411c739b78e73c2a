package diagnostics

import (
	"encoding/json"
	"net/http"
)

// Response wraps http.ResponseWriter with JSON helpers.
type Response struct {
	w http.ResponseWriter
}

// NewResponse wraps a ResponseWriter.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w}
}

// JSON sends a JSON response.
func (res *Response) JSON(status int, data any) {
	res.w.Header().Set("Content-Type", "application/json")
	res.w.WriteHeader(status)
	_ = json.NewEncoder(res.w).Encode(data)
}

// Success sends 200 JSON: {"data": v}
func (res *Response) Success(v any) {
	res.JSON(http.StatusOK, envelope{"data": v})
}

// Error sends a JSON error response: {"message": message}
func (res *Response) Error(status int, message string) {
	res.JSON(status, envelope{"message": message})
}

// NotFound sends 404.
func (res *Response) NotFound(message ...string) {
	res.Error(http.StatusNotFound, first(message, "Not found."))
}

// Unavailable sends 503 carrying v as data alongside the message.
func (res *Response) Unavailable(v any, message ...string) {
	res.JSON(http.StatusServiceUnavailable, envelope{
		"message": first(message, "Service unavailable."),
		"data":    v,
	})
}

type envelope map[string]any

func first(ss []string, fallback string) string {
	if len(ss) > 0 && ss[0] != "" {
		return ss[0]
	}
	return fallback
}
