// Package httpx writes the JSON envelope shared by every endpoint and decodes request bodies.
package httpx

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"web-analytics/backend/internal/logging"
	"web-analytics/backend/internal/validation"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Generic messages for failures whose detail must stay server-side.
const (
	MsgUnauthorized = "Unauthorized"
	MsgNotFound     = "Not found"
	MsgInternal     = "Internal server error"
	MsgValidation   = "Validation failed"
	MsgRateLimited  = "Too many requests, please try again later."
)

// Envelope is the response body of every endpoint.
type Envelope struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message,omitempty"`
	Data    any                     `json:"data,omitempty"`
	Errors  []validation.FieldError `json:"errors,omitempty"`
	Warning string                  `json:"warning,omitempty"`
	Cached  *bool                   `json:"cached,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("httpx: marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// OK writes 200 {success:true, data}.
func OK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// Cached writes 200 {success:true, data, cached}.
func Cached(w http.ResponseWriter, data any, cached bool) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Cached: &cached})
}

// Created writes 201 with an optional message and warning.
func Created(w http.ResponseWriter, message string, data any, warning string) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Message: message, Data: data, Warning: warning})
}

// Error writes {success:false, message} with status.
func Error(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Envelope{Success: false, Message: message})
}

// Unauthorized writes the generic 401 used for every credential failure.
func Unauthorized(w http.ResponseWriter) {
	Error(w, http.StatusUnauthorized, MsgUnauthorized)
}

// NotFound writes 404 with message, or the generic one when empty.
func NotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = MsgNotFound
	}
	Error(w, http.StatusNotFound, message)
}

// ValidationFailed writes 400 with the per-field errors list.
func ValidationFailed(w http.ResponseWriter, verr *validation.RequestValidationError) {
	WriteJSON(w, http.StatusBadRequest, Envelope{Success: false, Message: MsgValidation, Errors: verr.Fields})
}

// Internal logs err with the request-scoped logger and writes a generic 500.
func Internal(w http.ResponseWriter, r *http.Request, err error, msg string) {
	logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg(msg)
	Error(w, http.StatusInternalServerError, MsgInternal)
}

// DecodeJSON decodes the request body into dst. Unknown fields are ignored. Malformed bodies come back as a
// *validation.RequestValidationError so handlers answer 400.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return validation.NewError("body", "request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return validation.NewError("body", "request body is required")
		}
		return validation.NewError("body", fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// ClientIP returns the request's client address without the port. Behind chi's RealIP middleware
// RemoteAddr already holds the forwarded client address.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
