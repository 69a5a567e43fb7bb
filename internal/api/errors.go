package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is returned for every failed backend call. Status is 0 when no HTTP
// response was obtained (network failure, bad JSON, rejected input).
type Error struct {
	Message string
	Status  int
	Data    json.RawMessage
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

func IsUnauthorized(err error) bool { return StatusOf(err) == http.StatusUnauthorized }

func IsForbidden(err error) bool { return StatusOf(err) == http.StatusForbidden }

func IsNotFound(err error) bool { return StatusOf(err) == http.StatusNotFound }

// Message returns a short human explanation suitable for showing to a user.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// errorFromResponse extracts "error" or "message" from a JSON error body.
func errorFromResponse(status int, body []byte) *Error {
	e := &Error{Status: status, Message: http.StatusText(status)}
	if len(body) > 0 && json.Valid(body) {
		e.Data = json.RawMessage(body)
		var fields struct {
			Error   any    `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &fields) == nil {
			if s, ok := fields.Error.(string); ok && s != "" {
				e.Message = s
			} else if fields.Message != "" {
				e.Message = fields.Message
			}
		}
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("request failed with status %d", status)
	}
	return e
}
