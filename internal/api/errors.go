// ABOUTME: Error type for non-2xx responses from the agent server
// ABOUTME: Extracts the server-provided message from JSON error bodies

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Message)
}

// ReadStatusError builds a StatusError from resp, reading at most 64KiB of body.
// The message comes from a {"message": ...} or {"error": ...} body when present.
func ReadStatusError(resp *http.Response) *StatusError {
	se := &StatusError{Code: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return se
	}

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		switch {
		case body.Message != "":
			se.Message = body.Message
		case body.Error != "":
			se.Message = body.Error
		}
		return se
	}

	if !strings.Contains(resp.Header.Get("Content-Type"), "html") {
		se.Message = strings.TrimSpace(string(data))
	}
	return se
}

// HasStatus reports whether err is a StatusError with the given code.
func HasStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// MessageOr returns the server message carried by err, or fallback.
func MessageOr(err error, fallback string) string {
	var se *StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallback
}
