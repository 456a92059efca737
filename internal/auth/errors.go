// ABOUTME: Authentication error values returned by the negotiator
// ABOUTME: Local validation failures never reach the network

package auth

import (
	"errors"
	"fmt"
)

// MinPasswordLength is the shortest password accepted for login or registration.
const MinPasswordLength = 8

// Authentication errors
var (
	ErrRejected         = errors.New("credentials rejected")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrWeakPassword     = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrMissingFields    = errors.New("missing required fields")
	ErrAborted          = errors.New("authentication aborted")
)

// RejectedError carries the server's reason for refusing a login or registration.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return ErrRejected.Error()
	}
	return fmt.Sprintf("%s: %s", ErrRejected, e.Message)
}

// Is makes errors.Is(err, ErrRejected) match.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}
