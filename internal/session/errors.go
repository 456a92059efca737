// ABOUTME: Session manager errors with payloads for display
// ABOUTME: Missing agents carry the full catalog so the user can pick another

package session

import (
	"errors"
	"fmt"
	"strings"
)

// Session errors
var (
	ErrAgentNotFound      = errors.New("agent not found")
	ErrCreateFailed       = errors.New("session creation failed")
	ErrSummaryUnavailable = errors.New("session summary unavailable")
	ErrNoSession          = errors.New("no active session")
)

// AgentNotFoundError reports an agent missing from the catalog.
type AgentNotFoundError struct {
	Requested string
	Tried     string
	Available []string
}

func (e *AgentNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("agent %q not found (no agents available)", e.Requested)
	}
	return fmt.Sprintf("agent %q not found (available: %s)", e.Requested, strings.Join(e.Available, ", "))
}

// Is makes errors.Is(err, ErrAgentNotFound) match.
func (e *AgentNotFoundError) Is(target error) bool {
	return target == ErrAgentNotFound
}

// CreateFailedError wraps the cause of a failed session creation.
type CreateFailedError struct {
	Cause error
}

func (e *CreateFailedError) Error() string {
	return fmt.Sprintf("%s: %v", ErrCreateFailed, e.Cause)
}

func (e *CreateFailedError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrCreateFailed) match.
func (e *CreateFailedError) Is(target error) bool {
	return target == ErrCreateFailed
}
