// ABOUTME: Authentication phases tracked by the negotiator
// ABOUTME: State snapshots pair the phase with the active credential or failure reason

package auth

import "github.com/2389/agentchat/internal/credentials"

// Phase is a step in the authentication flow.
type Phase int

const (
	PhaseUnauthenticated Phase = iota
	PhaseProbing
	PhaseNotRequired
	PhaseAwaitingChoice
	PhaseAuthenticated
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseProbing:
		return "probing"
	case PhaseNotRequired:
		return "not_required"
	case PhaseAwaitingChoice:
		return "awaiting_choice"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase ends the flow.
func (p Phase) Terminal() bool {
	return p == PhaseNotRequired || p == PhaseAuthenticated || p == PhaseFailed
}

// State is a snapshot of the negotiator.
// Credential is set only in PhaseAuthenticated; Reason only in PhaseFailed.
type State struct {
	Phase      Phase
	Credential *credentials.Credential
	Reason     error
}

// Ready reports whether requests may proceed: auth is either satisfied or not needed.
func (s State) Ready() bool {
	return s.Phase == PhaseAuthenticated || s.Phase == PhaseNotRequired
}
