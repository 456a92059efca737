// ABOUTME: Credential types and the Store interface for bearer token persistence
// ABOUTME: One credential per server URL, created on login and removed on logout

package credentials

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no credential is stored for a server URL
var ErrNotFound = errors.New("credential not found")

// User is the profile returned by the server alongside a token
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
}

// DisplayName returns the name, falling back to the email.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Credential is a bearer token and user profile for one server
type Credential struct {
	ServerURL string
	Token     string
	User      User
	SavedAt   time.Time
}

// Store persists credentials keyed by server URL
type Store interface {
	// Load returns the credential for serverURL or ErrNotFound.
	Load(ctx context.Context, serverURL string) (*Credential, error)
	// Save creates or overwrites the credential for cred.ServerURL.
	// A zero SavedAt is set to the current time.
	Save(ctx context.Context, cred *Credential) error
	// Delete removes the credential for serverURL. Deleting a missing entry is not an error.
	Delete(ctx context.Context, serverURL string) error
}

// stamp normalizes SavedAt so it survives a JSON round trip unchanged.
func stamp(cred *Credential, now func() time.Time) {
	if cred.SavedAt.IsZero() {
		cred.SavedAt = now()
	}
	cred.SavedAt = cred.SavedAt.UTC()
}
