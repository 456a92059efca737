// ABOUTME: Auth negotiator deciding whether and how the client authenticates
// ABOUTME: Probes the server, validates stored tokens, and drives login or registration

package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/2389/agentchat/internal/api"
	"github.com/2389/agentchat/internal/credentials"
)

// Options configures a Negotiator.
type Options struct {
	// ProbeTimeout bounds the unauthenticated probe request.
	ProbeTimeout time.Duration
	// Timeout bounds login, registration and validation requests.
	Timeout time.Duration
	// Prompter answers interactive decisions. Nil means no interaction is possible.
	Prompter Prompter
	Logger   *slog.Logger
}

// Negotiator owns the authentication state for one server.
// It is safe for concurrent use.
type Negotiator struct {
	api          *api.Client
	store        credentials.Store
	prompter     Prompter
	logger       *slog.Logger
	probeTimeout time.Duration
	timeout      time.Duration
	now          func() time.Time

	mu    sync.RWMutex
	state State
}

// NewNegotiator creates a negotiator for the server behind client.
func NewNegotiator(client *api.Client, store credentials.Store, opts Options) *Negotiator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Negotiator{
		api:          client,
		store:        store,
		prompter:     opts.Prompter,
		logger:       logger.With("component", "auth"),
		probeTimeout: opts.ProbeTimeout,
		timeout:      opts.Timeout,
		now:          time.Now,
		state:        State{Phase: PhaseUnauthenticated},
	}
}

// State returns a snapshot of the current state.
func (n *Negotiator) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// Credential returns the active credential, or nil when not authenticated.
func (n *Negotiator) Credential() *credentials.Credential {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.state.Credential == nil {
		return nil
	}
	cred := *n.state.Credential
	return &cred
}

func (n *Negotiator) setState(s State) {
	n.mu.Lock()
	prev := n.state.Phase
	n.state = s
	n.mu.Unlock()

	if prev != s.Phase {
		n.logger.Debug("auth state changed", "from", prev.String(), "to", s.Phase.String())
	}
}

func (n *Negotiator) setAuthenticated(cred *credentials.Credential) {
	n.api.SetToken(cred.Token)
	n.setState(State{Phase: PhaseAuthenticated, Credential: cred})
}

func (n *Negotiator) fail(reason error) {
	n.setState(State{Phase: PhaseFailed, Reason: reason})
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Probe reports whether the server requires authentication. 401 and 403 mean
// required and 200 means not required. Any other status or a transport error
// is treated as not required and logged.
func (n *Negotiator) Probe(ctx context.Context) bool {
	ctx, cancel := withTimeout(ctx, n.probeTimeout)
	defer cancel()

	req, err := n.api.NewRequest(ctx, http.MethodGet, api.PathSessions, nil, api.WithoutAuth())
	if err != nil {
		n.logger.Warn("building auth probe failed, assuming auth not required", "error", err)
		return false
	}

	resp, err := n.api.Do(req)
	if err != nil {
		n.logger.Warn("auth probe failed, assuming auth not required", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		n.logger.Info("authentication is enabled on the server")
		return true
	case http.StatusOK:
		n.logger.Info("authentication is disabled on the server")
		return false
	default:
		n.logger.Warn("unexpected auth probe status, assuming auth not required", "status", resp.StatusCode)
		return false
	}
}

// Load returns the stored credential for this server, or nil when none exists.
func (n *Negotiator) Load(ctx context.Context) (*credentials.Credential, error) {
	cred, err := n.store.Load(ctx, n.api.BaseURL())
	if errors.Is(err, credentials.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		n.logger.Warn("could not load saved credentials", "error", err)
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	n.logger.Debug("loaded saved credentials", "email", cred.User.Email)
	return cred, nil
}

// Validate checks cred against the server's who-am-I endpoint. On success the
// credential becomes active with the refreshed user profile. A token whose
// exp claim has passed, or any non-200 response, invalidates the credential.
// Transport failures return false without touching the store.
func (n *Negotiator) Validate(ctx context.Context, cred *credentials.Credential) bool {
	if cred == nil || cred.Token == "" {
		return false
	}

	if tokenExpired(cred.Token, n.now()) {
		n.logger.Info("saved token has expired")
		_ = n.Invalidate(ctx)
		return false
	}

	ctx, cancel := withTimeout(ctx, n.timeout)
	defer cancel()

	var user credentials.User
	err := n.api.DoJSON(ctx, http.MethodGet, api.PathMe, nil, &user, api.WithBearer(cred.Token))
	if err != nil {
		var se *api.StatusError
		if errors.As(err, &se) {
			n.logger.Info("saved token was rejected", "status", se.Code)
			_ = n.Invalidate(ctx)
			return false
		}
		n.logger.Warn("could not validate saved token", "error", err)
		return false
	}

	refreshed := *cred
	refreshed.User = user
	n.setAuthenticated(&refreshed)
	return true
}

// Invalidate removes the stored credential for this server and resets to unauthenticated.
func (n *Negotiator) Invalidate(ctx context.Context) error {
	n.api.SetToken("")
	n.setState(State{Phase: PhaseUnauthenticated})

	if err := n.store.Delete(context.WithoutCancel(ctx), n.api.BaseURL()); err != nil {
		n.logger.Warn("could not clear credentials", "error", err)
		return fmt.Errorf("clearing credentials: %w", err)
	}
	n.logger.Debug("credentials cleared")
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type authResponse struct {
	Token string           `json:"token"`
	User  credentials.User `json:"user"`
}

// Login exchanges email and password for a token and persists it.
// Short passwords fail locally with ErrWeakPassword.
func (n *Negotiator) Login(ctx context.Context, email, password string) (*credentials.Credential, error) {
	email = strings.TrimSpace(email)
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	if email == "" {
		return nil, ErrMissingFields
	}

	return n.exchange(ctx, api.PathLogin, loginRequest{Email: email, Password: password})
}

// Register creates an account and persists the returned token. A mismatched
// confirmation, a short or empty password and a missing email or name fail, in
// that order, before any request is made.
func (n *Negotiator) Register(ctx context.Context, reg Registration) (*credentials.Credential, error) {
	if reg.Password != reg.Confirm {
		return nil, ErrPasswordMismatch
	}
	if utf8.RuneCountInString(reg.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	email := strings.TrimSpace(reg.Email)
	name := strings.TrimSpace(reg.Name)
	if email == "" || name == "" {
		return nil, ErrMissingFields
	}

	return n.exchange(ctx, api.PathRegister, registerRequest{Email: email, Password: reg.Password, Name: name})
}

// exchange posts body to path and turns a {token, user} reply into the active credential.
func (n *Negotiator) exchange(ctx context.Context, path string, body any) (*credentials.Credential, error) {
	ctx, cancel := withTimeout(ctx, n.timeout)
	defer cancel()

	var resp authResponse
	if err := n.api.DoJSON(ctx, http.MethodPost, path, body, &resp, api.WithoutAuth()); err != nil {
		var se *api.StatusError
		if errors.As(err, &se) {
			return nil, &RejectedError{Status: se.Code, Message: se.Message}
		}
		return nil, fmt.Errorf("contacting server: %w", err)
	}
	if resp.Token == "" {
		return nil, &RejectedError{Status: http.StatusOK, Message: "server returned no token"}
	}

	cred := &credentials.Credential{
		ServerURL: n.api.BaseURL(),
		Token:     resp.Token,
		User:      resp.User,
		SavedAt:   n.now(),
	}
	if err := n.store.Save(context.WithoutCancel(ctx), cred); err != nil {
		// The session still works for this process; only persistence failed.
		n.logger.Warn("could not save credentials", "error", err)
	}

	n.setAuthenticated(cred)
	n.logger.Info("authenticated", "email", cred.User.Email)
	return cred, nil
}

// Authenticate runs the full flow: probe, then a stored credential, then the
// prompter's login/register/abort loop. It returns nil once requests may
// proceed and ErrAborted when the user gives up.
func (n *Negotiator) Authenticate(ctx context.Context) error {
	n.setState(State{Phase: PhaseProbing})
	if !n.Probe(ctx) {
		n.setState(State{Phase: PhaseNotRequired})
		return nil
	}

	if cred, _ := n.Load(ctx); cred != nil {
		if n.Validate(ctx, cred) {
			n.notify(NoticeSuccess, "Authenticated as "+n.Credential().User.Email)
			return nil
		}
		n.notify(NoticeWarning, "Saved token is invalid, please login again")
	}

	if n.prompter == nil {
		n.fail(ErrAborted)
		return fmt.Errorf("%w: no way to ask for credentials", ErrAborted)
	}

	n.setState(State{Phase: PhaseAwaitingChoice})
	for {
		if err := ctx.Err(); err != nil {
			n.fail(err)
			return err
		}

		choice, err := n.prompter.Choose(ctx)
		if err != nil {
			n.fail(err)
			return err
		}

		switch choice {
		case ChoiceLogin:
			_, err = n.promptLogin(ctx)
		case ChoiceRegister:
			_, err = n.promptRegister(ctx)
		case ChoiceAbort:
			n.fail(ErrAborted)
			return ErrAborted
		default:
			n.notify(NoticeWarning, "Invalid choice")
			continue
		}

		if err == nil {
			return nil
		}
		if errors.Is(err, ErrAborted) || ctx.Err() != nil {
			n.fail(err)
			return err
		}
	}
}

func (n *Negotiator) promptLogin(ctx context.Context) (*credentials.Credential, error) {
	details, err := n.prompter.LoginDetails(ctx)
	if err != nil {
		return nil, err
	}
	cred, err := n.Login(ctx, details.Email, details.Password)
	if err != nil {
		n.notifyErr("Login failed", err)
		return nil, err
	}
	n.notify(NoticeSuccess, "Login successful! Welcome back, "+cred.User.DisplayName())
	return cred, nil
}

func (n *Negotiator) promptRegister(ctx context.Context) (*credentials.Credential, error) {
	reg, err := n.prompter.RegisterDetails(ctx)
	if err != nil {
		return nil, err
	}
	cred, err := n.Register(ctx, reg)
	if err != nil {
		n.notifyErr("Registration failed", err)
		return nil, err
	}
	n.notify(NoticeSuccess, "Registration successful! Welcome, "+cred.User.DisplayName())
	return cred, nil
}

func (n *Negotiator) notify(kind NoticeKind, msg string) {
	if n.prompter != nil {
		n.prompter.Notify(Notice{Kind: kind, Message: msg})
	}
}

func (n *Negotiator) notifyErr(prefix string, err error) {
	if n.prompter != nil {
		n.prompter.Notify(Notice{Kind: NoticeFailure, Message: prefix, Err: err})
	}
}
