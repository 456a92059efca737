// ABOUTME: Prompter port separating authentication decisions from input and output
// ABOUTME: Environment-driven and scripted implementations for non-interactive use

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Choice is the user's answer when authentication is required.
type Choice int

const (
	ChoiceLogin Choice = iota + 1
	ChoiceRegister
	ChoiceAbort
)

func (c Choice) String() string {
	switch c {
	case ChoiceLogin:
		return "login"
	case ChoiceRegister:
		return "register"
	case ChoiceAbort:
		return "abort"
	default:
		return fmt.Sprintf("choice(%d)", int(c))
	}
}

// LoginDetails are the fields needed to log in.
type LoginDetails struct {
	Email    string
	Password string
}

// Registration are the fields needed to create an account.
type Registration struct {
	Email    string
	Name     string
	Password string
	Confirm  string
}

// NoticeKind classifies a Notice.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeSuccess
	NoticeWarning
	NoticeFailure
)

// Notice is an outcome the negotiator reports back to the user.
type Notice struct {
	Kind    NoticeKind
	Message string
	Err     error
}

func (n Notice) String() string {
	if n.Err != nil {
		return fmt.Sprintf("%s: %v", n.Message, n.Err)
	}
	return n.Message
}

// Prompter obtains decisions and credentials from the user.
// Returning ErrAborted from any method ends authentication.
type Prompter interface {
	Choose(ctx context.Context) (Choice, error)
	LoginDetails(ctx context.Context) (LoginDetails, error)
	RegisterDetails(ctx context.Context) (Registration, error)
	Notify(n Notice)
}

// Environment variables read by EnvPrompter.
const (
	EnvEmail    = "AGENTCHAT_EMAIL"
	EnvPassword = "AGENTCHAT_PASSWORD"
	EnvName     = "AGENTCHAT_NAME"
)

// EnvPrompter answers from environment variables. It makes a single attempt:
// login, or registration when register is set, followed by abort.
type EnvPrompter struct {
	register bool
	lookup   func(string) (string, bool)
	logger   *slog.Logger

	mu    sync.Mutex
	asked bool
}

// NewEnvPrompter creates a prompter reading AGENTCHAT_EMAIL, AGENTCHAT_PASSWORD and AGENTCHAT_NAME.
func NewEnvPrompter(register bool, logger *slog.Logger) *EnvPrompter {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnvPrompter{
		register: register,
		lookup:   os.LookupEnv,
		logger:   logger.With("component", "auth.env"),
	}
}

// Available reports whether the environment carries credentials.
func (p *EnvPrompter) Available() bool {
	email, _ := p.lookup(EnvEmail)
	password, _ := p.lookup(EnvPassword)
	return email != "" && password != ""
}

func (p *EnvPrompter) Choose(context.Context) (Choice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.asked || !p.Available() {
		return ChoiceAbort, nil
	}
	p.asked = true
	if p.register {
		return ChoiceRegister, nil
	}
	return ChoiceLogin, nil
}

func (p *EnvPrompter) LoginDetails(context.Context) (LoginDetails, error) {
	email, _ := p.lookup(EnvEmail)
	password, _ := p.lookup(EnvPassword)
	return LoginDetails{Email: email, Password: password}, nil
}

func (p *EnvPrompter) RegisterDetails(context.Context) (Registration, error) {
	email, _ := p.lookup(EnvEmail)
	password, _ := p.lookup(EnvPassword)
	name, _ := p.lookup(EnvName)
	return Registration{Email: email, Name: name, Password: password, Confirm: password}, nil
}

func (p *EnvPrompter) Notify(n Notice) {
	switch n.Kind {
	case NoticeFailure:
		p.logger.Error(n.Message, "error", n.Err)
	case NoticeWarning:
		p.logger.Warn(n.Message)
	default:
		p.logger.Info(n.Message)
	}
}

// ScriptedPrompter replays fixed answers. When a script runs out it aborts.
type ScriptedPrompter struct {
	Choices       []Choice
	Logins        []LoginDetails
	Registrations []Registration

	mu      sync.Mutex
	notices []Notice
}

func (p *ScriptedPrompter) Choose(context.Context) (Choice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Choices) == 0 {
		return ChoiceAbort, nil
	}
	c := p.Choices[0]
	p.Choices = p.Choices[1:]
	return c, nil
}

func (p *ScriptedPrompter) LoginDetails(context.Context) (LoginDetails, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Logins) == 0 {
		return LoginDetails{}, ErrAborted
	}
	d := p.Logins[0]
	p.Logins = p.Logins[1:]
	return d, nil
}

func (p *ScriptedPrompter) RegisterDetails(context.Context) (Registration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Registrations) == 0 {
		return Registration{}, ErrAborted
	}
	r := p.Registrations[0]
	p.Registrations = p.Registrations[1:]
	return r, nil
}

func (p *ScriptedPrompter) Notify(n Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, n)
}

// Notices returns every notice received so far.
func (p *ScriptedPrompter) Notices() []Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Notice(nil), p.notices...)
}
