// ABOUTME: Interactive prompter reading answers from the terminal
// ABOUTME: Menu choice, email and name lines, and no-echo password entry

package auth

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/agentchat/internal/console"
)

// TerminalPrompter asks the user through a console.
type TerminalPrompter struct {
	con *console.Console

	ok   *color.Color
	warn *color.Color
	bad  *color.Color
	head *color.Color
}

// NewTerminalPrompter creates a prompter over con.
func NewTerminalPrompter(con *console.Console) *TerminalPrompter {
	return &TerminalPrompter{
		con:  con,
		ok:   color.New(color.FgGreen),
		warn: color.New(color.FgYellow),
		bad:  color.New(color.FgRed),
		head: color.New(color.Bold),
	}
}

// read maps end of input to ErrAborted.
func (p *TerminalPrompter) read(ctx context.Context, prompt string) (string, error) {
	line, err := p.con.ReadLine(ctx, prompt)
	if errors.Is(err, io.EOF) {
		return "", ErrAborted
	}
	return strings.TrimSpace(line), err
}

func (p *TerminalPrompter) password(ctx context.Context, prompt string) (string, error) {
	pw, err := p.con.ReadPassword(ctx, prompt)
	if errors.Is(err, io.EOF) {
		return "", ErrAborted
	}
	return pw, err
}

func (p *TerminalPrompter) Choose(ctx context.Context) (Choice, error) {
	out := p.con.Out()
	p.head.Fprintln(out, "\nAuthentication Required")

	for {
		answer, err := p.read(ctx, "\n1. Login\n2. Register new account\n3. Exit\n\nChoice (1-3): ")
		if errors.Is(err, ErrAborted) {
			return ChoiceAbort, nil
		}
		if err != nil {
			return 0, err
		}

		switch answer {
		case "1":
			return ChoiceLogin, nil
		case "2":
			return ChoiceRegister, nil
		case "3":
			return ChoiceAbort, nil
		default:
			p.warn.Fprintln(out, "Invalid choice. Please enter 1, 2, or 3.")
		}
	}
}

func (p *TerminalPrompter) LoginDetails(ctx context.Context) (LoginDetails, error) {
	p.head.Fprintln(p.con.Out(), "\n=== User Login ===")

	email, err := p.read(ctx, "Email: ")
	if err != nil {
		return LoginDetails{}, err
	}
	password, err := p.password(ctx, "Password: ")
	if err != nil {
		return LoginDetails{}, err
	}
	return LoginDetails{Email: email, Password: password}, nil
}

func (p *TerminalPrompter) RegisterDetails(ctx context.Context) (Registration, error) {
	p.head.Fprintln(p.con.Out(), "\n=== User Registration ===")

	var reg Registration
	var err error
	if reg.Email, err = p.read(ctx, "Email: "); err != nil {
		return Registration{}, err
	}
	if reg.Name, err = p.read(ctx, "Name: "); err != nil {
		return Registration{}, err
	}
	if reg.Password, err = p.password(ctx, "Password (min 8 chars): "); err != nil {
		return Registration{}, err
	}
	if reg.Confirm, err = p.password(ctx, "Confirm Password: "); err != nil {
		return Registration{}, err
	}
	return reg, nil
}

func (p *TerminalPrompter) Notify(n Notice) {
	out := p.con.Out()
	switch n.Kind {
	case NoticeSuccess:
		p.ok.Fprintln(out, "✓ "+n.String())
	case NoticeWarning:
		p.warn.Fprintln(out, "! "+n.String())
	case NoticeFailure:
		p.bad.Fprintln(out, "✗ "+failureText(n))
	default:
		p.con.Printf("%s\n", n.String())
	}
}

// failureText prefers the server's own message for rejected credentials.
func failureText(n Notice) string {
	var rej *RejectedError
	if errors.As(n.Err, &rej) && rej.Message != "" {
		return n.Message + ": " + rej.Message
	}
	return n.String()
}
