// ABOUTME: Tests for the prompter implementations
// ABOUTME: Environment, scripted, and terminal prompters

package auth

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agentchat/internal/console"
	"github.com/2389/agentchat/internal/logging"
)

func envLookup(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestEnvPrompter_LoginOnce(t *testing.T) {
	p := NewEnvPrompter(false, logging.Discard())
	p.lookup = envLookup(map[string]string{EnvEmail: "ci@example.com", EnvPassword: "ci-password"})
	ctx := context.Background()

	require.True(t, p.Available())

	c, err := p.Choose(ctx)
	require.NoError(t, err)
	assert.Equal(t, ChoiceLogin, c)

	d, err := p.LoginDetails(ctx)
	require.NoError(t, err)
	assert.Equal(t, LoginDetails{Email: "ci@example.com", Password: "ci-password"}, d)

	c, _ = p.Choose(ctx)
	assert.Equal(t, ChoiceAbort, c, "second attempt aborts")
}

func TestEnvPrompter_Register(t *testing.T) {
	p := NewEnvPrompter(true, logging.Discard())
	p.lookup = envLookup(map[string]string{EnvEmail: "ci@example.com", EnvPassword: "ci-password", EnvName: "CI"})
	ctx := context.Background()

	c, _ := p.Choose(ctx)
	assert.Equal(t, ChoiceRegister, c)

	reg, err := p.RegisterDetails(ctx)
	require.NoError(t, err)
	assert.Equal(t, Registration{Email: "ci@example.com", Name: "CI", Password: "ci-password", Confirm: "ci-password"}, reg)
}

func TestEnvPrompter_Unavailable(t *testing.T) {
	p := NewEnvPrompter(false, logging.Discard())
	p.lookup = envLookup(map[string]string{EnvEmail: "ci@example.com"})

	assert.False(t, p.Available())
	c, _ := p.Choose(context.Background())
	assert.Equal(t, ChoiceAbort, c)
}

func TestScriptedPrompter_Exhausted(t *testing.T) {
	p := &ScriptedPrompter{}
	ctx := context.Background()

	c, err := p.Choose(ctx)
	require.NoError(t, err)
	assert.Equal(t, ChoiceAbort, c)

	_, err = p.LoginDetails(ctx)
	assert.ErrorIs(t, err, ErrAborted)
	_, err = p.RegisterDetails(ctx)
	assert.ErrorIs(t, err, ErrAborted)
}

func newTestTerminal(t *testing.T, input string) (*TerminalPrompter, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var out bytes.Buffer
	return NewTerminalPrompter(console.New(strings.NewReader(input), &out)), &out
}

func TestTerminalPrompter_ChooseSkipsInvalid(t *testing.T) {
	p, out := newTestTerminal(t, "9\n 2 \n")

	c, err := p.Choose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ChoiceRegister, c)
	assert.Contains(t, out.String(), "Invalid choice. Please enter 1, 2, or 3.")
}

func TestTerminalPrompter_ChooseEOFAborts(t *testing.T) {
	p, _ := newTestTerminal(t, "")

	c, err := p.Choose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ChoiceAbort, c)
}

func TestTerminalPrompter_LoginDetails(t *testing.T) {
	p, out := newTestTerminal(t, " ada@example.com \nhunter22hunter\n")

	d, err := p.LoginDetails(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LoginDetails{Email: "ada@example.com", Password: "hunter22hunter"}, d)
	assert.Contains(t, out.String(), "=== User Login ===")
}

func TestTerminalPrompter_RegisterDetails(t *testing.T) {
	p, _ := newTestTerminal(t, "ada@example.com\nAda\npassword1\npassword2\n")

	reg, err := p.RegisterDetails(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Registration{Email: "ada@example.com", Name: "Ada", Password: "password1", Confirm: "password2"}, reg)
}

func TestTerminalPrompter_RegisterDetailsTruncatedInput(t *testing.T) {
	p, _ := newTestTerminal(t, "ada@example.com\n")

	_, err := p.RegisterDetails(context.Background())
	assert.ErrorIs(t, err, ErrAborted)
}

func TestTerminalPrompter_Notify(t *testing.T) {
	p, out := newTestTerminal(t, "")

	p.Notify(Notice{Kind: NoticeSuccess, Message: "Welcome"})
	p.Notify(Notice{Kind: NoticeFailure, Message: "Login failed", Err: &RejectedError{Status: 401, Message: "Invalid email or password"}})
	p.Notify(Notice{Kind: NoticeFailure, Message: "Registration failed", Err: errors.New("boom")})

	text := out.String()
	assert.Contains(t, text, "✓ Welcome")
	assert.Contains(t, text, "✗ Login failed: Invalid email or password")
	assert.Contains(t, text, "✗ Registration failed: boom")
}
