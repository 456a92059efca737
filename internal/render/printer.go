// ABOUTME: Terminal printer for streamed replies, progress events, and session views
// ABOUTME: Implements the stream sink; colors are per printer so --no-color needs no globals

package render

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/agentchat/internal/history"
	"github.com/2389/agentchat/internal/session"
	"github.com/2389/agentchat/internal/stream"
)

const (
	reasoningPreview = 100
	shellPreview     = 200
	historyPreview   = 200
	rule             = "=================================================="
)

// Options configures a Printer.
type Options struct {
	Verbose bool
	NoColor bool
}

// Printer writes everything the user sees. It is safe for concurrent use.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool

	bold   *color.Color
	dim    *color.Color
	accent *color.Color
	tool   *color.Color
	ok     *color.Color
	warn   *color.Color
	bad    *color.Color
	user   *color.Color
}

// New creates a printer writing to out.
func New(out io.Writer, opts Options) *Printer {
	p := &Printer{
		out:     out,
		verbose: opts.Verbose,
		bold:    color.New(color.Bold),
		dim:     color.New(color.Faint),
		accent:  color.New(color.FgCyan),
		tool:    color.New(color.FgYellow),
		ok:      color.New(color.FgGreen),
		warn:    color.New(color.FgYellow, color.Bold),
		bad:     color.New(color.FgRed),
		user:    color.New(color.FgBlue, color.Bold),
	}
	if opts.NoColor {
		for _, c := range []*color.Color{p.bold, p.dim, p.accent, p.tool, p.ok, p.warn, p.bad, p.user} {
			c.DisableColor()
		}
	}
	return p
}

func (p *Printer) println(c *color.Color, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c.Fprintf(p.out, format+"\n", args...)
}

// OnText writes assistant text as it arrives.
func (p *Printer) OnText(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, text)
}

// OnProgress writes tool activity and notices. Partial tool calls, shell
// output, tool arguments and unknown events appear only in verbose mode.
func (p *Printer) OnProgress(ev stream.Event) {
	switch ev := ev.(type) {
	case stream.ToolCall:
		p.println(p.tool, "\n🔧 [Calling tool: %s]", orUnknown(ev.Name))
		if p.verbose && ev.Arguments != "" {
			p.println(p.dim, "   Arguments: %s", ev.Arguments)
		}
	case stream.PartialToolCall:
		if p.verbose {
			p.println(p.dim, "\n⚙️ [Preparing tool: %s]", orUnknown(ev.Name))
		}
	case stream.ToolCallResponse:
		p.println(p.ok, "\n✓ [Tool %s completed]", orUnknown(ev.Name))
	case stream.Reasoning:
		if ev.Content != "" {
			p.println(p.dim, "\n💭 [Reasoning: %s]", Truncate(ev.Content, reasoningPreview))
		}
	case stream.Warning:
		if ev.Message != "" {
			p.println(p.warn, "\n⚠️ Warning: %s", ev.Message)
		}
	case stream.Shell:
		if p.verbose && ev.Output != "" {
			p.println(p.dim, "\n💻 Shell output:\n%s", Truncate(ev.Output, shellPreview))
		}
	case stream.Other:
		if p.verbose {
			p.println(p.dim, "\n[%s]: %s", orUnknown(ev.Type), string(ev.Raw))
		}
	}
}

// UserTurn echoes a message the user sent.
func (p *Printer) UserTurn(message string) {
	p.println(p.user, "\n🧑 You: %s", message)
}

// AgentPrefix starts an agent reply line.
func (p *Printer) AgentPrefix() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accent.Fprint(p.out, "\n🤖 Agent: ")
}

// EndReply finishes a streamed reply and prints its usage.
func (p *Printer) EndReply(res *stream.Result) {
	p.mu.Lock()
	fmt.Fprint(p.out, "\n")
	p.mu.Unlock()

	if res == nil {
		return
	}
	if res.Usage != nil {
		p.Usage(*res.Usage)
	}
	if p.verbose && res.Skipped > 0 {
		p.println(p.dim, "(%d undecodable events skipped)", res.Skipped)
	}
}

// Usage prints a token footer. Cost appears only when positive.
func (p *Printer) Usage(u stream.Usage) {
	line := fmt.Sprintf("Tokens - Input: %d, Output: %d, Total: %d", u.InputTokens, u.OutputTokens, u.TotalTokens)
	if u.Cost > 0 {
		line += fmt.Sprintf(", Cost: $%.6f", u.Cost)
	}
	p.println(p.dim, "%s\n%s", strings.Repeat("-", len(rule)), line)
}

// Retrying reports a header timeout retry.
func (p *Printer) Retrying(attempt, maxAttempts int) {
	p.println(p.warn, "\n⏱️ Request timed out. Retrying... (%d/%d)", attempt, maxAttempts)
}

// SendFailed explains why a message could not be delivered.
func (p *Printer) SendFailed(err error) {
	var te *stream.TransportError
	var agentErr *stream.AgentError
	switch {
	case errors.Is(err, stream.ErrAuthExpired):
		p.Fail("Authentication expired. Please restart the chat.")
	case errors.As(err, &te) && te.Timeout():
		p.Fail(fmt.Sprintf("Request timed out after %d attempts. The agent might be processing a complex request.", te.Attempts))
		p.Info("Try again with a simpler query or increase the timeout with --timeout.")
	case errors.As(err, &agentErr):
		p.Fail("Error: " + agentErr.Message)
	case errors.Is(err, stream.ErrSendInFlight):
		p.Warn("Still waiting for the previous reply.")
	default:
		p.Fail("Error sending message: " + err.Error())
	}
	if p.verbose {
		p.println(p.dim, "   Detail: %#v", err)
	}
}

// Success prints a confirmation.
func (p *Printer) Success(msg string) {
	p.println(p.ok, "✓ %s", msg)
}

// Warn prints a warning.
func (p *Printer) Warn(msg string) {
	p.println(p.warn, "⚠️ %s", msg)
}

// Fail prints an error.
func (p *Printer) Fail(msg string) {
	p.println(p.bad, "✗ %s", msg)
}

// Info prints plain text.
func (p *Printer) Info(msg string) {
	p.println(p.dim, "%s", msg)
}

// Banner prints the chat header and the available commands.
func (p *Printer) Banner(agent, email string) {
	p.println(p.bold, "\n%s\nChat with %s", rule, agent)
	if email != "" {
		p.println(p.dim, "User: %s", email)
	}
	p.println(p.bold, "%s", rule)
	p.Help()
}

// Help lists the interactive commands.
func (p *Printer) Help() {
	p.println(p.dim, `
Commands:
  /exit, quit, exit, q  - Exit the chat
  /history              - Show session history from the server
  history               - Show the local transcript
  /sessions             - List recent local sessions
  /summary              - Show session summary
  /logout               - Logout and clear credentials
  clear                 - Clear the screen
  /help                 - Show this help`)
}

// Clear clears the terminal.
func (p *Printer) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, "\033[H\033[2J")
}

// Agents lists the agent catalog.
func (p *Printer) Agents(agents []session.Agent) {
	if len(agents) == 0 {
		p.Info("No agents available.")
		return
	}
	p.println(p.bold, "Available agents:")
	for _, a := range agents {
		if a.Description != "" {
			p.println(p.accent, "  • %s: %s", a.Name, a.Description)
		} else {
			p.println(p.accent, "  • %s", a.Name)
		}
	}
}

// AgentNotFound prints a missing agent and the alternatives.
func (p *Printer) AgentNotFound(err *session.AgentNotFoundError) {
	p.Fail(fmt.Sprintf("Agent '%s' not found!", err.Requested))
	if len(err.Available) == 0 {
		p.Info("No agents available.")
		return
	}
	p.println(p.bold, "\nAvailable agents:")
	for _, name := range err.Available {
		p.println(p.accent, "  - %s", name)
	}
}

// SessionCreated confirms a new session.
func (p *Printer) SessionCreated(s *session.Session) {
	p.Success("Session created: " + s.ID)
	if p.verbose {
		p.Info("   Title: " + s.Title)
	}
}

// Summary prints session metadata.
func (p *Printer) Summary(s *session.Session) {
	created := "N/A"
	if !s.CreatedAt.IsZero() {
		created = s.CreatedAt.Local().Format("2006-01-02 15:04:05")
	}
	p.println(p.bold, "\n%s\nSession Summary:\n%s", rule, rule)
	p.println(p.dim, "ID: %s\nTitle: %s\nCreated: %s\nMessages: %d\nInput Tokens: %d\nOutput Tokens: %d",
		orNA(s.ID), orNA(s.Title), created, s.MessageCount, s.InputTokens, s.OutputTokens)
}

// ServerHistory prints the messages the server holds for a session.
func (p *Printer) ServerHistory(messages []session.Message) {
	if len(messages) == 0 {
		p.Info("\nNo messages in history yet.")
		return
	}
	p.println(p.bold, "\n%s\nSession History:\n%s", rule, rule)
	for _, m := range messages {
		p.println(roleColor(p, m.Role), "\n[%s]: %s", strings.ToUpper(orUnknown(m.Role)), Truncate(m.Content, historyPreview))
	}
}

// Transcript prints the local transcript. Assistant markdown is flattened to plain text.
func (p *Printer) Transcript(entries []*history.Entry) {
	if len(entries) == 0 {
		p.Info("No messages in history yet.")
		return
	}
	p.println(p.bold, "\n--- Message History ---")
	for _, e := range entries {
		content := e.Content
		if e.Role == history.RoleAssistant {
			content = PlainText(content)
		}
		p.println(roleColor(p, string(e.Role)), "%s: %s", strings.ToUpper(string(e.Role)), Truncate(content, historyPreview))
	}
	p.println(p.bold, "--- End History ---")
}

// RecentSessions lists locally recorded sessions. The one whose ID is current
// is marked.
func (p *Printer) RecentSessions(sessions []*history.Session, current string) {
	if len(sessions) == 0 {
		p.Info("No recorded sessions.")
		return
	}
	p.println(p.bold, "\n--- Recent Sessions ---")
	for _, s := range sessions {
		marker := " "
		if s.ID == current {
			marker = "*"
		}
		p.println(p.dim, "%s %s  %s  %s  %s", marker, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.SessionID, orNA(s.Agent), orNA(s.Title))
	}
	p.println(p.bold, "--- End Sessions ---")
}

func roleColor(p *Printer, role string) *color.Color {
	switch role {
	case "user":
		return p.user
	case "assistant":
		return p.accent
	case "error":
		return p.bad
	default:
		return p.dim
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
