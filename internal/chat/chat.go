// ABOUTME: Interactive chat loop that reads user lines and streams agent replies
// ABOUTME: Handles in-session commands, local transcript recording, and the closing summary

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/agentchat/internal/console"
	"github.com/2389/agentchat/internal/history"
	"github.com/2389/agentchat/internal/render"
	"github.com/2389/agentchat/internal/session"
	"github.com/2389/agentchat/internal/stream"
)

const (
	prompt         = "\n🧑 You: "
	summaryTimeout = 10 * time.Second
	transcriptSize = 50
	recentSessions = 10
)

// Sender opens a reply stream for one user message.
type Sender interface {
	SendMessage(ctx context.Context, sessionID, agent, message string) (*stream.Stream, error)
}

// Summaries fetches the server's view of a session. Cached returns the last
// summary fetched for id without a round trip.
type Summaries interface {
	FetchSummary(ctx context.Context, id string) (*session.Session, error)
	Cached(id string) (*session.Session, bool)
}

// Invalidator drops the stored credential for the server.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Config describes the conversation.
type Config struct {
	ServerURL string
	SessionID string
	Agent     string
	Title     string
	// Email is shown in the banner when authenticated.
	Email string
	// InitialPrompt is sent before the first read when set.
	InitialPrompt string
}

// Deps are the collaborators of a Chat. Auth and History may be nil.
type Deps struct {
	Console  *console.Console
	Printer  *render.Printer
	Streams  Sender
	Sessions Summaries
	Auth     Invalidator
	History  *history.Store
	Logger   *slog.Logger
}

// Chat runs one interactive conversation with an agent.
type Chat struct {
	cfg      Config
	con      *console.Console
	printer  *render.Printer
	streams  Sender
	sessions Summaries
	auth     Invalidator
	history  *history.Store
	logger   *slog.Logger

	transcript string
}

// New creates a chat loop.
func New(cfg Config, deps Deps) *Chat {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Chat{
		cfg:      cfg,
		con:      deps.Console,
		printer:  deps.Printer,
		streams:  deps.Streams,
		sessions: deps.Sessions,
		auth:     deps.Auth,
		history:  deps.History,
		logger:   logger.With("component", "chat", "session_id", cfg.SessionID),
	}
}

// Run reads lines until the user quits, input ends, or ctx is done. It
// returns an error matching stream.ErrAuthExpired when the server rejects
// the credential mid-conversation; every other ending returns nil.
func (c *Chat) Run(ctx context.Context) error {
	c.startTranscript(ctx)
	c.printer.Banner(c.cfg.Agent, c.cfg.Email)

	loggedOut := false
	err := c.loop(ctx, &loggedOut)

	if !loggedOut {
		c.printSummary(ctx)
	}
	c.printer.Info("\nGoodbye!")
	return err
}

func (c *Chat) loop(ctx context.Context, loggedOut *bool) error {
	if c.cfg.InitialPrompt != "" {
		c.printer.UserTurn(c.cfg.InitialPrompt)
		if err := c.send(ctx, c.cfg.InitialPrompt); errors.Is(err, stream.ErrAuthExpired) {
			return err
		}
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := c.con.ReadLine(ctx, prompt)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "/exit", "/quit", "quit", "exit", "q":
			return nil
		case "/logout":
			c.logout(ctx)
			*loggedOut = true
			return nil
		case "/history":
			c.serverHistory(ctx)
			continue
		case "history":
			c.localHistory(ctx)
			continue
		case "/sessions":
			c.listSessions(ctx)
			continue
		case "/summary":
			c.printSummary(ctx)
			continue
		case "clear", "/clear":
			c.printer.Clear()
			continue
		case "/help", "help":
			c.printer.Help()
			continue
		}

		if err := c.send(ctx, input); errors.Is(err, stream.ErrAuthExpired) {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// send delivers one message and streams the reply. Failures are printed and
// returned; only an expired credential ends the loop.
func (c *Chat) send(ctx context.Context, message string) error {
	c.record(ctx, history.RoleUser, message, nil)

	s, err := c.streams.SendMessage(ctx, c.cfg.SessionID, c.cfg.Agent, message)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Debug("send failed", "error", err)
		c.printer.SendFailed(err)
		c.record(ctx, history.RoleError, err.Error(), nil)
		return err
	}
	defer s.Close()

	c.printer.AgentPrefix()
	res, err := stream.Dispatch(ctx, s, c.printer)
	c.printer.EndReply(res)

	if res != nil && res.Text != "" {
		c.record(ctx, history.RoleAssistant, res.Text, res.Usage)
	}
	if res != nil && res.Skipped > 0 {
		c.logger.Debug("undecodable events skipped", "count", res.Skipped, "recent", len(s.DecodeErrors()))
	}

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		c.printer.Warn("Interrupted.")
		return ctx.Err()
	default:
		c.printer.SendFailed(err)
		c.record(ctx, history.RoleError, err.Error(), nil)
		return err
	}
}

func (c *Chat) logout(ctx context.Context) {
	if c.auth == nil {
		c.printer.Info("Authentication is not enabled for this server.")
		return
	}
	if err := c.auth.Invalidate(ctx); err != nil {
		c.printer.Fail("Logout failed: " + err.Error())
		return
	}
	c.printer.Success("Logged out successfully")
}

func (c *Chat) serverHistory(ctx context.Context) {
	s, err := c.sessions.FetchSummary(ctx, c.cfg.SessionID)
	if err != nil {
		c.printer.Warn("Could not retrieve session history")
		return
	}
	c.printer.ServerHistory(s.Messages)
}

func (c *Chat) localHistory(ctx context.Context) {
	if c.history == nil || c.transcript == "" {
		c.printer.Info("Local history is disabled.")
		return
	}
	entries, err := c.history.Entries(ctx, c.transcript, transcriptSize)
	if err != nil {
		c.logger.Warn("reading transcript", "error", err)
		c.printer.Warn("Could not read local history")
		return
	}
	c.printer.Transcript(entries)
}

func (c *Chat) listSessions(ctx context.Context) {
	if c.history == nil {
		c.printer.Info("Local history is disabled.")
		return
	}
	sessions, err := c.history.Sessions(ctx, c.cfg.ServerURL, recentSessions)
	if err != nil {
		c.logger.Warn("listing sessions", "error", err)
		c.printer.Warn("Could not read local history")
		return
	}
	c.printer.RecentSessions(sessions, c.transcript)
}

// printSummary runs even after ctx is cancelled so an interrupted chat still
// ends with its summary. When the server cannot answer, the last summary
// fetched in this chat is shown instead.
func (c *Chat) printSummary(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), summaryTimeout)
	defer cancel()

	s, err := c.sessions.FetchSummary(ctx, c.cfg.SessionID)
	if err != nil {
		cached, ok := c.sessions.Cached(c.cfg.SessionID)
		if !ok {
			c.logger.Debug("summary unavailable", "error", err)
			return
		}
		c.logger.Debug("showing cached summary", "error", err)
		s = cached
	}
	c.printer.Summary(s)
}

func (c *Chat) startTranscript(ctx context.Context) {
	if c.history == nil {
		return
	}
	hs, err := c.history.StartSession(ctx, c.cfg.ServerURL, c.cfg.SessionID, c.cfg.Agent, c.cfg.Title)
	if err != nil {
		c.logger.Warn("local history unavailable", "error", err)
		return
	}
	c.transcript = hs.ID
}

func (c *Chat) record(ctx context.Context, role history.Role, content string, usage *stream.Usage) {
	if c.history == nil || c.transcript == "" {
		return
	}
	e := &history.Entry{SessionRef: c.transcript, Role: role, Content: content}
	if usage != nil {
		e.InputTokens = usage.InputTokens
		e.OutputTokens = usage.OutputTokens
		e.Cost = usage.Cost
	}
	if err := c.history.Append(context.WithoutCancel(ctx), e); err != nil {
		c.logger.Warn("recording transcript entry", "role", role, "error", err)
	}
}
