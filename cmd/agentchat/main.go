// ABOUTME: Entry point for agentchat, a terminal client for agent servers
// ABOUTME: Wires config, auth, sessions and the streaming chat loop together

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/agentchat/internal/api"
	"github.com/2389/agentchat/internal/auth"
	"github.com/2389/agentchat/internal/chat"
	"github.com/2389/agentchat/internal/config"
	"github.com/2389/agentchat/internal/console"
	"github.com/2389/agentchat/internal/credentials"
	"github.com/2389/agentchat/internal/history"
	"github.com/2389/agentchat/internal/logging"
	"github.com/2389/agentchat/internal/render"
	"github.com/2389/agentchat/internal/retry"
	"github.com/2389/agentchat/internal/session"
	"github.com/2389/agentchat/internal/stream"
)

// Version is set by goreleaser at build time.
var version = "dev"

// reported marks an error already shown to the user.
type reported struct{ error }

func (r reported) Unwrap() error { return r.error }

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		exitWithError(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err = run(ctx, opts)
	cancel()
	if err != nil {
		exitWithError(err)
	}
}

// exitWithError prints err unless the user has already seen it and exits 1.
func exitWithError(err error) {
	writeError(os.Stderr, err)
	os.Exit(1)
}

func writeError(w io.Writer, err error) {
	var r reported
	if !errors.As(err, &r) {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}

// app holds the collaborators shared by every mode.
type app struct {
	cfg      *config.Config
	opts     *options
	logger   *slog.Logger
	printer  *render.Printer
	con      *console.Console
	client   *api.Client
	store    credentials.Store
	prompter auth.Prompter
	auth     *auth.Negotiator
	sessions *session.Manager
}

func run(ctx context.Context, opts *options) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	configPath := opts.configPath
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := opts.apply(cfg); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	if opts.noColor {
		color.NoColor = true
	}
	logger := logging.Setup(cfg.Logging, os.Stderr, opts.verbose)
	logger.Debug("starting agentchat", "version", version, "config", configPath, "server", cfg.Server.URL)

	apiOpts := []api.Option{api.WithLogger(logger)}
	if cfg.Tailscale.Enabled {
		tn, err := api.StartTailnet(ctx, cfg.Tailscale, logger)
		if err != nil {
			return err
		}
		defer tn.Close()
		apiOpts = append(apiOpts, api.WithHTTPClient(tn.HTTPClient()))
	}

	a := &app{
		cfg:     cfg,
		opts:    opts,
		logger:  logger,
		printer: render.New(os.Stdout, render.Options{Verbose: opts.verbose, NoColor: opts.noColor}),
		con:     console.Stdio(),
		client:  api.New(cfg.Server.URL, apiOpts...),
		store:   credentials.NewFileStore(cfg.Auth.CredentialsFile, logger),
	}
	a.prompter = a.newPrompter()
	a.auth = auth.NewNegotiator(a.client, a.store, auth.Options{
		ProbeTimeout: cfg.Timeouts.Probe,
		Timeout:      cfg.Timeouts.Auxiliary,
		Prompter:     a.prompter,
		Logger:       logger,
	})
	a.sessions = session.NewManager(a.client, session.Options{
		Timeout:       cfg.Timeouts.Auxiliary,
		WorkingDir:    cfg.Session.WorkingDir,
		ToolsApproved: cfg.Session.ToolsApproved,
		Logger:        logger,
	})
	defer a.sessions.Close()

	switch {
	case opts.logout:
		return a.logout(ctx)
	case opts.register:
		return a.register(ctx)
	case opts.list:
		return a.listAgents(ctx)
	case opts.agent == "":
		a.printer.Fail("An agent name is required.")
		a.printer.Info("Usage: agentchat [flags] <agent> [prompt...]\n")
		_ = a.listAgents(ctx)
		return reported{errors.New("missing agent argument")}
	}
	return a.chat(ctx)
}

// newPrompter prefers credentials from the environment and falls back to the terminal.
func (a *app) newPrompter() auth.Prompter {
	env := auth.NewEnvPrompter(a.opts.register, a.logger)
	if env.Available() {
		a.logger.Debug("using credentials from the environment")
		return env
	}
	return auth.NewTerminalPrompter(a.con)
}

func (a *app) logout(ctx context.Context) error {
	if err := a.store.Delete(ctx, a.cfg.Server.URL); err != nil {
		a.printer.Fail("Could not remove saved credentials: " + err.Error())
		return reported{err}
	}
	a.printer.Success("Logged out from " + a.cfg.Server.URL)
	return nil
}

func (a *app) register(ctx context.Context) error {
	if !a.auth.Probe(ctx) {
		a.printer.Info("This server does not require authentication.")
		return nil
	}

	reg, err := a.prompter.RegisterDetails(ctx)
	if err != nil {
		a.printer.Fail("Registration cancelled.")
		return reported{err}
	}
	cred, err := a.auth.Register(ctx, reg)
	if err != nil {
		a.printer.Fail("Registration failed: " + registrationReason(err))
		return reported{err}
	}

	a.printer.Success("Registration successful!")
	a.printer.Info(fmt.Sprintf("User: %s\nEmail: %s\nID: %s", cred.User.DisplayName(), cred.User.Email, cred.User.ID))
	return nil
}

func registrationReason(err error) string {
	var rejected *auth.RejectedError
	switch {
	case errors.As(err, &rejected) && rejected.Message != "":
		return rejected.Message
	case errors.Is(err, auth.ErrPasswordMismatch):
		return "passwords do not match"
	case errors.Is(err, auth.ErrWeakPassword):
		return fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength)
	case errors.Is(err, auth.ErrMissingFields):
		return "email, name and password are required"
	default:
		return err.Error()
	}
}

// listAgents uses a saved token when there is one; the catalog does not require it.
func (a *app) listAgents(ctx context.Context) error {
	if !a.cfg.Auth.Skip {
		if cred, _ := a.auth.Load(ctx); cred != nil {
			a.client.SetToken(cred.Token)
		}
	}
	agents, err := a.sessions.ListAgents(ctx)
	if err != nil {
		a.printer.Fail("Could not list agents: " + api.MessageOr(err, err.Error()))
		return reported{err}
	}
	a.printer.Agents(agents)
	return nil
}

func (a *app) chat(ctx context.Context) error {
	var email string
	var invalidator stream.Invalidator
	var logout chat.Invalidator

	if !a.cfg.Auth.Skip {
		if err := a.auth.Authenticate(ctx); err != nil {
			if errors.Is(err, auth.ErrAborted) {
				a.printer.Info("Authentication cancelled.")
			} else {
				a.printer.Fail("Authentication failed: " + err.Error())
			}
			return reported{err}
		}
		if cred := a.auth.Credential(); cred != nil {
			email = cred.User.Email
			invalidator = a.auth
			logout = a.auth
		}
	}

	agent, err := a.sessions.VerifyAgent(ctx, a.opts.agent)
	if err != nil {
		var notFound *session.AgentNotFoundError
		if errors.As(err, &notFound) {
			a.printer.AgentNotFound(notFound)
			return reported{err}
		}
		a.printer.Fail("Could not verify agent: " + err.Error())
		return reported{err}
	}

	sess, err := a.sessions.CreateSession(ctx, agent, "")
	if err != nil {
		a.printer.Fail("Failed to create session: " + err.Error())
		return reported{err}
	}
	a.printer.SessionCreated(sess)

	store := a.openHistory()
	if store != nil {
		defer store.Close()
	}

	streams := stream.NewClient(a.client, stream.Options{
		Timeout: a.cfg.Timeouts.Message,
		Retry: retry.Policy{
			MaxAttempts: a.cfg.Stream.MaxRetries,
			Delay:       a.cfg.Stream.RetryDelay,
			Jitter:      a.cfg.Stream.RetryJitter,
		},
		Invalidator: invalidator,
		OnRetry:     a.printer.Retrying,
		Logger:      a.logger,
	})

	c := chat.New(chat.Config{
		ServerURL:     a.cfg.Server.URL,
		SessionID:     sess.ID,
		Agent:         agent,
		Title:         sess.Title,
		Email:         email,
		InitialPrompt: a.opts.prompt,
	}, chat.Deps{
		Console:  a.con,
		Printer:  a.printer,
		Streams:  streams,
		Sessions: a.sessions,
		Auth:     logout,
		History:  store,
		Logger:   a.logger,
	})

	if err := c.Run(ctx); err != nil {
		return reported{err}
	}
	return nil
}

// openHistory returns nil when the transcript is disabled or unavailable.
func (a *app) openHistory() *history.Store {
	if !a.cfg.History.Enabled {
		return nil
	}
	store, err := history.Open(a.cfg.History.Path, a.logger)
	if err != nil {
		a.logger.Warn("local history disabled", "path", a.cfg.History.Path, "error", err)
		return nil
	}
	return store
}
