// ABOUTME: Optional HTTP transport through an embedded Tailscale node
// ABOUTME: Lets the client reach agent servers that only listen on a tailnet

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"tailscale.com/tsnet"

	"github.com/2389/agentchat/internal/config"
)

// Tailnet is a running tsnet node used as the client's HTTP transport.
type Tailnet struct {
	srv    *tsnet.Server
	logger *slog.Logger
}

// StartTailnet brings up a tsnet node described by cfg and waits until it is connected.
func StartTailnet(ctx context.Context, cfg config.TailscaleConfig, logger *slog.Logger) (*Tailnet, error) {
	stateDir, err := resolveTailscaleStateDir(cfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(cfg.AuthKey)
	if err != nil {
		return nil, err
	}

	logger = logger.With("component", "tailnet")
	srv := &tsnet.Server{
		Hostname:  cfg.Hostname,
		Dir:       stateDir,
		Ephemeral: cfg.Ephemeral,
		AuthKey:   authKey,
		Logf: func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		},
	}

	logger.Info("starting tailscale node", "hostname", cfg.Hostname, "state_dir", stateDir, "ephemeral", cfg.Ephemeral)
	status, err := srv.Up(ctx)
	if err != nil {
		_ = srv.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}

	var tsAddr string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	}
	logger.Info("tailscale node ready", "hostname", cfg.Hostname, "tailscale_ip", tsAddr)

	return &Tailnet{srv: srv, logger: logger}, nil
}

// HTTPClient returns an *http.Client that dials through the tailnet.
func (t *Tailnet) HTTPClient() *http.Client {
	return t.srv.HTTPClient()
}

// Close shuts the node down.
func (t *Tailnet) Close() error {
	return t.srv.Close()
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "agentchat", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set tailscale.auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}
