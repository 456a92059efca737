// ABOUTME: Session manager for agent verification and remote session lifecycle
// ABOUTME: Creates sessions and keeps a read-through cache of their summaries

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/agentchat/internal/api"
	"github.com/2389/agentchat/internal/cache"
)

const (
	// DefaultWorkingDir is sent when no working directory is configured.
	DefaultWorkingDir = "/tmp"

	summaryTTL       = 30 * time.Second
	summaryCacheSize = 64
	titleLayout      = "2006-01-02 15:04"
)

// Options configures a Manager.
type Options struct {
	// Timeout bounds each catalog, create, and summary request.
	Timeout       time.Duration
	WorkingDir    string
	ToolsApproved bool
	Logger        *slog.Logger
}

// Manager talks to the session and agent endpoints.
type Manager struct {
	api           *api.Client
	summaries     *cache.Cache[string, Session]
	timeout       time.Duration
	workingDir    string
	toolsApproved bool
	logger        *slog.Logger
	now           func() time.Time
}

// NewManager creates a manager using client. Call Close when done.
func NewManager(client *api.Client, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workingDir := opts.WorkingDir
	if workingDir == "" {
		workingDir = DefaultWorkingDir
	}
	return &Manager{
		api:           client,
		summaries:     cache.New[string, Session](summaryTTL, summaryCacheSize),
		timeout:       opts.Timeout,
		workingDir:    workingDir,
		toolsApproved: opts.ToolsApproved,
		logger:        logger.With("component", "session"),
		now:           time.Now,
	}
}

// Close releases the summary cache.
func (m *Manager) Close() {
	m.summaries.Close()
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.timeout)
}

// ListAgents fetches the server's agent catalog.
func (m *Manager) ListAgents(ctx context.Context) ([]Agent, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var agents []Agent
	if err := m.api.DoJSON(ctx, http.MethodGet, api.PathAgents, nil, &agents); err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	return agents, nil
}

// VerifyAgent checks that name, normalized to end in .yaml, is in the catalog
// and returns the normalized name. A miss returns *AgentNotFoundError listing
// every available agent.
func (m *Manager) VerifyAgent(ctx context.Context, name string) (string, error) {
	agents, err := m.ListAgents(ctx)
	if err != nil {
		return "", err
	}

	tried := NormalizeAgent(name)
	available := make([]string, 0, len(agents))
	for _, a := range agents {
		if a.Name == "" {
			continue
		}
		if a.Name == tried {
			m.logger.Debug("agent verified", "agent", tried)
			return tried, nil
		}
		available = append(available, a.Name)
	}

	return "", &AgentNotFoundError{Requested: name, Tried: tried, Available: available}
}

// DefaultTitle returns the title used when none is supplied.
func DefaultTitle(agent string, now time.Time) string {
	return fmt.Sprintf("Chat with %s - %s", agent, now.Format(titleLayout))
}

type createRequest struct {
	Title         string `json:"title"`
	WorkingDir    string `json:"workingDir"`
	ToolsApproved bool   `json:"tools_approved"`
}

// CreateSession creates a session for agent. An empty title gets DefaultTitle.
// Any failure is returned as *CreateFailedError.
func (m *Manager) CreateSession(ctx context.Context, agent, title string) (*Session, error) {
	if title == "" {
		title = DefaultTitle(agent, m.now())
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var s Session
	req := createRequest{Title: title, WorkingDir: m.workingDir, ToolsApproved: m.toolsApproved}
	if err := m.api.DoJSON(ctx, http.MethodPost, api.PathSessions, req, &s); err != nil {
		return nil, &CreateFailedError{Cause: err}
	}
	if s.ID == "" {
		return nil, &CreateFailedError{Cause: errors.New("response has no session id")}
	}

	if s.Title == "" {
		s.Title = title
	}
	s.Agent = agent
	m.summaries.Put(s.ID, s)

	m.logger.Info("session created", "session_id", s.ID, "title", s.Title)
	return &s, nil
}

// FetchSummary reads the session from the server and refreshes the cached
// copy. Failures are logged and wrapped in ErrSummaryUnavailable so callers
// can treat them as non-fatal.
func (m *Manager) FetchSummary(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNoSession
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var s Session
	if err := m.api.DoJSON(ctx, http.MethodGet, api.SessionPath(id), nil, &s); err != nil {
		m.logger.Warn("could not retrieve session summary", "session_id", id, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSummaryUnavailable, err)
	}
	if s.ID == "" {
		s.ID = id
	}

	if prev, ok := m.summaries.Get(id); ok && s.Agent == "" {
		s.Agent = prev.Agent
	}
	m.summaries.Put(id, s)
	return &s, nil
}

// Cached returns the last summary seen for id, if still fresh.
func (m *Manager) Cached(id string) (*Session, bool) {
	s, ok := m.summaries.Get(id)
	if !ok {
		return nil, false
	}
	return &s, true
}
