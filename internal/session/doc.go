// Package session manages remote chat sessions and the agent catalog.
//
// Agent names are normalized to end in ".yaml" before they are checked
// against GET /api/agents. A miss returns *AgentNotFoundError carrying the
// whole catalog so it can be shown to the user.
//
// Sessions are created with POST /api/sessions and owned by the server. The
// Manager keeps a short-lived read-through copy of each session summary in a
// TTL cache; FetchSummary refreshes it and never mutates anything else.
// Summary failures wrap ErrSummaryUnavailable and are meant to be logged, not
// treated as fatal.
package session
