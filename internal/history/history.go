// ABOUTME: Local SQLite transcript of chat turns using modernc.org/sqlite
// ABOUTME: Records user messages and finalized replies per server and session

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session has no local record.
var ErrNotFound = errors.New("not found")

// Role identifies who produced an entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

// Session is the local record of a remote session.
type Session struct {
	ID        string
	ServerURL string
	SessionID string
	Agent     string
	Title     string
	CreatedAt time.Time
}

// Entry is one transcript line.
type Entry struct {
	ID           string
	SessionRef   string
	Role         Role
	Content      string
	InputTokens  int64
	OutputTokens int64
	Cost         float64
	CreatedAt    time.Time
}

// Store persists transcripts in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens or creates the transcript database at path.
// Parent directories are created if needed.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "history")

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One process, one writer; a single connection also keeps the pragmas in effect.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, logger: logger, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("history store initialized", "path", path)
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			server_url TEXT NOT NULL,
			session_id TEXT NOT NULL,
			agent      TEXT NOT NULL,
			title      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,

			UNIQUE(server_url, session_id)
		);

		CREATE TABLE IF NOT EXISTS entries (
			id            TEXT PRIMARY KEY,
			session_ref   TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			role          TEXT NOT NULL,
			content       TEXT NOT NULL,
			input_tokens  INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			cost          REAL NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL,

			CHECK (role IN ('user', 'assistant', 'error'))
		);

		CREATE INDEX IF NOT EXISTS idx_entries_session ON entries(session_ref);
		CREATE INDEX IF NOT EXISTS idx_sessions_server ON sessions(server_url, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartSession records a remote session, or returns the existing record.
func (s *Store) StartSession(ctx context.Context, serverURL, sessionID, agent, title string) (*Session, error) {
	existing, err := s.session(ctx, serverURL, sessionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	sess := &Session{
		ID:        uuid.NewString(),
		ServerURL: serverURL,
		SessionID: sessionID,
		Agent:     agent,
		Title:     title,
		CreatedAt: s.now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, server_url, session_id, agent, title, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.ServerURL, sess.SessionID, sess.Agent, sess.Title, sess.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("recorded session", "id", sess.ID, "session_id", sessionID)
	return sess, nil
}

func (s *Store) session(ctx context.Context, serverURL, sessionID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, server_url, session_id, agent, title, created_at
		FROM sessions
		WHERE server_url = ? AND session_id = ?
	`, serverURL, sessionID)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sess, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var createdAt string
	if err := row.Scan(&sess.ID, &sess.ServerURL, &sess.SessionID, &sess.Agent, &sess.Title, &createdAt); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	sess.CreatedAt = t
	return &sess, nil
}

// Sessions lists recorded sessions for serverURL, newest first.
// A limit of 0 or less returns all of them.
func (s *Store) Sessions(ctx context.Context, serverURL string, limit int) ([]*Session, error) {
	query := `
		SELECT id, server_url, session_id, agent, title, created_at
		FROM sessions
		WHERE server_url = ?
		ORDER BY created_at DESC, rowid DESC
	`
	args := []any{serverURL}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Append adds e to its session. Empty ID and CreatedAt are filled in.
func (s *Store) Append(ctx context.Context, e *Entry) error {
	if e.SessionRef == "" {
		return errors.New("entry has no session")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (id, session_ref, role, content, input_tokens, output_tokens, cost, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.SessionRef, string(e.Role), e.Content, e.InputTokens, e.OutputTokens, e.Cost, e.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

// Entries returns the most recent limit entries of a session in chronological
// order. A limit of 0 or less returns all of them.
func (s *Store) Entries(ctx context.Context, sessionRef string, limit int) ([]*Entry, error) {
	var query string
	var args []any

	if limit > 0 {
		query = `
			SELECT id, session_ref, role, content, input_tokens, output_tokens, cost, created_at
			FROM (
				SELECT rowid AS seq, id, session_ref, role, content, input_tokens, output_tokens, cost, created_at
				FROM entries
				WHERE session_ref = ?
				ORDER BY seq DESC
				LIMIT ?
			)
			ORDER BY seq ASC
		`
		args = []any{sessionRef, limit}
	} else {
		query = `
			SELECT id, session_ref, role, content, input_tokens, output_tokens, cost, created_at
			FROM entries
			WHERE session_ref = ?
			ORDER BY rowid ASC
		`
		args = []any{sessionRef}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		var role, createdAt string
		if err := rows.Scan(&e.ID, &e.SessionRef, &role, &e.Content, &e.InputTokens, &e.OutputTokens, &e.Cost, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		e.Role = Role(role)
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
