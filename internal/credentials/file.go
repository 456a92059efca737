// ABOUTME: File-backed credential store holding one JSON document keyed by server URL
// ABOUTME: Serializes writers with an exclusive lock and replaces the file atomically

package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/moby/sys/atomicwriter"
)

// legacyTimeLayout matches timestamps written without a zone offset.
const legacyTimeLayout = "2006-01-02T15:04:05.999999"

// fileEntry is the on-disk shape of one credential.
type fileEntry struct {
	Token   string `json:"token"`
	User    *User  `json:"user"`
	SavedAt string `json:"saved_at"`
}

// FileStore implements Store on a single JSON file with owner-only permissions
type FileStore struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewFileStore creates a store backed by the file at path. The file is created on first save.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		path:   path,
		logger: logger.With("component", "credentials"),
		now:    time.Now,
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the credential stored for serverURL.
func (s *FileStore) Load(_ context.Context, serverURL string) (*Credential, error) {
	var cred *Credential
	err := s.withLock(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		entry, ok := doc[serverURL]
		if !ok || entry.Token == "" {
			return ErrNotFound
		}
		cred = entry.credential(serverURL)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("loaded credential", "server", serverURL, "email", cred.User.Email)
	return cred, nil
}

// Save writes cred, leaving entries for other servers untouched.
func (s *FileStore) Save(_ context.Context, cred *Credential) error {
	if cred.ServerURL == "" {
		return fmt.Errorf("saving credential: server URL is required")
	}
	stamp(cred, s.now)

	err := s.withLock(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		user := cred.User
		doc[cred.ServerURL] = fileEntry{
			Token:   cred.Token,
			User:    &user,
			SavedAt: cred.SavedAt.Format(time.RFC3339Nano),
		}
		return s.write(doc)
	})
	if err != nil {
		return err
	}
	s.logger.Debug("saved credential", "server", cred.ServerURL, "path", s.path)
	return nil
}

// Delete removes the entry for serverURL.
func (s *FileStore) Delete(_ context.Context, serverURL string) error {
	return s.withLock(func() error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		if _, ok := doc[serverURL]; !ok {
			return nil
		}
		delete(doc, serverURL)
		s.logger.Debug("deleted credential", "server", serverURL)
		return s.write(doc)
	})
}

// withLock runs fn while holding an exclusive lock on the sidecar lock file.
func (s *FileStore) withLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	lf, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("opening lock file: %w", err)
	}
	defer lf.Close()

	if err := lockFile(lf); err != nil {
		return fmt.Errorf("locking credentials: %w", err)
	}
	defer func() {
		if err := unlockFile(lf); err != nil {
			s.logger.Warn("failed to unlock credentials", "error", err)
		}
	}()

	return fn()
}

// read parses the document. A missing or empty file is an empty document.
func (s *FileStore) read() (map[string]fileEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]fileEntry{}, nil
		}
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	doc := map[string]fileEntry{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}
	return doc, nil
}

// write replaces the document atomically with mode 0600.
func (s *FileStore) write(doc map[string]fileEntry) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	if err := atomicwriter.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}
	// Tighten permissions on files created by older clients.
	if err := os.Chmod(s.path, 0600); err != nil {
		return fmt.Errorf("restricting credentials file: %w", err)
	}
	return nil
}

func (e fileEntry) credential(serverURL string) *Credential {
	cred := &Credential{
		ServerURL: serverURL,
		Token:     e.Token,
	}
	if e.User != nil {
		cred.User = *e.User
	}
	cred.SavedAt = parseSavedAt(e.SavedAt)
	return cred
}

func parseSavedAt(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if t, err := time.ParseInLocation(legacyTimeLayout, s, time.Local); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
