package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zappedin/orchestrator/pkg/models"
)

const (
	// renameAttempts bounds the retry loop for a transiently busy target
	// file (antivirus scans and editors hold session files open on some
	// hosts).
	renameAttempts = 3
	renameBackoff  = 200 * time.Millisecond
)

// Store persists one session-state JSON document per account. Writes are
// atomic: the document is staged to a temp file and renamed over the target.
type Store struct {
	dir    string
	logger *zap.Logger
	mu     sync.Mutex
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Load reads the persisted state for an account. A missing or corrupted
// document yields the empty state; the account simply logs in again.
func (s *Store) Load(username string) *models.SessionState {
	data, err := os.ReadFile(s.path(username))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read session state, starting fresh",
				zap.String("username", username), zap.Error(err))
		}
		return models.EmptySessionState()
	}
	return models.ParseSessionState(string(data))
}

// Persist writes the state document for an account. The rename is retried a
// small fixed number of times when the target is transiently busy.
func (s *Store) Persist(username string, state *models.SessionState) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if state == nil {
		state = models.EmptySessionState()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	target := s.path(username)
	tmp, err := os.CreateTemp(s.dir, "."+sanitize(username)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to stage session state: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to flush session state: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= renameAttempts; attempt++ {
		lastErr = os.Rename(tmpName, target)
		if lastErr == nil {
			return nil
		}
		s.logger.Warn("session state rename failed, retrying",
			zap.String("username", username),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		time.Sleep(renameBackoff)
	}

	os.Remove(tmpName)
	return fmt.Errorf("failed to persist session state after %d attempts: %w",
		renameAttempts, lastErr)
}

// Delete removes an account's persisted state. Missing files are not errors.
func (s *Store) Delete(username string) error {
	if err := os.Remove(s.path(username)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session state: %w", err)
	}
	return nil
}

func (s *Store) path(username string) string {
	return filepath.Join(s.dir, sanitize(username)+".json")
}

// sanitize keeps account usernames from escaping the store directory.
func sanitize(username string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_")
	return replacer.Replace(username)
}
