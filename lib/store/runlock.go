package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattsayar/postnotify/config"
	"go.uber.org/zap"
)

const (
	lockFile = "run.lock"

	// A marker older than this is presumed abandoned by a crashed run.
	staleAfter = 30 * time.Minute
)

// RunLock guards the scheduled feed check against overlapping with itself.
// The marker file holds the acquisition timestamp; a younger marker means a
// genuine conflict, an older one a crashed holder.
type RunLock struct {
	log  *zap.Logger
	path string

	// Serializes acquire/release within this process. The marker file itself
	// is created with O_EXCL, so a second process loses the create race.
	mu sync.Mutex
}

func NewRunLock(log *zap.Logger, cfg *config.Config) *RunLock {
	return &RunLock{log: log, path: filepath.Join(cfg.DataDir, lockFile)}
}

// Acquire claims the lock. A false return with nil error means another run
// is in progress and this cycle should be skipped; it is not an error.
func (l *RunLock) Acquire(now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if data, err := os.ReadFile(l.path); err == nil {
		created, parseErr := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
		if parseErr == nil && now.Sub(created) < staleAfter {
			return false, nil
		}
		if parseErr != nil {
			l.log.Sugar().Warnf("Lock marker is unreadable (%v), treating holder as crashed", parseErr)
		} else {
			l.log.Sugar().Warnf("Found stale lock marker (%.2f minutes old), proceeding", now.Sub(created).Minutes())
		}
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return false, fmt.Errorf("remove stale lock marker: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("read lock marker: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			// Another run claimed the marker between the check and the create.
			return false, nil
		}
		return false, fmt.Errorf("create lock marker: %w", err)
	}
	if _, err := f.WriteString(now.Format(time.RFC3339)); err != nil {
		f.Close()
		return false, fmt.Errorf("write lock marker: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("write lock marker: %w", err)
	}
	return true, nil
}

// Release removes the marker. Must be reachable from every exit of the
// guarded cycle, so failures are only logged.
func (l *RunLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		l.log.Sugar().Errorw("Failed to remove lock marker", "err", err)
	}
}
