// Package lock keeps two pipeline runs from sharing an agent work directory.
package lock

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/elgendy/vsts-agent/internal/errors"
)

// DirName is the lock directory created inside the work directory.
const DirName = ".vsts-pi.lock"

const infoFileName = "info.json"

// pollInterval is how often a waiting Acquire retries.
var pollInterval = 2 * time.Second

// ErrLocked is returned by TryAcquire when another run holds the lock.
var ErrLocked = stderrors.New("work directory is locked by another run")

// Config controls lock waiting and stale lock cleanup.
type Config struct {
	// Timeout is how long Acquire waits for a held lock. Zero means one attempt.
	Timeout time.Duration
	// Stale is the age after which a lock is assumed abandoned. Zero disables
	// the age check; locks whose holder died on this host are always stale.
	Stale time.Duration
}

// Lock represents an acquired lock on a work directory.
type Lock struct {
	Dir  string    // The lock directory path
	Info *LockInfo // Info about the lock holder (us)
}

// Acquire takes the lock on workDir, waiting up to cfg.Timeout for another
// run to release it. It uses mkdir as the atomic primitive. Stale locks
// (older than cfg.Stale) are removed.
func Acquire(ctx context.Context, workDir string, cfg Config, pipeline string) (*Lock, error) {
	lockDir := filepath.Join(workDir, DirName)
	start := time.Now()

	for {
		l, err := TryAcquire(workDir, cfg, pipeline)
		if err == nil {
			return l, nil
		}
		if !stderrors.Is(err, ErrLocked) {
			return nil, err
		}

		if time.Since(start) >= cfg.Timeout {
			msg := "Another pipeline run is using " + workDir
			if cfg.Timeout > 0 {
				msg = fmt.Sprintf("Timed out after %s waiting for another pipeline run to finish", cfg.Timeout)
			}
			return nil, errors.New(errors.ErrLock, msg,
				fmt.Sprintf("Lock held by: %s. Wait for it to finish, or remove %s if it was abandoned.", Holder(lockDir), lockDir))
		}

		select {
		case <-ctx.Done():
			return nil, errors.WrapWithCode(context.Cause(ctx), errors.ErrLock,
				"Gave up waiting for the work directory lock",
				"Lock held by: "+Holder(lockDir))
		case <-time.After(pollInterval):
		}
	}
}

// TryAcquire attempts to take the lock once. It returns ErrLocked if another
// process holds it.
func TryAcquire(workDir string, cfg Config, pipeline string) (*Lock, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrLock,
			"Couldn't create the work directory "+workDir,
			"Check permissions on the agent work directory")
	}

	lockDir := filepath.Join(workDir, DirName)
	infoFile := filepath.Join(lockDir, infoFileName)

	if isLockStale(infoFile, cfg.Stale) {
		_ = os.RemoveAll(lockDir)
	}

	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if os.IsExist(err) {
			return nil, ErrLocked
		}
		return nil, errors.WrapWithCode(err, errors.ErrLock,
			"Failed to create lock directory "+lockDir,
			"Check permissions on the agent work directory")
	}

	info := NewLockInfo(pipeline)
	data, err := info.Marshal()
	if err == nil {
		err = os.WriteFile(infoFile, data, 0o644)
	}
	if err != nil {
		// Clean up the lock dir if we can't write info
		_ = os.RemoveAll(lockDir)
		return nil, errors.WrapWithCode(err, errors.ErrLock,
			"Failed to write lock info file",
			"Check disk space and permissions on the work directory")
	}

	return &Lock{Dir: lockDir, Info: info}, nil
}

// Release removes the lock, allowing others to acquire it.
func (l *Lock) Release() error {
	if l == nil || l.Dir == "" {
		return nil // Nothing to release
	}
	if err := os.RemoveAll(l.Dir); err != nil {
		return errors.WrapWithCode(err, errors.ErrLock,
			fmt.Sprintf("Failed to remove lock directory: %s", l.Dir),
			"Remove it by hand before the next run")
	}
	return nil
}

// IsLocked reports whether workDir holds a live (non-stale) lock.
func IsLocked(workDir string, cfg Config) bool {
	lockDir := filepath.Join(workDir, DirName)
	if _, err := os.Stat(lockDir); err != nil {
		return false
	}
	return !isLockStale(filepath.Join(lockDir, infoFileName), cfg.Stale)
}

// Holder returns information about who holds the lock (if readable).
func Holder(lockDir string) string {
	data, err := os.ReadFile(filepath.Join(lockDir, infoFileName))
	if err != nil {
		return "unknown"
	}

	info, err := ParseLockInfo(data)
	if err != nil {
		// Fall back to raw content
		return strings.TrimSpace(string(data))
	}

	return info.String()
}

// isLockStale reports whether the lock in infoFile was abandoned: its holder
// died on this host, or it is older than staleAfter. Unreadable info counts
// as live.
func isLockStale(infoFile string, staleAfter time.Duration) bool {
	data, err := os.ReadFile(infoFile)
	if err != nil {
		return false
	}
	info, err := ParseLockInfo(data)
	if err != nil {
		return false
	}
	if info.Orphaned() {
		return true
	}
	return staleAfter > 0 && info.Age() > staleAfter
}
