package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	serrors "github.com/Aman-CERP/scry/internal/errors"
)

// lockRetryDelay is how often a waiting writer polls the lock.
const lockRetryDelay = 25 * time.Millisecond

// FileLock serializes writers to a store file across processes.
// The lock lives at <store>.lock next to the store it guards.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewFileLock returns an unlocked lock for the store at storePath.
func NewFileLock(storePath string) *FileLock {
	lockPath := storePath + ".lock"
	return &FileLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Lock waits for the lock until ctx is done. A lock still held by another
// process when ctx ends is reported as a store-locked error.
func (l *FileLock) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return serrors.New(serrors.ErrCodeStoreLocked,
			fmt.Sprintf("store is locked: %s", l.path), ctx.Err()).WithDetail("lock", l.path)
	}

	l.locked = true
	return nil
}

// TryLock takes the lock without waiting.
func (l *FileLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Unlocking an unlocked FileLock is a no-op.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}
