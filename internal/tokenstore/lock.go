package tokenstore

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// LockFile is the advisory lock file inside the credential directory.
const LockFile = ".lock"

// DirLock serializes processes working on the same credential directory.
type DirLock struct {
	flock      *flock.Flock
	retryDelay time.Duration
}

// NewDirLock creates a lock for dir. The directory must exist.
func NewDirLock(dir string) *DirLock {
	return &DirLock{
		flock:      flock.New(filepath.Join(dir, LockFile)),
		retryDelay: 100 * time.Millisecond,
	}
}

// Lock blocks until the lock is held or ctx is done. The returned func releases it.
func (l *DirLock) Lock(ctx context.Context) (func() error, error) {
	locked, err := l.flock.TryLockContext(ctx, l.retryDelay)
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", l.flock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("could not lock %s", l.flock.Path())
	}
	return l.flock.Unlock, nil
}
