// Package filelock serialises work on a key across processes. Each key owns
// one lock file under the lock directory; lock files are left in place so
// every process contends on the same inode.
package filelock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const pollInterval = 10 * time.Millisecond

// Locker hands out exclusive per-key locks backed by files in dir.
type Locker struct {
	dir string
}

// Lock blocks until the lock for key is held or ctx is done, and returns the
// release function.
func (l *Locker) Lock(ctx context.Context, key string) (unlock func(), err error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return nil, fmt.Errorf("invalid lock key %q", key)
	}
	path := filepath.Join(l.dir, key+".lock")
	for {
		release, ok, err := acquire(path)
		if err != nil {
			return nil, fmt.Errorf("failed to lock %s: %w", key, err)
		}
		if ok {
			var once sync.Once
			return func() { once.Do(release) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// New creates a Locker keeping its lock files in dir.
func New(dir string) (*Locker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory %s: %w", dir, err)
	}
	return &Locker{dir: dir}, nil
}
