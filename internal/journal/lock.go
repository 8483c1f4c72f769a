package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryInterval is the delay between lock attempts while waiting for
// another supervisor to let go of the endpoint.
const lockRetryInterval = 50 * time.Millisecond

// acquireLock takes an exclusive lock on lockPath, retrying until ctx is
// done. A lock still held when ctx expires yields ErrEndpointLocked.
func acquireLock(ctx context.Context, lockPath string) (*flock.Flock, error) {
	fl := flock.New(lockPath)

	locked, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w (lock %s)", ErrEndpointLocked, lockPath)
		}
		return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock %s)", ErrEndpointLocked, lockPath)
	}
	return fl, nil
}

// releaseLock unlocks and closes fl. The lock file stays on disk; removing
// it could split a lock another process is acquiring.
func releaseLock(log *slog.Logger, fl *flock.Flock) error {
	if fl == nil {
		return nil
	}
	if err := fl.Close(); err != nil {
		log.Debug("failed to release journal lock", "path", fl.Path(), "error", err)
		return fmt.Errorf("release lock %s: %w", fl.Path(), err)
	}
	return nil
}
