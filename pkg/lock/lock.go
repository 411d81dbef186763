package lock

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/coordkernel/coordkernel/pkg/log"
	"github.com/coordkernel/coordkernel/pkg/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// ErrLockTimeout is returned when a lock cannot be acquired within the
// requested timeout. See spec.md §7, kind LockTimeout.
var ErrLockTimeout = errors.New("lock: timeout acquiring lock")

// DefaultTimeout matches spec.md §6.4's LOCK_TIMEOUT_SECONDS default.
const DefaultTimeout = 30 * time.Second

const retryInterval = 10 * time.Millisecond

// pathFor returns the stable lock file path paired with the protected path.
func pathFor(path string) string {
	return path + ".lock"
}

// WithLock acquires an advisory exclusive lock on the file paired with
// path, invokes fn, and releases the lock on every exit path including a
// panic inside fn. It fails with ErrLockTimeout if the lock is not
// acquired within timeout.
func WithLock(path string, timeout time.Duration, fn func() error) (err error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	lockPath := pathFor(path)

	timer := metrics.NewTimer()
	f, acquireErr := acquire(lockPath, timeout)
	timer.ObserveDurationVec(metrics.LockWaitDuration, path)
	if acquireErr != nil {
		if errors.Is(acquireErr, ErrLockTimeout) {
			metrics.LockTimeoutsTotal.WithLabelValues(path).Inc()
		}
		return acquireErr
	}

	defer func() {
		unlockErr := release(f)
		if r := recover(); r != nil {
			panic(r)
		}
		if err == nil {
			err = unlockErr
		}
	}()

	return fn()
}

func acquire(lockPath string, timeout time.Duration) (*os.File, error) {
	deadline := time.Now().Add(timeout)
	logger := log.WithComponent("lock")

	for {
		f, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0644)
		if err != nil {
			return nil, fmt.Errorf("lock: open %s: %w", lockPath, err)
		}

		flockErr := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if flockErr == nil {
			if err := writeHolderPID(f); err != nil {
				logger.Warn().Err(err).Str("path", lockPath).Msg("failed to record lock holder pid")
			}
			return f, nil
		}
		_ = f.Close()

		if !errors.Is(flockErr, unix.EWOULDBLOCK) && !errors.Is(flockErr, unix.EAGAIN) {
			return nil, fmt.Errorf("lock: flock %s: %w", lockPath, flockErr)
		}

		if reclaimStale(lockPath, logger) {
			continue
		}

		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		time.Sleep(retryInterval)
	}
}

func release(f *os.File) error {
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("lock: unlock %s: %w", f.Name(), err)
	}
	return nil
}

func writeHolderPID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		return err
	}
	return nil
}

// reclaimStale checks whether the process recorded in lockPath is still
// alive. If the recorded holder is gone, it removes the lock file so the
// next acquire attempt can create and lock it fresh, and reports true so
// the caller retries immediately instead of waiting out its poll interval.
func reclaimStale(lockPath string, logger zerolog.Logger) bool {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil || pid <= 0 {
		return false
	}
	if pidAlive(pid) {
		return false
	}
	// Owner is dead; remove so a fresh lock file is created and flocked.
	_ = os.Remove(lockPath)
	return true
}

func pidAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}
