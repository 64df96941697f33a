package fileutil

import (
	"context"
	"math/rand/v2"
	"runtime"
	"syscall"
	"time"

	"github.com/mrgoonie/claudekit-cli-sub009/internal/errors"
)

// RetryPolicy bounds how often and how long a transient I/O failure is retried.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy is 3 attempts starting at 50ms, capped at 500ms.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:  3,
	BaseDelay: 50 * time.Millisecond,
	MaxDelay:  500 * time.Millisecond,
}

// IsTransient reports whether err is an I/O failure worth retrying: a busy or
// locked file, or a permission error on Windows where antivirus and indexers
// briefly hold handles.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.ETXTBSY) {
		return true
	}
	return runtime.GOOS == "windows" && errors.Is(err, syscall.EPERM)
}

// Retry runs fn until it succeeds, fails with a non-transient error, the
// attempts are exhausted or ctx is done. Delays double from BaseDelay with
// +/-25% jitter, capped at MaxDelay.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := policy.BaseDelay
	if delay <= 0 {
		delay = DefaultRetryPolicy.BaseDelay
	}
	maxDelay := policy.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultRetryPolicy.MaxDelay
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		jitter := time.Duration(float64(delay) * (rand.Float64()*0.5 - 0.25))
		t := time.NewTimer(delay + jitter)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Wrap(ctx.Err(), "retry interrupted")
		case <-t.C:
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return errors.Wrapf(err, "giving up after %d attempts", attempts)
}
