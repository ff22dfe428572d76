package image

import (
	"context"
	"errors"
	"time"
)

// ErrPollExhausted is returned when a polling loop hits its attempt ceiling
// before the remote job reaches a terminal state. Adapters translate it to a
// timeout-kind ProviderError.
var ErrPollExhausted = errors.New("image: poll attempt ceiling exceeded")

// SleepFunc waits for the given duration or returns early with the context's
// error. Tests substitute a fake to avoid real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepWithContext is the production SleepFunc.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// pollUntil runs step at a fixed interval until it reports done, the context
// is cancelled, or maxAttempts is reached. Every provider that submits an
// async job and polls for the result shares this loop instead of hand-rolling
// a sleep-in-a-loop per adapter.
func pollUntil(ctx context.Context, interval time.Duration, maxAttempts int, sleep SleepFunc, step func(ctx context.Context) (done bool, err error)) error {
	if sleep == nil {
		sleep = SleepWithContext
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := sleep(ctx, interval); err != nil {
			return err
		}
		done, err := step(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return ErrPollExhausted
}
