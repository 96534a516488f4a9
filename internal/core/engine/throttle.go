package engine

import (
	"context"
	"errors"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// throttleWindow is the budget window for the blocking throttle.
const throttleWindow = time.Minute

// Throttle paces a strictly sequential API client: it tracks a
// rolling per-minute budget and a minimum inter-call spacing, and
// sleeps the caller when either would be violated, instead of
// rejecting. It assumes exclusive use by one caller and is NOT safe
// to share across goroutines.
type Throttle struct {
	callsPerMinute int
	minInterval    time.Duration
	callCount      int
	windowStart    time.Time
	lastCall       time.Time

	// Clock and Sleep override the time source and sleep behavior
	// for tests. The default sleep honors ctx cancellation.
	Clock  func() time.Time
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *logging.Logger
}

// NewThrottle builds a throttle for the given per-minute budget.
// A non-positive budget is a configuration error.
func NewThrottle(callsPerMinute int) (*Throttle, error) {
	if callsPerMinute <= 0 {
		return nil, errors.New("calls per minute must be positive")
	}

	return &Throttle{
		callsPerMinute: callsPerMinute,
		minInterval:    throttleWindow / time.Duration(callsPerMinute),
	}, nil
}

// CallsPerMinute returns the configured per-minute budget.
func (t *Throttle) CallsPerMinute() int {
	if t == nil {
		return 0
	}
	return t.callsPerMinute
}

// Pace blocks until the next call is safe to make, then counts it.
// It returns the total time slept. Two separate waits apply: the
// hard per-minute ceiling, and a minimum spacing of window/budget
// between consecutive calls so bursts are smoothed even when the
// budget has room. When the ceiling forces a sleep, the counter
// restarts at 1 so the call that triggered the wait still counts.
//
// Cancelling ctx aborts the wait without counting the call.
func (t *Throttle) Pace(ctx context.Context) (time.Duration, error) {
	if t == nil {
		return 0, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var slept time.Duration
	now := t.now()

	if now.Sub(t.windowStart) >= throttleWindow {
		t.callCount = 0
		t.windowStart = now
	}

	if t.callCount >= t.callsPerMinute {
		sleepTime := throttleWindow - now.Sub(t.windowStart)
		if sleepTime > 0 {
			if t.Logger != nil {
				t.Logger.Info("Rate limit reached, sleeping",
					zap.Duration("sleep", sleepTime))
			}
			if err := t.sleep(ctx, sleepTime); err != nil {
				return slept, err
			}
			slept += sleepTime
		}
		t.callCount = 0
		t.windowStart = t.now()
	}

	now = t.now()
	if wait := t.minInterval - now.Sub(t.lastCall); wait > 0 {
		if err := t.sleep(ctx, wait); err != nil {
			return slept, err
		}
		slept += wait
	}

	t.lastCall = t.now()
	t.callCount++

	return slept, nil
}

func (t *Throttle) sleep(ctx context.Context, d time.Duration) error {
	if t.Sleep != nil {
		return t.Sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *Throttle) now() time.Time {
	if t != nil && t.Clock != nil {
		return t.Clock()
	}
	return time.Now().UTC()
}
