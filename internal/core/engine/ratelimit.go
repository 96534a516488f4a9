package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultIdentity is the identity used when callers omit one.
const DefaultIdentity = "default"

// QuotaConfig configures one provider quota: the rejecting limiter's
// ceiling and window, plus the response-cache TTL used by the guard.
type QuotaConfig struct {
	MaxCalls int
	Window   time.Duration
	CacheTTL time.Duration
}

// Validate reports configuration errors. A MaxCalls of zero is legal
// and permanently denies.
func (c QuotaConfig) Validate() error {
	if c.MaxCalls < 0 {
		return errors.New("max calls must not be negative")
	}
	if c.Window <= 0 {
		return errors.New("window must be positive")
	}
	return nil
}

// Limiter is a sliding-window rejecting rate limiter. It keeps a
// per-identity log of call timestamps inside the current window and
// answers whether another call is allowed now; it never blocks.
// Safe for concurrent use; one mutex covers every operation so a
// combined Acquire is atomic.
type Limiter struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	calls    map[string][]time.Time

	// Clock overrides the time source for tests.
	Clock func() time.Time
}

// Decision reports the limiter's answer for one identity.
type Decision struct {
	Allowed   bool
	Remaining int
	Limit     int
	RetryIn   time.Duration
	ResetAt   time.Time
	Message   string
}

// IdentityUsage reports the live window state for one identity.
type IdentityUsage struct {
	Identity  string        `json:"identity"`
	Used      int           `json:"used"`
	Remaining int           `json:"remaining"`
	ResetIn   time.Duration `json:"reset_in"`
}

// NewLimiter builds a limiter from cfg. Configuration errors are
// rejected here, never at call time.
func NewLimiter(cfg QuotaConfig) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rate limiter config: %w", err)
	}

	return &Limiter{
		maxCalls: cfg.MaxCalls,
		window:   cfg.Window,
		calls:    make(map[string][]time.Time),
	}, nil
}

// MaxCalls returns the per-window ceiling.
func (l *Limiter) MaxCalls() int {
	if l == nil {
		return 0
	}
	return l.maxCalls
}

// Window returns the sliding window duration.
func (l *Limiter) Window() time.Duration {
	if l == nil {
		return 0
	}
	return l.window
}

// Check answers whether identity may make a call right now. It never
// records the call: Record is the single enforcement point, and
// concurrent callers must not rely on Check alone.
func (l *Limiter) Check(identity string) Decision {
	if l == nil {
		return Decision{Allowed: true}
	}

	identity = normalizeIdentity(identity)

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.decideLocked(identity, l.now())
}

// Record logs a call for identity if the window has capacity. It
// returns false, without mutating, when the identity is at the
// ceiling; exhaustion is an expected condition, not an error. Record
// is the only operation that mutates the call log.
func (l *Limiter) Record(identity string) bool {
	if l == nil {
		return true
	}

	identity = normalizeIdentity(identity)

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.recordLocked(identity, l.now())
}

// Acquire performs check-then-record as one critical section: when it
// reports allowed, the call has been recorded. Racing callers never
// push an identity past the ceiling.
func (l *Limiter) Acquire(identity string) Decision {
	if l == nil {
		return Decision{Allowed: true}
	}

	identity = normalizeIdentity(identity)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	decision := l.decideLocked(identity, now)
	if !decision.Allowed {
		return decision
	}

	l.recordLocked(identity, now)

	count, oldest := l.inWindowLocked(identity, now)
	decision.Remaining = l.maxCalls - count
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	decision.ResetAt = oldest.Add(l.window)
	decision.Message = fmt.Sprintf("%d calls remaining", decision.Remaining)

	return decision
}

// Remaining returns the number of calls identity may still make in
// the current window, floored at zero.
func (l *Limiter) Remaining(identity string) int {
	if l == nil {
		return 0
	}

	identity = normalizeIdentity(identity)

	l.mu.Lock()
	defer l.mu.Unlock()

	count, _ := l.inWindowLocked(identity, l.now())
	remaining := l.maxCalls - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// ResetIn returns the time until the oldest in-window call expires,
// which is the earliest moment Remaining can increase. The second
// return is false when identity has no in-window calls.
func (l *Limiter) ResetIn(identity string) (time.Duration, bool) {
	if l == nil {
		return 0, false
	}

	identity = normalizeIdentity(identity)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	count, oldest := l.inWindowLocked(identity, now)
	if count == 0 {
		return 0, false
	}

	remaining := oldest.Add(l.window).Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Reset clears the call history for one identity.
func (l *Limiter) Reset(identity string) {
	if l == nil {
		return
	}

	identity = normalizeIdentity(identity)

	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.calls, identity)
}

// ResetAll clears the call history for every identity.
func (l *Limiter) ResetAll() {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls = make(map[string][]time.Time)
}

// Snapshot reports the live window state for every identity with
// in-window calls, sorted by identity.
func (l *Limiter) Snapshot() []IdentityUsage {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	usages := make([]IdentityUsage, 0, len(l.calls))

	for identity := range l.calls {
		count, oldest := l.inWindowLocked(identity, now)
		if count == 0 {
			continue
		}

		remaining := l.maxCalls - count
		if remaining < 0 {
			remaining = 0
		}

		resetIn := oldest.Add(l.window).Sub(now)
		if resetIn < 0 {
			resetIn = 0
		}

		usages = append(usages, IdentityUsage{
			Identity:  identity,
			Used:      count,
			Remaining: remaining,
			ResetIn:   resetIn,
		})
	}

	sort.Slice(usages, func(i, j int) bool {
		return usages[i].Identity < usages[j].Identity
	})

	return usages
}

// decideLocked evaluates the window for identity without mutating it.
func (l *Limiter) decideLocked(identity string, now time.Time) Decision {
	count, oldest := l.inWindowLocked(identity, now)

	decision := Decision{Limit: l.maxCalls}
	decision.Remaining = l.maxCalls - count
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	if count > 0 {
		decision.ResetAt = oldest.Add(l.window)
	}

	if count >= l.maxCalls {
		var retry time.Duration
		if count > 0 {
			retry = oldest.Add(l.window).Sub(now)
			if retry < 0 {
				retry = 0
			}
		}
		decision.RetryIn = retry
		decision.Message = fmt.Sprintf("Rate limit reached. Try again in %ds", int(retry.Seconds()))
		return decision
	}

	decision.Allowed = true
	decision.Message = fmt.Sprintf("%d calls remaining", decision.Remaining)
	return decision
}

// recordLocked prunes identity's log in place and appends now when
// under the ceiling.
func (l *Limiter) recordLocked(identity string, now time.Time) bool {
	if l.calls == nil {
		l.calls = make(map[string][]time.Time)
	}

	cutoff := now.Add(-l.window)
	kept := l.calls[identity][:0]
	for _, ts := range l.calls[identity] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.maxCalls {
		l.calls[identity] = kept
		return false
	}

	l.calls[identity] = append(kept, now)
	return true
}

// inWindowLocked counts identity's in-window calls and reports the
// oldest of them. It never mutates the stored log.
func (l *Limiter) inWindowLocked(identity string, now time.Time) (int, time.Time) {
	cutoff := now.Add(-l.window)

	count := 0
	var oldest time.Time
	for _, ts := range l.calls[identity] {
		if !ts.After(cutoff) {
			continue
		}
		if count == 0 || ts.Before(oldest) {
			oldest = ts
		}
		count++
	}

	return count, oldest
}

func (l *Limiter) now() time.Time {
	if l != nil && l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}

func normalizeIdentity(identity string) string {
	if strings.TrimSpace(identity) == "" {
		return DefaultIdentity
	}
	return identity
}
