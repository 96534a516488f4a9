package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status classifies a guarded call outcome.
type Status int

const (
	StatusUnknown  Status = 0
	StatusSuccess  Status = 1
	StatusCacheHit Status = 2
	StatusDenied   Status = 3
)

// Outcome is the single typed result of a guarded call. A quota
// denial is an Outcome, not an error: only the wrapped work's own
// failure crosses the boundary as an error.
type Outcome struct {
	Status    Status
	Value     []byte
	FromCache bool
	Message   string
	Remaining int
	RetryIn   time.Duration
}

// WorkFunc performs the wrapped operation and returns its payload.
type WorkFunc func(ctx context.Context) ([]byte, error)

// ResponseCache is the cache surface the guard consumes.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Guard composes the response cache and the rejecting limiter around
// an arbitrary unit of work: a cache hit short-circuits before the
// limiter is consulted, a quota denial rejects without running the
// work, and a successful result is cached for TTL.
type Guard struct {
	Cache   ResponseCache
	Limiter *Limiter
	TTL     time.Duration
}

// Do executes work behind the cache and the quota check, writing a
// successful result back with the guard's configured TTL.
func (g *Guard) Do(ctx context.Context, cacheKey, identity string, work WorkFunc) (*Outcome, error) {
	var ttl time.Duration
	if g != nil {
		ttl = g.TTL
	}
	return g.DoTTL(ctx, cacheKey, identity, ttl, work)
}

// DoTTL is Do with a per-call cache TTL. A non-positive TTL skips
// the cache write.
//
// Order is load-bearing: the cache is consulted before the quota so
// that a scarce quota is never spent on a question already answered.
// A denied call returns a StatusDenied outcome and a nil error. A
// failing work call propagates its error verbatim and is never
// cached; the quota slot it consumed is not refunded, since the
// remote request may already have been sent.
func (g *Guard) DoTTL(ctx context.Context, cacheKey, identity string, ttl time.Duration, work WorkFunc) (*Outcome, error) {
	if work == nil {
		return nil, errors.New("work function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if g != nil && g.Cache != nil && cacheKey != "" {
		if value, ok, err := g.Cache.Get(ctx, cacheKey); err == nil && ok {
			return &Outcome{
				Status:    StatusCacheHit,
				Value:     value,
				FromCache: true,
				Message:   "Served from cache",
			}, nil
		}
	}

	if g != nil && g.Limiter != nil {
		decision := g.Limiter.Acquire(identity)
		if !decision.Allowed {
			return &Outcome{
				Status:    StatusDenied,
				Message:   decision.Message,
				Remaining: decision.Remaining,
				RetryIn:   decision.RetryIn,
			}, nil
		}
	}

	value, err := work(ctx)
	if err != nil {
		return nil, err
	}

	if g != nil && g.Cache != nil && cacheKey != "" && ttl > 0 {
		// Cache write failures degrade to a skipped write; they must
		// not fail a call whose work already succeeded.
		_ = g.Cache.Set(ctx, cacheKey, value, ttl)
	}

	outcome := &Outcome{
		Status:  StatusSuccess,
		Value:   value,
		Message: "Success",
	}
	if g != nil && g.Limiter != nil {
		outcome.Remaining = g.Limiter.Remaining(identity)
		outcome.Message = fmt.Sprintf("Success. %d calls remaining", outcome.Remaining)
	}

	return outcome, nil
}
