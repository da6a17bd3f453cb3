package oracle

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPerMinute = 20
	DefaultPerDay    = 1000

	minSpacing = 50 * time.Millisecond
	day        = 24 * time.Hour
)

// Quota is what is left of the request budget.
type Quota struct {
	Minute int
	Day    int
}

// RateLimiter keeps oracle calls inside a per-minute sliding window and a
// rolling daily budget. Callers queue on Wait; one caller is admitted at a
// time.
type RateLimiter struct {
	perMinute int
	perDay    int
	logger    *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	turn chan struct{}

	mu       sync.Mutex
	window   []time.Time
	today    int
	dayStart time.Time
}

type LimiterOption func(*RateLimiter)

// WithClock replaces the wall clock and the sleep used while waiting.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) LimiterOption {
	return func(r *RateLimiter) {
		r.now = now
		r.sleep = sleep
	}
}

func NewRateLimiter(perMinute, perDay int, logger *zap.Logger, opts ...LimiterOption) *RateLimiter {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	if perDay <= 0 {
		perDay = DefaultPerDay
	}
	r := &RateLimiter{
		perMinute: perMinute,
		perDay:    perDay,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepContext,
		turn:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.dayStart = r.now()
	return r
}

// Wait blocks until a request may be sent and records it.
func (r *RateLimiter) Wait(ctx context.Context) error {
	select {
	case r.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-r.turn }()

	for {
		now := r.now()

		r.mu.Lock()
		r.prune(now)
		if now.Sub(r.dayStart) > day {
			r.today = 0
			r.dayStart = now
		}

		if r.today >= r.perDay {
			wait := r.dayStart.Add(day).Sub(now)
			r.mu.Unlock()

			r.logger.Warn("Daily oracle quota reached, waiting for reset", zap.Duration("wait", wait))
			if err := r.sleep(ctx, wait); err != nil {
				return err
			}

			r.mu.Lock()
			r.today = 0
			r.dayStart = r.now()
			r.mu.Unlock()
			continue
		}

		if len(r.window) < r.perMinute-1 {
			r.record(now)
			r.mu.Unlock()
			return nil
		}

		// Spread the remaining slots over the time until the oldest
		// request leaves the window.
		var spacing time.Duration
		if untilFree := time.Minute - now.Sub(r.window[0]); untilFree > 0 {
			free := r.perMinute - len(r.window)
			if free < 0 {
				free = 0
			}
			spacing = untilFree / time.Duration(free+1)
			if spacing < minSpacing {
				spacing = minSpacing
			}
		}
		r.mu.Unlock()

		if spacing > 0 {
			r.logger.Debug("Oracle rate limit approaching", zap.Duration("spacing", spacing))
			if err := r.sleep(ctx, spacing); err != nil {
				return err
			}
		}

		r.mu.Lock()
		r.record(r.now())
		r.mu.Unlock()
		return nil
	}
}

// Remaining reports the unused part of both budgets.
func (r *RateLimiter) Remaining() Quota {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	inWindow := 0
	for _, t := range r.window {
		if now.Sub(t) < time.Minute {
			inWindow++
		}
	}
	return Quota{
		Minute: r.perMinute - inWindow,
		Day:    r.perDay - r.today,
	}
}

func (r *RateLimiter) prune(now time.Time) {
	i := 0
	for i < len(r.window) && now.Sub(r.window[i]) >= time.Minute {
		i++
	}
	r.window = r.window[i:]
}

func (r *RateLimiter) record(t time.Time) {
	r.window = append(r.window, t)
	r.today++
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
