package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
)

// Rule is a fixed-window ceiling: at most Limit hits per Window
type Rule struct {
	Limit  int
	Window time.Duration
}

// Result describes the outcome of one hit
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter applies one Rule. Hits go to the primary store; when it is nil or
// fails they go to the in-process fallback.
type Limiter struct {
	name     string
	rule     Rule
	primary  *limiter.Limiter
	fallback *limiter.Limiter
}

func NewLimiter(name string, rule Rule, primary, fallback limiter.Store) *Limiter {
	rate := limiter.Rate{Period: rule.Window, Limit: int64(rule.Limit)}
	l := &Limiter{name: name, rule: rule, fallback: limiter.New(fallback, rate)}
	if primary != nil {
		l.primary = limiter.New(primary, rate)
	}
	return l
}

func (l *Limiter) Name() string { return l.name }
func (l *Limiter) Rule() Rule   { return l.rule }

// Allow records a hit for key. Once the counter exceeds the limit, Allowed is false.
func (l *Limiter) Allow(ctx context.Context, key string) Result {
	fullKey := l.name + ":" + key

	var (
		lc  limiter.Context
		err error
	)
	if l.primary != nil {
		lc, err = l.primary.Get(ctx, fullKey)
		if err != nil {
			slog.WarnContext(ctx, "rate limit store failed, using memory", "limiter", l.name, "error", err)
		}
	}
	if l.primary == nil || err != nil {
		if lc, err = l.fallback.Get(ctx, fullKey); err != nil {
			slog.ErrorContext(ctx, "rate limit fallback failed", "limiter", l.name, "error", err)
			return Result{Allowed: true, Limit: l.rule.Limit, Remaining: l.rule.Limit, ResetAt: time.Now().Add(l.rule.Window)}
		}
	}

	return Result{
		Allowed:   !lc.Reached,
		Limit:     int(lc.Limit),
		Remaining: int(lc.Remaining),
		ResetAt:   time.Unix(lc.Reset, 0),
	}
}

// Set holds one limiter per route category
type Set struct {
	limiters map[string]*Limiter
}

// NewSet builds limiters for rules. Redis backs them when client answers a ping.
func NewSet(ctx context.Context, client *redis.Client, rules map[string]Rule) *Set {
	memory := NewMemoryStore(time.Minute)

	var primary limiter.Store
	if client != nil {
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, rate limits held in memory", "error", err)
		} else if store, err := NewRedisStore(client); err != nil {
			slog.Warn("redis rate limit store unavailable, rate limits held in memory", "error", err)
		} else {
			primary = store
		}
	}

	s := &Set{limiters: make(map[string]*Limiter, len(rules))}
	for name, rule := range rules {
		s.limiters[name] = NewLimiter(name, rule, primary, memory)
	}
	return s
}

// Get returns the limiter for a category, or nil when none is configured
func (s *Set) Get(name string) *Limiter {
	return s.limiters[name]
}
