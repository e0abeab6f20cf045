package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/metrics"
)

// Service names with a known spacing.
const (
	ServiceGoogleCSE  = "google_cse"
	ServiceOpenverse  = "openverse"
	ServiceLLM        = "llm"
	ServiceDuckDuckGo = "duckduckgo"
	ServiceWikipedia  = "wikipedia"
	ServiceUnsplash   = "unsplash"
	ServiceArxiv      = "arxiv"
	ServiceBrave      = "brave"
	ServiceCrossref   = "crossref"
	ServiceNews       = "news"
)

// DefaultIntervals is the minimum spacing between two calls to each service.
var DefaultIntervals = map[string]time.Duration{
	ServiceGoogleCSE:  time.Second,
	ServiceOpenverse:  time.Second,
	ServiceLLM:        200 * time.Millisecond,
	ServiceDuckDuckGo: 2 * time.Second,
	ServiceWikipedia:  500 * time.Millisecond,
	ServiceUnsplash:   1500 * time.Millisecond,
	ServiceArxiv:      3 * time.Second,
	ServiceBrave:      3 * time.Second,
	ServiceCrossref:   time.Second,
	ServiceNews:       time.Second,
}

const (
	defaultInterval    = time.Second
	defaultBackoffUnit = 5 * time.Second
)

// Config overrides the interval table and the linear backoff step.
type Config struct {
	Intervals   map[string]time.Duration
	BackoffUnit time.Duration
}

// Limiter spaces calls per service. A caller holds the service gate for the
// whole wait; the gap is counted from when the previous caller was released.
type Limiter struct {
	mu          sync.RWMutex
	services    map[string]*service
	intervals   map[string]time.Duration
	backoffUnit time.Duration
	logger      *slog.Logger

	// onGrant observes every release under the service gate.
	onGrant func(name string, at time.Time)
}

type service struct {
	gate     chan struct{}
	interval time.Duration
	last     time.Time // guarded by gate
	lastCall atomic.Int64
}

// New builds a limiter from DefaultIntervals merged with cfg overrides.
func New(cfg Config, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	intervals := make(map[string]time.Duration, len(DefaultIntervals)+len(cfg.Intervals))
	for name, d := range DefaultIntervals {
		intervals[name] = d
	}
	for name, d := range cfg.Intervals {
		if d > 0 {
			intervals[name] = d
		}
	}
	unit := cfg.BackoffUnit
	if unit <= 0 {
		unit = defaultBackoffUnit
	}
	return &Limiter{
		services:    map[string]*service{},
		intervals:   intervals,
		backoffUnit: unit,
		logger:      logger,
	}
}

func (l *Limiter) service(name string) *service {
	l.mu.RLock()
	svc, ok := l.services[name]
	l.mu.RUnlock()
	if ok {
		return svc
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if svc, ok = l.services[name]; ok {
		return svc
	}
	interval, ok := l.intervals[name]
	if !ok {
		interval = defaultInterval
	}
	svc = &service{
		gate:     make(chan struct{}, 1),
		interval: interval,
	}
	l.services[name] = svc
	return svc
}

// WaitIfNeeded blocks until at least the service interval has passed since
// the previous call was let through, then stamps this call. It only fails
// when ctx ends first.
func (l *Limiter) WaitIfNeeded(ctx context.Context, name string) error {
	svc := l.service(name)

	select {
	case svc.gate <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("wait for %s: %w", name, ctx.Err())
	}
	defer func() { <-svc.gate }()

	if !svc.last.IsZero() {
		if wait := time.Until(svc.last.Add(svc.interval)); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("wait for %s: %w", name, ctx.Err())
			case <-timer.C:
			}
		}
	}

	now := time.Now()
	svc.last = now
	svc.lastCall.Store(now.UnixNano())
	if l.onGrant != nil {
		l.onGrant(name, now)
	}
	return nil
}

// Interval returns the configured spacing for a service.
func (l *Limiter) Interval(name string) time.Duration {
	return l.service(name).interval
}

// LastCall returns when the service was last let through, zero if never.
func (l *Limiter) LastCall(name string) time.Time {
	ns := l.service(name).lastCall.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// HandleRateLimit decides whether a 429 from name is worth retrying. It sleeps
// retryCount backoff units before answering true and never panics or errors.
func (l *Limiter) HandleRateLimit(ctx context.Context, name string, retryCount, maxRetries int) bool {
	if retryCount >= maxRetries {
		l.logger.Warn("rate limit retries exhausted", "service", name, "retries", retryCount)
		metrics.RecordRateLimit(name, "give_up")
		return false
	}

	wait := time.Duration(retryCount) * l.backoffUnit
	l.logger.Info("rate limited, backing off", "service", name, "retry", retryCount+1, "wait", wait)
	metrics.RecordRateLimit(name, "retry")

	if wait <= 0 {
		return true
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
