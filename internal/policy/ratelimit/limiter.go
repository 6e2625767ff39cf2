// Package ratelimit throttles outbound traffic per registrable domain. Every
// domain owns a set of buckets (e.g. 5/1s and 50/1m); an operation is admitted
// only when all of them have a token, and blocked callers are served in arrival order.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/JakeFAU/text-extraction/internal/domainkey"
	"github.com/JakeFAU/text-extraction/internal/extraction"
	"github.com/JakeFAU/text-extraction/internal/metrics"
)

// DefaultMaxKeys bounds the number of domains tracked when Config.MaxKeys is unset.
const DefaultMaxKeys = 10000

// Config holds rate limiter configuration.
type Config struct {
	// Rates applied to every domain unless Configure installed others first.
	Rates []Rate
	// MaxKeys bounds how many domains keep bucket state; the least recently used is evicted.
	MaxKeys int
	// AcquireTimeout is used when Acquire is called with a non-positive timeout.
	// Zero waits until the context ends.
	AcquireTimeout time.Duration
	Refill         RefillMode
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if len(c.Rates) == 0 {
		return errors.New("ratelimit: at least one rate is required")
	}
	for _, r := range c.Rates {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("ratelimit: %w", err)
		}
	}
	if c.MaxKeys < 0 {
		return errors.New("ratelimit: max keys must be >= 0")
	}
	if c.AcquireTimeout < 0 {
		return errors.New("ratelimit: acquire timeout must be >= 0")
	}
	switch c.Refill {
	case "", RefillWindow, RefillSmooth:
	default:
		return fmt.Errorf("ratelimit: unknown refill mode %q", c.Refill)
	}
	return nil
}

// Permit describes a granted admission.
type Permit struct {
	Key        domainkey.Key
	AdmittedAt time.Time
	Waited     time.Duration
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock injects the clock used for refill and waiting.
func WithClock(clk clockwork.Clock) Option {
	return func(l *Limiter) {
		if clk != nil {
			l.clock = clk
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Limiter manages per-domain bucket sets.
type Limiter struct {
	cfg    Config
	clock  clockwork.Clock
	logger *zap.Logger

	mu   sync.Mutex
	sets *lru.Cache[domainkey.Key, *BucketSet]
	// pinned holds sets pushed out of a full cache while they still had
	// waiters or unexpired admissions. They are dropped once idle.
	pinned map[domainkey.Key]*BucketSet
}

// New creates a new Limiter.
func New(cfg Config, opts ...Option) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxKeys == 0 {
		cfg.MaxKeys = DefaultMaxKeys
	}
	if cfg.Refill == "" {
		cfg.Refill = RefillWindow
	}
	cfg.Rates = append([]Rate(nil), cfg.Rates...)

	l := &Limiter{
		cfg:    cfg,
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop(),
		pinned: make(map[domainkey.Key]*BucketSet),
	}
	for _, opt := range opts {
		opt(l)
	}

	sets, err := lru.New[domainkey.Key, *BucketSet](cfg.MaxKeys)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: create key cache: %w", err)
	}
	l.sets = sets
	return l, nil
}

// Configure returns the bucket set for key, creating it with rates on first use.
// The first caller wins: later calls get the existing set whatever rates they pass.
// Nil or empty rates mean the limiter defaults.
func (l *Limiter) Configure(key domainkey.Key, rates []Rate) *BucketSet {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lookupLocked(key, rates)
}

func (l *Limiter) lookupLocked(key domainkey.Key, rates []Rate) *BucketSet {
	if set, ok := l.sets.Get(key); ok {
		return set
	}
	if set, ok := l.pinned[key]; ok {
		return set
	}
	if len(rates) == 0 {
		rates = l.cfg.Rates
	}
	set := newBucketSet(key, rates, l.cfg.Refill)
	l.makeRoomLocked()
	l.sets.Add(key, set)
	metrics.SetRateLimitTrackedKeys(l.sets.Len() + len(l.pinned))
	return set
}

// makeRoomLocked frees one cache slot when the cache is full. The least
// recently used idle set is dropped; when every set is busy the oldest one is
// pinned outside the cache so its waiters and window history survive.
func (l *Limiter) makeRoomLocked() {
	now := l.clock.Now()
	for key, set := range l.pinned {
		if set.idle(now) {
			delete(l.pinned, key)
		}
	}
	if l.sets.Len() < l.cfg.MaxKeys {
		return
	}
	keys := l.sets.Keys()
	for _, key := range keys {
		set, _ := l.sets.Peek(key)
		if set.idle(now) {
			l.sets.Remove(key)
			l.logger.Debug("evicting rate limit state", zap.String("domain", key.String()))
			return
		}
	}
	oldest := keys[0]
	set, _ := l.sets.Peek(oldest)
	l.sets.Remove(oldest)
	l.pinned[oldest] = set
	l.logger.Debug("pinning busy rate limit state", zap.String("domain", oldest.String()))
}

// join returns the set for key with a new waiter already queued on it, so the
// set cannot be judged idle and dropped in between.
func (l *Limiter) join(key domainkey.Key) (*BucketSet, *waiter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	set := l.lookupLocked(key, nil)
	return set, set.enqueue()
}

// Acquire blocks until key may perform one operation, consuming a token from
// each of its buckets. A non-positive timeout uses Config.AcquireTimeout.
// On timeout it returns extraction.ErrRateLimitTimeout; on cancellation the
// context error. Neither consumes any token.
func (l *Limiter) Acquire(ctx context.Context, key domainkey.Key, timeout time.Duration) (Permit, error) {
	set, w := l.join(key)
	if timeout <= 0 {
		timeout = l.cfg.AcquireTimeout
	}

	start := l.clock.Now()
	var deadline time.Time
	if timeout > 0 {
		deadline = start.Add(timeout)
	}

	if err := set.acquire(ctx, l.clock, w, deadline); err != nil {
		if errors.Is(err, extraction.ErrRateLimitTimeout) {
			metrics.ObserveRateLimitTimeout(key.String())
			l.logger.Debug("rate limit timeout",
				zap.String("domain", key.String()),
				zap.Duration("timeout", timeout),
			)
		}
		return Permit{}, err
	}

	now := l.clock.Now()
	waited := now.Sub(start)
	if waited > 0 {
		metrics.ObserveRateLimitWait(key.String(), waited)
		l.logger.Debug("rate limit wait",
			zap.String("domain", key.String()),
			zap.Duration("waited", waited),
		)
	}
	return Permit{Key: key, AdmittedAt: now, Waited: waited}, nil
}

// TryAcquire admits one operation for key without blocking. It fails when any
// bucket is empty or another caller is already queued.
func (l *Limiter) TryAcquire(key domainkey.Key) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lookupLocked(key, nil).tryTake(l.clock.Now())
}

// Len returns the number of tracked domains, pinned ones included.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sets.Len() + len(l.pinned)
}

// Tracked reports whether key currently holds bucket state.
func (l *Limiter) Tracked(key domainkey.Key) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, pinned := l.pinned[key]
	return pinned || l.sets.Contains(key)
}
