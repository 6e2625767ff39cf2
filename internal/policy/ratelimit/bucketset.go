package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/JakeFAU/text-extraction/internal/domainkey"
	"github.com/JakeFAU/text-extraction/internal/extraction"
)

// BucketSet holds every bucket of one key plus its FIFO queue of waiters.
// Admission takes one token from each bucket or from none of them.
type BucketSet struct {
	key     domainkey.Key
	mu      sync.Mutex
	buckets []Bucket
	queue   []*waiter
}

// waiter is a queued Acquire call. turn is signalled exactly once, when the
// waiter reaches the head of the queue.
type waiter struct {
	turn chan struct{}
}

func newBucketSet(key domainkey.Key, rates []Rate, mode RefillMode) *BucketSet {
	buckets := make([]Bucket, 0, len(rates))
	for _, r := range rates {
		buckets = append(buckets, NewBucket(r, mode))
	}
	return &BucketSet{key: key, buckets: buckets}
}

// Key returns the domain the set throttles.
func (s *BucketSet) Key() domainkey.Key {
	return s.key
}

// Rates returns the constraints of the set in configuration order.
func (s *BucketSet) Rates() []Rate {
	out := make([]Rate, 0, len(s.buckets))
	for _, b := range s.buckets {
		out = append(out, b.Rate())
	}
	return out
}

// Waiting returns the number of queued Acquire calls, including the head.
func (s *BucketSet) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// tryTake admits one operation at now if nobody is queued and every bucket has a token.
func (s *BucketSet) tryTake(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) > 0 || s.delayLocked(now) > 0 {
		return false
	}
	s.takeLocked(now)
	return true
}

// idle reports whether the set has no waiters and every bucket is full, so
// replacing it with a fresh set is indistinguishable from keeping it.
func (s *BucketSet) idle(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) > 0 {
		return false
	}
	for _, b := range s.buckets {
		if !b.Idle(now) {
			return false
		}
	}
	return true
}

// acquire blocks until w reaches the head of the queue and every bucket has a
// token, then consumes them. w must come from enqueue. A zero deadline waits
// indefinitely.
func (s *BucketSet) acquire(ctx context.Context, clk clockwork.Clock, w *waiter, deadline time.Time) error {
	if err := ctx.Err(); err != nil {
		s.leave(w)
		return s.ctxErr(err)
	}

	var expired <-chan time.Time
	if !deadline.IsZero() {
		timer := clk.NewTimer(deadline.Sub(clk.Now()))
		defer timer.Stop()
		expired = timer.Chan()
	}

	if err := s.awaitTurn(ctx, w, expired); err != nil {
		return err
	}

	for {
		s.mu.Lock()
		now := clk.Now()
		delay := s.delayLocked(now)
		if delay <= 0 {
			s.takeLocked(now)
			s.popHeadLocked()
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()

		sleep := clk.NewTimer(delay)
		select {
		case <-sleep.Chan():
		case <-ctx.Done():
			sleep.Stop()
			s.leave(w)
			return s.ctxErr(ctx.Err())
		case <-expired:
			sleep.Stop()
			s.leave(w)
			return s.timeoutErr()
		}
	}
}

func (s *BucketSet) awaitTurn(ctx context.Context, w *waiter, expired <-chan time.Time) error {
	select {
	case <-w.turn:
		return nil
	default:
	}
	select {
	case <-w.turn:
		return nil
	case <-ctx.Done():
		s.leave(w)
		return s.ctxErr(ctx.Err())
	case <-expired:
		s.leave(w)
		return s.timeoutErr()
	}
}

func (s *BucketSet) enqueue() *waiter {
	w := &waiter{turn: make(chan struct{}, 1)}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, w)
	if len(s.queue) == 1 {
		w.turn <- struct{}{}
	}
	return w
}

// leave drops an abandoned waiter without touching any bucket. When it was the
// head, the next waiter inherits the turn.
func (s *BucketSet) leave(w *waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.queue {
		if q != w {
			continue
		}
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
		if i == 0 {
			s.signalHeadLocked()
		}
		return
	}
}

func (s *BucketSet) popHeadLocked() {
	s.queue[0] = nil
	s.queue = s.queue[1:]
	s.signalHeadLocked()
}

func (s *BucketSet) signalHeadLocked() {
	if len(s.queue) == 0 {
		return
	}
	select {
	case s.queue[0].turn <- struct{}{}:
	default:
	}
}

// delayLocked is the longest wait across buckets; the set is only admissible
// when every bucket is.
func (s *BucketSet) delayLocked(now time.Time) time.Duration {
	var longest time.Duration
	for _, b := range s.buckets {
		if d := b.Delay(now); d > longest {
			longest = d
		}
	}
	return longest
}

func (s *BucketSet) takeLocked(now time.Time) {
	for _, b := range s.buckets {
		b.Take(now)
	}
}

func (s *BucketSet) timeoutErr() error {
	return fmt.Errorf("%w: %s", extraction.ErrRateLimitTimeout, s.key)
}

// ctxErr maps an expired caller deadline onto the rate-limit timeout while
// leaving plain cancellation untouched.
func (s *BucketSet) ctxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", extraction.ErrRateLimitTimeout, s.key, err)
	}
	return err
}
