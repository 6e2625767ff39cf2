package ratelimit

import (
	"math"
	"time"

	"golang.org/x/time/rate"
)

// RefillMode selects how consumed tokens come back.
type RefillMode string

const (
	// RefillWindow returns each token exactly Per after it was consumed, so no
	// rolling interval of length Per ever sees more than Count admissions.
	RefillWindow RefillMode = "window"
	// RefillSmooth refills continuously at Count/Per, capped at Count.
	RefillSmooth RefillMode = "smooth"
)

// Bucket is one rate constraint of a key. Buckets are not safe for concurrent
// use; BucketSet serializes access.
type Bucket interface {
	Rate() Rate
	// Delay reports how long from now until a token is available. Zero means one is available.
	Delay(now time.Time) time.Duration
	// Take consumes one token at now. Callers check Delay first.
	Take(now time.Time)
	// Idle reports whether the bucket is full at now, so dropping it loses no history.
	Idle(now time.Time) bool
}

// NewBucket builds a full bucket for r using the given refill mode.
func NewBucket(r Rate, mode RefillMode) Bucket {
	if mode == RefillSmooth {
		return newSmoothBucket(r)
	}
	return newWindowBucket(r)
}

// windowBucket remembers when each outstanding token was consumed.
type windowBucket struct {
	rate   Rate
	stamps []time.Time
}

func newWindowBucket(r Rate) *windowBucket {
	return &windowBucket{rate: r, stamps: make([]time.Time, 0, r.Count)}
}

func (b *windowBucket) Rate() Rate {
	return b.rate
}

func (b *windowBucket) Delay(now time.Time) time.Duration {
	b.expire(now)
	if len(b.stamps) < b.rate.Count {
		return 0
	}
	return b.stamps[0].Add(b.rate.Per).Sub(now)
}

func (b *windowBucket) Take(now time.Time) {
	b.expire(now)
	b.stamps = append(b.stamps, now)
}

func (b *windowBucket) Idle(now time.Time) bool {
	b.expire(now)
	return len(b.stamps) == 0
}

func (b *windowBucket) expire(now time.Time) {
	i := 0
	for i < len(b.stamps) && !b.stamps[i].Add(b.rate.Per).After(now) {
		i++
	}
	if i > 0 {
		b.stamps = append(b.stamps[:0], b.stamps[i:]...)
	}
}

// smoothBucket delegates the token arithmetic to x/time/rate.
type smoothBucket struct {
	rate    Rate
	limiter *rate.Limiter
}

func newSmoothBucket(r Rate) *smoothBucket {
	perSecond := float64(r.Count) / r.Per.Seconds()
	return &smoothBucket{rate: r, limiter: rate.NewLimiter(rate.Limit(perSecond), r.Count)}
}

func (b *smoothBucket) Rate() Rate {
	return b.rate
}

func (b *smoothBucket) Delay(now time.Time) time.Duration {
	tokens := b.limiter.TokensAt(now)
	if tokens >= 1 {
		return 0
	}
	deficit := 1 - tokens
	secs := deficit / float64(b.limiter.Limit())
	return time.Duration(math.Ceil(secs * float64(time.Second)))
}

func (b *smoothBucket) Take(now time.Time) {
	b.limiter.AllowN(now, 1)
}

func (b *smoothBucket) Idle(now time.Time) bool {
	return b.limiter.TokensAt(now) >= float64(b.rate.Count)
}
