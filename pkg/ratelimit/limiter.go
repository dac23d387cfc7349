// Package ratelimit caps the read bandwidth of content comparison
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// minBucketSize keeps bursts large enough for smooth sequential reads
const minBucketSize = 64 * 1024

// Limiter is a token bucket shared by all streams of a comparison run
type Limiter struct {
	bytesPerSecond int64
	bucketSize     int64

	mu         sync.Mutex
	tokens     int64
	lastUpdate time.Time

	now func() time.Time
}

// NewLimiter creates a limiter for bytesPerSecond. It returns nil for
// non-positive rates, which disables limiting.
func NewLimiter(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	bucketSize := bytesPerSecond
	if bucketSize < minBucketSize {
		bucketSize = minBucketSize
	}
	return &Limiter{
		bytesPerSecond: bytesPerSecond,
		bucketSize:     bucketSize,
		tokens:         bucketSize,
		lastUpdate:     time.Now(),
		now:            time.Now,
	}
}

// BurstSize is the largest amount a single read may request
func (l *Limiter) BurstSize() int {
	return int(l.bucketSize)
}

// Wait blocks until n bytes may be read or ctx is done
func (l *Limiter) Wait(ctx context.Context, n int64) error {
	if n > l.bucketSize {
		n = l.bucketSize
	}
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= n {
			l.mu.Unlock()
			return nil
		}
		deficit := n - l.tokens
		l.mu.Unlock()

		wait := time.Duration(float64(deficit) / float64(l.bytesPerSecond) * float64(time.Second))
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Consume removes n tokens after a read
func (l *Limiter) Consume(n int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens -= n
	if l.tokens < 0 {
		l.tokens = 0
	}
}

// refill adds tokens for the elapsed time; l.mu must be held
func (l *Limiter) refill() {
	now := l.now()
	add := int64(float64(now.Sub(l.lastUpdate)) / float64(time.Second) * float64(l.bytesPerSecond))
	if add > 0 {
		l.tokens += add
		if l.tokens > l.bucketSize {
			l.tokens = l.bucketSize
		}
		l.lastUpdate = now
	}
}
