package ratelimit

import (
	"context"

	"github.com/sdejongh/dircompare/pkg/storage"
)

// Stream is a storage.ReadStream whose reads are paced by a Limiter.
// Reads larger than the limiter's burst size return short; callers that
// need full chunks use io.ReadFull.
type Stream struct {
	storage.ReadStream
	limiter *Limiter
	ctx     context.Context
}

// NewStream wraps s. A nil limiter returns s unchanged.
func NewStream(ctx context.Context, s storage.ReadStream, limiter *Limiter) storage.ReadStream {
	if limiter == nil {
		return s
	}
	return &Stream{ReadStream: s, limiter: limiter, ctx: ctx}
}

// Read waits for tokens and reads at most the burst size
func (s *Stream) Read(p []byte) (int, error) {
	if err := s.ctx.Err(); err != nil {
		return 0, err
	}
	if len(p) > s.limiter.BurstSize() {
		p = p[:s.limiter.BurstSize()]
	}
	if err := s.limiter.Wait(s.ctx, int64(len(p))); err != nil {
		return 0, err
	}
	n, err := s.ReadStream.Read(p)
	if n > 0 {
		s.limiter.Consume(int64(n))
	}
	return n, err
}
