// Package compare categorizes the both-sides objects of a merged tree,
// either by modification time and size or by byte content.
package compare

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/bits"
	"time"

	"github.com/sdejongh/dircompare/pkg/ratelimit"
	"github.com/sdejongh/dircompare/pkg/storage"
)

// ChunkTuning controls how the read size adapts to the observed throughput
type ChunkTuning struct {
	MinChunk int
	MaxChunk int

	// A round faster than GrowBelow doubles the chunk, a round slower
	// than ShrinkAbove halves it.
	GrowBelow   time.Duration
	ShrinkAbove time.Duration

	// FlapGuard is the minimum time since the last slow round before growing again
	FlapGuard time.Duration

	Now func() time.Time
}

// DefaultChunkTuning returns the tuning used for local disks and network shares
func DefaultChunkTuning() ChunkTuning {
	return ChunkTuning{
		MinChunk:    8 * 1024,
		MaxChunk:    1024 * 1024 * 1024,
		GrowBelow:   100 * time.Millisecond,
		ShrinkAbove: 500 * time.Millisecond,
		FlapGuard:   2 * time.Second,
		Now:         time.Now,
	}
}

// DefaultContentMemory bounds the read buffers of all concurrent content
// comparisons together
const DefaultContentMemory = 256 * 1024 * 1024

// WithMemoryBudget lowers MaxChunk so that workers comparisons, each holding
// a buffer per side, stay within budget bytes. The cap is rounded down to a
// power of two and never drops below MinChunk.
func (t ChunkTuning) WithMemoryBudget(budget int64, workers int) ChunkTuning {
	if budget <= 0 || workers < 1 {
		return t
	}
	perBuffer := budget / int64(2*workers)
	if perBuffer < 1 {
		perBuffer = 1
	}
	limit := int64(1) << (bits.Len64(uint64(perBuffer)) - 1)
	if limit < int64(t.MaxChunk) {
		t.MaxChunk = int(limit)
	}
	if t.MaxChunk < t.MinChunk {
		t.MaxChunk = t.MinChunk
	}
	return t
}

// ContentComparer compares two files byte by byte. It is safe for
// concurrent use; every call has its own chunk state.
type ContentComparer struct {
	provider storage.DirEntryProvider
	tuning   ChunkTuning
	limiter  *ratelimit.Limiter
	buffers  *bufferPool
}

// NewContentComparer creates a comparer reading through provider. A nil
// limiter reads at full speed.
func NewContentComparer(provider storage.DirEntryProvider, tuning ChunkTuning, limiter *ratelimit.Limiter) *ContentComparer {
	if tuning.Now == nil {
		tuning.Now = time.Now
	}
	if tuning.MinChunk < 1 {
		tuning.MinChunk = 1
	}
	if tuning.MaxChunk < tuning.MinChunk {
		tuning.MaxChunk = tuning.MinChunk
	}
	return &ContentComparer{
		provider: provider,
		tuning:   tuning,
		limiter:  limiter,
		buffers:  newBufferPool(),
	}
}

// SameContent reports whether both files hold identical bytes. onProgress,
// if set, receives the number of bytes consumed after every chunk.
func (c *ContentComparer) SameContent(ctx context.Context, leftPath, rightPath string, onProgress func(int64)) (bool, error) {
	left, err := c.provider.OpenForRead(ctx, leftPath)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", leftPath, err)
	}
	defer left.Close()

	right, err := c.provider.OpenForRead(ctx, rightPath)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", rightPath, err)
	}
	defer right.Close()

	chunk := min(left.OptimalBlockSize(), right.OptimalBlockSize())
	if chunk < 1 {
		chunk = storage.DefaultBlockSize
	}
	chunk = min(chunk, c.tuning.MaxChunk)

	leftReader := ratelimit.NewStream(ctx, left, c.limiter)
	rightReader := ratelimit.NewStream(ctx, right, c.limiter)

	leftBuf := c.buffers.get(chunk)
	rightBuf := c.buffers.get(chunk)
	defer func() {
		c.buffers.put(leftBuf)
		c.buffers.put(rightBuf)
	}()

	lastSlow := c.tuning.Now()
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		start := c.tuning.Now()
		nl, err := readChunk(leftReader, *leftBuf)
		if err != nil {
			return false, fmt.Errorf("failed to read %s: %w", leftPath, err)
		}
		nr, err := readChunk(rightReader, *rightBuf)
		if err != nil {
			return false, fmt.Errorf("failed to read %s: %w", rightPath, err)
		}
		now := c.tuning.Now()

		if onProgress != nil {
			onProgress(int64(max(nl, nr)))
		}
		if nl != nr || !bytes.Equal((*leftBuf)[:nl], (*rightBuf)[:nr]) {
			return false, nil
		}
		if nl < chunk {
			return true, nil
		}

		next := c.nextChunk(chunk, now.Sub(start), now, &lastSlow)
		if next != chunk {
			c.buffers.put(leftBuf)
			c.buffers.put(rightBuf)
			leftBuf = c.buffers.get(next)
			rightBuf = c.buffers.get(next)
			chunk = next
		}
	}
}

// nextChunk adapts the chunk size to the duration of the last round
func (c *ContentComparer) nextChunk(chunk int, elapsed time.Duration, now time.Time, lastSlow *time.Time) int {
	t := c.tuning
	switch {
	case elapsed > t.ShrinkAbove:
		*lastSlow = now
		if chunk/2 >= t.MinChunk {
			return chunk / 2
		}
	case elapsed < t.GrowBelow && now.Sub(*lastSlow) > t.FlapGuard:
		if chunk*2 <= t.MaxChunk {
			return chunk * 2
		}
	}
	return chunk
}

// readChunk fills buf unless the stream ends first
func readChunk(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return n, nil
	}
	return n, err
}
