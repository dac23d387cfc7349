package compare

import (
	"math/bits"
	"sync"
)

const (
	poolMinExp = 12 // 4 KiB
	poolMaxExp = 26 // 64 MiB
)

// bufferPool hands out power-of-two sized byte slices. Requests above the
// largest bucket are allocated directly and never pooled.
type bufferPool struct {
	buckets [poolMaxExp + 1]sync.Pool
}

func newBufferPool() *bufferPool {
	p := &bufferPool{}
	for i := poolMinExp; i <= poolMaxExp; i++ {
		size := 1 << i
		p.buckets[i].New = func() any {
			b := make([]byte, size)
			return &b
		}
	}
	return p
}

// get returns a slice of exactly size bytes
func (p *bufferPool) get(size int) *[]byte {
	if size > 1<<poolMaxExp {
		b := make([]byte, size)
		return &b
	}
	idx := bits.Len(uint(size - 1))
	if idx < poolMinExp {
		idx = poolMinExp
	}
	buf := p.buckets[idx].Get().(*[]byte)
	*buf = (*buf)[:size]
	return buf
}

func (p *bufferPool) put(buf *[]byte) {
	if buf == nil {
		return
	}
	c := cap(*buf)
	if c < 1<<poolMinExp || c > 1<<poolMaxExp || c&(c-1) != 0 {
		return
	}
	*buf = (*buf)[:c]
	p.buckets[bits.TrailingZeros(uint(c))].Put(buf)
}
