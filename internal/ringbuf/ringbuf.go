// Package ringbuf provides a fixed-capacity circular buffer of float32 samples.
package ringbuf

import (
	"errors"
	"fmt"
)

// ErrCapacity is returned when the requested capacity is not a positive power of two.
var ErrCapacity = errors.New("ring buffer capacity must be a positive power of two")

// Buffer holds the last Cap() samples pushed into it.
//
// The write cursor wraps with a bit mask, so the capacity must be a power of
// two. Values are exposed in storage order: while the buffer is filling this
// is insertion order, but once it has wrapped the slice starts at index 0 no
// matter where the oldest sample lives. Treat a full buffer as a multiset.
type Buffer struct {
	data []float32
	ptr  int
	len  int
	mask int
}

// New creates a Buffer with the given capacity.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrCapacity, capacity)
	}

	return &Buffer{
		data: make([]float32, capacity),
		mask: capacity - 1,
	}, nil
}

// MustNew is like New but panics on an invalid capacity.
// Intended for package-level constants.
func MustNew(capacity int) *Buffer {
	b, err := New(capacity)
	if err != nil {
		panic(err)
	}
	return b
}

// Push stores a sample, overwriting the oldest one when full.
func (b *Buffer) Push(v float32) {
	b.data[b.ptr] = v
	b.ptr = (b.ptr + 1) & b.mask
	if b.len < len(b.data) {
		b.len++
	}
}

// Len returns the number of stored samples.
func (b *Buffer) Len() int {
	return b.len
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// IsEmpty reports whether no samples have been pushed.
func (b *Buffer) IsEmpty() bool {
	return b.len == 0
}

// Values returns the stored samples in storage order.
// The returned slice aliases the buffer and is only valid until the next Push.
func (b *Buffer) Values() []float32 {
	return b.data[:b.len]
}

// Sum returns the sum of the stored samples.
func (b *Buffer) Sum() float32 {
	var sum float32
	for _, v := range b.data[:b.len] {
		sum += v
	}
	return sum
}

// Max returns the largest stored sample, or 0 when empty.
func (b *Buffer) Max() float32 {
	if b.len == 0 {
		return 0
	}
	m := b.data[0]
	for _, v := range b.data[1:b.len] {
		if v > m {
			m = v
		}
	}
	return m
}

// Mean returns the average of the stored samples, or 0 when empty.
func (b *Buffer) Mean() float32 {
	if b.len == 0 {
		return 0
	}
	return b.Sum() / float32(b.len)
}
