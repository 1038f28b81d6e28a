// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package reso

// RingBuffer is a fixed-capacity FIFO byte store.
//
// The same type stages outbound frames for the transport and accumulates
// inbound bytes for the decoder. It has no internal locking: each instance
// has one producer and one consumer, and callers running those on different
// goroutines must synchronize access themselves.
type RingBuffer struct {
	data   []byte
	count  int
	iWrite int
}

// NewRingBuffer creates an empty buffer holding up to capacity bytes.
// Panics if capacity is not positive.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		panic("reso: ring buffer capacity must be > 0")
	}
	return &RingBuffer{data: make([]byte, capacity)}
}

// Push appends b to the buffer.
//
// The caller must check FreeSpace() >= 1 first. Pushing into a full buffer
// overwrites the oldest byte and leaves Count() wrong.
func (r *RingBuffer) Push(b byte) {
	r.data[r.iWrite] = b
	r.iWrite++
	if r.iWrite == len(r.data) {
		r.iWrite = 0
	}
	r.count++
}

// Pop removes and returns the oldest byte. ok is false if the buffer is empty.
func (r *RingBuffer) Pop() (b byte, ok bool) {
	if r.count == 0 {
		return 0, false
	}
	b = r.data[r.head()]
	r.count--
	return b, true
}

// Peek returns the oldest byte without removing it.
func (r *RingBuffer) Peek() (b byte, ok bool) {
	if r.count == 0 {
		return 0, false
	}
	return r.data[r.head()], true
}

// Count returns the number of bytes waiting to be read.
func (r *RingBuffer) Count() int {
	return r.count
}

// FreeSpace returns how many bytes can be pushed before the buffer is full.
func (r *RingBuffer) FreeSpace() int {
	return len(r.data) - r.count
}

// Cap returns the fixed capacity.
func (r *RingBuffer) Cap() int {
	return len(r.data)
}

// Reset discards all buffered bytes.
func (r *RingBuffer) Reset() {
	r.count = 0
	r.iWrite = 0
}

// head is the index of the oldest byte: (iWrite - count) mod N.
func (r *RingBuffer) head() int {
	if r.iWrite < r.count {
		return r.iWrite + len(r.data) - r.count
	}
	return r.iWrite - r.count
}
