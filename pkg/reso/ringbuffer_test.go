// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package reso

import "testing"

func TestRingBuffer_Empty(t *testing.T) {
	r := NewRingBuffer(8)
	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
	if r.FreeSpace() != 8 {
		t.Errorf("FreeSpace() = %d, want 8", r.FreeSpace())
	}
	if _, ok := r.Pop(); ok {
		t.Error("Pop() on empty buffer should report empty")
	}
	if _, ok := r.Peek(); ok {
		t.Error("Peek() on empty buffer should report empty")
	}
}

func TestRingBuffer_PeekDoesNotConsume(t *testing.T) {
	r := NewRingBuffer(4)
	r.Push(0xAA)
	r.Push(0xBB)

	for i := 0; i < 3; i++ {
		b, ok := r.Peek()
		if !ok || b != 0xAA {
			t.Fatalf("Peek() = 0x%02X, %v; want 0xAA, true", b, ok)
		}
	}
	if r.Count() != 2 {
		t.Errorf("Count() = %d after peeks, want 2", r.Count())
	}
}

func TestRingBuffer_WrapAround(t *testing.T) {
	r := NewRingBuffer(4)
	for _, b := range []byte{1, 2, 3, 4} {
		r.Push(b)
	}
	if r.FreeSpace() != 0 {
		t.Fatalf("FreeSpace() = %d, want 0 when full", r.FreeSpace())
	}

	for _, want := range []byte{1, 2} {
		got, ok := r.Pop()
		if !ok || got != want {
			t.Fatalf("Pop() = %d, %v; want %d, true", got, ok, want)
		}
	}

	r.Push(5)
	r.Push(6)

	// The new bytes land in the slots freed at the start of storage.
	if r.data[0] != 5 || r.data[1] != 6 {
		t.Errorf("wrapped slots = %v, want [5 6 ...]", r.data)
	}

	for _, want := range []byte{3, 4, 5, 6} {
		got, ok := r.Pop()
		if !ok || got != want {
			t.Fatalf("Pop() = %d, %v; want %d, true", got, ok, want)
		}
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
}

func TestRingBuffer_CountPlusFreeIsCapacity(t *testing.T) {
	r := NewRingBuffer(5)
	check := func() {
		t.Helper()
		if r.Count()+r.FreeSpace() != r.Cap() {
			t.Fatalf("Count()+FreeSpace() = %d, want %d", r.Count()+r.FreeSpace(), r.Cap())
		}
	}

	for round := 0; round < 20; round++ {
		for r.FreeSpace() > 0 && r.Count() < round%5+1 {
			r.Push(byte(round))
			check()
		}
		if round%2 == 0 {
			r.Pop()
			check()
		}
	}
}

func TestRingBuffer_Reset(t *testing.T) {
	r := NewRingBuffer(3)
	r.Push(1)
	r.Push(2)
	r.Reset()
	if r.Count() != 0 || r.FreeSpace() != 3 {
		t.Errorf("after Reset: Count()=%d FreeSpace()=%d", r.Count(), r.FreeSpace())
	}
	r.Push(9)
	if b, _ := r.Pop(); b != 9 {
		t.Errorf("Pop() after Reset = %d, want 9", b)
	}
}

func TestNewRingBuffer_PanicsOnZeroCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewRingBuffer(0) should panic")
		}
	}()
	NewRingBuffer(0)
}
