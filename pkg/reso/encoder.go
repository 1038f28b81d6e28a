// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package reso

import "fmt"

// FrameLength returns the encoded size of msg including the type byte, or 0
// if msg cannot be encoded.
func FrameLength(msg Message) int {
	switch m := msg.(type) {
	case SetDebugLED:
		return lenFlag
	case GetParameter, GetStatistic:
		return lenID
	case SetParameter:
		if m.Value == nil {
			return 0
		}
		return lenIDValue
	case GetParameterResult:
		if m.Value == nil {
			return 0
		}
		return lenIDValue
	case GetStatisticResult:
		if m.Value == nil {
			return 0
		}
		return lenIDValue
	case ResetStatistics, KeepAlive, Run, Stop, LockFailed, OCDTripped:
		return lenBare
	case Ping:
		return lenSequence
	default:
		return 0
	}
}

// Encode writes msg into tx as a single frame.
//
// Encoding is all-or-nothing: if tx lacks room for the whole frame nothing is
// written and ErrBufferFull is returned. Physical values are quantized and
// saturated into their raw range, never rejected. A RunMode outside the
// enumeration is refused with ErrInvalidEnumeratedValue, since no decoder
// would accept it.
func Encode(msg Message, tx *RingBuffer) error {
	length := FrameLength(msg)
	if length == 0 {
		return fmt.Errorf("cannot encode %T: missing value or unsupported message", msg)
	}
	if err := checkEnumerated(msg); err != nil {
		return err
	}
	if tx.FreeSpace() < length {
		return ErrBufferFull
	}

	tx.Push(msg.Type() | StartMarker)

	switch m := msg.(type) {
	case SetDebugLED:
		pushBool(tx, m.On)
	case GetParameter:
		tx.Push(m.Parameter.ID() & GroupMask)
	case GetStatistic:
		tx.Push(m.Statistic.ID() & GroupMask)
	case SetParameter:
		tx.Push(m.Value.Parameter().ID() & GroupMask)
		pushUint14(tx, m.Value.Raw())
	case GetParameterResult:
		tx.Push(m.Value.Parameter().ID() & GroupMask)
		pushUint14(tx, m.Value.Raw())
	case GetStatisticResult:
		tx.Push(m.Value.Statistic().ID() & GroupMask)
		pushUint14(tx, m.Value.Raw())
	case Ping:
		pushUint28(tx, m.Seq)
	}

	return nil
}

func checkEnumerated(msg Message) error {
	var v ParameterValue
	switch m := msg.(type) {
	case SetParameter:
		v = m.Value
	case GetParameterResult:
		v = m.Value
	}
	if mode, ok := v.(RunMode); ok && !mode.Valid() {
		return fmt.Errorf("cannot encode %s: run mode %d: %w", MessageName(msg), uint16(mode), ErrInvalidEnumeratedValue)
	}
	return nil
}

// EncodeFrame returns the wire bytes of msg.
func EncodeFrame(msg Message) ([]byte, error) {
	tx := NewRingBuffer(MaxFrameSize)
	if err := Encode(msg, tx); err != nil {
		return nil, err
	}
	frame := make([]byte, 0, tx.Count())
	for {
		b, ok := tx.Pop()
		if !ok {
			break
		}
		frame = append(frame, b)
	}
	return frame, nil
}

// MustEncodeFrame is like EncodeFrame but panics on error.
func MustEncodeFrame(msg Message) []byte {
	frame, err := EncodeFrame(msg)
	if err != nil {
		panic(fmt.Sprintf("reso: encode error: %v", err))
	}
	return frame
}

func pushBool(tx *RingBuffer, v bool) {
	if v {
		tx.Push(1)
	} else {
		tx.Push(0)
	}
}

// pushUint14 writes v as two 7-bit groups, low group first.
func pushUint14(tx *RingBuffer, v uint16) {
	tx.Push(byte(v>>0) & GroupMask)
	tx.Push(byte(v>>7) & GroupMask)
}

// pushUint28 writes v as four 7-bit groups, low group first.
func pushUint28(tx *RingBuffer, v uint32) {
	tx.Push(byte(v>>0) & GroupMask)
	tx.Push(byte(v>>7) & GroupMask)
	tx.Push(byte(v>>14) & GroupMask)
	tx.Push(byte(v>>21) & GroupMask)
}
