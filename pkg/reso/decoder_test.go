// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package reso

import (
	"errors"
	"math"
	"testing"
	"time"
)

// fill creates a buffer large enough for data and pushes it
func fill(data ...byte) *RingBuffer {
	r := NewRingBuffer(len(data) + 8)
	for _, b := range data {
		r.Push(b)
	}
	return r
}

// ============================================================
// Framing
// ============================================================

func TestDecode_EmptyIsPending(t *testing.T) {
	rx := NewRingBuffer(8)
	msg, err := DecodeRemoteMessage(rx)
	if msg != nil || err != nil {
		t.Errorf("DecodeRemoteMessage(empty) = %v, %v; want nil, nil", msg, err)
	}
}

func TestDecode_GarbagePrefixIsSkipped(t *testing.T) {
	rx := fill(0x00, 0x13, 0x7F, 0x42, 0xFF, 44, 2, 0, 0)

	msg, err := DecodeRemoteMessage(rx)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if msg != (Ping{Seq: 300}) {
		t.Errorf("msg = %#v, want Ping{300}", msg)
	}
	if rx.Count() != 0 {
		t.Errorf("Count() = %d, want 0", rx.Count())
	}
}

func TestDecode_GarbageOnlyDrainsBuffer(t *testing.T) {
	rx := fill(0x01, 0x02, 0x03)
	msg, err := DecodeControllerMessage(rx)
	if msg != nil || err != nil {
		t.Errorf("got %v, %v; want pending", msg, err)
	}
	if rx.Count() != 0 {
		t.Errorf("Count() = %d, want 0", rx.Count())
	}
}

func TestDecode_PartialFrameIsPending(t *testing.T) {
	rx := fill(0xFF, 44, 2)
	before := rx.Count()

	msg, err := DecodeRemoteMessage(rx)
	if msg != nil || err != nil {
		t.Fatalf("got %v, %v; want pending", msg, err)
	}
	if rx.Count() != before {
		t.Errorf("Count() = %d, want %d (partial frame kept)", rx.Count(), before)
	}

	rx.Push(0)
	rx.Push(0)
	msg, err = DecodeRemoteMessage(rx)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if msg != (Ping{Seq: 300}) {
		t.Errorf("msg = %#v, want Ping{300}", msg)
	}
}

func TestDecode_UnknownTypeConsumesOneByte(t *testing.T) {
	// 0x90 is not a remote-bound type; the following bytes form a valid frame.
	rx := fill(0x90, 0x82)

	msg, err := DecodeRemoteMessage(rx)
	if msg != nil {
		t.Errorf("msg = %v, want nil", msg)
	}
	if !errors.Is(err, ErrUnknownFrameType) {
		t.Fatalf("err = %v, want ErrUnknownFrameType", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) || de.TypeCode != 0x10 || de.Consumed != 1 {
		t.Errorf("DecodeError = %+v, want TypeCode 0x10 Consumed 1", de)
	}
	if rx.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", rx.Count())
	}

	msg, err = DecodeRemoteMessage(rx)
	if err != nil || msg != (LockFailed{}) {
		t.Errorf("next decode = %v, %v; want LockFailed", msg, err)
	}
}

func TestDecode_UnknownCatalogIDConsumesFrame(t *testing.T) {
	// GET_PARAMETER_RESULT for id 99, then a KEEP_ALIVE-sized trailer.
	rx := fill(0x80, 99, 5, 0, 0x83)
	original := rx.Count()

	msg, err := DecodeRemoteMessage(rx)
	if msg != nil {
		t.Errorf("msg = %v, want nil", msg)
	}
	if !errors.Is(err, ErrUnknownCatalogID) {
		t.Fatalf("err = %v, want ErrUnknownCatalogID", err)
	}
	var de *DecodeError
	if errors.As(err, &de) && de.ID != 99 {
		t.Errorf("DecodeError.ID = %d, want 99", de.ID)
	}
	if rx.Count() != original-4 {
		t.Errorf("Count() = %d, want %d", rx.Count(), original-4)
	}

	msg, err = DecodeRemoteMessage(rx)
	if err != nil || msg != (OCDTripped{}) {
		t.Errorf("next decode = %v, %v; want OCDTripped", msg, err)
	}
}

func TestDecode_UnknownStatisticID(t *testing.T) {
	rx := fill(0x83, 9)
	_, err := DecodeControllerMessage(rx)
	if !errors.Is(err, ErrUnknownCatalogID) {
		t.Errorf("err = %v, want ErrUnknownCatalogID", err)
	}
	if rx.Count() != 0 {
		t.Errorf("Count() = %d, want 0", rx.Count())
	}
}

func TestDecode_InvalidRunModeConsumesFrame(t *testing.T) {
	rx := fill(0x82, byte(ParamRunMode), 7, 0)

	_, err := DecodeControllerMessage(rx)
	if !errors.Is(err, ErrInvalidEnumeratedValue) {
		t.Fatalf("err = %v, want ErrInvalidEnumeratedValue", err)
	}
	var de *DecodeError
	if errors.As(err, &de) && (de.Raw != 7 || de.Consumed != 4) {
		t.Errorf("DecodeError = %+v, want Raw 7 Consumed 4", de)
	}
	if rx.Count() != 0 {
		t.Errorf("Count() = %d, want 0", rx.Count())
	}
}

func TestDecode_DirectionTablesDiffer(t *testing.T) {
	// 0x86 is RUN towards the controller but unknown towards the remote.
	if msg, err := DecodeControllerMessage(fill(0x86)); err != nil || msg != (Run{}) {
		t.Errorf("controller decode = %v, %v; want Run", msg, err)
	}
	if _, err := DecodeRemoteMessage(fill(0x86)); !errors.Is(err, ErrUnknownFrameType) {
		t.Errorf("remote decode err = %v, want ErrUnknownFrameType", err)
	}
}

func TestDecode_ErrorThenRecovery(t *testing.T) {
	rx := fill(
		0x05,            // stray
		0x80, 42, 1, 0,  // unknown id 42
		0x99,            // unknown type
		0x80, 10, 96, 0, // CURRENT_LIMIT = 3.0 A
	)

	var results []error
	var got RemoteMessage
	for i := 0; i < 5 && got == nil; i++ {
		msg, err := DecodeRemoteMessage(rx)
		if err != nil {
			results = append(results, err)
			continue
		}
		got = msg
	}

	if len(results) != 2 {
		t.Fatalf("errors = %v, want 2", results)
	}
	want := GetParameterResult{Value: CurrentLimit(3.0)}
	if got != want {
		t.Errorf("msg = %#v, want %#v", got, want)
	}
}

// ============================================================
// Values
// ============================================================

func TestDecode_SetCurrentLimitScenario(t *testing.T) {
	rx := fill(0x82, 10, 96, 0)
	msg, err := DecodeControllerMessage(rx)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	set, ok := msg.(SetParameter)
	if !ok {
		t.Fatalf("msg = %T, want SetParameter", msg)
	}
	if set.Value != CurrentLimit(3.0) {
		t.Errorf("value = %#v, want CurrentLimit(3.0)", set.Value)
	}
}

func TestDecode_SignExtensionUsesBit13(t *testing.T) {
	tests := []struct {
		name string
		lo   byte
		hi   byte
		want time.Duration
	}{
		{"zero", 0, 0, 0},
		{"bit 5 set is still positive", 0x20, 0, 32},
		{"largest positive", 0x7F, 0x3F, 8191},
		{"minus one", 0x7F, 0x7F, -1},
		{"most negative", 0x00, 0x40, -8192},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeControllerMessage(fill(0x82, byte(ParamDelayCompensation), tt.lo, tt.hi))
			if err != nil {
				t.Fatalf("decode error: %v", err)
			}
			got := msg.(SetParameter).Value.(DelayCompensation)
			if time.Duration(got) != tt.want {
				t.Errorf("delay = %v, want %v", time.Duration(got), tt.want)
			}
		})
	}
}

func TestDecode_UnsignedParameterIgnoresBit13(t *testing.T) {
	msg, err := DecodeControllerMessage(fill(0x82, byte(ParamLockTime), 0x00, 0x40))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	got := msg.(SetParameter).Value.(LockTime)
	if time.Duration(got) != 8192*time.Millisecond {
		t.Errorf("lock time = %v, want 8.192s", time.Duration(got))
	}
}

func TestDecode_PhysicalUnits(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		check func(t *testing.T, v ParameterValue)
	}{
		{"frequency raw/16", []byte{0x80, 2, 40, 31}, func(t *testing.T, v ParameterValue) {
			if v != StartupFrequency(250.5) {
				t.Errorf("frequency = %v, want 250.5", v)
			}
		}},
		{"power raw/16383", []byte{0x80, 8, 0x7F, 0x7F}, func(t *testing.T, v ParameterValue) {
			if v != RampEnd(1.0) {
				t.Errorf("ramp end = %v, want 1.0", v)
			}
		}},
		{"current raw/32", []byte{0x80, 9, 16, 0}, func(t *testing.T, v ParameterValue) {
			if v != MinLockCurrent(0.5) {
				t.Errorf("min lock current = %v, want 0.5", v)
			}
		}},
		{"startup time ms", []byte{0x80, 5, 100, 0}, func(t *testing.T, v ParameterValue) {
			if v != StartupTime(100*time.Millisecond) {
				t.Errorf("startup time = %v, want 100ms", v)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeRemoteMessage(fill(tt.frame...))
			if err != nil {
				t.Fatalf("decode error: %v", err)
			}
			tt.check(t, msg.(GetParameterResult).Value)
		})
	}
}

// ============================================================
// Round trip
// ============================================================

func TestRoundTrip_ControllerMessages(t *testing.T) {
	msgs := []ControllerMessage{
		SetDebugLED{On: true},
		SetDebugLED{On: false},
		GetParameter{Parameter: ParamRampEnd},
		GetStatistic{Statistic: StatMaxPrimaryCurrent},
		ResetStatistics{},
		KeepAlive{},
		Run{},
		Stop{},
		Ping{Seq: 0},
		Ping{Seq: 123456},
		SetParameter{Value: DelayCompensation(-250 * time.Nanosecond)},
		SetParameter{Value: StartupFrequency(312.25)},
		SetParameter{Value: RunModeBurst},
		SetParameter{Value: LockTime(1500 * time.Millisecond)},
		SetParameter{Value: StartupTime(20 * time.Millisecond)},
		SetParameter{Value: OnTime(150 * time.Microsecond)},
		SetParameter{Value: MinLockCurrent(12.5)},
		SetParameter{Value: CurrentLimit(400)},
	}

	for _, msg := range msgs {
		t.Run(DescribeMessage(msg), func(t *testing.T) {
			rx := NewRingBuffer(MaxFrameSize)
			if err := Encode(msg, rx); err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got, err := DecodeControllerMessage(rx)
			if err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if got != msg {
				t.Errorf("round trip = %#v, want %#v", got, msg)
			}
			if rx.Count() != 0 {
				t.Errorf("Count() = %d, want 0", rx.Count())
			}
		})
	}
}

func TestRoundTrip_PowerWithinResolution(t *testing.T) {
	for _, want := range []float64{0, 0.1, 0.25, 1.0 / 3, 0.5, 0.999, 1} {
		rx := NewRingBuffer(MaxFrameSize)
		if err := Encode(GetParameterResult{Value: RampStart(want)}, rx); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		msg, err := DecodeRemoteMessage(rx)
		if err != nil {
			t.Fatalf("decode error: %v", err)
		}
		got := float64(msg.(GetParameterResult).Value.(RampStart))
		if math.Abs(got-want) > 1.0/PowerScale {
			t.Errorf("RampStart(%v) round trip = %v, off by more than one step", want, got)
		}
	}
}

func TestRoundTrip_DecodedValueIsStable(t *testing.T) {
	// Re-encoding a decoded value must produce the same raw value.
	for raw := uint16(0); raw <= RawMax; raw += 7 {
		for _, p := range []Parameter{ParamRampStart, ParamStartupFrequency, ParamCurrentLimit, ParamDelayCompensation} {
			v, err := ParameterValueFromRaw(p, raw)
			if err != nil {
				t.Fatalf("ParameterValueFromRaw(%s, %d): %v", p, raw, err)
			}
			if v.Raw() != raw {
				t.Fatalf("%s raw %d decoded to %v, re-encoded as %d", p, raw, v, v.Raw())
			}
		}
	}
}

func TestRoundTrip_StatisticResult(t *testing.T) {
	want := GetStatisticResult{Value: MaxPrimaryCurrent(87.25)}
	rx := NewRingBuffer(MaxFrameSize)
	if err := Encode(want, rx); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, err := DecodeRemoteMessage(rx)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %#v, want %#v", got, want)
	}
}

func TestFrameLengthForType(t *testing.T) {
	tests := []struct {
		dir  Direction
		code uint8
		want int
	}{
		{ToController, MsgSetDebugLED, 2},
		{ToController, MsgSetParameter, 4},
		{ToController, MsgRun, 1},
		{ToController, MsgPing | StartMarker, 5},
		{ToController, 0x40, 0},
		{ToRemote, MsgGetStatisticResult, 4},
		{ToRemote, MsgOCDTripped, 1},
		{ToRemote, MsgRun, 0},
	}
	for _, tt := range tests {
		if got := FrameLengthForType(tt.dir, tt.code); got != tt.want {
			t.Errorf("FrameLengthForType(%s, 0x%02X) = %d, want %d", tt.dir, tt.code, got, tt.want)
		}
	}
}
