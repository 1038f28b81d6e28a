// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package reso

import (
	"errors"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func randomParameterValue(rng *rand.Rand) ParameterValue {
	p := AllParameters[rng.Intn(len(AllParameters))]
	if p == ParamRunMode {
		modes := []RunMode{RunModeFixed, RunModeTracking, RunModeBurst}
		return modes[rng.Intn(len(modes))]
	}
	raw := uint16(rng.Intn(RawMax + 1))
	v, _ := ParameterValueFromRaw(p, raw)
	return v
}

func randomControllerMessage(rng *rand.Rand) ControllerMessage {
	switch rng.Intn(9) {
	case 0:
		return SetDebugLED{On: rng.Intn(2) == 1}
	case 1:
		return GetParameter{Parameter: AllParameters[rng.Intn(len(AllParameters))]}
	case 2:
		return SetParameter{Value: randomParameterValue(rng)}
	case 3:
		return GetStatistic{Statistic: StatMaxPrimaryCurrent}
	case 4:
		return ResetStatistics{}
	case 5:
		return KeepAlive{}
	case 6:
		return Run{}
	case 7:
		return Stop{}
	default:
		return Ping{Seq: uint32(rng.Intn(SeqMax + 1))}
	}
}

func randomRemoteMessage(rng *rand.Rand) RemoteMessage {
	switch rng.Intn(5) {
	case 0:
		return GetParameterResult{Value: randomParameterValue(rng)}
	case 1:
		v, _ := StatisticValueFromRaw(StatMaxPrimaryCurrent, uint16(rng.Intn(RawMax+1)))
		return GetStatisticResult{Value: v}
	case 2:
		return LockFailed{}
	case 3:
		return OCDTripped{}
	default:
		return Ping{Seq: uint32(rng.Intn(SeqMax + 1))}
	}
}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

// TestFuzzDecoder_RandomBytes feeds random bytes to both decoders and
// verifies every call makes progress or reports pending
func TestFuzzDecoder_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		data := make([]byte, rng.Intn(64)+1)
		rng.Read(data)

		for _, dir := range []Direction{ToController, ToRemote} {
			rx := fill(data...)
			for steps := 0; ; steps++ {
				if steps > len(data) {
					t.Fatalf("round %d: decoder did not converge on [% X]", i, data)
				}
				before := rx.Count()
				var msg Message
				var err error
				if dir == ToController {
					msg, err = DecodeControllerMessage(rx)
				} else {
					msg, err = DecodeRemoteMessage(rx)
				}
				if msg == nil && err == nil {
					break
				}
				if rx.Count() >= before {
					t.Fatalf("round %d: decode consumed nothing (msg=%v err=%v)", i, msg, err)
				}
				var de *DecodeError
				if err != nil && !errors.As(err, &de) {
					t.Fatalf("round %d: error %v is not a DecodeError", i, err)
				}
			}
		}
	}
}

// TestFuzzRoundTrip_Stream encodes a random stream of messages with garbage
// between them and checks every message comes back out in order
func TestFuzzRoundTrip_Stream(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		var sent []RemoteMessage
		rx := NewRingBuffer(256)
		for n := rng.Intn(10) + 1; n > 0; n-- {
			// Unmarked noise is always skipped by the resync scan.
			for g := rng.Intn(3); g > 0; g-- {
				rx.Push(byte(rng.Intn(StartMarker)))
			}
			msg := randomRemoteMessage(rng)
			if err := Encode(msg, rx); err != nil {
				t.Fatalf("round %d: Encode(%#v): %v", i, msg, err)
			}
			sent = append(sent, msg)
		}

		for j, want := range sent {
			got, err := DecodeRemoteMessage(rx)
			if err != nil {
				t.Fatalf("round %d msg %d: decode error: %v", i, j, err)
			}
			if got != want {
				t.Fatalf("round %d msg %d: got %#v, want %#v", i, j, got, want)
			}
		}
		if rx.Count() != 0 {
			t.Errorf("round %d: %d bytes left over", i, rx.Count())
		}
	}
}

// TestFuzzRoundTrip_ControllerMessages checks decode(encode(m)) == m for
// values that are already on the quantization grid
func TestFuzzRoundTrip_ControllerMessages(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		msg := randomControllerMessage(rng)
		frame, err := EncodeFrame(msg)
		if err != nil {
			t.Fatalf("round %d: EncodeFrame(%#v): %v", i, msg, err)
		}
		got, err := DecodeControllerMessage(fill(frame...))
		if err != nil {
			t.Fatalf("round %d: decode [% X]: %v", i, frame, err)
		}
		if got != msg {
			t.Fatalf("round %d: got %#v, want %#v", i, got, msg)
		}
	}
}
