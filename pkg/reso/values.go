// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package reso

import (
	"math"
	"time"
)

// Scale factors: raw units per physical unit
const (
	FrequencyScale = 16     // raw per kHz
	CurrentScale   = 32     // raw per ampere
	PowerScale     = RawMax // raw per full power
)

// Time resolution of duration parameters
const (
	DelayCompensationUnit = time.Nanosecond
	LockTimeUnit          = time.Millisecond
	StartupTimeUnit       = time.Millisecond
	OnTimeUnit            = time.Microsecond
)

// quantizeEpsilon absorbs float rounding when a decoded value is encoded
// again, e.g. 8191.0/16383*16383 = 8190.999...
const quantizeEpsilon = 1e-6

// ParameterValue is a parameter paired with a value in physical units.
//
// Raw returns the quantized 14-bit wire value: scaled, truncated and clamped
// into range. Signed values are returned in 14-bit two's complement.
type ParameterValue interface {
	Parameter() Parameter
	Raw() uint16
}

// StatisticValue is a statistic paired with a value in physical units.
type StatisticValue interface {
	Statistic() Statistic
	Raw() uint16
}

// DelayCompensation shifts the feedback edge, signed, 1 ns resolution.
type DelayCompensation time.Duration

// StartupFrequency is the open-loop drive frequency in kHz, 1/16 kHz resolution.
type StartupFrequency float64

// LockTime is how long the driver waits for phase lock, 1 ms resolution.
type LockTime time.Duration

// StartupTime is how long the driver runs open loop, 1 ms resolution.
type StartupTime time.Duration

// OnTime is the burst on-time, 1 µs resolution.
type OnTime time.Duration

// RampStart is the power fraction (0.0-1.0) at the start of the ramp.
type RampStart float64

// RampEnd is the power fraction (0.0-1.0) at the end of the ramp.
type RampEnd float64

// MinLockCurrent is the primary current in amperes required to declare lock.
type MinLockCurrent float64

// CurrentLimit is the over-current trip level in amperes.
type CurrentLimit float64

// MaxPrimaryCurrent is the peak primary current in amperes since the last reset.
type MaxPrimaryCurrent float64

func (DelayCompensation) Parameter() Parameter { return ParamDelayCompensation }
func (StartupFrequency) Parameter() Parameter  { return ParamStartupFrequency }
func (RunMode) Parameter() Parameter           { return ParamRunMode }
func (LockTime) Parameter() Parameter          { return ParamLockTime }
func (StartupTime) Parameter() Parameter       { return ParamStartupTime }
func (OnTime) Parameter() Parameter            { return ParamOnTime }
func (RampStart) Parameter() Parameter         { return ParamRampStart }
func (RampEnd) Parameter() Parameter           { return ParamRampEnd }
func (MinLockCurrent) Parameter() Parameter    { return ParamMinLockCurrent }
func (CurrentLimit) Parameter() Parameter      { return ParamCurrentLimit }

func (MaxPrimaryCurrent) Statistic() Statistic { return StatMaxPrimaryCurrent }

func (v DelayCompensation) Raw() uint16 {
	return quantizeSignedDuration(time.Duration(v), DelayCompensationUnit)
}
func (v StartupFrequency) Raw() uint16 { return quantize(float64(v), FrequencyScale) }
func (v RunMode) Raw() uint16          { return clampRaw(int64(v)) }
func (v LockTime) Raw() uint16         { return quantizeDuration(time.Duration(v), LockTimeUnit) }
func (v StartupTime) Raw() uint16      { return quantizeDuration(time.Duration(v), StartupTimeUnit) }
func (v OnTime) Raw() uint16           { return quantizeDuration(time.Duration(v), OnTimeUnit) }
func (v RampStart) Raw() uint16        { return quantize(float64(v), PowerScale) }
func (v RampEnd) Raw() uint16          { return quantize(float64(v), PowerScale) }
func (v MinLockCurrent) Raw() uint16   { return quantize(float64(v), CurrentScale) }
func (v CurrentLimit) Raw() uint16     { return quantize(float64(v), CurrentScale) }

func (v MaxPrimaryCurrent) Raw() uint16 { return quantize(float64(v), CurrentScale) }

// parameterDecoders rebuilds a physical value from an assembled 14-bit raw value.
var parameterDecoders = map[Parameter]func(raw uint16) (ParameterValue, error){
	ParamDelayCompensation: func(raw uint16) (ParameterValue, error) {
		return DelayCompensation(time.Duration(SignExtend14(raw)) * DelayCompensationUnit), nil
	},
	ParamStartupFrequency: func(raw uint16) (ParameterValue, error) {
		return StartupFrequency(float64(raw) / FrequencyScale), nil
	},
	ParamRunMode: func(raw uint16) (ParameterValue, error) {
		m, err := RunModeFromRaw(raw)
		if err != nil {
			return nil, err
		}
		return m, nil
	},
	ParamLockTime: func(raw uint16) (ParameterValue, error) {
		return LockTime(time.Duration(raw) * LockTimeUnit), nil
	},
	ParamStartupTime: func(raw uint16) (ParameterValue, error) {
		return StartupTime(time.Duration(raw) * StartupTimeUnit), nil
	},
	ParamOnTime: func(raw uint16) (ParameterValue, error) {
		return OnTime(time.Duration(raw) * OnTimeUnit), nil
	},
	ParamRampStart: func(raw uint16) (ParameterValue, error) {
		return RampStart(float64(raw) / PowerScale), nil
	},
	ParamRampEnd: func(raw uint16) (ParameterValue, error) {
		return RampEnd(float64(raw) / PowerScale), nil
	},
	ParamMinLockCurrent: func(raw uint16) (ParameterValue, error) {
		return MinLockCurrent(float64(raw) / CurrentScale), nil
	},
	ParamCurrentLimit: func(raw uint16) (ParameterValue, error) {
		return CurrentLimit(float64(raw) / CurrentScale), nil
	},
}

var statisticDecoders = map[Statistic]func(raw uint16) (StatisticValue, error){
	StatMaxPrimaryCurrent: func(raw uint16) (StatisticValue, error) {
		return MaxPrimaryCurrent(float64(raw) / CurrentScale), nil
	},
}

// ParameterValueFromRaw converts a 14-bit wire value into the physical value
// of p. Signed parameters are sign extended from bit 13.
func ParameterValueFromRaw(p Parameter, raw uint16) (ParameterValue, error) {
	decode, ok := parameterDecoders[p]
	if !ok {
		return nil, ErrUnknownCatalogID
	}
	return decode(raw & RawMax)
}

// StatisticValueFromRaw converts a 14-bit wire value into the physical value of s.
func StatisticValueFromRaw(s Statistic, raw uint16) (StatisticValue, error) {
	decode, ok := statisticDecoders[s]
	if !ok {
		return nil, ErrUnknownCatalogID
	}
	return decode(raw & RawMax)
}

// SignExtend14 interprets a 14-bit two's complement value. Bit 13 is the sign.
func SignExtend14(raw uint16) int16 {
	raw &= RawMax
	if raw&rawSignBit != 0 {
		raw |= rawSignFill
	}
	return int16(raw)
}

// quantize scales v, truncates toward zero and saturates into 0..RawMax.
func quantize(v, scale float64) uint16 {
	x := v * scale
	if math.IsNaN(x) || x <= 0 {
		return 0
	}
	if x >= RawMax {
		return RawMax
	}
	// Rounds up products within quantizeEpsilon of the next step, so 3.0 A
	// stays 96 after float error. Anything further below still truncates.
	return uint16(x + quantizeEpsilon)
}

func quantizeDuration(d, unit time.Duration) uint16 {
	return clampRaw(int64(d / unit))
}

func quantizeSignedDuration(d, unit time.Duration) uint16 {
	n := int64(d / unit)
	if n < RawSignedMin {
		n = RawSignedMin
	}
	if n > RawSignedMax {
		n = RawSignedMax
	}
	return uint16(n) & RawMax
}

func clampRaw(n int64) uint16 {
	if n < 0 {
		return 0
	}
	if n > RawMax {
		return RawMax
	}
	return uint16(n)
}
