// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package reso

import "fmt"

// Parameter identifies a tunable setting of the driver. The numeric value is
// the wire id; changing it breaks compatibility with deployed firmware.
type Parameter uint8

// Parameter ids
const (
	ParamDelayCompensation Parameter = 1
	ParamStartupFrequency  Parameter = 2
	ParamRunMode           Parameter = 3
	ParamLockTime          Parameter = 4
	ParamStartupTime       Parameter = 5
	ParamOnTime            Parameter = 6
	ParamRampStart         Parameter = 7
	ParamRampEnd           Parameter = 8
	ParamMinLockCurrent    Parameter = 9
	ParamCurrentLimit      Parameter = 10
)

// AllParameters lists the parameter catalog in wire id order.
var AllParameters = []Parameter{
	ParamDelayCompensation,
	ParamStartupFrequency,
	ParamRunMode,
	ParamLockTime,
	ParamStartupTime,
	ParamOnTime,
	ParamRampStart,
	ParamRampEnd,
	ParamMinLockCurrent,
	ParamCurrentLimit,
}

var parameterNames = map[Parameter]string{
	ParamDelayCompensation: "DELAY_COMPENSATION",
	ParamStartupFrequency:  "STARTUP_FREQUENCY",
	ParamRunMode:           "RUN_MODE",
	ParamLockTime:          "LOCK_TIME",
	ParamStartupTime:       "STARTUP_TIME",
	ParamOnTime:            "ON_TIME",
	ParamRampStart:         "RAMP_START",
	ParamRampEnd:           "RAMP_END",
	ParamMinLockCurrent:    "MIN_LOCK_CURRENT",
	ParamCurrentLimit:      "CURRENT_LIMIT",
}

// ID returns the wire id.
func (p Parameter) ID() uint8 {
	return uint8(p)
}

// Signed reports whether the parameter's raw value is a signed 14-bit integer.
func (p Parameter) Signed() bool {
	return p == ParamDelayCompensation
}

func (p Parameter) String() string {
	if name, ok := parameterNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PARAMETER(%d)", uint8(p))
}

// ParameterFromID maps a wire id to its catalog entry.
func ParameterFromID(id uint8) (Parameter, error) {
	p := Parameter(id)
	if _, ok := parameterNames[p]; !ok {
		return 0, ErrUnknownCatalogID
	}
	return p, nil
}

// Statistic identifies a counter or peak value kept by the driver.
type Statistic uint8

// Statistic ids
const (
	StatMaxPrimaryCurrent Statistic = 0
)

// AllStatistics lists the statistic catalog in wire id order.
var AllStatistics = []Statistic{StatMaxPrimaryCurrent}

var statisticNames = map[Statistic]string{
	StatMaxPrimaryCurrent: "MAX_PRIMARY_CURRENT",
}

// ID returns the wire id.
func (s Statistic) ID() uint8 {
	return uint8(s)
}

func (s Statistic) String() string {
	if name, ok := statisticNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATISTIC(%d)", uint8(s))
}

// StatisticFromID maps a wire id to its catalog entry.
func StatisticFromID(id uint8) (Statistic, error) {
	s := Statistic(id)
	if _, ok := statisticNames[s]; !ok {
		return 0, ErrUnknownCatalogID
	}
	return s, nil
}

// RunMode selects how the driver tracks resonance. It is also the value type
// of ParamRunMode.
type RunMode uint16

// Run mode values
const (
	RunModeFixed    RunMode = 0 // drive at the startup frequency
	RunModeTracking RunMode = 1 // follow the feedback signal after lock
	RunModeBurst    RunMode = 2 // tracking, gated by on-time bursts
)

var runModeNames = map[RunMode]string{
	RunModeFixed:    "FIXED",
	RunModeTracking: "TRACKING",
	RunModeBurst:    "BURST",
}

// Valid reports whether m is a known run mode.
func (m RunMode) Valid() bool {
	_, ok := runModeNames[m]
	return ok
}

func (m RunMode) String() string {
	if name, ok := runModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("RUN_MODE(%d)", uint16(m))
}

// RunModeFromRaw validates a raw wire value.
func RunModeFromRaw(raw uint16) (RunMode, error) {
	m := RunMode(raw)
	if !m.Valid() {
		return 0, ErrInvalidEnumeratedValue
	}
	return m, nil
}
