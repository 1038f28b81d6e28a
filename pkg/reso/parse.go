// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package reso

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// normalizeName folds "current_limit", "CurrentLimit" and "current-limit"
// to the same key.
func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", "")
	return strings.ReplaceAll(name, "-", "")
}

// ParseParameter looks a parameter up by name or numeric id.
func ParseParameter(name string) (Parameter, error) {
	key := normalizeName(name)
	for p, n := range parameterNames {
		if normalizeName(n) == key {
			return p, nil
		}
	}
	if id, err := strconv.ParseUint(key, 0, 8); err == nil {
		if p, err := ParameterFromID(uint8(id)); err == nil {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown parameter %q: %w", name, ErrUnknownCatalogID)
}

// ParseStatistic looks a statistic up by name or numeric id.
func ParseStatistic(name string) (Statistic, error) {
	key := normalizeName(name)
	for s, n := range statisticNames {
		if normalizeName(n) == key {
			return s, nil
		}
	}
	if id, err := strconv.ParseUint(key, 0, 8); err == nil {
		if s, err := StatisticFromID(uint8(id)); err == nil {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown statistic %q: %w", name, ErrUnknownCatalogID)
}

// ParseRunMode accepts a run mode name or its raw number.
func ParseRunMode(text string) (RunMode, error) {
	key := normalizeName(text)
	for m, n := range runModeNames {
		if normalizeName(n) == key {
			return m, nil
		}
	}
	if raw, err := strconv.ParseUint(key, 0, 14); err == nil {
		if m, err := RunModeFromRaw(uint16(raw)); err == nil {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown run mode %q: %w", text, ErrInvalidEnumeratedValue)
}

// ParseParameterValue converts user text into a typed value for p.
//
// Durations accept Go duration syntax ("150us", "2ms") or a bare number in
// the parameter's resolution unit. Power fractions accept "0.5" or "50%".
// Currents and frequencies accept an optional "A" or "kHz" suffix.
func ParseParameterValue(p Parameter, text string) (ParameterValue, error) {
	text = strings.TrimSpace(text)
	switch p {
	case ParamDelayCompensation:
		d, err := parseDuration(text, DelayCompensationUnit)
		return DelayCompensation(d), err
	case ParamStartupFrequency:
		f, err := parseFloatSuffix(text, "khz")
		return StartupFrequency(f), err
	case ParamRunMode:
		return ParseRunMode(text)
	case ParamLockTime:
		d, err := parseDuration(text, LockTimeUnit)
		return LockTime(d), err
	case ParamStartupTime:
		d, err := parseDuration(text, StartupTimeUnit)
		return StartupTime(d), err
	case ParamOnTime:
		d, err := parseDuration(text, OnTimeUnit)
		return OnTime(d), err
	case ParamRampStart:
		f, err := parsePower(text)
		return RampStart(f), err
	case ParamRampEnd:
		f, err := parsePower(text)
		return RampEnd(f), err
	case ParamMinLockCurrent:
		f, err := parseFloatSuffix(text, "a")
		return MinLockCurrent(f), err
	case ParamCurrentLimit:
		f, err := parseFloatSuffix(text, "a")
		return CurrentLimit(f), err
	}
	return nil, fmt.Errorf("parameter %s: %w", p, ErrUnknownCatalogID)
}

func parseDuration(text string, unit time.Duration) (time.Duration, error) {
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return time.Duration(n) * unit, nil
	}
	d, err := time.ParseDuration(text)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", text, err)
	}
	return d, nil
}

func parseFloatSuffix(text, suffix string) (float64, error) {
	lower := strings.ToLower(text)
	lower = strings.TrimSpace(strings.TrimSuffix(lower, suffix))
	f, err := strconv.ParseFloat(lower, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", text, err)
	}
	return f, nil
}

func parsePower(text string) (float64, error) {
	if strings.HasSuffix(text, "%") {
		f, err := parseFloatSuffix(text, "%")
		return f / 100, err
	}
	return parseFloatSuffix(text, "")
}
