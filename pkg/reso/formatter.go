// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package reso

import (
	"fmt"
	"strings"
	"time"
)

// FormatMessage formats a decoded message with a timestamp into a
// human-readable line
func FormatMessage(at time.Time, msg Message) string {
	timestamp := at.Format("15:04:05.000")
	return fmt.Sprintf("[%s] %s\n", timestamp, DescribeMessage(msg))
}

// DescribeMessage returns the message name followed by its payload
func DescribeMessage(msg Message) string {
	switch m := msg.(type) {
	case SetDebugLED:
		if m.On {
			return "SET_DEBUG_LED on"
		}
		return "SET_DEBUG_LED off"
	case GetParameter:
		return fmt.Sprintf("GET_PARAMETER %s", m.Parameter)
	case SetParameter:
		return fmt.Sprintf("SET_PARAMETER %s", FormatParameterValue(m.Value))
	case GetStatistic:
		return fmt.Sprintf("GET_STATISTIC %s", m.Statistic)
	case GetParameterResult:
		return fmt.Sprintf("GET_PARAMETER_RESULT %s", FormatParameterValue(m.Value))
	case GetStatisticResult:
		return fmt.Sprintf("GET_STATISTIC_RESULT %s", FormatStatisticValue(m.Value))
	case Ping:
		return fmt.Sprintf("PING seq=%d", m.Seq)
	case nil:
		return "NONE"
	default:
		return MessageName(msg)
	}
}

// MessageName returns the upper-case protocol name of msg
func MessageName(msg Message) string {
	switch msg.(type) {
	case ControllerMessage:
		return FormatMessageType(ToController, msg.Type())
	case RemoteMessage:
		return FormatMessageType(ToRemote, msg.Type())
	default:
		return "UNKNOWN"
	}
}

// FormatMessageType returns the human-readable name for a type code
func FormatMessageType(dir Direction, code uint8) string {
	code &= TypeMask
	if code == MsgPing {
		return "PING"
	}

	if dir == ToController {
		switch code {
		case MsgSetDebugLED:
			return "SET_DEBUG_LED"
		case MsgGetParameter:
			return "GET_PARAMETER"
		case MsgSetParameter:
			return "SET_PARAMETER"
		case MsgGetStatistic:
			return "GET_STATISTIC"
		case MsgResetStatistics:
			return "RESET_STATISTICS"
		case MsgKeepAlive:
			return "KEEP_ALIVE"
		case MsgRun:
			return "RUN"
		case MsgStop:
			return "STOP"
		}
		return "UNKNOWN"
	}

	switch code {
	case MsgGetParameterResult:
		return "GET_PARAMETER_RESULT"
	case MsgGetStatisticResult:
		return "GET_STATISTIC_RESULT"
	case MsgLockFailed:
		return "LOCK_FAILED"
	case MsgOCDTripped:
		return "OCD_TRIPPED"
	}
	return "UNKNOWN"
}

// FormatParameterValue renders "NAME=value (raw N)"
func FormatParameterValue(v ParameterValue) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s=%s (raw %d)", v.Parameter(), FormatValue(v), v.Raw())
}

// FormatStatisticValue renders "NAME=value (raw N)"
func FormatStatisticValue(v StatisticValue) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s=%s (raw %d)", v.Statistic(), formatStatistic(v), v.Raw())
}

// FormatValue renders only the physical value with its unit
func FormatValue(v ParameterValue) string {
	switch val := v.(type) {
	case DelayCompensation:
		return time.Duration(val).String()
	case StartupFrequency:
		return fmt.Sprintf("%.4f kHz", float64(val))
	case RunMode:
		return val.String()
	case LockTime:
		return time.Duration(val).String()
	case StartupTime:
		return time.Duration(val).String()
	case OnTime:
		return time.Duration(val).String()
	case RampStart:
		return formatPower(float64(val))
	case RampEnd:
		return formatPower(float64(val))
	case MinLockCurrent:
		return formatCurrent(float64(val))
	case CurrentLimit:
		return formatCurrent(float64(val))
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("raw %d", v.Raw())
	}
}

func formatStatistic(v StatisticValue) string {
	switch val := v.(type) {
	case MaxPrimaryCurrent:
		return formatCurrent(float64(val))
	default:
		return fmt.Sprintf("raw %d", v.Raw())
	}
}

func formatPower(fraction float64) string {
	return fmt.Sprintf("%.2f%%", fraction*100)
}

func formatCurrent(amps float64) string {
	return fmt.Sprintf("%.3f A", amps)
}

// FormatFrame returns the frame bytes as space-separated hex
func FormatFrame(frame []byte) string {
	var sb strings.Builder
	for i, b := range frame {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}
