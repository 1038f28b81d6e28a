// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package reso provides a Go implementation of the Reso serial protocol.
//
// Reso is a half-duplex, point-to-point protocol between a resonant driver
// (the controller, which receives commands) and a remote host. Frames are
// self-delimiting by type: the first byte carries a start marker in its high
// bit and a 7-bit type code that implies the total frame length. Payload
// bytes never set the high bit, so a receiver can always resynchronize by
// discarding bytes until the next marked byte.
//
// This package provides the ring buffer used for staging and accumulating
// bytes, the frame encoder/decoder, the parameter and statistic catalogs with
// their physical-unit conversions, and formatting helpers.
package reso

// Framing
const (
	StartMarker = 0x80
	TypeMask    = 0x7F
	GroupBits   = 7
	GroupMask   = 0x7F
)

// Raw value limits for 14-bit fields
const (
	RawMax       = 0x3FFF // 16383
	RawSignedMin = -0x2000
	RawSignedMax = 0x1FFF
	rawSignBit   = 0x2000
	rawSignFill  = 0xC000
)

// SeqMax is the largest sequence number a Ping frame can carry (28 bits).
const SeqMax = 1<<28 - 1

// Message types - Controller bound (remote → controller)
const (
	MsgSetDebugLED     = 0x00
	MsgGetParameter    = 0x01
	MsgSetParameter    = 0x02
	MsgGetStatistic    = 0x03
	MsgResetStatistics = 0x04
	MsgKeepAlive       = 0x05
	MsgRun             = 0x06
	MsgStop            = 0x07
)

// Message types - Remote bound (controller → remote)
const (
	MsgGetParameterResult = 0x00
	MsgGetStatisticResult = 0x01
	MsgLockFailed         = 0x02
	MsgOCDTripped         = 0x03
)

// MsgPing is shared by both directions; the receiver echoes the sequence.
const MsgPing = 0x7F

// Frame lengths, type byte included
const (
	lenFlag      = 2 // type + bool
	lenID        = 2 // type + catalog id
	lenIDValue   = 4 // type + id + 14-bit value
	lenBare      = 1 // type only
	lenSequence  = 5 // type + 28-bit sequence
	MaxFrameSize = lenSequence
)

// Direction identifies which side of the link a frame travels towards.
type Direction uint8

const (
	// ToController frames carry commands from the remote host.
	ToController Direction = iota
	// ToRemote frames carry results and events from the controller.
	ToRemote
)

func (d Direction) String() string {
	switch d {
	case ToController:
		return "controller"
	case ToRemote:
		return "remote"
	default:
		return "unknown"
	}
}
