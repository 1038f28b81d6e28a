// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package reso

import "errors"

// frameSpec describes one entry of a direction's dispatch table: the total
// frame length implied by the type code and a constructor for the payload.
type frameSpec[M any] struct {
	length int
	decode func(payload []byte) (M, error)
}

var controllerFrames = map[uint8]frameSpec[ControllerMessage]{
	MsgSetDebugLED: {lenFlag, func(p []byte) (ControllerMessage, error) {
		return SetDebugLED{On: p[0] != 0}, nil
	}},
	MsgGetParameter: {lenID, func(p []byte) (ControllerMessage, error) {
		param, err := parameterID(p[0])
		if err != nil {
			return nil, err
		}
		return GetParameter{Parameter: param}, nil
	}},
	MsgSetParameter: {lenIDValue, func(p []byte) (ControllerMessage, error) {
		v, err := parameterValue(p)
		if err != nil {
			return nil, err
		}
		return SetParameter{Value: v}, nil
	}},
	MsgGetStatistic: {lenID, func(p []byte) (ControllerMessage, error) {
		stat, err := statisticID(p[0])
		if err != nil {
			return nil, err
		}
		return GetStatistic{Statistic: stat}, nil
	}},
	MsgResetStatistics: {lenBare, func([]byte) (ControllerMessage, error) { return ResetStatistics{}, nil }},
	MsgKeepAlive:       {lenBare, func([]byte) (ControllerMessage, error) { return KeepAlive{}, nil }},
	MsgRun:             {lenBare, func([]byte) (ControllerMessage, error) { return Run{}, nil }},
	MsgStop:            {lenBare, func([]byte) (ControllerMessage, error) { return Stop{}, nil }},
	MsgPing: {lenSequence, func(p []byte) (ControllerMessage, error) {
		return Ping{Seq: readUint28(p)}, nil
	}},
}

var remoteFrames = map[uint8]frameSpec[RemoteMessage]{
	MsgGetParameterResult: {lenIDValue, func(p []byte) (RemoteMessage, error) {
		v, err := parameterValue(p)
		if err != nil {
			return nil, err
		}
		return GetParameterResult{Value: v}, nil
	}},
	MsgGetStatisticResult: {lenIDValue, func(p []byte) (RemoteMessage, error) {
		stat, err := statisticID(p[0])
		if err != nil {
			return nil, err
		}
		raw := readUint14(p[1:])
		v, err := StatisticValueFromRaw(stat, raw)
		if err != nil {
			return nil, &DecodeError{Kind: ErrUnknownCatalogID, ID: p[0]}
		}
		return GetStatisticResult{Value: v}, nil
	}},
	MsgLockFailed: {lenBare, func([]byte) (RemoteMessage, error) { return LockFailed{}, nil }},
	MsgOCDTripped: {lenBare, func([]byte) (RemoteMessage, error) { return OCDTripped{}, nil }},
	MsgPing: {lenSequence, func(p []byte) (RemoteMessage, error) {
		return Ping{Seq: readUint28(p)}, nil
	}},
}

// DecodeControllerMessage decodes the next controller-bound frame from rx.
//
// It returns (nil, nil) when no complete frame is buffered yet. Leading bytes
// without the start marker are discarded first. An unknown type code consumes
// only the type byte; any other failure consumes the whole frame, so the next
// call starts at a frame boundary either way.
func DecodeControllerMessage(rx *RingBuffer) (ControllerMessage, error) {
	msg, _, err := decodeFrame(rx, ToController, controllerFrames)
	return msg, err
}

// DecodeRemoteMessage decodes the next remote-bound frame from rx.
// It follows the same rules as DecodeControllerMessage.
func DecodeRemoteMessage(rx *RingBuffer) (RemoteMessage, error) {
	msg, _, err := decodeFrame(rx, ToRemote, remoteFrames)
	return msg, err
}

// Resync discards leading bytes that lack the start marker and returns how
// many were dropped. It never consumes a marked byte.
func Resync(rx *RingBuffer) int {
	discarded := 0
	for {
		b, ok := rx.Peek()
		if !ok || b&StartMarker != 0 {
			return discarded
		}
		rx.Pop()
		discarded++
	}
}

// FrameLengthForType returns the total frame length for a type code in the
// given direction, or 0 if the code is unknown.
func FrameLengthForType(dir Direction, code uint8) int {
	code &= TypeMask
	switch dir {
	case ToController:
		return controllerFrames[code].length
	case ToRemote:
		return remoteFrames[code].length
	}
	return 0
}

func decodeFrame[M any](rx *RingBuffer, dir Direction, table map[uint8]frameSpec[M]) (msg M, discarded int, err error) {
	discarded = Resync(rx)

	head, ok := rx.Peek()
	if !ok {
		return msg, discarded, nil
	}

	code := head & TypeMask
	spec, known := table[code]
	if !known {
		rx.Pop()
		return msg, discarded, &DecodeError{
			Kind:      ErrUnknownFrameType,
			Direction: dir,
			TypeCode:  code,
			Consumed:  1,
		}
	}
	if rx.Count() < spec.length {
		return msg, discarded, nil
	}

	// Drain the whole frame before interpreting it so that a value error
	// still leaves the buffer aligned on the next frame.
	var frame [MaxFrameSize]byte
	for i := 0; i < spec.length; i++ {
		frame[i], _ = rx.Pop()
	}

	msg, err = spec.decode(frame[1:spec.length])
	if err != nil {
		var de *DecodeError
		if !errors.As(err, &de) {
			de = &DecodeError{Kind: err}
		}
		de.Direction = dir
		de.TypeCode = code
		de.Consumed = spec.length
		return msg, discarded, de
	}
	return msg, discarded, nil
}

func parameterID(id byte) (Parameter, error) {
	p, err := ParameterFromID(id)
	if err != nil {
		return 0, &DecodeError{Kind: ErrUnknownCatalogID, ID: id}
	}
	return p, nil
}

func statisticID(id byte) (Statistic, error) {
	s, err := StatisticFromID(id)
	if err != nil {
		return 0, &DecodeError{Kind: ErrUnknownCatalogID, ID: id}
	}
	return s, nil
}

// parameterValue reads an id byte followed by a 14-bit value.
func parameterValue(p []byte) (ParameterValue, error) {
	param, err := parameterID(p[0])
	if err != nil {
		return nil, err
	}
	raw := readUint14(p[1:])
	v, err := ParameterValueFromRaw(param, raw)
	if err != nil {
		return nil, &DecodeError{Kind: err, ID: p[0], Raw: raw}
	}
	return v, nil
}

// readUint14 assembles two 7-bit groups, low group first.
func readUint14(p []byte) uint16 {
	return uint16(p[0]&GroupMask)<<0 |
		uint16(p[1]&GroupMask)<<7
}

// readUint28 assembles four 7-bit groups, low group first.
func readUint28(p []byte) uint32 {
	return uint32(p[0]&GroupMask)<<0 |
		uint32(p[1]&GroupMask)<<7 |
		uint32(p[2]&GroupMask)<<14 |
		uint32(p[3]&GroupMask)<<21
}
