// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package reso

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFrameType is returned when a marked byte carries a type code
	// missing from the direction's table. Only that byte is consumed.
	ErrUnknownFrameType = errors.New("unknown frame type")
	// ErrUnknownCatalogID is returned when a complete frame names a parameter
	// or statistic id outside its catalog. The whole frame is consumed.
	ErrUnknownCatalogID = errors.New("unknown catalog id")
	// ErrInvalidEnumeratedValue is returned when a payload value lies outside
	// a closed enumeration such as RunMode. The whole frame is consumed.
	ErrInvalidEnumeratedValue = errors.New("invalid enumerated value")
	// ErrBufferFull is returned by Encode when the frame does not fit.
	// Nothing is written.
	ErrBufferFull = errors.New("buffer full")
)

// DecodeError describes a rejected frame. It matches its Kind sentinel with
// errors.Is.
type DecodeError struct {
	Kind      error
	Direction Direction
	TypeCode  uint8
	ID        uint8  // catalog id, when Kind is ErrUnknownCatalogID
	Raw       uint16 // offending raw value, when Kind is ErrInvalidEnumeratedValue
	Consumed  int    // bytes removed from the receive buffer
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	switch e.Kind {
	case ErrUnknownFrameType:
		return fmt.Sprintf("%v: 0x%02X (%s bound)", e.Kind, e.TypeCode, e.Direction)
	case ErrUnknownCatalogID:
		return fmt.Sprintf("%v: %d in %s frame", e.Kind, e.ID, FormatMessageType(e.Direction, e.TypeCode))
	case ErrInvalidEnumeratedValue:
		return fmt.Sprintf("%v: %d in %s frame", e.Kind, e.Raw, FormatMessageType(e.Direction, e.TypeCode))
	default:
		return fmt.Sprintf("decode error in %s frame: %v", FormatMessageType(e.Direction, e.TypeCode), e.Kind)
	}
}

// Unwrap returns the sentinel error.
func (e *DecodeError) Unwrap() error {
	return e.Kind
}
