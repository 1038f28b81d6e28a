// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package reso

import (
	"errors"
	"fmt"
	"time"
)

// LinkStatistics tracks frame counts and error rates on a receive path.
// Not safe for concurrent use.
type LinkStatistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames       uint64
	ValidFrames       uint64
	DecodeErrors      uint64
	UnknownFrameTypes uint64
	UnknownCatalogIDs uint64
	InvalidValues     uint64
	DiscardedBytes    uint64 // dropped by the resync scan
	OverrunBytes      uint64 // dropped because the receive buffer was full

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewLinkStatistics creates a new statistics tracker
func NewLinkStatistics() *LinkStatistics {
	now := time.Now()
	return &LinkStatistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records the outcome of one decode call. Pending results (nil
// message, nil error) are ignored.
func (s *LinkStatistics) Update(msg Message, decodeErr error) {
	if msg == nil && decodeErr == nil {
		return
	}
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if decodeErr == nil {
		s.ValidFrames++
		return
	}

	s.DecodeErrors++
	switch {
	case errors.Is(decodeErr, ErrUnknownFrameType):
		s.UnknownFrameTypes++
	case errors.Is(decodeErr, ErrUnknownCatalogID):
		s.UnknownCatalogIDs++
	case errors.Is(decodeErr, ErrInvalidEnumeratedValue):
		s.InvalidValues++
	}
}

// AddDiscarded records bytes dropped by the resync scan.
func (s *LinkStatistics) AddDiscarded(n int) {
	if n > 0 {
		s.DiscardedBytes += uint64(n)
	}
}

// AddOverrun records bytes lost because the receive buffer was full.
func (s *LinkStatistics) AddOverrun(n int) {
	if n > 0 {
		s.OverrunBytes += uint64(n)
	}
}

// CalculateRates calculates frame and error rates
func (s *LinkStatistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.DecodeErrors) / elapsed
	}
}

// ValidPercent returns the share of frames that decoded cleanly.
func (s *LinkStatistics) ValidPercent() float64 {
	if s.TotalFrames == 0 {
		return 0
	}
	return float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
}

// String returns a formatted statistics summary
func (s *LinkStatistics) String() string {
	s.CalculateRates()

	var errorPercent float64
	if s.TotalFrames > 0 {
		errorPercent = float64(s.DecodeErrors) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, s.ValidPercent())

	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, errorPercent)
		if s.UnknownFrameTypes > 0 {
			result += fmt.Sprintf("  Unknown Type:     %5d\n", s.UnknownFrameTypes)
		}
		if s.UnknownCatalogIDs > 0 {
			result += fmt.Sprintf("  Unknown Id:       %5d\n", s.UnknownCatalogIDs)
		}
		if s.InvalidValues > 0 {
			result += fmt.Sprintf("  Invalid Value:    %5d\n", s.InvalidValues)
		}
	}
	if s.DiscardedBytes > 0 {
		result += fmt.Sprintf("Resync Discards: %8d bytes\n", s.DiscardedBytes)
	}
	if s.OverrunBytes > 0 {
		result += fmt.Sprintf("Rx Overruns:     %8d bytes\n", s.OverrunBytes)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *LinkStatistics) Reset() {
	*s = *NewLinkStatistics()
}

// Decoder polls a receive buffer and keeps LinkStatistics up to date.
type Decoder struct {
	rx    *RingBuffer
	stats *LinkStatistics
}

// NewDecoder creates a decoder reading from rx. stats may be nil.
func NewDecoder(rx *RingBuffer, stats *LinkStatistics) *Decoder {
	if stats == nil {
		stats = NewLinkStatistics()
	}
	return &Decoder{rx: rx, stats: stats}
}

// Statistics returns the tracker updated by this decoder.
func (d *Decoder) Statistics() *LinkStatistics {
	return d.stats
}

// Buffer returns the receive buffer the decoder reads from.
func (d *Decoder) Buffer() *RingBuffer {
	return d.rx
}

// NextRemote decodes the next remote-bound frame.
func (d *Decoder) NextRemote() (RemoteMessage, error) {
	msg, discarded, err := decodeFrame(d.rx, ToRemote, remoteFrames)
	d.stats.AddDiscarded(discarded)
	if msg != nil {
		d.stats.Update(msg, nil)
	} else {
		d.stats.Update(nil, err)
	}
	return msg, err
}

// NextController decodes the next controller-bound frame.
func (d *Decoder) NextController() (ControllerMessage, error) {
	msg, discarded, err := decodeFrame(d.rx, ToController, controllerFrames)
	d.stats.AddDiscarded(discarded)
	if msg != nil {
		d.stats.Update(msg, nil)
	} else {
		d.stats.Update(nil, err)
	}
	return msg, err
}
