// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture reads and writes recorded Reso traffic.
//
// A capture file is a CBOR sequence: a Header followed by one Record per
// chunk of bytes read from (or written to) the link. Records hold raw bytes,
// not decoded messages, so a capture can be replayed through a newer decoder.
package capture

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/resostat/pkg/reso"
)

// Magic identifies a capture stream.
const Magic = "reso-capture"

// Version is the current capture format version.
const Version = 1

// ErrNotCapture is returned by NewReader when the stream does not start with
// a capture header.
var ErrNotCapture = errors.New("not a reso capture")

// Header is the first item of every capture.
type Header struct {
	Magic   string    `cbor:"1,keyasint"`
	Version uint      `cbor:"2,keyasint"`
	Started time.Time `cbor:"3,keyasint"`
	Source  string    `cbor:"4,keyasint,omitempty"` // port or URL
}

// Record is one chunk of link traffic.
type Record struct {
	Time      time.Time      `cbor:"1,keyasint"`
	Direction reso.Direction `cbor:"2,keyasint"`
	Data      []byte         `cbor:"3,keyasint"`
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture: cbor enc mode: %v", err))
	}
}

// Writer appends records to a capture stream.
type Writer struct {
	enc *cbor.Encoder
}

// NewWriter writes a header for source to w and returns a Writer.
func NewWriter(w io.Writer, source string) (*Writer, error) {
	enc := encMode.NewEncoder(w)
	hdr := Header{Magic: Magic, Version: Version, Started: time.Now(), Source: source}
	if err := enc.Encode(hdr); err != nil {
		return nil, fmt.Errorf("failed to write capture header: %w", err)
	}
	return &Writer{enc: enc}, nil
}

// Write appends one record.
func (w *Writer) Write(rec Record) error {
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to write capture record: %w", err)
	}
	return nil
}

// Reader iterates over the records of a capture stream.
type Reader struct {
	dec    *cbor.Decoder
	header Header
}

// NewReader reads and validates the capture header.
func NewReader(r io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(r)
	var hdr Header
	if err := dec.Decode(&hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCapture, err)
	}
	if hdr.Magic != Magic {
		return nil, ErrNotCapture
	}
	if hdr.Version > Version {
		return nil, fmt.Errorf("unsupported capture version %d", hdr.Version)
	}
	return &Reader{dec: dec, header: hdr}, nil
}

// Header returns the stream header.
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to read capture record: %w", err)
	}
	return rec, nil
}
