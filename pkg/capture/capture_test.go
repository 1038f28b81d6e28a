// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/resostat/pkg/reso"
)

func TestWriterReader(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "/dev/ttyUSB0")
	require.NoError(t, err)

	at := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)
	records := []Record{
		{Time: at, Direction: reso.ToController, Data: reso.MustEncodeFrame(reso.Run{})},
		{Time: at.Add(time.Millisecond), Direction: reso.ToRemote, Data: []byte{0x83, 0x80, 10, 96, 0}},
	}
	for _, rec := range records {
		require.NoError(t, w.Write(rec))
	}

	r, err := NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, Magic, r.Header().Magic)
	assert.Equal(t, "/dev/ttyUSB0", r.Header().Source)

	for _, want := range records {
		got, err := r.Next()
		require.NoError(t, err)
		assert.True(t, want.Time.Equal(got.Time), "time %v, want %v", got.Time, want.Time)
		assert.Equal(t, want.Direction, got.Direction)
		assert.Equal(t, want.Data, got.Data)
	}

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestNewReader_RejectsForeignData(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{0x82, 0x0A, 0x60, 0x00}))
	assert.True(t, errors.Is(err, ErrNotCapture), "err = %v", err)

	_, err = NewReader(bytes.NewReader(nil))
	assert.True(t, errors.Is(err, ErrNotCapture), "err = %v", err)
}

func TestReader_TruncatedRecord(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "")
	require.NoError(t, err)
	headerLen := buf.Len()
	require.NoError(t, w.Write(Record{Time: time.Now(), Data: []byte{1, 2, 3}}))

	truncated := buf.Bytes()[:buf.Len()-2]
	require.Greater(t, len(truncated), headerLen)

	r, err := NewReader(bytes.NewReader(truncated))
	require.NoError(t, err)
	_, err = r.Next()
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

func TestReplayThroughDecoder(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "ws://resonator.local/ws")
	require.NoError(t, err)

	// A frame split across two reads.
	frame := reso.MustEncodeFrame(reso.GetStatisticResult{Value: reso.MaxPrimaryCurrent(12.5)})
	require.NoError(t, w.Write(Record{Time: time.Now(), Direction: reso.ToRemote, Data: frame[:2]}))
	require.NoError(t, w.Write(Record{Time: time.Now(), Direction: reso.ToRemote, Data: frame[2:]}))

	r, err := NewReader(&buf)
	require.NoError(t, err)

	rx := reso.NewRingBuffer(16)
	var msgs []reso.RemoteMessage
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		for _, b := range rec.Data {
			rx.Push(b)
		}
		msg, err := reso.DecodeRemoteMessage(rx)
		require.NoError(t, err)
		if msg != nil {
			msgs = append(msgs, msg)
		}
	}

	require.Len(t, msgs, 1)
	assert.Equal(t, reso.GetStatisticResult{Value: reso.MaxPrimaryCurrent(12.5)}, msgs[0])
}
