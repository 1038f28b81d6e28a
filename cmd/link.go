// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/resostat/pkg/capture"
	"github.com/Thermoquad/resostat/pkg/reso"
)

// linkBufferSize is the capacity of the tx and rx ring buffers
const linkBufferSize = 64

// readChunkSize is how much is read from the connection per call
const readChunkSize = 128

// Handler receives each decoded remote message, or the decode error that
// took its place.
type Handler func(msg reso.RemoteMessage, err error)

// Event is one decode result delivered by Link.Events. Fatal is set on the
// final event when the connection failed.
type Event struct {
	At    time.Time
	Msg   reso.RemoteMessage
	Err   error
	Fatal bool
}

// Link is the host side of a Reso connection. Outgoing messages are staged in
// a tx ring buffer, incoming bytes accumulate in an rx ring buffer until a
// whole frame can be decoded.
type Link struct {
	conn Connection

	sendMu sync.Mutex // serializes Send, guards tx
	tx     *reso.RingBuffer

	mu      sync.Mutex // guards rx, decoder and recorder
	rx      *reso.RingBuffer
	decoder *reso.Decoder

	recorder *capture.Writer

	seq atomic.Uint32
}

// NewLink wraps conn with ring buffers of the given capacity
func NewLink(conn Connection, bufferSize int) *Link {
	if bufferSize < reso.MaxFrameSize {
		bufferSize = reso.MaxFrameSize
	}
	rx := reso.NewRingBuffer(bufferSize)
	return &Link{
		conn:    conn,
		tx:      reso.NewRingBuffer(bufferSize),
		rx:      rx,
		decoder: reso.NewDecoder(rx, nil),
	}
}

// Record copies all traffic to w until Record(nil) is called
func (l *Link) Record(w *capture.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recorder = w
}

func (l *Link) record(dir reso.Direction, data []byte) {
	if l.recorder == nil || len(data) == 0 {
		return
	}
	rec := capture.Record{Time: time.Now(), Direction: dir, Data: append([]byte(nil), data...)}
	if err := l.recorder.Write(rec); err != nil {
		log.Printf("Capture write failed, recording stopped: %v", err)
		l.recorder = nil
	}
}

// Statistics returns a snapshot of the receive path counters
func (l *Link) Statistics() reso.LinkStatistics {
	l.mu.Lock()
	defer l.mu.Unlock()
	stats := *l.decoder.Statistics()
	stats.CalculateRates()
	return stats
}

// ResetStatistics clears the receive path counters
func (l *Link) ResetStatistics() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decoder.Statistics().Reset()
}

// NextPing returns a Ping carrying the next sequence number, wrapping at
// reso.SeqMax
func (l *Link) NextPing() reso.Ping {
	return reso.Ping{Seq: (l.seq.Add(1) - 1) & reso.SeqMax}
}

// Send encodes msg and writes the frame to the connection
func (l *Link) Send(msg reso.ControllerMessage) error {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	if err := reso.Encode(msg, l.tx); err != nil {
		return fmt.Errorf("failed to encode %s: %w", reso.MessageName(msg), err)
	}

	frame := make([]byte, 0, l.tx.Count())
	for {
		b, ok := l.tx.Pop()
		if !ok {
			break
		}
		frame = append(frame, b)
	}

	if _, err := l.conn.Write(frame); err != nil {
		return fmt.Errorf("failed to send %s: %w", reso.MessageName(msg), err)
	}

	l.mu.Lock()
	l.record(reso.ToController, frame)
	l.mu.Unlock()
	return nil
}

// Feed appends received bytes to the rx buffer. Bytes that do not fit are
// dropped and counted as overruns. It returns how many bytes were kept.
func (l *Link) Feed(data []byte) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.record(reso.ToRemote, data)

	kept := min(len(data), l.rx.FreeSpace())
	for _, b := range data[:kept] {
		l.rx.Push(b)
	}
	l.decoder.Statistics().AddOverrun(len(data) - kept)
	return kept
}

// Poll decodes the next buffered remote message. (nil, nil) means no
// complete frame is buffered.
func (l *Link) Poll() (reso.RemoteMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.decoder.NextRemote()
}

// Receive feeds data and hands every decodable message to handle. Data larger
// than the free space is fed in pieces with decoding in between, so only a
// buffer that cannot make progress overruns.
func (l *Link) Receive(data []byte, handle Handler) {
	for {
		l.mu.Lock()
		free := l.rx.FreeSpace()
		l.mu.Unlock()

		chunk := data
		if free > 0 && len(chunk) > free {
			chunk = data[:free]
		}
		l.Feed(chunk)
		data = data[len(chunk):]

		l.dispatch(handle)
		if len(data) == 0 {
			return
		}
	}
}

func (l *Link) dispatch(handle Handler) {
	for {
		msg, err := l.Poll()
		if msg == nil && err == nil {
			return
		}
		if handle != nil {
			handle(msg, err)
		}
	}
}

// Run reads from the connection until ctx is done or a read fails. Serial
// reads time out periodically so cancellation is noticed; a WebSocket read
// only returns once the connection is closed.
func (l *Link) Run(ctx context.Context, handle Handler) error {
	buf := make([]byte, readChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := l.conn.Read(buf)
		if n > 0 {
			l.Receive(buf[:n], handle)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("connection read failed: %w", err)
		}
	}
}

// Events runs the link in the background and delivers every decode result
// on the returned channel. The channel is closed when Run returns; a read
// failure is delivered first as a Fatal event.
func (l *Link) Events(ctx context.Context) <-chan Event {
	events := make(chan Event, 64)
	go func() {
		defer close(events)
		err := l.Run(ctx, func(msg reso.RemoteMessage, err error) {
			select {
			case events <- Event{At: time.Now(), Msg: msg, Err: err}:
			case <-ctx.Done():
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			select {
			case events <- Event{At: time.Now(), Err: err, Fatal: true}:
			case <-ctx.Done():
			}
		}
	}()
	return events
}

// ErrNoReply is returned by Request when the timeout passes without a match
var ErrNoReply = errors.New("no reply from device")

// Request sends msg and waits on events for the first message accepted by
// match. Unrelated messages and decode errors are skipped.
func (l *Link) Request(ctx context.Context, events <-chan Event, msg reso.ControllerMessage, timeout time.Duration, match func(reso.RemoteMessage) bool) (reso.RemoteMessage, error) {
	if err := l.Send(msg); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, fmt.Errorf("%s: %w after %v", reso.MessageName(msg), ErrNoReply, timeout)
		case ev, ok := <-events:
			if !ok {
				return nil, fmt.Errorf("%s: link closed", reso.MessageName(msg))
			}
			if ev.Fatal {
				return nil, ev.Err
			}
			if ev.Msg != nil && match(ev.Msg) {
				return ev.Msg, nil
			}
		}
	}
}

// StartKeepAlive sends KeepAlive every interval until ctx is done
func (l *Link) StartKeepAlive(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := l.Send(reso.KeepAlive{}); err != nil {
					log.Printf("Keep-alive failed: %v", err)
				}
			}
		}
	}()
}

// parameterResult matches the GetParameterResult for p
func parameterResult(p reso.Parameter) func(reso.RemoteMessage) bool {
	return func(msg reso.RemoteMessage) bool {
		r, ok := msg.(reso.GetParameterResult)
		return ok && r.Value != nil && r.Value.Parameter() == p
	}
}

// statisticResult matches the GetStatisticResult for s
func statisticResult(s reso.Statistic) func(reso.RemoteMessage) bool {
	return func(msg reso.RemoteMessage) bool {
		r, ok := msg.(reso.GetStatisticResult)
		return ok && r.Value != nil && r.Value.Statistic() == s
	}
}

// pingEcho matches the echo of ping
func pingEcho(ping reso.Ping) func(reso.RemoteMessage) bool {
	return func(msg reso.RemoteMessage) bool {
		echo, ok := msg.(reso.Ping)
		return ok && echo.Seq == ping.Seq
	}
}
