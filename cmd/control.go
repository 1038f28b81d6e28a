// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/resostat/pkg/reso"
)

var keepAliveInterval time.Duration

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for tuning and running a resonant driver",
	Long: `Control a resonant driver via an interactive terminal UI.

Features:
  - Parameter table, read from the driver on connect
  - Editing parameters in physical units with read-back
  - Run / stop, with KEEP_ALIVE sent automatically while running
  - Peak primary current and link round trip time
  - Statistics tracking and event logging
  - Automatic reconnection on connection loss

Tab cycles between the parameter list, the value editor and the run button.
Enter on a parameter opens it for editing. 'r' re-reads all parameters, 's'
stops the driver from anywhere, 'x' resets the driver statistics.

Supports both serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.Flags().DurationVar(&keepAliveInterval, "keep-alive", 250*time.Millisecond, "KEEP_ALIVE interval while running")
}

// errConnectionLost is returned when sending while reconnecting
var errConnectionLost = errors.New("connection lost")

// controlLink is what the control TUI needs from the connection
type controlLink interface {
	send(msg reso.ControllerMessage) error
	statistics() reso.LinkStatistics
	nextPing() reso.Ping
	setDriving(on bool)
}

// connectionManager handles connection lifecycle and reconnection
type connectionManager struct {
	mu       sync.RWMutex
	link     *Link
	connInfo string

	p   *tea.Program
	ctx context.Context

	driveMu       sync.Mutex
	stopKeepAlive context.CancelFunc

	// sequence numbers continue across reconnects
	lastSeq uint32
}

func (cm *connectionManager) getLink() *Link {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.link
}

func (cm *connectionManager) setLink(link *Link, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.link = link
	cm.connInfo = connInfo
}

func (cm *connectionManager) send(msg reso.ControllerMessage) error {
	link := cm.getLink()
	if link == nil {
		return errConnectionLost
	}
	return link.Send(msg)
}

func (cm *connectionManager) statistics() reso.LinkStatistics {
	link := cm.getLink()
	if link == nil {
		return *reso.NewLinkStatistics()
	}
	return link.Statistics()
}

func (cm *connectionManager) nextPing() reso.Ping {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	ping := reso.Ping{Seq: cm.lastSeq & reso.SeqMax}
	cm.lastSeq++
	return ping
}

// setDriving starts or stops the keep-alive stream on the current link
func (cm *connectionManager) setDriving(on bool) {
	cm.driveMu.Lock()
	defer cm.driveMu.Unlock()

	if cm.stopKeepAlive != nil {
		cm.stopKeepAlive()
		cm.stopKeepAlive = nil
	}
	if !on {
		return
	}

	link := cm.getLink()
	if link == nil {
		return
	}
	ctx, cancel := context.WithCancel(cm.ctx)
	cm.stopKeepAlive = cancel
	link.StartKeepAlive(ctx, keepAliveInterval)
}

func runControl(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cm := &connectionManager{
		link:     NewLink(conn, linkBufferSize),
		connInfo: connInfo,
		ctx:      ctx,
	}

	m := initialControlModel(cm, connInfo)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	cm.p = p

	go cm.readerLoop()

	_, runErr := p.Run()

	// Never leave the driver running unattended
	cm.setDriving(false)
	if link := cm.getLink(); link != nil {
		_ = link.Send(reso.Stop{})
	}

	cancel()
	if link := cm.getLink(); link != nil {
		link.conn.Close()
	}

	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}

// readerLoop handles reading from connection with automatic reconnection
func (cm *connectionManager) readerLoop() {
	for {
		if cm.ctx.Err() != nil {
			return
		}

		err := cm.readFromConnection()
		if cm.ctx.Err() != nil {
			return
		}

		cm.setDriving(false)
		cm.p.Send(connectionLostMsg{err: err})

		if !cm.reconnect() {
			return
		}
	}
}

// readFromConnection runs the current link until it fails, forwarding
// decoded messages to the TUI in batches
func (cm *connectionManager) readFromConnection() error {
	link := cm.getLink()
	if link == nil {
		return errConnectionLost
	}

	batchChan := make(chan Event, 100)
	readerDone := make(chan struct{})

	// Batch sender - forwards updates to the TUI at a fixed rate
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-cm.ctx.Done():
				return
			case <-ticker.C:
			case <-readerDone:
			}

			var batch controlBatchMsg
		drainLoop:
			for {
				select {
				case ev := <-batchChan:
					batch.events = append(batch.events, ev)
				default:
					break drainLoop
				}
			}
			if len(batch.events) > 0 {
				cm.p.Send(batch)
			}

			select {
			case <-readerDone:
				return
			default:
			}
		}
	}()

	err := link.Run(cm.ctx, func(msg reso.RemoteMessage, err error) {
		select {
		case batchChan <- Event{At: time.Now(), Msg: msg, Err: err}:
		default:
			// TUI is behind, drop rather than stall the reader
		}
	})
	close(readerDone)
	return err
}

// reconnect attempts to reconnect with exponential backoff
// Returns false if shutdown was requested during reconnection
func (cm *connectionManager) reconnect() bool {
	if link := cm.getLink(); link != nil {
		link.conn.Close()
	}
	cm.setLink(nil, "")

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.ctx.Done():
			return false
		case <-time.After(backoff):
		}

		conn, connInfo, err := OpenConnection()
		if err == nil {
			cm.setLink(NewLink(conn, linkBufferSize), connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
