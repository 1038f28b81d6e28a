// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/resostat/pkg/reso"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze decode errors on the link",
	Long: `Track decode errors, resync discards and overruns with statistics.

This command decodes every remote-bound frame and detects:
  - Unknown frame types (a marked byte with no matching type code)
  - Unknown parameter or statistic ids
  - Out-of-range enumerated values
  - Bytes discarded while resynchronizing, and receive buffer overruns
  - Driver fault reports (LOCK_FAILED, OCD_TRIPPED)

By default, only errors are displayed. Use --show-all to display valid messages too.

Errors are highlighted as they happen and statistics summaries are displayed
at configurable intervals.

Supports both serial and WebSocket connections.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all messages (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	link := NewLink(conn, linkBufferSize)
	events := link.Events(ctx)

	if useTUI {
		return runTUIMode(link, events, connInfo)
	}
	return runTextMode(ctx, link, events, connInfo)
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(at time.Time, err error) {
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", at.Format("15:04:05.000"), err)
}

// printDriverFault prints an unsolicited fault report from the driver
func printDriverFault(at time.Time, msg reso.RemoteMessage) {
	fmt.Printf("[%s] \033[1;33mDRIVER FAULT:\033[0m %s\n", at.Format("15:04:05.000"), reso.MessageName(msg))
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(link *Link, events <-chan Event, connInfo string) error {
	m := initialModel(link, connInfo, statsInterval, showAll)
	p := tea.NewProgram(m)

	go func() {
		for ev := range events {
			p.Send(linkEventMsg(ev))
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(ctx context.Context, link *Link, events <-chan Event, connInfo string) error {
	fmt.Printf("Resostat - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All messages\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	synchronized := false

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			stats := link.Statistics()
			fmt.Printf("\n%s", stats.String())
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Fatal {
				return ev.Err
			}

			if ev.Err != nil {
				// Errors before the first good frame are line noise
				if synchronized {
					printDecodeError(ev.At, ev.Err)
				}
				continue
			}

			if !synchronized {
				synchronized = true
				if skipped := link.Statistics().DiscardedBytes; skipped > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d bytes\n\n", skipped)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			}

			switch ev.Msg.(type) {
			case reso.LockFailed, reso.OCDTripped:
				printDriverFault(ev.At, ev.Msg)
			default:
				if showAll {
					fmt.Print(reso.FormatMessage(ev.At, ev.Msg))
				}
			}

		case <-statsTicker.C:
			stats := link.Statistics()
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
