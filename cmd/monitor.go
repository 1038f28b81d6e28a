// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/resostat/pkg/capture"
	"github.com/Thermoquad/resostat/pkg/reso"
)

var (
	monitorRecordPath string
	monitorShowFrames bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display decoded Reso messages as they arrive",
	Long: `Continuously decode and display remote-bound Reso messages as they arrive.

Each message is printed with a timestamp and its decoded payload in physical
units. Decode errors are shown inline and the link resynchronizes on the next
start marker.

With --record, all received bytes are also written to a capture file that can
be inspected later with the replay command.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorRecordPath, "record", "", "Write received traffic to a capture file")
	monitorCmd.Flags().BoolVar(&monitorShowFrames, "frames", false, "Show the raw frame bytes of each message")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	link := NewLink(conn, linkBufferSize)

	if monitorRecordPath != "" {
		f, err := os.Create(monitorRecordPath)
		if err != nil {
			return fmt.Errorf("failed to create capture file: %w", err)
		}
		defer f.Close()

		w, err := capture.NewWriter(f, connectionSource())
		if err != nil {
			return err
		}
		link.Record(w)
	}

	fmt.Printf("Resostat - Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if monitorRecordPath != "" {
		fmt.Printf("Recording: %s\n", monitorRecordPath)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = link.Run(ctx, printMessage)
	if errors.Is(err, context.Canceled) {
		stats := link.Statistics()
		fmt.Printf("\n%s", stats.String())
		return nil
	}
	if errors.Is(err, ErrConnectionClosed) {
		log.Printf("Connection closed")
		return nil
	}
	return err
}

// printMessage is the Handler used by monitor and replay
func printMessage(msg reso.RemoteMessage, err error) {
	if err != nil {
		fmt.Printf("[ERROR] %v\n", err)
		return
	}
	fmt.Print(reso.FormatMessage(time.Now(), msg))
	if monitorShowFrames {
		if frame, err := reso.EncodeFrame(msg); err == nil {
			fmt.Printf("         %s\n", reso.FormatFrame(frame))
		}
	}
}
