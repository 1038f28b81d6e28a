// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/resostat/pkg/reso"
)

var (
	probeWait time.Duration
	probePing bool
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the connection by waiting for a valid Reso frame",
	Long: `Wait for a valid Reso frame on the connection until the wait expires.

Bytes before the first start marker and frames that fail to decode are
ignored. With --ping (the default) a PING is sent first so an idle driver
still answers.

Exit codes:
  0 - Frame received before the wait expired
  1 - No valid frame received in time
  2 - Connection error

Useful in scripts to check that a driver or bridge is reachable.`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().DurationVar(&probeWait, "wait", 10*time.Second, "How long to wait for a frame")
	probeCmd.Flags().BoolVar(&probePing, "ping", true, "Send a PING to provoke a reply")
}

func runProbe(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Resostat - Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Wait: %v\n\n", probeWait)

	ctx, cancel := context.WithTimeout(context.Background(), probeWait)
	defer cancel()

	link := NewLink(conn, linkBufferSize)
	events := link.Events(ctx)

	if probePing {
		if err := link.Send(link.NextPing()); err != nil {
			fmt.Fprintf(os.Stderr, "Send error: %v\n", err)
			os.Exit(2)
		}
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Fatal {
				fmt.Fprintf(os.Stderr, "Read error: %v\n", ev.Err)
				os.Exit(2)
			}
			if ev.Msg == nil {
				continue
			}

			stats := link.Statistics()
			if stats.DiscardedBytes > 0 || stats.DecodeErrors > 0 {
				fmt.Printf("(skipped %d bytes and %d bad frames before sync)\n", stats.DiscardedBytes, stats.DecodeErrors)
			}
			fmt.Printf("SUCCESS: Received valid frame\n")
			fmt.Printf("  Message: %s\n", reso.DescribeMessage(ev.Msg))
			if frame, err := reso.EncodeFrame(ev.Msg); err == nil {
				fmt.Printf("  Type: 0x%02X\n", ev.Msg.Type())
				fmt.Printf("  Bytes: %s\n", reso.FormatFrame(frame))
			}
			os.Exit(0)

		case <-ctx.Done():
			fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %v\n", probeWait)
			os.Exit(1)
		}
	}
}
