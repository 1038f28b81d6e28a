// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/spf13/cobra"
)

var (
	pingCount    int
	pingInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round trip time with PING frames",
	Long: `Send PING frames with increasing sequence numbers and wait for each echo.

The driver echoes every PING with the same sequence number. Round trip times
are collected in a histogram and summarized with percentiles at the end.

Exit codes:
  0 - All pings answered
  1 - One or more pings timed out
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVarP(&pingCount, "count", "c", 5, "Number of pings to send")
	pingCmd.Flags().DurationVar(&pingInterval, "interval", 200*time.Millisecond, "Delay between pings")
}

// pingResults collects round trip times in microseconds
type pingResults struct {
	sent       int
	received   int
	outOfRange int // echoes too slow for the histogram
	hist       *hdrhistogram.Histogram
}

// newPingResults sizes the histogram so any echo accepted within timeout fits
func newPingResults(timeout time.Duration) *pingResults {
	highest := max((timeout + time.Second).Microseconds(), 2)
	// 1 µs up to the timeout, 3 significant figures
	return &pingResults{hist: hdrhistogram.New(1, highest, 3)}
}

func (r *pingResults) add(rtt time.Duration) {
	r.received++
	us := rtt.Microseconds()
	if us < 1 {
		us = 1
	}
	if err := r.hist.RecordValue(us); err != nil {
		r.outOfRange++
	}
}

func (r *pingResults) loss() float64 {
	if r.sent == 0 {
		return 0
	}
	return float64(r.sent-r.received) / float64(r.sent) * 100
}

func (r *pingResults) write(w io.Writer) {
	fmt.Fprintf(w, "\n--- Ping statistics ---\n")
	fmt.Fprintf(w, "%d pings sent, %d echoes received, %.0f%% loss\n", r.sent, r.received, r.loss())
	if r.outOfRange > 0 {
		fmt.Fprintf(w, "%d echoes above histogram range, left out of rtt figures\n", r.outOfRange)
	}
	if r.hist.TotalCount() == 0 {
		return
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	fmt.Fprintf(w, "rtt min/mean/max/stddev = %v/%v/%v/%v\n",
		us(r.hist.Min()), us(int64(r.hist.Mean())), us(r.hist.Max()), us(int64(r.hist.StdDev())))
	fmt.Fprintf(w, "rtt p50/p90/p99 = %v/%v/%v\n",
		us(r.hist.ValueAtPercentile(50)), us(r.hist.ValueAtPercentile(90)), us(r.hist.ValueAtPercentile(99)))
}

func runPing(cmd *cobra.Command, args []string) error {
	if pingCount < 1 {
		return errors.New("--count must be at least 1")
	}

	results := newPingResults(replyTimeout)
	err := withSession(func(ctx context.Context, s *session) error {
		fmt.Printf("Resostat - Ping\n")
		fmt.Printf("Connection: %s\n", s.info)
		fmt.Printf("Timeout: %v per ping\n\n", replyTimeout)

		for i := 1; i <= pingCount; i++ {
			ping := s.link.NextPing()
			fmt.Printf("Ping %d/%d seq=%d: ", i, pingCount, ping.Seq)

			results.sent++
			start := time.Now()
			_, err := s.link.Request(ctx, s.events, ping, replyTimeout, pingEcho(ping))
			switch {
			case err == nil:
				rtt := time.Since(start)
				results.add(rtt)
				fmt.Printf("echo, rtt=%v\n", rtt.Round(time.Microsecond))
			case errors.Is(err, ErrNoReply):
				fmt.Printf("TIMEOUT\n")
			case ctx.Err() != nil:
				results.sent--
				return nil
			default:
				fmt.Printf("FAILED: %v\n", err)
				return err
			}

			if i < pingCount {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(pingInterval):
				}
			}
		}
		return nil
	})
	if err != nil && results.sent == 0 {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	results.write(os.Stdout)
	if results.received < results.sent {
		os.Exit(1)
	}
	return nil
}
