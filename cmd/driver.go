// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/resostat/pkg/reso"
)

var statReset bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the driver",
	Long: `Send RUN to start the driver.

The driver stops again if it stops hearing KEEP_ALIVE, so this command is
mostly useful for bench tests with keep-alive checking disabled. Use control
for an interactive session that keeps the driver alive.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendOnce(reso.Run{})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the driver",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendOnce(reso.Stop{})
	},
}

var ledCmd = &cobra.Command{
	Use:       "led <on|off>",
	Short:     "Switch the debug LED",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch strings.ToLower(args[0]) {
		case "on", "1", "true":
			return sendOnce(reso.SetDebugLED{On: true})
		case "off", "0", "false":
			return sendOnce(reso.SetDebugLED{On: false})
		}
		return fmt.Errorf("expected on or off, got %q", args[0])
	},
}

var statCmd = &cobra.Command{
	Use:   "stat [statistic...]",
	Short: "Read driver statistics",
	Long: `Read one or more statistics. Without arguments every statistic is read.
With --reset the statistics are cleared on the driver instead.`,
	RunE: runStat,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(ledCmd)
	rootCmd.AddCommand(statCmd)
	statCmd.Flags().BoolVar(&statReset, "reset", false, "Reset all statistics")
}

// sendOnce sends a single command that has no reply
func sendOnce(msg reso.ControllerMessage) error {
	return withSession(func(ctx context.Context, s *session) error {
		if err := s.link.Send(msg); err != nil {
			return err
		}
		fmt.Printf("Sent %s\n", reso.DescribeMessage(msg))
		return nil
	})
}

func runStat(cmd *cobra.Command, args []string) error {
	if statReset {
		return sendOnce(reso.ResetStatistics{})
	}

	stats := reso.AllStatistics
	if len(args) > 0 {
		stats = nil
		for _, name := range args {
			st, err := reso.ParseStatistic(name)
			if err != nil {
				return err
			}
			stats = append(stats, st)
		}
	}

	return withSession(func(ctx context.Context, s *session) error {
		for _, st := range stats {
			v, err := s.readStatistic(ctx, st)
			if err != nil {
				return err
			}
			fmt.Printf("%-20s %s\n", st, reso.FormatStatisticValue(v))
		}
		return nil
	})
}
