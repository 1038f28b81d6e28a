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

var setVerify bool

var getCmd = &cobra.Command{
	Use:   "get [parameter...]",
	Short: "Read parameters from the driver",
	Long: `Read one or more parameters and print them in physical units.

Parameters are named as in the protocol catalog, case-insensitive, with
underscores or dashes (current_limit, CURRENT-LIMIT) or by numeric id.
Without arguments every parameter is read.

Parameters: ` + parameterList(),
	RunE: runGet,
}

var setCmd = &cobra.Command{
	Use:   "set <parameter> <value>",
	Short: "Write a parameter on the driver",
	Long: `Write a parameter value. The value is given in physical units:

  durations   Go syntax (150us, 2ms) or a bare number in the parameter's unit
  currents    amperes, optional "A" suffix
  frequency   kHz, optional "kHz" suffix
  ramp power  fraction 0.0-1.0 or a percentage (80%)
  run mode    FIXED, TRACKING or BURST

Values are quantized to the wire resolution and clamped into range. Unless
--verify=false is given, the parameter is read back afterwards.

Parameters: ` + parameterList(),
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	setCmd.Flags().BoolVar(&setVerify, "verify", true, "Read the parameter back after writing")
}

func parameterList() string {
	names := make([]string, 0, len(reso.AllParameters))
	for _, p := range reso.AllParameters {
		names = append(names, strings.ToLower(p.String()))
	}
	return strings.Join(names, ", ")
}

func runGet(cmd *cobra.Command, args []string) error {
	params := reso.AllParameters
	if len(args) > 0 {
		params = nil
		for _, name := range args {
			p, err := reso.ParseParameter(name)
			if err != nil {
				return err
			}
			params = append(params, p)
		}
	}

	return withSession(func(ctx context.Context, s *session) error {
		for _, p := range params {
			v, err := s.readParameter(ctx, p)
			if err != nil {
				return err
			}
			fmt.Printf("%-20s %s\n", p, reso.FormatValue(v))
		}
		return nil
	})
}

func runSet(cmd *cobra.Command, args []string) error {
	p, err := reso.ParseParameter(args[0])
	if err != nil {
		return err
	}
	value, err := reso.ParseParameterValue(p, args[1])
	if err != nil {
		return err
	}

	return withSession(func(ctx context.Context, s *session) error {
		if err := s.link.Send(reso.SetParameter{Value: value}); err != nil {
			return err
		}
		fmt.Printf("Sent %s\n", reso.FormatParameterValue(value))

		if !setVerify {
			return nil
		}
		got, err := s.readParameter(ctx, p)
		if err != nil {
			return fmt.Errorf("read back failed: %w", err)
		}
		if got.Raw() != value.Raw() {
			return fmt.Errorf("read back %s, device did not accept the value", reso.FormatParameterValue(got))
		}
		fmt.Printf("Verified %s\n", reso.FormatParameterValue(got))
		return nil
	})
}
