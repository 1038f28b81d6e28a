// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Resostat - Reso Serial Protocol Tool
//
// A CLI tool for monitoring, tuning and running resonant drivers over the
// Reso serial protocol.

package main

import (
	"os"

	"github.com/Thermoquad/resostat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
