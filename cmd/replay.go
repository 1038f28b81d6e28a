// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/resostat/pkg/capture"
	"github.com/Thermoquad/resostat/pkg/reso"
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Decode a capture file recorded by monitor",
	Long: `Decode a capture file offline and print every message in both directions.

Remote-bound and controller-bound bytes are decoded with separate buffers, so
a capture taken on a shared bus replays the same way it was seen live. A link
statistics summary for each direction is printed at the end.

No connection flags are needed.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	toRemote, toController, err := replayCapture(bufio.NewReader(f), out)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nRemote bound:\n%s", toRemote.String())
	fmt.Fprintf(out, "\nController bound:\n%s", toController.String())
	return nil
}

// replayCapture decodes every record in r and writes one line per message to
// out. It returns the statistics for each direction.
func replayCapture(r io.Reader, out io.Writer) (toRemote, toController *reso.LinkStatistics, err error) {
	reader, err := capture.NewReader(r)
	if err != nil {
		return nil, nil, err
	}

	hdr := reader.Header()
	fmt.Fprintf(out, "Capture: %s (started %s)\n\n", hdr.Source, hdr.Started.Format("2006-01-02 15:04:05"))

	remote := reso.NewDecoder(reso.NewRingBuffer(linkBufferSize), nil)
	controller := reso.NewDecoder(reso.NewRingBuffer(linkBufferSize), nil)
	remoteRx := newReplayBuffer(remote)
	controllerRx := newReplayBuffer(controller)

	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return remote.Statistics(), controller.Statistics(), err
		}

		switch rec.Direction {
		case reso.ToRemote:
			remoteRx.feed(rec.Data, func() (reso.Message, error) {
				return remote.NextRemote()
			}, func(msg reso.Message, err error) {
				writeReplayLine(out, rec, "<-", msg, err)
			})
		case reso.ToController:
			controllerRx.feed(rec.Data, func() (reso.Message, error) {
				return controller.NextController()
			}, func(msg reso.Message, err error) {
				writeReplayLine(out, rec, "->", msg, err)
			})
		}
	}

	return remote.Statistics(), controller.Statistics(), nil
}

func writeReplayLine(out io.Writer, rec capture.Record, arrow string, msg reso.Message, err error) {
	if err != nil {
		fmt.Fprintf(out, "[%s] %s [ERROR] %v\n", rec.Time.Format("15:04:05.000"), arrow, err)
		return
	}
	fmt.Fprintf(out, "[%s] %s %s\n", rec.Time.Format("15:04:05.000"), arrow, reso.DescribeMessage(msg))
}

// replayBuffer feeds recorded bytes into a decoder's ring buffer, decoding
// whenever it fills up
type replayBuffer struct {
	rx    *reso.RingBuffer
	stats *reso.LinkStatistics
}

func newReplayBuffer(d *reso.Decoder) *replayBuffer {
	return &replayBuffer{rx: d.Buffer(), stats: d.Statistics()}
}

func (b *replayBuffer) feed(data []byte, next func() (reso.Message, error), emit func(reso.Message, error)) {
	drain := func() {
		for {
			msg, err := next()
			if msg == nil && err == nil {
				return
			}
			emit(msg, err)
		}
	}

	for _, c := range data {
		if b.rx.FreeSpace() == 0 {
			drain()
			if b.rx.FreeSpace() == 0 {
				b.stats.AddOverrun(1)
				continue
			}
		}
		b.rx.Push(c)
	}
	drain()
}
