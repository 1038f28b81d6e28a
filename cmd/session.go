// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/Thermoquad/resostat/pkg/reso"
)

// session is an open link with its event stream, used by one-shot commands
type session struct {
	link   *Link
	events <-chan Event
	info   string
}

// withSession opens the configured connection, starts reading, runs fn and
// tears everything down again. Ctrl+C cancels the context passed to fn.
func withSession(fn func(ctx context.Context, s *session) error) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	link := NewLink(conn, linkBufferSize)
	s := &session{
		link:   link,
		events: link.Events(ctx),
		info:   connInfo,
	}
	return fn(ctx, s)
}

// readParameter requests the current value of p
func (s *session) readParameter(ctx context.Context, p reso.Parameter) (reso.ParameterValue, error) {
	reply, err := s.link.Request(ctx, s.events, reso.GetParameter{Parameter: p}, replyTimeout, parameterResult(p))
	if err != nil {
		return nil, err
	}
	return reply.(reso.GetParameterResult).Value, nil
}

// readStatistic requests the current value of st
func (s *session) readStatistic(ctx context.Context, st reso.Statistic) (reso.StatisticValue, error) {
	reply, err := s.link.Request(ctx, s.events, reso.GetStatistic{Statistic: st}, replyTimeout, statisticResult(st))
	if err != nil {
		return nil, err
	}
	return reply.(reso.GetStatisticResult).Value, nil
}
