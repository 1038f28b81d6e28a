// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/resostat/pkg/reso"
)

// Event log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// driverEvents counts unsolicited reports from the driver
type driverEvents struct {
	lockFailed     int
	ocdTripped     int
	lastLockFailed time.Time
	lastOCDTripped time.Time
}

// statsSource provides link counters to the TUI
type statsSource interface {
	Statistics() reso.LinkStatistics
}

// TUI model for error_detection
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	source        statsSource
	stats         reso.LinkStatistics
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	skippedBytes  uint64
	driver        driverEvents
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type linkEventMsg Event

func initialModel(source statsSource, connInfo string, statsInterval int, showAll bool) model {
	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		source:        source,
		stats:         source.Statistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats = m.source.Statistics()
		return m, tickCmd()

	case linkEventMsg:
		m.handleEvent(Event(msg))
		m.stats = m.source.Statistics()
	}

	return m, nil
}

func (m *model) handleEvent(ev Event) {
	if ev.Fatal {
		m.addLogEntry(fmt.Sprintf("Connection lost: %v", ev.Err), true)
		return
	}

	if ev.Err != nil {
		// Errors before the first good frame are line noise, not link faults
		if m.synchronized {
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", ev.Err), true)
		}
		return
	}

	if !m.synchronized {
		m.synchronized = true
		stats := m.source.Statistics()
		m.skippedBytes = stats.DiscardedBytes
		if m.skippedBytes > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d bytes", m.skippedBytes), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}
	}

	switch ev.Msg.(type) {
	case reso.LockFailed:
		m.driver.lockFailed++
		m.driver.lastLockFailed = ev.At
		m.addLogEntry("Driver reported LOCK_FAILED", true)
	case reso.OCDTripped:
		m.driver.ocdTripped++
		m.driver.lastOCDTripped = ev.At
		m.addLogEntry("Driver reported OCD_TRIPPED", true)
	default:
		if m.showAll {
			m.addLogEntry(reso.DescribeMessage(ev.Msg), false)
		}
	}
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("RESOSTAT - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All messages"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Press 'q' to quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	if !m.synchronized {
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
	} else {
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.skippedBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d bytes)", m.skippedBytes)))
		}
	}
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(m.renderStatistics(statsLabelStyle, statsValueStyle, errorStyle, headerStyle)))
	s.WriteString("\n\n")

	if m.driver.lockFailed > 0 || m.driver.ocdTripped > 0 {
		s.WriteString(statsLabelStyle.Render("Driver Events:"))
		s.WriteString("\n")
		var d strings.Builder
		if m.driver.lockFailed > 0 {
			d.WriteString(fmt.Sprintf("%s %s (last %s)\n",
				statsLabelStyle.Render("Lock failed:"), errorStyle.Render(fmt.Sprintf("%d", m.driver.lockFailed)),
				m.driver.lastLockFailed.Format("15:04:05")))
		}
		if m.driver.ocdTripped > 0 {
			d.WriteString(fmt.Sprintf("%s %s (last %s)\n",
				statsLabelStyle.Render("OCD tripped:"), errorStyle.Render(fmt.Sprintf("%d", m.driver.ocdTripped)),
				m.driver.lastOCDTripped.Format("15:04:05")))
		}
		s.WriteString(boxStyle.Render(strings.TrimSuffix(d.String(), "\n")))
		s.WriteString("\n\n")
	}

	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 15
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := max(len(m.errorLog)-logHeight, 0)

	var logContent strings.Builder
	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range m.errorLog[startIdx:] {
		timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
		if entry.isError {
			logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
		} else {
			logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), warningStyle.Render("ℹ "+entry.message)))
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

func (m model) renderStatistics(label, value, errStyle, header lipgloss.Style) string {
	st := m.stats
	var errorPercent float64
	if st.TotalFrames > 0 {
		errorPercent = float64(st.DecodeErrors) * 100.0 / float64(st.TotalFrames)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		label.Render("Total:"), value.Render(fmt.Sprintf("%d", st.TotalFrames)),
		label.Render("Valid:"), value.Render(fmt.Sprintf("%d (%.1f%%)", st.ValidFrames, st.ValidPercent())),
		label.Render("Errors:"), errStyle.Render(fmt.Sprintf("%d (%.1f%%)", st.DecodeErrors, errorPercent)),
	))

	if st.DecodeErrors > 0 {
		b.WriteString(fmt.Sprintf("%s %d   %s %d   %s %d\n",
			header.Render("unknown type"), st.UnknownFrameTypes,
			header.Render("unknown id"), st.UnknownCatalogIDs,
			header.Render("invalid value"), st.InvalidValues,
		))
	}
	if st.DiscardedBytes > 0 || st.OverrunBytes > 0 {
		b.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			label.Render("Resync:"), value.Render(fmt.Sprintf("%d bytes", st.DiscardedBytes)),
			label.Render("Overrun:"), errStyle.Render(fmt.Sprintf("%d bytes", st.OverrunBytes)),
		))
	}

	rate := value.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
	if st.ErrorRate > 0 {
		rate = errStyle.Render(fmt.Sprintf("%.1f err/s", st.ErrorRate))
	}
	b.WriteString(fmt.Sprintf("%s %s   %s %s",
		label.Render("Frame Rate:"), value.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
		label.Render("Error Rate:"), rate,
	))
	return b.String()
}
