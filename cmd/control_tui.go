// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/resostat/pkg/reso"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	pingIntervalSeconds = 2 // Ping and poll peak current every N seconds
	maxControlLogLines  = 8
)

// Focus states
const (
	focusParamList = iota
	focusValueInput
	focusButton
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// parameterItem is one row of the parameter list
type parameterItem struct {
	param reso.Parameter
	value reso.ParameterValue
}

// Implement list.Item interface
func (p parameterItem) Title() string { return p.param.String() }
func (p parameterItem) Description() string {
	if p.value == nil {
		return "(not read)"
	}
	return reso.FormatValue(p.value)
}
func (p parameterItem) FilterValue() string { return p.param.String() }

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	link     controlLink
	connInfo string

	// Parameters, in catalog order
	paramList list.Model
	values    map[reso.Parameter]reso.ParameterValue

	// Control
	valueInput   textinput.Model
	focusedField int
	running      bool

	// Monitoring
	stats         reso.LinkStatistics
	driver        driverEvents
	peakCurrent   reso.StatisticValue
	errorLog      []errorLogEntry
	maxLogEntries int

	// Ping state
	lastPingTime time.Time
	pendingPing  *reso.Ping
	lastRTT      time.Duration

	// UI state
	width          int
	height         int
	synchronized   bool
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type controlBatchMsg struct {
	events []Event
}

type connectionLostMsg struct {
	err error
}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(link controlLink, connInfo string) controlModel {
	ti := textinput.New()
	ti.Placeholder = "value"
	ti.CharLimit = 16
	ti.Width = 16

	items := make([]list.Item, 0, len(reso.AllParameters))
	for _, p := range reso.AllParameters {
		items = append(items, parameterItem{param: p})
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	paramList := list.New(items, delegate, 30, 20)
	paramList.Title = "Parameters"
	paramList.SetShowStatusBar(false)
	paramList.SetShowHelp(false)
	paramList.SetFilteringEnabled(false)

	return controlModel{
		link:          link,
		connInfo:      connInfo,
		paramList:     paramList,
		values:        make(map[reso.Parameter]reso.ParameterValue),
		valueInput:    ti,
		focusedField:  focusParamList,
		stats:         *reso.NewLinkStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return tea.Batch(controlTickCmd(), refreshParametersCmd(m.link))
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

// refreshParametersCmd requests every parameter; replies arrive as events
func refreshParametersCmd(link controlLink) tea.Cmd {
	return func() tea.Msg {
		for _, p := range reso.AllParameters {
			if err := link.send(reso.GetParameter{Parameter: p}); err != nil {
				return sendFailedMsg{err: err}
			}
		}
		return nil
	}
}

type sendFailedMsg struct {
	err error
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		m.stats = m.link.statistics()
		if !m.connectionLost && time.Since(m.lastPingTime) >= time.Duration(pingIntervalSeconds)*time.Second {
			m.lastPingTime = time.Now()
			m.poll()
		}
		return m, controlTickCmd()

	case controlBatchMsg:
		for _, ev := range msg.events {
			m.handleEvent(ev)
		}

	case sendFailedMsg:
		m.addLogEntry(fmt.Sprintf("Send failed: %v", msg.err), true)

	case connectionLostMsg:
		m.connectionLost = true
		m.running = false
		m.pendingPing = nil
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Connection lost (%v) - reconnecting...", msg.err), true)
		} else {
			m.addLogEntry("Connection lost - reconnecting...", true)
		}

	case reconnectedMsg:
		m.connectionLost = false
		m.synchronized = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected - reading parameters", false)
		return m, refreshParametersCmd(m.link)
	}

	var cmd tea.Cmd
	if m.focusedField == focusValueInput {
		m.valueInput, cmd = m.valueInput.Update(msg)
		cmds = append(cmds, cmd)
	}
	if m.focusedField == focusParamList {
		m.paramList, cmd = m.paramList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		return m.cycleFocus(1), nil
	case "shift+tab":
		return m.cycleFocus(-1), nil
	case "enter":
		return m.handleEnter()
	case "esc":
		if m.focusedField == focusValueInput {
			m.setFocus(focusParamList)
			return m, nil
		}
	}

	// While editing, every other key belongs to the input
	if m.focusedField == focusValueInput {
		var cmd tea.Cmd
		m.valueInput, cmd = m.valueInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "s":
		m.stopDriver()
		return m, nil
	case "r":
		m.addLogEntry("Reading parameters", false)
		return m, refreshParametersCmd(m.link)
	case "x":
		m.sendCommand(reso.ResetStatistics{})
		m.peakCurrent = nil
		return m, nil
	}

	if m.focusedField == focusParamList {
		var cmd tea.Cmd
		m.paramList, cmd = m.paramList.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *controlModel) cycleFocus(delta int) *controlModel {
	m.setFocus((m.focusedField + delta + focusButton + 1) % (focusButton + 1))
	return m
}

func (m *controlModel) setFocus(field int) {
	m.focusedField = field
	if field == focusValueInput {
		m.valueInput.Focus()
	} else {
		m.valueInput.Blur()
	}
}

func (m *controlModel) handleEnter() (tea.Model, tea.Cmd) {
	switch m.focusedField {
	case focusParamList:
		p, ok := m.selectedParameter()
		if !ok {
			return m, nil
		}
		if v := m.values[p]; v != nil {
			m.valueInput.SetValue(reso.FormatValue(v))
		} else {
			m.valueInput.SetValue("")
		}
		m.valueInput.CursorEnd()
		m.setFocus(focusValueInput)
		return m, textinput.Blink

	case focusValueInput:
		m.applyValue()
		m.setFocus(focusParamList)

	case focusButton:
		if m.running {
			m.stopDriver()
		} else {
			m.startDriver()
		}
	}
	return m, nil
}

// applyValue sends the edited value and asks for it back
func (m *controlModel) applyValue() {
	p, ok := m.selectedParameter()
	if !ok {
		return
	}

	value, err := reso.ParseParameterValue(p, m.valueInput.Value())
	if err != nil {
		m.addLogEntry(fmt.Sprintf("%s: %v", p, err), true)
		return
	}

	if !m.sendCommand(reso.SetParameter{Value: value}) {
		return
	}
	m.addLogEntry(fmt.Sprintf("Set %s", reso.FormatParameterValue(value)), false)
	m.sendCommand(reso.GetParameter{Parameter: p})
}

func (m *controlModel) startDriver() {
	if !m.sendCommand(reso.Run{}) {
		return
	}
	m.running = true
	m.link.setDriving(true)
	m.addLogEntry("Driver started", false)
}

func (m *controlModel) stopDriver() {
	m.link.setDriving(false)
	if !m.sendCommand(reso.Stop{}) {
		return
	}
	if m.running {
		m.addLogEntry("Driver stopped", false)
	}
	m.running = false
}

// poll pings the driver and reads the peak primary current
func (m *controlModel) poll() {
	ping := m.link.nextPing()
	if m.sendCommand(ping) {
		m.pendingPing = &ping
	}
	m.sendCommand(reso.GetStatistic{Statistic: reso.StatMaxPrimaryCurrent})
}

// sendCommand logs send failures and reports whether msg went out
func (m *controlModel) sendCommand(msg reso.ControllerMessage) bool {
	if m.connectionLost {
		m.addLogEntry(fmt.Sprintf("Cannot send %s: connection lost", reso.MessageName(msg)), true)
		return false
	}
	if err := m.link.send(msg); err != nil {
		m.addLogEntry(fmt.Sprintf("Send failed: %v", err), true)
		return false
	}
	return true
}

func (m controlModel) selectedParameter() (reso.Parameter, bool) {
	item, ok := m.paramList.SelectedItem().(parameterItem)
	if !ok {
		return 0, false
	}
	return item.param, true
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) handleEvent(ev Event) {
	if ev.Err != nil {
		if m.synchronized {
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", ev.Err), true)
		}
		return
	}
	if ev.Msg == nil {
		return
	}

	if !m.synchronized {
		m.synchronized = true
		m.addLogEntry("Synchronized", false)
	}

	switch msg := ev.Msg.(type) {
	case reso.GetParameterResult:
		if msg.Value != nil {
			m.setParameterValue(msg.Value)
		}

	case reso.GetStatisticResult:
		if msg.Value != nil && msg.Value.Statistic() == reso.StatMaxPrimaryCurrent {
			m.peakCurrent = msg.Value
		}

	case reso.Ping:
		if m.pendingPing != nil && msg.Seq == m.pendingPing.Seq {
			m.lastRTT = ev.At.Sub(m.lastPingTime)
			m.pendingPing = nil
		}

	case reso.LockFailed:
		m.driver.lockFailed++
		m.driver.lastLockFailed = ev.At
		m.driverFault("LOCK_FAILED: driver could not lock to resonance")

	case reso.OCDTripped:
		m.driver.ocdTripped++
		m.driver.lastOCDTripped = ev.At
		m.driverFault("OCD_TRIPPED: over-current detector shut the driver down")
	}
}

// driverFault records a fault report; the driver has already stopped itself
func (m *controlModel) driverFault(text string) {
	m.addLogEntry(text, true)
	if m.running {
		m.running = false
		m.link.setDriving(false)
	}
}

func (m *controlModel) setParameterValue(v reso.ParameterValue) {
	p := v.Parameter()
	m.values[p] = v
	for i, item := range m.paramList.Items() {
		if pi, ok := item.(parameterItem); ok && pi.param == p {
			m.paramList.SetItem(i, parameterItem{param: p, value: v})
			return
		}
	}
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.errorLog = append(m.errorLog, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m *controlModel) updateListSize() {
	listHeight := m.height - 16
	if listHeight < 6 {
		listHeight = 6
	}
	m.paramList.SetSize(30, listHeight)
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m controlModel) View() string {
	if m.quitting {
		return "Stopping driver...\n"
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

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	buttonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Padding(0, 2)

	focusedButtonStyle := buttonStyle.
		Background(lipgloss.Color("10"))

	var s strings.Builder

	s.WriteString(titleStyle.Render("RESOSTAT CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch s=stop r=read x=reset", connStatus)))
	s.WriteString("\n\n")

	leftWidth := 30
	rightWidth := max(m.width-leftWidth-6, 20)

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusParamList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	paramPanel := listStyle.Render(m.paramList.View())

	controlStyle := boxStyle.Width(rightWidth)
	if m.focusedField != focusParamList {
		controlStyle = focusedBoxStyle.Width(rightWidth)
	}
	controlPanel := controlStyle.Render(m.renderControlPanel(statsLabelStyle, statsValueStyle, errorStyle, headerStyle, buttonStyle, focusedButtonStyle))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, paramPanel, " ", controlPanel))
	s.WriteString("\n")

	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n")

	s.WriteString(m.renderEventLog(statsLabelStyle, headerStyle, errorStyle, warningStyle, boxStyle))

	return s.String()
}

func (m controlModel) renderControlPanel(label, value, errStyle, header, button, focusedButton lipgloss.Style) string {
	var s strings.Builder

	state := value.Render("STOPPED")
	if m.running {
		state = errStyle.Render("RUNNING")
	}
	s.WriteString(fmt.Sprintf("%s %s\n", label.Render("Driver:"), state))

	peak := header.Render("-")
	if m.peakCurrent != nil {
		peak = value.Render(reso.FormatStatisticValue(m.peakCurrent))
	}
	s.WriteString(fmt.Sprintf("%s %s\n", label.Render("Peak:"), peak))

	rtt := header.Render("-")
	if m.lastRTT > 0 {
		rtt = value.Render(m.lastRTT.Round(10 * time.Microsecond).String())
	}
	s.WriteString(fmt.Sprintf("%s %s\n", label.Render("RTT:"), rtt))

	if m.driver.lockFailed > 0 || m.driver.ocdTripped > 0 {
		s.WriteString(fmt.Sprintf("%s %s\n", label.Render("Faults:"),
			errStyle.Render(fmt.Sprintf("lock %d, ocd %d", m.driver.lockFailed, m.driver.ocdTripped))))
	}
	s.WriteString("\n")

	if p, ok := m.selectedParameter(); ok {
		s.WriteString(fmt.Sprintf("%s %s\n", label.Render("Selected:"), p))
		current := header.Render("(not read)")
		if v := m.values[p]; v != nil {
			current = value.Render(reso.FormatParameterValue(v))
		}
		s.WriteString(fmt.Sprintf("%s %s\n", label.Render("Value:"), current))
		s.WriteString(label.Render("New:   "))
		if m.focusedField == focusValueInput {
			s.WriteString(m.valueInput.View())
		} else {
			s.WriteString(header.Render("[Enter to edit]"))
		}
		s.WriteString("\n\n")
	}

	btnText := "[ Run ]"
	if m.running {
		btnText = "[ Stop ]"
	}
	if m.focusedField == focusButton {
		s.WriteString(focusedButton.Render(btnText))
	} else {
		s.WriteString(button.Render(btnText))
	}

	return s.String()
}

func (m controlModel) renderStatisticsBar(label, value, errStyle, box lipgloss.Style) string {
	st := m.stats
	errCount := value.Render("0")
	if st.DecodeErrors > 0 {
		errCount = errStyle.Render(fmt.Sprintf("%d", st.DecodeErrors))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s",
		label.Render("Total:"), value.Render(fmt.Sprintf("%d", st.TotalFrames)),
		label.Render("Valid:"), value.Render(fmt.Sprintf("%.1f%%", st.ValidPercent())),
		label.Render("Errors:"), errCount,
		label.Render("Rate:"), value.Render(fmt.Sprintf("%.1f frames/s", st.FrameRate)),
	)

	return box.Width(m.width - 4).Render(content)
}

func (m controlModel) renderEventLog(label, header, errStyle, warning, box lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(label.Render("EVENTS"))
	s.WriteString("\n")

	startIdx := max(len(m.errorLog)-maxControlLogLines, 0)
	if len(m.errorLog) == 0 {
		s.WriteString(header.Render("  (no events yet)"))
	}
	for _, entry := range m.errorLog[startIdx:] {
		icon := "i"
		style := warning
		if entry.isError {
			icon = "x"
			style = errStyle
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			header.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(icon),
			entry.message))
	}

	return box.Width(m.width - 4).Render(s.String())
}
