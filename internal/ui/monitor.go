package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/geye/internal/eyetracker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// EventMsg delivers a tracker event to the monitor through Program.Send
type EventMsg struct {
	Event eyetracker.Event
}

// LogEntry is one line of the monitor's activity log
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Message   string
}

// calPointCycle is the order "p" steps through
var calPointCycle = []int{3, 5, 9, 13}

const (
	plotWidth  = 48
	plotHeight = 12
)

// MonitorModel is a live view of one tracker. Outside setup mode keys map
// to tracker commands; inside setup every key is forwarded to the device.
type MonitorModel struct {
	tracker eyetracker.Eyetracker
	keys    keyMap
	help    help.Model
	spinner spinner.Model

	connecting bool
	connected  bool
	inSetup    bool

	sample      eyetracker.Sample
	haveSample  bool
	sampleCount int

	target     *point
	lastResult string
	imageW     int
	imageH     int
	frames     int

	message       string
	messageType   string // "info", "error", "success"
	messageExpiry time.Time

	logBuffer    []LogEntry
	maxLogLines  int
	windowWidth  int
	windowHeight int
}

type point struct {
	X, Y float64
}

// NewMonitorModel creates a monitor for tracker
func NewMonitorModel(tracker eyetracker.Eyetracker) *MonitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &MonitorModel{
		tracker:      tracker,
		keys:         defaultKeyMap(),
		help:         help.New(),
		spinner:      s,
		maxLogLines:  50,
		windowHeight: 24,
		windowWidth:  80,
	}
}

func (m *MonitorModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// HandleEvent folds ev into the model. It must run on the program's event
// loop, either through a Runner used as the tracker's invoker or through
// EventMsg.
func (m *MonitorModel) HandleEvent(ev eyetracker.Event) {
	switch ev.Type {
	case eyetracker.EventConnected:
		m.connecting = false
		m.connected = ev.Connected
		if ev.Connected {
			m.SetMessage("success", "Tracker connected")
			m.AddLogEntry("INFO", "connected")
		} else {
			m.inSetup = false
			m.target = nil
			m.AddLogEntry("INFO", "disconnected")
		}
	case eyetracker.EventCalibrationStart:
		m.inSetup = true
		m.AddLogEntry("INFO", "calibration display up")
	case eyetracker.EventCalibrationStop:
		m.target = nil
		m.AddLogEntry("INFO", "calibration display cleared")
		m.syncSetup()
	case eyetracker.EventCalpointStart:
		m.target = &point{X: ev.X, Y: ev.Y}
	case eyetracker.EventCalpointStop:
		m.target = nil
	case eyetracker.EventCalibrationResult:
		m.lastResult = ev.Message
		m.SetMessage("success", ev.Message)
		m.AddLogEntry("INFO", ev.Message)
	case eyetracker.EventSample:
		m.sample = ev.Sample
		m.haveSample = true
		m.sampleCount++
	case eyetracker.EventImage:
		if ev.Image != nil {
			m.imageW, m.imageH = ev.Image.Width, ev.Image.Height
			m.frames++
		}
	case eyetracker.EventError:
		m.connecting = false
		text := ev.Message
		if ev.Err != nil {
			text = ev.Err.Error()
		}
		m.SetMessage("error", text)
		m.AddLogEntry("ERROR", text)
	}
}

func (m *MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			return m, cmd
		}

	case EventMsg:
		m.HandleEvent(msg.Event)

	case spinner.TickMsg:
		m.syncSetup()
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.WindowSizeMsg:
		m.windowHeight = msg.Height
		m.windowWidth = msg.Width
		m.help.Width = msg.Width
	}

	if !m.messageExpiry.IsZero() && time.Now().After(m.messageExpiry) {
		m.message = ""
		m.messageType = ""
		m.messageExpiry = time.Time{}
	}

	return m, tea.Batch(cmds...)
}

func (m *MonitorModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit
	}

	if m.inSetup {
		k, mods, ok := hostKey(msg)
		if !ok || !m.tracker.SendKeyPress(k, mods) {
			m.SetMessage("info", fmt.Sprintf("Key %q not forwarded", msg.String()))
		}
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Connect):
		if m.report("connect", m.tracker.Connect()) {
			m.connecting = true
		}
	case key.Matches(msg, m.keys.Disconnect):
		m.tracker.Disconnect()
	case key.Matches(msg, m.keys.Track):
		if m.tracker.Tracking() {
			m.tracker.StopTracking()
		} else {
			m.report("start tracking", m.tracker.StartTracking())
		}
	case key.Matches(msg, m.keys.Record):
		if m.tracker.Recording() {
			m.tracker.StopRecording()
		} else {
			m.report("start recording", m.tracker.StartRecording())
		}
	case key.Matches(msg, m.keys.Setup):
		m.inSetup = m.report("setup", m.tracker.StartSetup())
	case key.Matches(msg, m.keys.Calibrate):
		m.inSetup = m.report("calibrate", m.tracker.Calibrate())
	case key.Matches(msg, m.keys.Validate):
		m.inSetup = m.report("validate", m.tracker.Validate())
	case key.Matches(msg, m.keys.CalPoints):
		n := nextCalPoints(m.tracker.NumCalPoints())
		m.tracker.SetNumCalPoints(n)
		m.SetMessage("info", fmt.Sprintf("Calibration points: %d", n))
	}
	return nil
}

// syncSetup refreshes the setup flag from trackers that expose it. Setup
// can end on the device side without a calibration event.
func (m *MonitorModel) syncSetup() {
	if r, ok := m.tracker.(interface{ InSetup() bool }); ok {
		m.inSetup = r.InSetup()
	}
}

// report shows err, if any, and tells whether the request was accepted
func (m *MonitorModel) report(op string, err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, eyetracker.ErrIncorrectMode) {
		m.SetMessage("error", fmt.Sprintf("Cannot %s now", op))
	} else {
		m.SetMessage("error", err.Error())
	}
	m.AddLogEntry("WARN", fmt.Sprintf("%s: %v", op, err))
	return false
}

func nextCalPoints(current int) int {
	for i, n := range calPointCycle {
		if n == current {
			return calPointCycle[(i+1)%len(calPointCycle)]
		}
	}
	return calPointCycle[0]
}

// SetMessage sets a temporary message
func (m *MonitorModel) SetMessage(msgType, message string) {
	m.message = message
	m.messageType = msgType
	m.messageExpiry = time.Now().Add(3 * time.Second)
}

// AddLogEntry appends to the activity log, keeping the newest entries
func (m *MonitorModel) AddLogEntry(level, message string) {
	m.logBuffer = append(m.logBuffer, LogEntry{Timestamp: time.Now(), Level: level, Message: message})
	if len(m.logBuffer) > m.maxLogLines {
		m.logBuffer = m.logBuffer[len(m.logBuffer)-m.maxLogLines:]
	}
}

func (m *MonitorModel) View() string {
	var b strings.Builder

	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(m.renderGaze())
	b.WriteString("\n")
	b.WriteString(m.renderPlot())
	b.WriteString("\n")

	if m.message != "" {
		b.WriteString(m.renderMessage())
		b.WriteString("\n")
	}

	used := 4 + plotHeight + 2
	if avail := m.windowHeight - used - 2; avail > 0 {
		b.WriteString(m.renderLogs(avail))
		b.WriteString("\n")
	}

	if m.inSetup {
		b.WriteString(SubtleStyle.Render("setup: keys go to the tracker • esc leaves • ctrl+c quits"))
	} else {
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}

func (m *MonitorModel) renderStatusBar() string {
	var parts []string

	nameStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorSecondary)
	parts = append(parts, nameStyle.Render("GEYE"))

	switch {
	case m.connected:
		status := "Connected"
		if r, ok := m.tracker.(interface{ Info() string }); ok && r.Info() != "" {
			status += " (" + r.Info() + ")"
		}
		parts = append(parts, FormatStatus(true, status))
	case m.connecting:
		parts = append(parts, lipgloss.NewStyle().Foreground(ColorWarning).Render(m.spinner.View()+" Connecting"))
	default:
		parts = append(parts, FormatStatus(false, "Disconnected"))
	}

	if m.tracker.Tracking() {
		parts = append(parts, lipgloss.NewStyle().Foreground(ColorInfo).Bold(true).Render("▶ TRACKING"))
	} else {
		parts = append(parts, SubtleStyle.Render("■ idle"))
	}
	if m.tracker.Recording() {
		parts = append(parts, ErrorStyle.Bold(true).Render("● REC"))
	}
	if m.inSetup {
		parts = append(parts, WarningStyle.Bold(true).Render("SETUP"))
	}
	parts = append(parts, SubtleStyle.Render(fmt.Sprintf("%d pts", m.tracker.NumCalPoints())))

	separator := lipgloss.NewStyle().Foreground(ColorMuted).Render(" │ ")
	return strings.Join(parts, separator)
}

func (m *MonitorModel) renderGaze() string {
	var parts []string
	if m.haveSample {
		parts = append(parts, fmt.Sprintf("gaze %-5s x=%7.1f y=%7.1f t=%.0f (%d samples)",
			m.sample.Eye, m.sample.X, m.sample.Y, m.sample.Time, m.sampleCount))
	} else {
		parts = append(parts, "gaze  no samples")
	}
	if m.target != nil {
		parts = append(parts, fmt.Sprintf("target (%.0f, %.0f)", m.target.X, m.target.Y))
	}
	if m.frames > 0 {
		parts = append(parts, fmt.Sprintf("camera %dx%d #%d", m.imageW, m.imageH, m.frames))
	}
	if m.lastResult != "" {
		parts = append(parts, "last: "+m.lastResult)
	}
	return TextStyle.Render(strings.Join(parts, "  "))
}

// renderPlot draws the gaze position and calibration target scaled into a
// character grid. Coordinates are scaled against the tracker's display
// size when it reports one, else against the largest value seen.
func (m *MonitorModel) renderPlot() string {
	w, h := m.displaySize()

	grid := make([][]string, plotHeight)
	for y := range grid {
		grid[y] = make([]string, plotWidth)
		for x := range grid[y] {
			grid[y][x] = " "
		}
	}

	place := func(x, y float64, glyph string) {
		if w <= 0 || h <= 0 {
			return
		}
		cx := int(x / float64(w) * float64(plotWidth))
		cy := int(y / float64(h) * float64(plotHeight))
		if cx < 0 || cy < 0 || cx >= plotWidth || cy >= plotHeight {
			return
		}
		grid[cy][cx] = glyph
	}

	if m.haveSample {
		place(m.sample.X, m.sample.Y, GazeStyle.Render(IconGaze))
	}
	if m.target != nil {
		place(m.target.X, m.target.Y, TargetStyle.Render(IconTarget))
	}

	rows := make([]string, plotHeight)
	for y := range grid {
		rows[y] = strings.Join(grid[y], "")
	}
	return PlotStyle.Render(strings.Join(rows, "\n"))
}

func (m *MonitorModel) displaySize() (int, int) {
	if r, ok := m.tracker.(interface{ DisplaySize() (int, int) }); ok {
		if w, h := r.DisplaySize(); w > 0 && h > 0 {
			return w, h
		}
	}
	return 0, 0
}

func (m *MonitorModel) renderMessage() string {
	switch m.messageType {
	case "error":
		return ErrorStyle.Render(IconError + " " + m.message)
	case "success":
		return SuccessStyle.Render(IconSuccess + " " + m.message)
	default:
		return InfoStyle.Render(m.message)
	}
}

func (m *MonitorModel) renderLogs(maxLines int) string {
	if len(m.logBuffer) == 0 {
		return SubtleStyle.Render("No activity yet...")
	}

	start := 0
	if len(m.logBuffer) > maxLines {
		start = len(m.logBuffer) - maxLines
	}

	lines := make([]string, 0, len(m.logBuffer)-start)
	for _, entry := range m.logBuffer[start:] {
		lines = append(lines, formatLogEntry(entry))
	}
	return strings.Join(lines, "\n")
}

func formatLogEntry(entry LogEntry) string {
	var levelStyle lipgloss.Style
	switch strings.ToUpper(entry.Level) {
	case "ERROR":
		levelStyle = ErrorStyle.Bold(true)
	case "WARN":
		levelStyle = WarningStyle.Bold(true)
	default:
		levelStyle = SuccessStyle
	}

	return fmt.Sprintf("%s %s %s",
		SubtleStyle.Render(entry.Timestamp.Format("15:04:05")),
		levelStyle.Render(fmt.Sprintf("%-5s", strings.ToUpper(entry.Level))),
		TextStyle.Render(entry.Message))
}
