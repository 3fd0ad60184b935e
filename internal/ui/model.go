// ABOUTME: Bubbletea model for the voice chat TUI
// ABOUTME: Defines session display state and key handling
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// transcriptLines is how many text messages stay on screen
const transcriptLines = 6

// Model represents the TUI state
type Model struct {
	// Connection
	connected  bool
	serverName string
	clientID   string

	// Session
	mode   string
	voice  string
	video  bool
	camera string

	// Playback
	playState string
	pending   int
	volume    int
	muted     bool

	// Stats
	received   int64
	played     int64
	dropped    int64
	audioSent  int64
	imagesSent int64

	transcript []string

	showDebug bool
	quitting  bool

	// Dimensions
	width  int
	height int

	controls *Controls
}

// Counters carries periodic statistics
type Counters struct {
	Received   int64
	Played     int64
	Dropped    int64
	Pending    int
	AudioSent  int64
	ImagesSent int64
}

// StatusMsg updates TUI state; zero and nil fields are left unchanged
type StatusMsg struct {
	Connected  *bool
	ServerName string
	ClientID   string
	Mode       string
	Voice      string
	Video      *bool
	Camera     string
	PlayState  string
	Volume     *int
	Muted      *bool
	Stats      *Counters
}

// TranscriptMsg appends a line of text from the service
type TranscriptMsg string

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case TranscriptMsg:
		m.appendTranscript(string(msg))
	}

	return m, nil
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	alertStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Ending session...\n"
	}
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Voice Chat"))
	b.WriteString("\n\n")

	b.WriteString(m.renderSession())
	b.WriteString("\n")
	b.WriteString(m.renderPlayback())
	b.WriteString("\n")
	b.WriteString(m.renderTranscript())

	if m.showDebug {
		b.WriteString("\n")
		b.WriteString(m.renderDebug())
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓:Volume  m:Mute  v:Video  d:Debug  q:Quit"))

	return b.String()
}

// field renders one "Label: value" line
func field(label, value string) string {
	return headerStyle.Render(label+": ") + valueStyle.Render(value) + "\n"
}

// renderSession renders connection and session settings
func (m Model) renderSession() string {
	status := alertStyle.Render("Disconnected")
	if m.connected {
		status = activeStyle.Render("Connected") + valueStyle.Render(" to "+m.serverName)
	}

	video := "off"
	if m.video {
		video = "on"
		if m.camera != "" {
			video += " (" + m.camera + ")"
		}
	}

	return headerStyle.Render("Status: ") + status + "\n" +
		field("Mode", m.mode) +
		field("Voice", m.voice) +
		field("Video", video)
}

// renderPlayback renders queue state and volume
func (m Model) renderPlayback() string {
	state := valueStyle.Render(m.playState)
	if m.playState == "playing" {
		state = activeStyle.Render(m.playState)
	}

	muteText := ""
	if m.muted {
		muteText = alertStyle.Render(" muted")
	}

	return headerStyle.Render("Playback: ") + state +
		valueStyle.Render(fmt.Sprintf(" (%d pending)", m.pending)) + "\n" +
		headerStyle.Render("Volume: ") +
		valueStyle.Render(fmt.Sprintf("[%s] %d%%", renderBar(m.volume, 100, 10), m.volume)) + muteText + "\n" +
		field("Chunks", fmt.Sprintf("RX: %d  Played: %d  Dropped: %d", m.received, m.played, m.dropped))
}

// renderTranscript renders the latest text messages
func (m Model) renderTranscript() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Transcript"))
	b.WriteString("\n")

	if len(m.transcript) == 0 {
		b.WriteString(helpStyle.Render("  (nothing yet)"))
		b.WriteString("\n")
		return b.String()
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	for _, line := range m.transcript {
		b.WriteString("  ")
		b.WriteString(textStyle.Render(truncate(line, width)))
		b.WriteString("\n")
	}
	return b.String()
}

// renderDebug renders identifiers and uplink counters
func (m Model) renderDebug() string {
	return field("Client", m.clientID) +
		field("Uplink", fmt.Sprintf("audio frames: %d  images: %d", m.audioSent, m.imagesSent))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.controls != nil {
			select {
			case m.controls.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		m.volume = min(m.volume+5, 100)
		m.sendVolume()
	case "down":
		m.volume = max(m.volume-5, 0)
		m.sendVolume()
	case "m":
		m.muted = !m.muted
		m.sendVolume()
	case "v":
		if m.controls != nil {
			select {
			case m.controls.Video <- VideoToggleMsg{Enabled: !m.video}:
			default:
			}
		}
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// sendVolume forwards the current volume and mute state to the session
func (m Model) sendVolume() {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Volume <- VolumeChangeMsg{Volume: m.volume, Muted: m.muted}:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.ServerName != "" {
		m.serverName = msg.ServerName
	}
	if msg.ClientID != "" {
		m.clientID = msg.ClientID
	}
	if msg.Mode != "" {
		m.mode = msg.Mode
	}
	if msg.Voice != "" {
		m.voice = msg.Voice
	}
	if msg.Video != nil {
		m.video = *msg.Video
	}
	if msg.Camera != "" {
		m.camera = msg.Camera
	}
	if msg.PlayState != "" {
		m.playState = msg.PlayState
	}
	if msg.Volume != nil {
		m.volume = *msg.Volume
	}
	if msg.Muted != nil {
		m.muted = *msg.Muted
	}
	if msg.Stats != nil {
		m.received = msg.Stats.Received
		m.played = msg.Stats.Played
		m.dropped = msg.Stats.Dropped
		m.pending = msg.Stats.Pending
		m.audioSent = msg.Stats.AudioSent
		m.imagesSent = msg.Stats.ImagesSent
	}
}

// appendTranscript keeps the last transcriptLines messages
func (m *Model) appendTranscript(text string) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if text == "" {
		return
	}
	m.transcript = append(m.transcript, text)
	if len(m.transcript) > transcriptLines {
		m.transcript = m.transcript[len(m.transcript)-transcriptLines:]
	}
}

func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length-3]) + "..."
}
