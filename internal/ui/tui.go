// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channels back to the session
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// VolumeChangeMsg requests a new volume or mute state
type VolumeChangeMsg struct {
	Volume int
	Muted  bool
}

// VideoToggleMsg requests video capture on or off
type VideoToggleMsg struct {
	Enabled bool
}

// QuitMsg requests the session to end
type QuitMsg struct{}

// Controls holds channels for user actions taken in the TUI
type Controls struct {
	Volume chan VolumeChangeMsg
	Video  chan VideoToggleMsg
	Quit   chan QuitMsg
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Volume: make(chan VolumeChangeMsg, 10),
		Video:  make(chan VideoToggleMsg, 1),
		Quit:   make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{
		volume:    100,
		playState: "idle",
		mode:      "audio",
		controls:  controls,
	}
}

// Run creates the TUI program; the caller starts it with Run
func Run(controls *Controls) *tea.Program {
	return tea.NewProgram(NewModel(controls), tea.WithAltScreen())
}
