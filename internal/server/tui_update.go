// ABOUTME: TUI update helpers for server
// ABOUTME: Functions to send session state updates to TUI
package server

import "sort"

// updateTUI sends current server state to TUI
func (s *Server) updateTUI() {
	if s.tui == nil {
		return
	}

	s.tui.Update(ServerStatus{
		Name:     s.config.Name,
		Port:     s.config.Port,
		Reply:    s.replyDescription(),
		Sessions: s.Sessions(),
	})
}

// Sessions returns a snapshot of connected sessions, oldest first
func (s *Server) Sessions() []SessionInfo {
	s.sessionsMu.RLock()
	sessions := make([]SessionInfo, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session.Info())
	}
	s.sessionsMu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Connected.Before(sessions[j].Connected)
	})
	return sessions
}
