package speech

import "sync"

// Mode is the TTS enabled/disabled flag of one conversation view. It is
// created with the view and handed to the Coordinator; nothing else mutates
// it.
type Mode struct {
	mu      sync.RWMutex
	enabled bool
}

// NewMode creates a mode flag with the given initial value.
func NewMode(enabled bool) *Mode {
	return &Mode{enabled: enabled}
}

// Enabled reports whether TTS is enabled.
func (m *Mode) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// set stores enabled and reports whether the value changed.
func (m *Mode) set(enabled bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enabled == enabled {
		return false
	}
	m.enabled = enabled
	return true
}
