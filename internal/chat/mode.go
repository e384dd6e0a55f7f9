package chat

import (
	"fmt"
	"sync"
)

const (
	ModePrivate   = "private"
	ModeIncognito = "incognito"
)

// ModeController holds the current chat mode. Switching modes never touches
// stored history; the mode only gates whether history is included and whether
// new exchanges are persisted.
type ModeController struct {
	mu   sync.RWMutex
	mode string
}

func NewModeController(initial string) *ModeController {
	if initial != ModePrivate && initial != ModeIncognito {
		initial = ModePrivate
	}
	return &ModeController{mode: initial}
}

func (m *ModeController) Mode() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

func (m *ModeController) SetMode(mode string) error {
	if mode != ModePrivate && mode != ModeIncognito {
		return fmt.Errorf("unknown chat mode %q", mode)
	}
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
	return nil
}
