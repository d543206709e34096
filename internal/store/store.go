// Package store persists each match's choice log so a restarted server can
// rebuild the draft.
package store

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/DoyleJ11/tourney-draft-backend/internal/engine"
)

var ErrEmptyCode = errors.New("match code is required")

type Repository interface {
	// Save replaces the stored log for code.
	Save(ctx context.Context, code string, choices []engine.Choice) error
	// Load returns the stored log in recorded order; unknown codes yield an empty log.
	Load(ctx context.Context, code string) ([]engine.Choice, error)
}

type Memory struct {
	mu   sync.RWMutex
	logs map[string][]engine.Choice
}

func NewMemory() *Memory {
	return &Memory{logs: make(map[string][]engine.Choice)}
}

func (m *Memory) Save(_ context.Context, code string, choices []engine.Choice) error {
	if code == "" {
		return ErrEmptyCode
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[code] = slices.Clone(choices)
	return nil
}

func (m *Memory) Load(_ context.Context, code string) ([]engine.Choice, error) {
	if code == "" {
		return nil, ErrEmptyCode
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.logs[code]), nil
}
