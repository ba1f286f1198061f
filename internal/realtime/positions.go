package realtime

import (
	"context"
	"sync"

	"hvac-dispatch/internal/models"
)

// MemoryPositions keeps position cells in process memory.
type MemoryPositions struct {
	mu    sync.RWMutex
	cells map[int64]models.PositionSample
}

func NewMemoryPositions() *MemoryPositions {
	return &MemoryPositions{cells: make(map[int64]models.PositionSample)}
}

func (m *MemoryPositions) Set(ctx context.Context, s models.PositionSample) error {
	m.mu.Lock()
	m.cells[s.TechnicianID] = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryPositions) Get(ctx context.Context, technicianID int64) (*models.PositionSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.cells[technicianID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}
