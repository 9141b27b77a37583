package convmemory

import (
	"context"
	"sync"

	"docchat/internal/models"
)

// MemoryHistory is a process-local History for tests and single-process runs.
type MemoryHistory struct {
	mu       sync.Mutex
	sessions map[string][]models.Turn
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{sessions: make(map[string][]models.Turn)}
}

func (h *MemoryHistory) Append(ctx context.Context, session string, turn models.Turn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[session] = append(h.sessions[session], turn)
	return nil
}

func (h *MemoryHistory) Turns(ctx context.Context, session string) ([]models.Turn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	turns := make([]models.Turn, len(h.sessions[session]))
	copy(turns, h.sessions[session])
	return turns, nil
}
