package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/example/transpool/internal/models"
)

var ErrDuplicateMatch = errors.New("match already stored")

// MatchStore defines persistence operations for committed matches.
type MatchStore interface {
	SaveMatch(ctx context.Context, m models.MatchDTO) error
	MatchesByRider(ctx context.Context, riderID string) ([]models.MatchDTO, error)
	// NextMatchID is one past the highest stored match ID, so a restarted
	// ledger keeps numbering where the previous process stopped.
	NextMatchID(ctx context.Context) (int, error)
}

type MemoryStore struct {
	mu      sync.RWMutex
	matches map[int]models.MatchDTO
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{matches: make(map[int]models.MatchDTO)}
}

func (m *MemoryStore) SaveMatch(_ context.Context, match models.MatchDTO) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.matches[match.ID]; ok {
		return fmt.Errorf("storage: match %d: %w", match.ID, ErrDuplicateMatch)
	}
	m.matches[match.ID] = match
	return nil
}

func (m *MemoryStore) NextMatchID(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	next := 1
	for id := range m.matches {
		if id >= next {
			next = id + 1
		}
	}
	return next, nil
}

func (m *MemoryStore) MatchesByRider(_ context.Context, riderID string) ([]models.MatchDTO, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.MatchDTO
	for _, match := range m.matches {
		if match.Request.RiderID == riderID {
			out = append(out, match)
		}
	}
	slices.SortFunc(out, func(a, b models.MatchDTO) int { return a.ID - b.ID })
	return out, nil
}

func (m *MemoryStore) Get(id int) (models.MatchDTO, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	match, ok := m.matches[id]
	return match, ok
}
