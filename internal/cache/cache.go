// Package cache keeps the latest candidate list per trip request so that a
// route ID handed to a caller can be resolved back into leg occurrences.
package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/example/transpool/internal/schedule"
)

var ErrUnknownRoute = errors.New("cache: unknown route")

// Candidates stores, per request, an ordered list of routes; each route is
// the occurrence keys of its legs. Route IDs are 1-based positions.
type Candidates interface {
	Put(ctx context.Context, requestID int, routes [][]schedule.OccurrenceKey) error
	Get(ctx context.Context, requestID, routeID int) ([]schedule.OccurrenceKey, error)
	Drop(ctx context.Context, requestID int) error
}

// Memory is the single-process implementation.
type Memory struct {
	mu     sync.RWMutex
	routes map[int][][]schedule.OccurrenceKey
}

func NewMemory() *Memory {
	return &Memory{routes: make(map[int][][]schedule.OccurrenceKey)}
}

func (m *Memory) Put(_ context.Context, requestID int, routes [][]schedule.OccurrenceKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[requestID] = routes
	return nil
}

func (m *Memory) Get(_ context.Context, requestID, routeID int) ([]schedule.OccurrenceKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return pick(m.routes[requestID], requestID, routeID)
}

func (m *Memory) Drop(_ context.Context, requestID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.routes, requestID)
	return nil
}

func pick(routes [][]schedule.OccurrenceKey, requestID, routeID int) ([]schedule.OccurrenceKey, error) {
	if routeID < 1 || routeID > len(routes) {
		return nil, wrapUnknown(requestID, routeID)
	}
	return routes[routeID-1], nil
}
