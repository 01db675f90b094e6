// internal/directory/directory.go
package directory

import (
	"context"
	"sort"
	"sync"

	"bushfire-beacon/internal/models"
)

// Directory resolves which subscribers should hear about a hazard of a given
// type in a given region. The subscriber base is owned elsewhere; this
// interface is the read path the fan-out resolver depends on.
type Directory interface {
	FindSubscribers(ctx context.Context, region, hazardType string) ([]models.Subscriber, error)
}

// ==========================
// In-memory implementation
// ==========================

// Memory is a Directory over a fixed subscriber set, for tests and
// single-node deployments.
type Memory struct {
	mu   sync.RWMutex
	subs map[string]models.Subscriber
}

func NewMemory(subs ...models.Subscriber) *Memory {
	m := &Memory{subs: make(map[string]models.Subscriber)}
	for _, s := range subs {
		m.subs[s.ID] = s
	}
	return m
}

// Upsert adds or replaces a subscriber.
func (m *Memory) Upsert(sub models.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.ID] = sub
}

func (m *Memory) FindSubscribers(_ context.Context, region, hazardType string) ([]models.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Subscriber
	for _, sub := range m.subs {
		if !sub.WantsHazard(hazardType) {
			continue
		}
		for _, r := range sub.Regions {
			if r == region {
				out = append(out, sub)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
