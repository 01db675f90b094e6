// internal/dedup/dedup.go
package dedup

import (
	"context"
	"sync"
	"time"

	"bushfire-beacon/internal/models"
)

// Admission is the outcome of admitting an alert: either this alert is the
// first occurrence of its dedup key inside the window, or it duplicates an
// earlier one. Duplicate is an expected outcome, not an error.
type Admission struct {
	Admitted    bool   `json:"admitted"`
	DuplicateOf string `json:"duplicateOf,omitempty"`
}

// Deduplicator suppresses redundant alerts for the same hazard within the
// configured window. Admit must be first-writer-wins under concurrency:
// exactly one caller per key gets Admitted. Release gives a window back when
// the admitted alert could not be persisted, so the key is not claimed by an
// alert that does not exist; it only releases if the key still belongs to the
// given alert.
type Deduplicator interface {
	Admit(ctx context.Context, alert *models.Alert) (Admission, error)
	Release(ctx context.Context, dedupKey, alertID string) error
}

// ==========================
// In-memory implementation
// ==========================

type memoryRecord struct {
	firstAlertID string
	expiresAt    time.Time
}

// Memory is a single-node Deduplicator backed by a map. Expired records are
// evicted lazily on lookup and by Sweep.
type Memory struct {
	mu      sync.Mutex
	window  time.Duration
	records map[string]memoryRecord
	now     func() time.Time
}

func NewMemory(window time.Duration) *Memory {
	return &Memory{
		window:  window,
		records: make(map[string]memoryRecord),
		now:     time.Now,
	}
}

func (m *Memory) Admit(_ context.Context, alert *models.Alert) (Admission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if rec, ok := m.records[alert.DedupKey]; ok && rec.expiresAt.After(now) {
		return Admission{Admitted: false, DuplicateOf: rec.firstAlertID}, nil
	}

	m.records[alert.DedupKey] = memoryRecord{
		firstAlertID: alert.ID,
		expiresAt:    now.Add(m.window),
	}
	return Admission{Admitted: true}, nil
}

func (m *Memory) Release(_ context.Context, dedupKey, alertID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.records[dedupKey]; ok && rec.firstAlertID == alertID {
		delete(m.records, dedupKey)
	}
	return nil
}

// Sweep evicts expired records. Safe to run periodically alongside Admit.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	evicted := 0
	for key, rec := range m.records {
		if !rec.expiresAt.After(now) {
			delete(m.records, key)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of live records, counting not-yet-swept expired ones.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
