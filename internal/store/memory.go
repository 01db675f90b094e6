// internal/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"bushfire-beacon/internal/common/errors"
	"bushfire-beacon/internal/models"
)

// Memory implements AlertStore and TargetStore in process memory, for tests
// and single-node deployments. The same CAS guards as the Postgres store
// apply, just under one mutex.
type Memory struct {
	mu      sync.Mutex
	alerts  map[string]*models.Alert
	targets map[string]*models.DeliveryTarget
}

func NewMemory() *Memory {
	return &Memory{
		alerts:  make(map[string]*models.Alert),
		targets: make(map[string]*models.DeliveryTarget),
	}
}

// --- AlertStore ---

func (m *Memory) SaveAlert(_ context.Context, alert *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *alert
	m.alerts[alert.ID] = &cp
	return nil
}

func (m *Memory) GetAlert(_ context.Context, id string) (*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[id]
	if !ok {
		return nil, errors.NewAlertNotFoundError(id)
	}
	cp := *alert
	return &cp, nil
}

func (m *Memory) MarkWithdrawn(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[id]
	if !ok {
		return errors.NewAlertNotFoundError(id)
	}
	alert.Withdrawn = true
	return nil
}

// --- TargetStore ---

func (m *Memory) AddTargets(_ context.Context, targets []models.DeliveryTarget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, target := range targets {
		if _, exists := m.targets[target.Key()]; exists {
			continue
		}
		cp := target
		m.targets[target.Key()] = &cp
	}
	return nil
}

func (m *Memory) ClaimDue(_ context.Context, ref models.DeliveryTarget, now time.Time, lease time.Duration) (*models.DeliveryTarget, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.targets[ref.Key()]
	if !ok || target.Terminal() || target.NextAttemptAt.After(now) {
		return nil, false, nil
	}
	if alert, ok := m.alerts[target.AlertID]; ok && alert.Withdrawn {
		return nil, false, nil
	}

	target.NextAttemptAt = now.Add(lease)
	target.UpdatedAt = now

	cp := *target
	return &cp, true, nil
}

func (m *Memory) MarkSent(_ context.Context, ref models.DeliveryTarget, now time.Time) error {
	return m.transition(ref, func(t *models.DeliveryTarget) {
		t.Status = models.TargetSent
		t.LastError = ""
		t.UpdatedAt = now
	})
}

func (m *Memory) ScheduleRetry(_ context.Context, ref models.DeliveryTarget, nextAt time.Time, lastErr string, now time.Time) error {
	return m.transition(ref, func(t *models.DeliveryTarget) {
		t.Status = models.TargetFailed
		t.AttemptCount++
		t.NextAttemptAt = nextAt
		t.LastError = lastErr
		t.UpdatedAt = now
	})
}

func (m *Memory) MarkExhausted(_ context.Context, ref models.DeliveryTarget, lastErr string, now time.Time) error {
	return m.transition(ref, func(t *models.DeliveryTarget) {
		t.Status = models.TargetExhausted
		t.AttemptCount++
		t.LastError = lastErr
		t.UpdatedAt = now
	})
}

// transition applies mutate under the terminal-state guard.
func (m *Memory) transition(ref models.DeliveryTarget, mutate func(*models.DeliveryTarget)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.targets[ref.Key()]
	if !ok || target.Terminal() {
		return nil
	}
	mutate(target)
	return nil
}

func (m *Memory) DueTargets(_ context.Context, now time.Time, limit int) ([]models.DeliveryTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []models.DeliveryTarget
	for _, target := range m.targets {
		if target.Terminal() || target.NextAttemptAt.After(now) {
			continue
		}
		if alert, ok := m.alerts[target.AlertID]; ok && alert.Withdrawn {
			continue
		}
		due = append(due, *target)
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextAttemptAt.Equal(due[j].NextAttemptAt) {
			return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
		}
		return due[i].Key() < due[j].Key()
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *Memory) TargetsForAlert(_ context.Context, alertID string) ([]models.DeliveryTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.DeliveryTarget
	for _, target := range m.targets {
		if target.AlertID == alertID {
			out = append(out, *target)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}
