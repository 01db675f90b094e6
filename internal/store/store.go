// internal/store/store.go
package store

import (
	"context"
	"time"

	"bushfire-beacon/internal/models"
)

// AlertStore persists admitted alerts and their withdrawn flag.
type AlertStore interface {
	SaveAlert(ctx context.Context, alert *models.Alert) error
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	MarkWithdrawn(ctx context.Context, id string) error
}

// TargetStore persists delivery targets and owns every status transition.
// All transitions are compare-and-set on the current status, so a target
// that reached sent or exhausted can never move again, and two workers
// racing on the same due target resolve to exactly one claim.
type TargetStore interface {
	// AddTargets inserts the fan-out result. Re-inserting an existing
	// (alert, subscriber, channel) triple is a no-op, which makes fan-out
	// safe to repeat.
	AddTargets(ctx context.Context, targets []models.DeliveryTarget) error

	// ClaimDue atomically takes a due pending or failed target for one
	// delivery attempt: it pushes next_attempt_at past the lease so no
	// other worker claims it concurrently. The second return is false when
	// the target was not claimable (already taken, terminal, or its alert
	// withdrawn). The attempt count is untouched here; it counts failed
	// attempts and moves only on ScheduleRetry and MarkExhausted.
	ClaimDue(ctx context.Context, ref models.DeliveryTarget, now time.Time, lease time.Duration) (*models.DeliveryTarget, bool, error)

	// MarkSent finalizes a successful attempt.
	MarkSent(ctx context.Context, ref models.DeliveryTarget, now time.Time) error

	// ScheduleRetry records a transient failure, bumping the attempt count
	// and setting when to try again.
	ScheduleRetry(ctx context.Context, ref models.DeliveryTarget, nextAt time.Time, lastErr string, now time.Time) error

	// MarkExhausted records a final failed attempt and gives up on the
	// target for good.
	MarkExhausted(ctx context.Context, ref models.DeliveryTarget, lastErr string, now time.Time) error

	// DueTargets lists targets whose next attempt is due, excluding targets
	// of withdrawn alerts, ordered by due time.
	DueTargets(ctx context.Context, now time.Time, limit int) ([]models.DeliveryTarget, error)

	// TargetsForAlert lists every target of one alert, for status queries.
	TargetsForAlert(ctx context.Context, alertID string) ([]models.DeliveryTarget, error)
}
