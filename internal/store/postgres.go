// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"time"

	"bushfire-beacon/internal/common/errors"
	"bushfire-beacon/internal/common/logger"
	"bushfire-beacon/internal/models"

	_ "github.com/lib/pq"
)

const (
	saveAlertQuery = `
		INSERT INTO alerts (id, hazard_type, region, severity, source, reported_at, dedup_key, withdrawn, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getAlertQuery = `
		SELECT id, hazard_type, region, severity, COALESCE(source, ''), reported_at, dedup_key, withdrawn, created_at
		FROM alerts
		WHERE id = $1`

	markWithdrawnQuery = `
		UPDATE alerts SET withdrawn = TRUE WHERE id = $1`

	addTargetQuery = `
		INSERT INTO delivery_targets
			(alert_id, subscriber_id, channel, destination, status, attempt_count, next_attempt_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (alert_id, subscriber_id, channel) DO NOTHING`

	claimDueQuery = `
		UPDATE delivery_targets
		SET next_attempt_at = $4, updated_at = $5
		WHERE alert_id = $1 AND subscriber_id = $2 AND channel = $3
			AND status IN ('pending', 'failed')
			AND next_attempt_at <= $5
			AND EXISTS (SELECT 1 FROM alerts a WHERE a.id = delivery_targets.alert_id AND NOT a.withdrawn)
		RETURNING destination, status, attempt_count`

	markSentQuery = `
		UPDATE delivery_targets
		SET status = 'sent', last_error = '', updated_at = $4
		WHERE alert_id = $1 AND subscriber_id = $2 AND channel = $3
			AND status IN ('pending', 'failed')`

	scheduleRetryQuery = `
		UPDATE delivery_targets
		SET status = 'failed', attempt_count = attempt_count + 1, next_attempt_at = $4, last_error = $5, updated_at = $6
		WHERE alert_id = $1 AND subscriber_id = $2 AND channel = $3
			AND status IN ('pending', 'failed')`

	markExhaustedQuery = `
		UPDATE delivery_targets
		SET status = 'exhausted', attempt_count = attempt_count + 1, last_error = $4, updated_at = $5
		WHERE alert_id = $1 AND subscriber_id = $2 AND channel = $3
			AND status IN ('pending', 'failed')`

	dueTargetsQuery = `
		SELECT t.alert_id, t.subscriber_id, t.channel, t.destination, t.status,
			t.attempt_count, t.next_attempt_at, COALESCE(t.last_error, ''), t.created_at, t.updated_at
		FROM delivery_targets t
		JOIN alerts a ON a.id = t.alert_id
		WHERE t.status IN ('pending', 'failed') AND t.next_attempt_at <= $1 AND NOT a.withdrawn
		ORDER BY t.next_attempt_at, t.alert_id, t.subscriber_id, t.channel
		LIMIT $2`

	targetsForAlertQuery = `
		SELECT alert_id, subscriber_id, channel, destination, status,
			attempt_count, next_attempt_at, COALESCE(last_error, ''), created_at, updated_at
		FROM delivery_targets
		WHERE alert_id = $1
		ORDER BY subscriber_id, channel`
)

// Postgres implements AlertStore and TargetStore on the alerts and
// delivery_targets tables. Status transitions ride on single UPDATE
// statements whose WHERE clause carries the CAS guard.
type Postgres struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgres(db *sql.DB, log logger.Logger) *Postgres {
	return &Postgres{db: db, logger: log}
}

// --- AlertStore ---

func (p *Postgres) SaveAlert(ctx context.Context, alert *models.Alert) error {
	_, err := p.db.ExecContext(ctx, saveAlertQuery,
		alert.ID, alert.HazardType, alert.Region, alert.Severity, alert.Source,
		alert.ReportedAt, alert.DedupKey, alert.Withdrawn, alert.CreatedAt)
	if err != nil {
		return errors.NewStoreFailedError("save alert", err)
	}
	return nil
}

func (p *Postgres) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	var alert models.Alert
	err := p.db.QueryRowContext(ctx, getAlertQuery, id).Scan(
		&alert.ID, &alert.HazardType, &alert.Region, &alert.Severity, &alert.Source,
		&alert.ReportedAt, &alert.DedupKey, &alert.Withdrawn, &alert.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewAlertNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewStoreFailedError("get alert", err)
	}
	return &alert, nil
}

func (p *Postgres) MarkWithdrawn(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, markWithdrawnQuery, id)
	if err != nil {
		return errors.NewStoreFailedError("mark withdrawn", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewAlertNotFoundError(id)
	}
	return nil
}

// --- TargetStore ---

func (p *Postgres) AddTargets(ctx context.Context, targets []models.DeliveryTarget) error {
	if len(targets) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreFailedError("add targets", err)
	}
	defer tx.Rollback()

	for _, t := range targets {
		if _, err := tx.ExecContext(ctx, addTargetQuery,
			t.AlertID, t.SubscriberID, t.Channel, t.Destination, t.Status,
			t.AttemptCount, t.NextAttemptAt, t.CreatedAt, t.UpdatedAt); err != nil {
			return errors.NewStoreFailedError("add targets", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStoreFailedError("add targets", err)
	}
	return nil
}

func (p *Postgres) ClaimDue(ctx context.Context, ref models.DeliveryTarget, now time.Time, lease time.Duration) (*models.DeliveryTarget, bool, error) {
	claimed := ref
	err := p.db.QueryRowContext(ctx, claimDueQuery,
		ref.AlertID, ref.SubscriberID, ref.Channel, now.Add(lease), now).
		Scan(&claimed.Destination, &claimed.Status, &claimed.AttemptCount)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewStoreFailedError("claim target", err)
	}
	claimed.NextAttemptAt = now.Add(lease)
	claimed.UpdatedAt = now
	return &claimed, true, nil
}

func (p *Postgres) MarkSent(ctx context.Context, ref models.DeliveryTarget, now time.Time) error {
	_, err := p.db.ExecContext(ctx, markSentQuery, ref.AlertID, ref.SubscriberID, ref.Channel, now)
	if err != nil {
		return errors.NewStoreFailedError("mark sent", err)
	}
	return nil
}

func (p *Postgres) ScheduleRetry(ctx context.Context, ref models.DeliveryTarget, nextAt time.Time, lastErr string, now time.Time) error {
	_, err := p.db.ExecContext(ctx, scheduleRetryQuery,
		ref.AlertID, ref.SubscriberID, ref.Channel, nextAt, lastErr, now)
	if err != nil {
		return errors.NewStoreFailedError("schedule retry", err)
	}
	return nil
}

func (p *Postgres) MarkExhausted(ctx context.Context, ref models.DeliveryTarget, lastErr string, now time.Time) error {
	_, err := p.db.ExecContext(ctx, markExhaustedQuery,
		ref.AlertID, ref.SubscriberID, ref.Channel, lastErr, now)
	if err != nil {
		return errors.NewStoreFailedError("mark exhausted", err)
	}
	return nil
}

func (p *Postgres) DueTargets(ctx context.Context, now time.Time, limit int) ([]models.DeliveryTarget, error) {
	rows, err := p.db.QueryContext(ctx, dueTargetsQuery, now, limit)
	if err != nil {
		return nil, errors.NewStoreFailedError("due targets", err)
	}
	defer rows.Close()
	return scanTargets(rows)
}

func (p *Postgres) TargetsForAlert(ctx context.Context, alertID string) ([]models.DeliveryTarget, error) {
	rows, err := p.db.QueryContext(ctx, targetsForAlertQuery, alertID)
	if err != nil {
		return nil, errors.NewStoreFailedError("targets for alert", err)
	}
	defer rows.Close()
	return scanTargets(rows)
}

func scanTargets(rows *sql.Rows) ([]models.DeliveryTarget, error) {
	var out []models.DeliveryTarget
	for rows.Next() {
		var t models.DeliveryTarget
		if err := rows.Scan(&t.AlertID, &t.SubscriberID, &t.Channel, &t.Destination, &t.Status,
			&t.AttemptCount, &t.NextAttemptAt, &t.LastError, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, errors.NewStoreFailedError("scan target", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreFailedError("scan targets", err)
	}
	return out, nil
}
