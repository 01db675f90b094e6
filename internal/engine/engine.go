// internal/engine/engine.go
package engine

import (
	"context"

	"bushfire-beacon/internal/common/logger"
	"bushfire-beacon/internal/common/metrics"
	"bushfire-beacon/internal/dedup"
	"bushfire-beacon/internal/fanout"
	"bushfire-beacon/internal/intake"
	"bushfire-beacon/internal/models"
	"bushfire-beacon/internal/store"
)

// SubmitResult reports what happened to one hazard report. A duplicate
// carries the id of the alert it duplicated and creates no targets.
type SubmitResult struct {
	AlertID   string `json:"alertId"`
	Duplicate bool   `json:"duplicate"`
	Targets   int    `json:"targets"`
}

// AlertStatus is the per-target view of one alert's delivery progress.
type AlertStatus struct {
	Alert   *models.Alert           `json:"alert"`
	Targets []models.DeliveryTarget `json:"targets"`
}

// Engine is the intake-to-fanout pipeline: validate, dedup, persist, expand
// into delivery targets. The dispatcher drains the targets it writes.
type Engine struct {
	intake   *intake.Intake
	dedup    dedup.Deduplicator
	resolver *fanout.Resolver
	alerts   store.AlertStore
	targets  store.TargetStore
	logger   logger.Logger
}

func New(in *intake.Intake, dedup dedup.Deduplicator, resolver *fanout.Resolver, alerts store.AlertStore, targets store.TargetStore, log logger.Logger) *Engine {
	return &Engine{
		intake:   in,
		dedup:    dedup,
		resolver: resolver,
		alerts:   alerts,
		targets:  targets,
		logger:   log,
	}
}

// Submit runs one hazard report through the pipeline. If the alert cannot
// be persisted right after admission, the dedup window is released so a
// resubmission is not suppressed by an alert that was never saved. On a
// directory or target-store failure after the save, the result still
// carries the alert id: the alert exists, and re-running fan-out is safe
// because target inserts are idempotent.
func (e *Engine) Submit(ctx context.Context, report intake.Report) (*SubmitResult, error) {
	alert, err := e.intake.Normalize(report)
	if err != nil {
		metrics.ReportsRejected.Inc()
		return nil, err
	}

	admission, err := e.dedup.Admit(ctx, alert)
	if err != nil {
		return nil, err
	}
	if !admission.Admitted {
		metrics.AlertsDuplicate.Inc()
		e.logger.Info("duplicate report suppressed", map[string]interface{}{
			"duplicate_of": admission.DuplicateOf,
			"dedup_key":    alert.DedupKey,
		})
		return &SubmitResult{AlertID: admission.DuplicateOf, Duplicate: true}, nil
	}
	metrics.AlertsAdmitted.Inc()

	if err := e.alerts.SaveAlert(ctx, alert); err != nil {
		if relErr := e.dedup.Release(ctx, alert.DedupKey, alert.ID); relErr != nil {
			e.logger.Warn("dedup window release failed after save error", map[string]interface{}{
				"dedup_key": alert.DedupKey,
				"error":     relErr.Error(),
			})
		}
		return nil, err
	}

	targets, err := e.resolver.Resolve(ctx, alert)
	if err != nil {
		return &SubmitResult{AlertID: alert.ID}, err
	}
	if err := e.targets.AddTargets(ctx, targets); err != nil {
		return &SubmitResult{AlertID: alert.ID}, err
	}

	e.logger.Info("alert admitted", map[string]interface{}{
		"alert_id": alert.ID,
		"region":   alert.Region,
		"severity": alert.Severity,
		"targets":  len(targets),
	})
	return &SubmitResult{AlertID: alert.ID, Targets: len(targets)}, nil
}

// Withdraw stops all future delivery work for the alert. Targets already
// sent stay sent; pending ones are simply never claimed again.
func (e *Engine) Withdraw(ctx context.Context, alertID string) error {
	if err := e.alerts.MarkWithdrawn(ctx, alertID); err != nil {
		return err
	}
	e.logger.Info("alert withdrawn", map[string]interface{}{"alert_id": alertID})
	return nil
}

// Status returns the alert and the per-target delivery state.
func (e *Engine) Status(ctx context.Context, alertID string) (*AlertStatus, error) {
	alert, err := e.alerts.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	targets, err := e.targets.TargetsForAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	return &AlertStatus{Alert: alert, Targets: targets}, nil
}
