// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"bushfire-beacon/internal/channels"
	"bushfire-beacon/internal/common/errors"
	"bushfire-beacon/internal/common/logger"
	"bushfire-beacon/internal/common/metrics"
	"bushfire-beacon/internal/common/observability"
	"bushfire-beacon/internal/models"
	"bushfire-beacon/internal/store"
)

// Recorder receives terminal delivery outcomes, for the audit trail.
type Recorder interface {
	RecordOutcome(ctx context.Context, alert *models.Alert, target models.DeliveryTarget, outcome string)
}

// ChannelOptions sizes one channel's worker pool and provider throttle.
type ChannelOptions struct {
	Workers int
	Rate    float64
	Burst   int
	Timeout time.Duration
}

// Options holds the dispatcher's retry budget and per-channel settings.
type Options struct {
	MaxAttempts int
	Backoff     Policy
	QueueSize   int
	Lease       time.Duration
	Channels    map[string]ChannelOptions
}

type channelQueue struct {
	name    string
	queue   chan models.DeliveryTarget
	limiter *rate.Limiter
	adapter channels.Adapter
	opts    ChannelOptions
}

// Dispatcher runs one bounded queue and worker pool per channel. Workers
// claim targets through the store's CAS, so a target that reaches a worker
// twice (queue overlap, competing node) is delivered once.
type Dispatcher struct {
	opts     Options
	alerts   store.AlertStore
	targets  store.TargetStore
	recorder Recorder
	obs      *observability.Observability
	logger   logger.Logger
	now      func() time.Time

	queues map[string]*channelQueue
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(opts Options, alerts store.AlertStore, targets store.TargetStore, adapters []channels.Adapter, recorder Recorder, obs *observability.Observability, log logger.Logger) *Dispatcher {
	d := &Dispatcher{
		opts:     opts,
		alerts:   alerts,
		targets:  targets,
		recorder: recorder,
		obs:      obs,
		logger:   log,
		now:      time.Now,
		queues:   make(map[string]*channelQueue),
	}

	for _, adapter := range adapters {
		name := adapter.Channel()
		chOpts, ok := opts.Channels[name]
		if !ok {
			log.Warn("no channel options, adapter not wired", map[string]interface{}{"channel": name})
			continue
		}
		d.queues[name] = &channelQueue{
			name:    name,
			queue:   make(chan models.DeliveryTarget, opts.QueueSize),
			limiter: rate.NewLimiter(rate.Limit(chOpts.Rate), chOpts.Burst),
			adapter: adapter,
			opts:    chOpts,
		}
	}
	return d
}

// Start launches the worker pools. Stop shuts them down.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	for _, q := range d.queues {
		for i := 0; i < q.opts.Workers; i++ {
			d.wg.Add(1)
			go d.worker(ctx, q)
		}
		d.logger.Info("channel workers started", map[string]interface{}{
			"channel": q.name,
			"workers": q.opts.Workers,
			"rate":    q.opts.Rate,
		})
	}
}

func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

// Enqueue offers targets to their channel queues and reports how many were
// accepted. A full queue drops the target; it stays due in the store and the
// scheduler offers it again next tick.
func (d *Dispatcher) Enqueue(targets []models.DeliveryTarget) int {
	accepted := 0
	for _, target := range targets {
		q, ok := d.queues[target.Channel]
		if !ok {
			continue
		}
		select {
		case q.queue <- target:
			accepted++
			metrics.QueueDepth.WithLabelValues(q.name).Set(float64(len(q.queue)))
		default:
			d.logger.Debug("channel queue full, target deferred", map[string]interface{}{
				"channel": q.name,
				"target":  target.Key(),
			})
		}
	}
	return accepted
}

func (d *Dispatcher) worker(ctx context.Context, q *channelQueue) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case target := <-q.queue:
			metrics.QueueDepth.WithLabelValues(q.name).Set(float64(len(q.queue)))
			if err := q.limiter.Wait(ctx); err != nil {
				return
			}
			d.deliver(ctx, q, target)
		}
	}
}

// deliver runs one attempt for one target and applies the outcome to the
// store.
func (d *Dispatcher) deliver(ctx context.Context, q *channelQueue, ref models.DeliveryTarget) {
	alert, err := d.alerts.GetAlert(ctx, ref.AlertID)
	if err != nil {
		d.logger.Warn("alert lookup failed, target deferred", map[string]interface{}{
			"target": ref.Key(),
			"error":  err.Error(),
		})
		return
	}
	if alert.Withdrawn {
		return
	}

	claimed, ok, err := d.targets.ClaimDue(ctx, ref, d.now().UTC(), d.opts.Lease)
	if err != nil {
		d.logger.Warn("claim failed", map[string]interface{}{
			"target": ref.Key(),
			"error":  err.Error(),
		})
		return
	}
	if !ok {
		return
	}

	msg := channels.Render(alert, q.name)
	attemptCtx, cancel := context.WithTimeout(ctx, q.opts.Timeout)
	start := time.Now()
	sendErr := q.adapter.Send(attemptCtx, claimed.Destination, msg)
	cancel()

	elapsed := time.Since(start)
	metrics.DeliveryAttemptDuration.WithLabelValues(q.name).Observe(elapsed.Seconds())
	if d.obs != nil {
		d.obs.RecordAttemptDuration(ctx, elapsed, q.name)
	}

	// The claimed attempt count holds the failed attempts so far; this send
	// is attempt number claimed.AttemptCount+1. The count moves in the store
	// only when the attempt fails, so a target sent on attempt N ends with
	// N-1 recorded failures.
	attempt := claimed.AttemptCount + 1
	now := d.now().UTC()
	switch {
	case sendErr == nil:
		d.finalize(ctx, alert, *claimed, models.TargetSent, "", now)
		metrics.DeliveriesSent.WithLabelValues(q.name).Inc()
		d.logger.Info("delivery sent", map[string]interface{}{
			"target":  claimed.Key(),
			"attempt": attempt,
		})

	case errors.IsPermanentDelivery(sendErr):
		metrics.DeliveriesFailed.WithLabelValues(q.name, "permanent").Inc()
		claimed.AttemptCount = attempt
		d.finalize(ctx, alert, *claimed, models.TargetExhausted, sendErr.Error(), now)
		d.logger.Warn("delivery rejected permanently", map[string]interface{}{
			"target":  claimed.Key(),
			"attempt": attempt,
			"error":   sendErr.Error(),
		})

	default:
		metrics.DeliveriesFailed.WithLabelValues(q.name, "transient").Inc()
		if attempt >= d.opts.MaxAttempts {
			claimed.AttemptCount = attempt
			d.finalize(ctx, alert, *claimed, models.TargetExhausted, sendErr.Error(), now)
			d.logger.Warn("delivery retries exhausted", map[string]interface{}{
				"target":   claimed.Key(),
				"attempts": attempt,
			})
			return
		}
		nextAt := now.Add(d.opts.Backoff.Delay(attempt))
		if err := d.targets.ScheduleRetry(ctx, *claimed, nextAt, sendErr.Error(), now); err != nil {
			d.logger.Error("schedule retry failed", map[string]interface{}{
				"target": claimed.Key(),
				"error":  err.Error(),
			})
			return
		}
		if d.obs != nil {
			d.obs.RecordTargetProcessed(ctx, q.name, models.TargetFailed)
		}
		d.logger.Debug("delivery attempt failed, retry scheduled", map[string]interface{}{
			"target":  claimed.Key(),
			"attempt": attempt,
			"next_at": nextAt,
		})
	}
}

// finalize applies a terminal status and fans the outcome to metrics and the
// audit trail.
func (d *Dispatcher) finalize(ctx context.Context, alert *models.Alert, target models.DeliveryTarget, status, lastErr string, now time.Time) {
	var err error
	switch status {
	case models.TargetSent:
		err = d.targets.MarkSent(ctx, target, now)
	case models.TargetExhausted:
		err = d.targets.MarkExhausted(ctx, target, lastErr, now)
		metrics.DeliveriesExhausted.WithLabelValues(target.Channel).Inc()
	}
	if err != nil {
		d.logger.Error("target finalize failed", map[string]interface{}{
			"target": target.Key(),
			"status": status,
			"error":  err.Error(),
		})
		return
	}

	if d.obs != nil {
		d.obs.RecordTargetProcessed(ctx, target.Channel, status)
	}
	if d.recorder != nil {
		target.Status = status
		target.LastError = lastErr
		d.recorder.RecordOutcome(ctx, alert, target, status)
	}
}
