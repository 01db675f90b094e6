// internal/fanout/resolver.go
package fanout

import (
	"context"
	"time"

	"bushfire-beacon/internal/common/logger"
	"bushfire-beacon/internal/directory"
	"bushfire-beacon/internal/models"
)

// Resolver expands an admitted alert into one DeliveryTarget per matching
// subscriber per opted-in channel. Subscribers match on both region and
// hazard-type opt-in. Resolution is all-or-nothing: a directory failure
// yields no partial target set.
type Resolver struct {
	directory directory.Directory
	logger    logger.Logger
	now       func() time.Time
}

func New(dir directory.Directory, log logger.Logger) *Resolver {
	return &Resolver{
		directory: dir,
		logger:    log,
		now:       time.Now,
	}
}

// Resolve returns the delivery targets for the alert. A subscriber with both
// channels opted in yields two targets; one with no usable channel yields
// none. Targets start Pending with a zero attempt count and are immediately
// due.
func (r *Resolver) Resolve(ctx context.Context, alert *models.Alert) ([]models.DeliveryTarget, error) {
	subs, err := r.directory.FindSubscribers(ctx, alert.Region, alert.HazardType)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	var targets []models.DeliveryTarget
	for _, sub := range subs {
		for _, channel := range sub.Channels() {
			targets = append(targets, models.DeliveryTarget{
				AlertID:       alert.ID,
				SubscriberID:  sub.ID,
				Channel:       channel,
				Destination:   destinationFor(sub, channel),
				Status:        models.TargetPending,
				AttemptCount:  0,
				NextAttemptAt: now,
				CreatedAt:     now,
				UpdatedAt:     now,
			})
		}
	}

	r.logger.Info("alert fanned out", map[string]interface{}{
		"alert_id":    alert.ID,
		"region":      alert.Region,
		"subscribers": len(subs),
		"targets":     len(targets),
	})
	return targets, nil
}

func destinationFor(sub models.Subscriber, channel string) string {
	switch channel {
	case models.ChannelEmail:
		return sub.Email
	case models.ChannelSMS:
		return sub.Phone
	}
	return ""
}
