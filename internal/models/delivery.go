// internal/models/delivery.go
package models

import "time"

// Delivery target statuses. Sent and Exhausted are terminal; Failed means the
// last attempt failed transiently and a retry is scheduled.
const (
	TargetPending   = "pending"
	TargetFailed    = "failed"
	TargetSent      = "sent"
	TargetExhausted = "exhausted"
)

// DeliveryTarget is one subscriber-channel obligation for a given alert.
// At most one non-terminal target exists per (alert, subscriber, channel).
type DeliveryTarget struct {
	AlertID       string    `json:"alertId"`
	SubscriberID  string    `json:"subscriberId"`
	Channel       string    `json:"channel"`
	Destination   string    `json:"destination"` // email address or phone number
	Status        string    `json:"status"`
	AttemptCount  int       `json:"attemptCount"` // failed attempts; a successful send does not count
	NextAttemptAt time.Time `json:"nextAttemptAt"`
	LastError     string    `json:"lastError,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Key identifies the target's (alert, subscriber, channel) triple.
func (t DeliveryTarget) Key() string {
	return t.AlertID + "/" + t.SubscriberID + "/" + t.Channel
}

// Terminal reports whether the target can no longer transition.
func (t DeliveryTarget) Terminal() bool {
	return t.Status == TargetSent || t.Status == TargetExhausted
}
