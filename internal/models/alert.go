// internal/models/alert.go
package models

import "time"

// Hazard severities accepted at intake.
const (
	SeverityLow      = "low"
	SeverityModerate = "moderate"
	SeverityHigh     = "high"
	SeverityExtreme  = "extreme"
)

// Alert is the canonical record of a reported hazard event. Immutable once created.
type Alert struct {
	ID         string    `json:"id"`
	HazardType string    `json:"hazardType"` // "fire", "flood", "storm", ...
	Region     string    `json:"region"`
	Severity   string    `json:"severity"`
	Source     string    `json:"source,omitempty"`
	ReportedAt time.Time `json:"reportedAt"`
	DedupKey   string    `json:"dedupKey"`
	Withdrawn  bool      `json:"withdrawn"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DedupRecord marks the first occurrence of a dedup key within its window.
type DedupRecord struct {
	DedupKey      string    `json:"dedupKey"`
	FirstAlertID  string    `json:"firstAlertId"`
	WindowExpires time.Time `json:"windowExpiresAt"`
}

func ValidSeverity(s string) bool {
	switch s {
	case SeverityLow, SeverityModerate, SeverityHigh, SeverityExtreme:
		return true
	}
	return false
}
