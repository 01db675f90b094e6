// internal/intake/intake.go
package intake

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"bushfire-beacon/internal/common/errors"
	"bushfire-beacon/internal/common/logger"
	"bushfire-beacon/internal/common/validation"
	"bushfire-beacon/internal/models"

	"github.com/google/uuid"
)

// Config holds intake settings.
type Config struct {
	// TimeBucket is the width of the reported_at bucket folded into the dedup
	// key, so near-simultaneous reports of the same hazard collapse to one key.
	TimeBucket time.Duration
}

// Intake validates raw hazard reports and normalizes them into Alerts. It has
// no side effects; persistence and admission are the caller's concern.
type Intake struct {
	config Config
	logger logger.Logger
}

func New(config Config, log logger.Logger) *Intake {
	if config.TimeBucket <= 0 {
		config.TimeBucket = 10 * time.Minute
	}
	return &Intake{
		config: config,
		logger: log.WithFields(map[string]interface{}{"component": "intake"}),
	}
}

// Normalize validates the raw report and produces an immutable Alert with a
// fresh id and a deterministic dedup key.
func (i *Intake) Normalize(report Report) (*models.Alert, error) {
	result, err := validation.ValidateReport(report.AsMap())
	if err != nil {
		return nil, errors.NewInvalidReportError(err.Error())
	}
	if !result.Valid {
		details := strings.Join(result.GetErrorMessages(), "; ")
		i.logger.Warn("report rejected", map[string]interface{}{
			"errors": details,
		})
		return nil, errors.NewInvalidReportError(details)
	}

	reportedAt, err := time.Parse(time.RFC3339, report.ReportedAt)
	if err != nil {
		return nil, errors.NewInvalidReportError(fmt.Sprintf("reportedAt: %v", err))
	}

	now := time.Now().UTC()
	alert := &models.Alert{
		ID:         uuid.New().String(),
		HazardType: report.HazardType,
		Region:     report.Region,
		Severity:   report.Severity,
		Source:     report.Source,
		ReportedAt: reportedAt.UTC(),
		DedupKey:   DedupKey(report.HazardType, report.Region, reportedAt, i.config.TimeBucket),
		CreatedAt:  now,
	}

	i.logger.Debug("report normalized", map[string]interface{}{
		"alertId":  alert.ID,
		"hazard":   alert.HazardType,
		"region":   alert.Region,
		"severity": alert.Severity,
	})

	return alert, nil
}

// DedupKey derives the deterministic fingerprint that collapses near-duplicate
// reports: same hazard type, same region, same time bucket → same key.
func DedupKey(hazardType, region string, reportedAt time.Time, bucket time.Duration) string {
	bucketStart := reportedAt.UTC().Truncate(bucket)
	raw := fmt.Sprintf("%s|%s|%d", hazardType, region, bucketStart.Unix())
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
