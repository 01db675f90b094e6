// internal/audit/audit.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"bushfire-beacon/internal/common/logger"
	"bushfire-beacon/internal/models"
)

// Entry is one terminal delivery outcome, as indexed.
type Entry struct {
	AlertID      string    `json:"alertId"`
	HazardType   string    `json:"hazardType"`
	Region       string    `json:"region"`
	Severity     string    `json:"severity"`
	SubscriberID string    `json:"subscriberId"`
	Channel      string    `json:"channel"`
	Destination  string    `json:"destination"`
	Outcome      string    `json:"outcome"`
	AttemptCount int       `json:"attemptCount"`
	LastError    string    `json:"lastError,omitempty"`
	RecordedAt   time.Time `json:"recordedAt"`
}

// Writer indexes terminal delivery outcomes into Elasticsearch. Auditing is
// best-effort: an index failure is logged and dropped, never surfaced into
// the delivery path.
type Writer struct {
	transport esapi.Transport
	index     string
	logger    logger.Logger
	now       func() time.Time
}

func NewWriter(transport esapi.Transport, index string, log logger.Logger) *Writer {
	return &Writer{
		transport: transport,
		index:     index,
		logger:    log,
		now:       time.Now,
	}
}

// RecordOutcome implements the dispatcher's audit hook.
func (w *Writer) RecordOutcome(ctx context.Context, alert *models.Alert, target models.DeliveryTarget, outcome string) {
	entry := Entry{
		AlertID:      target.AlertID,
		SubscriberID: target.SubscriberID,
		Channel:      target.Channel,
		Destination:  target.Destination,
		Outcome:      outcome,
		AttemptCount: target.AttemptCount,
		LastError:    target.LastError,
		RecordedAt:   w.now().UTC(),
	}
	if alert != nil {
		entry.HazardType = alert.HazardType
		entry.Region = alert.Region
		entry.Severity = alert.Severity
	}

	body, err := json.Marshal(entry)
	if err != nil {
		w.logger.Error("audit entry marshal failed", map[string]interface{}{"error": err.Error()})
		return
	}

	req := esapi.IndexRequest{
		Index:      w.index,
		DocumentID: uuid.New().String(),
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, w.transport)
	if err != nil {
		w.logger.Warn("audit index failed", map[string]interface{}{
			"target": target.Key(),
			"error":  err.Error(),
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		w.logger.Warn("audit index rejected", map[string]interface{}{
			"target": target.Key(),
			"status": res.Status(),
		})
	}
}
