// internal/audit/audit_test.go
package audit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"bushfire-beacon/internal/common/logger"
	"bushfire-beacon/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport captures the raw index request.
type fakeTransport struct {
	requests []*http.Request
	bodies   []string
	status   int
}

func (f *fakeTransport) Perform(req *http.Request) (*http.Response, error) {
	body := ""
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		body = string(raw)
	}
	f.requests = append(f.requests, req)
	f.bodies = append(f.bodies, body)

	status := f.status
	if status == 0 {
		status = http.StatusCreated
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(`{}`)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}, nil
}

func TestWriter_RecordOutcome(t *testing.T) {
	transport := &fakeTransport{}
	w := NewWriter(transport, "beacon-delivery-audit", logger.NewTestLogger(t))
	w.now = func() time.Time { return time.Date(2026, 1, 15, 4, 30, 0, 0, time.UTC) }

	alert := &models.Alert{
		ID:         "alert-1",
		HazardType: "fire",
		Region:     "R1",
		Severity:   "high",
	}
	target := models.DeliveryTarget{
		AlertID:      "alert-1",
		SubscriberID: "sub-1",
		Channel:      models.ChannelEmail,
		Destination:  "alice@example.org",
		Status:       models.TargetSent,
		AttemptCount: 3,
	}

	w.RecordOutcome(context.Background(), alert, target, models.TargetSent)

	require.Len(t, transport.requests, 1)
	assert.Contains(t, transport.requests[0].URL.Path, "beacon-delivery-audit")

	var entry Entry
	require.NoError(t, json.Unmarshal([]byte(transport.bodies[0]), &entry))
	assert.Equal(t, "alert-1", entry.AlertID)
	assert.Equal(t, "fire", entry.HazardType)
	assert.Equal(t, "sub-1", entry.SubscriberID)
	assert.Equal(t, "sent", entry.Outcome)
	assert.Equal(t, 3, entry.AttemptCount)
	assert.Equal(t, time.Date(2026, 1, 15, 4, 30, 0, 0, time.UTC), entry.RecordedAt)
}

func TestWriter_RecordOutcome_IndexErrorSwallowed(t *testing.T) {
	transport := &fakeTransport{status: http.StatusServiceUnavailable}
	w := NewWriter(transport, "beacon-delivery-audit", logger.NewNoOpLogger())

	target := models.DeliveryTarget{
		AlertID:      "alert-1",
		SubscriberID: "sub-1",
		Channel:      models.ChannelSMS,
		AttemptCount: 5,
		LastError:    "throttled",
	}

	// Must not panic or propagate; delivery outcome already stands.
	w.RecordOutcome(context.Background(), nil, target, models.TargetExhausted)
	assert.Len(t, transport.requests, 1)
}
