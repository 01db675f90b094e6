// internal/dispatch/dispatcher_test.go
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bushfire-beacon/internal/channels"
	"bushfire-beacon/internal/common/errors"
	"bushfire-beacon/internal/common/logger"
	"bushfire-beacon/internal/models"
	"bushfire-beacon/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAdapter struct {
	channel  string
	SendFunc func(ctx context.Context, destination string, msg channels.Message) error
}

func (m *mockAdapter) Channel() string { return m.channel }

func (m *mockAdapter) Send(ctx context.Context, destination string, msg channels.Message) error {
	return m.SendFunc(ctx, destination, msg)
}

type mockRecorder struct {
	mu       sync.Mutex
	outcomes map[string]string
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{outcomes: make(map[string]string)}
}

func (r *mockRecorder) RecordOutcome(_ context.Context, _ *models.Alert, target models.DeliveryTarget, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[target.Key()] = outcome
}

func (r *mockRecorder) outcome(key string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcomes[key]
}

func testOptions(maxAttempts int) Options {
	return Options{
		MaxAttempts: maxAttempts,
		Backoff:     Policy{Base: time.Millisecond, Cap: 5 * time.Millisecond},
		QueueSize:   16,
		Lease:       50 * time.Millisecond,
		Channels: map[string]ChannelOptions{
			models.ChannelEmail: {Workers: 2, Rate: 1000, Burst: 100, Timeout: time.Second},
			models.ChannelSMS:   {Workers: 1, Rate: 1000, Burst: 100, Timeout: time.Second},
		},
	}
}

// startEngine seeds the store, starts a dispatcher plus a fast scheduler and
// registers shutdown with the test.
func startEngine(t *testing.T, m *store.Memory, opts Options, recorder Recorder, adapters ...channels.Adapter) {
	t.Helper()
	d := New(opts, m, m, adapters, recorder, nil, logger.NewTestLogger(t))
	s := NewScheduler(m, d, 5*time.Millisecond, 100, logger.NewTestLogger(t))
	ctx := context.Background()
	d.Start(ctx)
	s.Start(ctx)
	t.Cleanup(func() {
		s.Stop()
		d.Stop()
	})
}

func seed(t *testing.T, m *store.Memory, channel, destination string) models.DeliveryTarget {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, m.SaveAlert(ctx, &models.Alert{
		ID:         "alert-1",
		HazardType: "fire",
		Region:     "R1",
		Severity:   "high",
		ReportedAt: now,
		CreatedAt:  now,
	}))
	target := models.DeliveryTarget{
		AlertID:       "alert-1",
		SubscriberID:  "sub-" + channel,
		Channel:       channel,
		Destination:   destination,
		Status:        models.TargetPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, m.AddTargets(ctx, []models.DeliveryTarget{target}))
	return target
}

func targetState(t *testing.T, m *store.Memory, key string) models.DeliveryTarget {
	t.Helper()
	targets, err := m.TargetsForAlert(context.Background(), "alert-1")
	require.NoError(t, err)
	for _, target := range targets {
		if target.Key() == key {
			return target
		}
	}
	t.Fatalf("target %s not found", key)
	return models.DeliveryTarget{}
}

func TestDispatcher_DeliversPendingTarget(t *testing.T) {
	m := store.NewMemory()
	target := seed(t, m, models.ChannelEmail, "alice@example.org")

	var calls int32
	adapter := &mockAdapter{
		channel: models.ChannelEmail,
		SendFunc: func(ctx context.Context, destination string, msg channels.Message) error {
			atomic.AddInt32(&calls, 1)
			assert.Equal(t, "alice@example.org", destination)
			return nil
		},
	}
	startEngine(t, m, testOptions(5), nil, adapter)

	assert.Eventually(t, func() bool {
		return targetState(t, m, target.Key()).Status == models.TargetSent
	}, 2*time.Second, 5*time.Millisecond)

	final := targetState(t, m, target.Key())
	assert.Equal(t, 0, final.AttemptCount, "a clean first send records no failed attempts")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDispatcher_TransientFailuresThenSent(t *testing.T) {
	m := store.NewMemory()
	target := seed(t, m, models.ChannelEmail, "alice@example.org")

	var calls int32
	adapter := &mockAdapter{
		channel: models.ChannelEmail,
		SendFunc: func(ctx context.Context, destination string, msg channels.Message) error {
			if atomic.AddInt32(&calls, 1) <= 3 {
				return errors.NewTransientDeliveryError(models.ChannelEmail, assert.AnError)
			}
			return nil
		},
	}
	startEngine(t, m, testOptions(5), nil, adapter)

	assert.Eventually(t, func() bool {
		return targetState(t, m, target.Key()).Status == models.TargetSent
	}, 2*time.Second, 5*time.Millisecond)

	final := targetState(t, m, target.Key())
	assert.Equal(t, 3, final.AttemptCount, "three transient failures; the successful send is not counted")
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestDispatcher_PermanentFailureExhaustsImmediately(t *testing.T) {
	m := store.NewMemory()
	target := seed(t, m, models.ChannelEmail, "alice@example.org")

	var calls int32
	adapter := &mockAdapter{
		channel: models.ChannelEmail,
		SendFunc: func(ctx context.Context, destination string, msg channels.Message) error {
			atomic.AddInt32(&calls, 1)
			return errors.NewPermanentDeliveryError(models.ChannelEmail, assert.AnError)
		},
	}
	startEngine(t, m, testOptions(5), nil, adapter)

	assert.Eventually(t, func() bool {
		return targetState(t, m, target.Key()).Status == models.TargetExhausted
	}, 2*time.Second, 5*time.Millisecond)

	// No retry may follow a permanent rejection.
	time.Sleep(50 * time.Millisecond)
	final := targetState(t, m, target.Key())
	assert.Equal(t, 1, final.AttemptCount)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.NotEmpty(t, final.LastError)
}

func TestDispatcher_RetryBudgetExhausts(t *testing.T) {
	m := store.NewMemory()
	target := seed(t, m, models.ChannelEmail, "alice@example.org")

	var calls int32
	adapter := &mockAdapter{
		channel: models.ChannelEmail,
		SendFunc: func(ctx context.Context, destination string, msg channels.Message) error {
			atomic.AddInt32(&calls, 1)
			return errors.NewTransientDeliveryError(models.ChannelEmail, assert.AnError)
		},
	}
	startEngine(t, m, testOptions(3), nil, adapter)

	assert.Eventually(t, func() bool {
		return targetState(t, m, target.Key()).Status == models.TargetExhausted
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	final := targetState(t, m, target.Key())
	assert.Equal(t, 3, final.AttemptCount)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDispatcher_WithdrawnAlertNeverDelivered(t *testing.T) {
	m := store.NewMemory()
	target := seed(t, m, models.ChannelEmail, "alice@example.org")
	require.NoError(t, m.MarkWithdrawn(context.Background(), "alert-1"))

	var calls int32
	adapter := &mockAdapter{
		channel: models.ChannelEmail,
		SendFunc: func(ctx context.Context, destination string, msg channels.Message) error {
			atomic.AddInt32(&calls, 1)
			return nil
		},
	}
	startEngine(t, m, testOptions(5), nil, adapter)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Equal(t, models.TargetPending, targetState(t, m, target.Key()).Status)
}

func TestDispatcher_RoutesByChannel(t *testing.T) {
	m := store.NewMemory()
	emailTarget := seed(t, m, models.ChannelEmail, "alice@example.org")
	smsTarget := seed(t, m, models.ChannelSMS, "+61400000001")

	var emailDest, smsDest atomic.Value
	emailAdapter := &mockAdapter{
		channel: models.ChannelEmail,
		SendFunc: func(ctx context.Context, destination string, msg channels.Message) error {
			emailDest.Store(destination)
			assert.NotEmpty(t, msg.Subject)
			return nil
		},
	}
	smsAdapter := &mockAdapter{
		channel: models.ChannelSMS,
		SendFunc: func(ctx context.Context, destination string, msg channels.Message) error {
			smsDest.Store(destination)
			assert.Empty(t, msg.Subject)
			return nil
		},
	}
	startEngine(t, m, testOptions(5), nil, emailAdapter, smsAdapter)

	assert.Eventually(t, func() bool {
		return targetState(t, m, emailTarget.Key()).Status == models.TargetSent &&
			targetState(t, m, smsTarget.Key()).Status == models.TargetSent
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, "alice@example.org", emailDest.Load())
	assert.Equal(t, "+61400000001", smsDest.Load())
}

func TestDispatcher_RecordsTerminalOutcomes(t *testing.T) {
	m := store.NewMemory()
	emailTarget := seed(t, m, models.ChannelEmail, "alice@example.org")
	smsTarget := seed(t, m, models.ChannelSMS, "+61400000001")

	recorder := newMockRecorder()
	emailAdapter := &mockAdapter{
		channel: models.ChannelEmail,
		SendFunc: func(ctx context.Context, destination string, msg channels.Message) error {
			return nil
		},
	}
	smsAdapter := &mockAdapter{
		channel: models.ChannelSMS,
		SendFunc: func(ctx context.Context, destination string, msg channels.Message) error {
			return errors.NewPermanentDeliveryError(models.ChannelSMS, assert.AnError)
		},
	}
	startEngine(t, m, testOptions(5), recorder, emailAdapter, smsAdapter)

	assert.Eventually(t, func() bool {
		return recorder.outcome(emailTarget.Key()) == models.TargetSent &&
			recorder.outcome(smsTarget.Key()) == models.TargetExhausted
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{Base: 2 * time.Second, Cap: 5 * time.Minute}

	// Jitter keeps each delay within half to one-and-a-half of the
	// exponential curve, and the curve never exceeds the cap.
	expected := 2 * time.Second
	for attempt := 1; attempt <= 10; attempt++ {
		d := p.Delay(attempt)
		assert.GreaterOrEqual(t, d, expected/2, "attempt %d", attempt)
		assert.LessOrEqual(t, d, 3*expected/2, "attempt %d", attempt)

		expected *= 2
		if expected > 5*time.Minute {
			expected = 5 * time.Minute
		}
	}

	assert.LessOrEqual(t, p.Delay(50), 5*time.Minute*3/2)
}
