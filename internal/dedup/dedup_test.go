// internal/dedup/dedup_test.go
package dedup

import (
	"context"
	"sync"
	"testing"
	"time"

	"bushfire-beacon/internal/models"

	"github.com/stretchr/testify/assert"
)

func testAlert(id, key string) *models.Alert {
	return &models.Alert{
		ID:         id,
		HazardType: "fire",
		Region:     "R1",
		Severity:   "high",
		DedupKey:   key,
	}
}

func TestMemory_FirstAdmittedRestDuplicate(t *testing.T) {
	d := NewMemory(30 * time.Minute)
	ctx := context.Background()

	first, err := d.Admit(ctx, testAlert("a-1", "k1"))
	assert.NoError(t, err)
	assert.True(t, first.Admitted)

	second, err := d.Admit(ctx, testAlert("a-2", "k1"))
	assert.NoError(t, err)
	assert.False(t, second.Admitted)
	assert.Equal(t, "a-1", second.DuplicateOf)

	// A different key is unaffected.
	other, err := d.Admit(ctx, testAlert("a-3", "k2"))
	assert.NoError(t, err)
	assert.True(t, other.Admitted)
}

func TestMemory_WindowExpiry(t *testing.T) {
	d := NewMemory(30 * time.Minute)
	now := time.Date(2026, 1, 15, 4, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	res, err := d.Admit(ctx, testAlert("a-1", "k1"))
	assert.NoError(t, err)
	assert.True(t, res.Admitted)

	// Inside the window: still a duplicate.
	now = now.Add(29 * time.Minute)
	res, err = d.Admit(ctx, testAlert("a-2", "k1"))
	assert.NoError(t, err)
	assert.False(t, res.Admitted)

	// Past the window: a new first occurrence.
	now = now.Add(2 * time.Minute)
	res, err = d.Admit(ctx, testAlert("a-3", "k1"))
	assert.NoError(t, err)
	assert.True(t, res.Admitted)

	// The duplicate now points at the new window's first alert.
	res, err = d.Admit(ctx, testAlert("a-4", "k1"))
	assert.NoError(t, err)
	assert.False(t, res.Admitted)
	assert.Equal(t, "a-3", res.DuplicateOf)
}

func TestMemory_Release(t *testing.T) {
	d := NewMemory(30 * time.Minute)
	ctx := context.Background()

	res, err := d.Admit(ctx, testAlert("a-1", "k1"))
	assert.NoError(t, err)
	assert.True(t, res.Admitted)

	// Releasing with a different alert id leaves the window intact.
	assert.NoError(t, d.Release(ctx, "k1", "a-other"))
	res, err = d.Admit(ctx, testAlert("a-2", "k1"))
	assert.NoError(t, err)
	assert.False(t, res.Admitted)

	// Releasing by the winner frees the key for the next report.
	assert.NoError(t, d.Release(ctx, "k1", "a-1"))
	res, err = d.Admit(ctx, testAlert("a-3", "k1"))
	assert.NoError(t, err)
	assert.True(t, res.Admitted)
}

func TestMemory_Sweep(t *testing.T) {
	d := NewMemory(10 * time.Minute)
	now := time.Date(2026, 1, 15, 4, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = d.Admit(ctx, testAlert("a-1", "k1"))
	_, _ = d.Admit(ctx, testAlert("a-2", "k2"))
	assert.Equal(t, 2, d.Len())

	now = now.Add(11 * time.Minute)
	_, _ = d.Admit(ctx, testAlert("a-3", "k3"))

	evicted := d.Sweep()
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 1, d.Len())
}

func TestMemory_ConcurrentAdmit(t *testing.T) {
	d := NewMemory(30 * time.Minute)
	ctx := context.Background()

	const callers = 50
	results := make([]Admission, callers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			res, err := d.Admit(ctx, testAlert("a", "contended"))
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	close(start)
	wg.Wait()

	admitted := 0
	for _, res := range results {
		if res.Admitted {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted, "exactly one caller wins the key")
}
