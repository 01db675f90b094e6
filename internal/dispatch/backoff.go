// internal/dispatch/backoff.go
package dispatch

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy computes the wait before a retry: exponential from Base, capped at
// Cap, randomized so a burst of transient failures does not come back in
// lockstep.
type Policy struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Base
	b.MaxInterval = p.Cap
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()

	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}
