// internal/dispatch/scheduler.go
package dispatch

import (
	"context"
	"sync"
	"time"

	"bushfire-beacon/internal/common/logger"
	"bushfire-beacon/internal/store"
)

// Scheduler periodically sweeps the store for due targets and feeds them to
// the dispatcher. Workers never sleep on a backoff; a retried target simply
// becomes due again and the sweep picks it up.
type Scheduler struct {
	targets    store.TargetStore
	dispatcher *Dispatcher
	tick       time.Duration
	batch      int
	logger     logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(targets store.TargetStore, dispatcher *Dispatcher, tick time.Duration, batch int, log logger.Logger) *Scheduler {
	return &Scheduler{
		targets:    targets,
		dispatcher: dispatcher,
		tick:       tick,
		batch:      batch,
		logger:     log,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	due, err := s.targets.DueTargets(ctx, time.Now().UTC(), s.batch)
	if err != nil {
		s.logger.Error("due-target sweep failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if len(due) == 0 {
		return
	}

	accepted := s.dispatcher.Enqueue(due)
	s.logger.Debug("due targets enqueued", map[string]interface{}{
		"due":      len(due),
		"accepted": accepted,
	})
}
