// Package sched runs the monitor's periodic tasks, each on its own
// goroutine, with drift-free wake-ups: the next wake time is computed
// from the previous wake time plus the period, not from when the body
// finished. An overrunning invocation is followed immediately by the
// next one; cumulative drift does not build up.
package sched

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a body invoked on a fixed period. Priority is advisory on a
// host kernel (goroutines are not priority-scheduled); it orders startup
// and documents urgency, highest first, matching the firmware layout
// this service mirrors.
type Task struct {
	Name     string
	Period   time.Duration
	Priority int
	Run      func(ctx context.Context)
}

type Scheduler struct {
	log   *zap.Logger
	tasks []Task

	wg sync.WaitGroup
}

func New(log *zap.Logger) *Scheduler {
	return &Scheduler{log: log}
}

func (s *Scheduler) Add(t Task) {
	s.tasks = append(s.tasks, t)
}

// Start launches every registered task and returns. Tasks stop when ctx
// is cancelled; Wait blocks until they have all returned.
func (s *Scheduler) Start(ctx context.Context) {
	sort.SliceStable(s.tasks, func(i, j int) bool {
		return s.tasks[i].Priority > s.tasks[j].Priority
	})
	for _, t := range s.tasks {
		s.log.Info("task started",
			zap.String("task", t.Name),
			zap.Duration("period", t.Period),
			zap.Int("priority", t.Priority))
		s.wg.Add(1)
		go func(t Task) {
			defer s.wg.Done()
			s.runLoop(ctx, t)
		}(t)
	}
}

func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) runLoop(ctx context.Context, t Task) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	lastWake := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("task stopping", zap.String("task", t.Name))
			return
		case <-timer.C:
		}

		t.Run(ctx)

		// Next wake is lastWake+period regardless of how long Run took.
		lastWake = lastWake.Add(t.Period)
		d := time.Until(lastWake)
		if d < 0 {
			// Overrun: run again right away, re-anchored to now so one
			// slow cycle does not cause a burst of catch-up cycles.
			lastWake = time.Now()
			d = 0
		}
		timer.Reset(d)
	}
}
