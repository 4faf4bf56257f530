// Package display refreshes the status screen from the latest snapshot.
package display

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bedmonitor-go/drivers/display"
	"bedmonitor-go/sched"
	"bedmonitor-go/state"
	"bedmonitor-go/x/syncx"
)

const (
	DefaultPeriod = 500 * time.Millisecond
	Priority      = 2

	// Title is the fixed screen heading.
	Title = "CAMA HOSPITALAR"

	busLockWait = 100 * time.Millisecond
)

type Service struct {
	log   *zap.Logger
	store *state.Store
	bus   *syncx.TimedMutex
	out   display.Renderer

	// tasks is the footer counter: how many periodic tasks run.
	tasks int

	snap  state.SystemState
	blink bool
}

// New wires the task. bus guards the display's own I2C segment; it is
// separate from the sensor bus so a slow render never delays a read.
func New(store *state.Store, bus *syncx.TimedMutex, out display.Renderer, tasks int, log *zap.Logger) *Service {
	return &Service{
		log:   log,
		store: store,
		bus:   bus,
		out:   out,
		tasks: tasks,
	}
}

func (s *Service) Task() sched.Task {
	return sched.Task{Name: "display", Period: DefaultPeriod, Priority: Priority, Run: s.Tick}
}

// Tick renders one frame. Snapshot contention reuses the previous copy;
// display bus contention skips the cycle, the next one catches up.
func (s *Service) Tick(ctx context.Context) {
	if snap, ok := s.store.Snapshot(); ok {
		s.snap = snap
	}

	if s.snap.AlertActive {
		s.blink = !s.blink
	} else {
		s.blink = false
	}
	f := BuildFrame(s.snap, s.store.Range(), s.blink, s.tasks)

	var err error
	if !s.bus.With(busLockWait, func() {
		err = s.out.Render(f)
	}) {
		s.log.Debug("display bus busy, frame skipped")
		return
	}
	if err != nil {
		s.log.Warn("render failed", zap.Error(err))
	}
}

// BuildFrame formats one screen from a snapshot. Before the first valid
// environmental sample the value lines show reading placeholders.
func BuildFrame(snap state.SystemState, rng state.SafeRange, blink bool, tasks int) display.Frame {
	f := display.Frame{
		Title:      Title,
		WifiUp:     snap.WifiConnected,
		MQTTUp:     snap.MQTTConnected,
		Angle:      snap.Angle,
		AlertBlink: blink,
		Tasks:      tasks,
	}

	switch {
	case snap.Angle < rng.Min:
		f.RangeMsg = "! BAIXO !"
	case snap.Angle > rng.Max:
		f.RangeMsg = "! ALTO !"
	default:
		f.RangeMsg = fmt.Sprintf("OK (%.0f-%.0f)", rng.Min, rng.Max)
	}

	if snap.DataValid {
		f.TempLine = fmt.Sprintf("Temp: %.1fC", snap.Temperature)
		f.HumLine = fmt.Sprintf("Umid: %.1f%%", snap.Humidity)
	} else {
		f.TempLine = "Temp: Lendo..."
		f.HumLine = "Umid: Lendo..."
	}
	return f
}
