// Package uplink streams the readings over the serial side channel as
// one CSV line per cycle. The physical start/stop buttons gate the
// stream: transmission is off until the first start press, and the
// debounced toggle events are drained at the top of each cycle so the
// latest press wins.
//
// The receiving logger reads the columns as TEMP,UMID,ANGULO,ALERTA and
// writes its own header; only data lines go over the wire.
package uplink

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bedmonitor-go/drivers/buttons"
	"bedmonitor-go/sched"
	"bedmonitor-go/state"
)

const (
	DefaultPeriod = 2 * time.Second
	Priority      = 1
)

// Port is the write side of the serial line; go.bug.st/serial.Port
// satisfies it.
type Port interface {
	Write(p []byte) (int, error)
}

type Service struct {
	log    *zap.Logger
	store  *state.Store
	port   Port
	events <-chan buttons.ToggleEvent

	enabled bool
	snap    state.SystemState
}

// New wires the task. The stream starts disabled; nothing goes over the
// wire until the start button's first press.
func New(store *state.Store, port Port, events <-chan buttons.ToggleEvent, log *zap.Logger) *Service {
	return &Service{
		log:    log,
		store:  store,
		port:   port,
		events: events,
	}
}

func (s *Service) Task() sched.Task {
	return sched.Task{Name: "uplink", Period: DefaultPeriod, Priority: Priority, Run: s.Tick}
}

// Tick drains button events and, when enabled, writes one CSV record.
func (s *Service) Tick(ctx context.Context) {
	s.drainEvents()
	if !s.enabled {
		return
	}

	if snap, ok := s.store.Snapshot(); ok {
		s.snap = snap
	}

	line := Record(s.snap)
	if _, err := s.port.Write([]byte(line)); err != nil {
		s.log.Warn("serial write failed", zap.Error(err))
	}
}

func (s *Service) drainEvents() {
	for {
		select {
		case ev := <-s.events:
			if ev.Enable != s.enabled {
				s.log.Info("uplink toggled", zap.Bool("enabled", ev.Enable))
			}
			s.enabled = ev.Enable
		default:
			return
		}
	}
}

// Record formats one CSV line: temperature, humidity, angle, alert flag.
func Record(snap state.SystemState) string {
	alert := 0
	if snap.AlertActive {
		alert = 1
	}
	return fmt.Sprintf("%.1f,%.1f,%.1f,%d\n",
		snap.Temperature, snap.Humidity, snap.Angle, alert)
}
