// Package alert watches the tilt angle and drives the local alarm
// outputs: indicator on, beeper pulsing at half the task rate, and a
// bounded proportional nudge on the corrective servo. The task owns no
// state beyond the beep duty counter, so a restart costs nothing.
package alert

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bedmonitor-go/drivers/actuators"
	"bedmonitor-go/sched"
	"bedmonitor-go/state"
	"bedmonitor-go/x/mathx"
)

const (
	DefaultPeriod = 200 * time.Millisecond
	Priority      = 4

	// NeutralAngle is the servo's rest position.
	NeutralAngle = 90
	// MaxCorrection bounds the proportional term; this is a nudge toward
	// the target, not closed-loop control.
	MaxCorrection = 30
)

type Config struct {
	AngleTarget float64
}

// Snapshotter is the slice of the state store the alert task needs.
type Snapshotter interface {
	Snapshot() (state.SystemState, bool)
}

type Service struct {
	log   *zap.Logger
	store Snapshotter
	cfg   Config

	indicator actuators.Indicator
	beeper    actuators.Beeper
	servo     actuators.Servo

	snap      state.SystemState
	beepCount int
}

func New(store Snapshotter, ind actuators.Indicator, bz actuators.Beeper,
	sv actuators.Servo, cfg Config, log *zap.Logger) *Service {
	return &Service{
		log:       log,
		store:     store,
		cfg:       cfg,
		indicator: ind,
		beeper:    bz,
		servo:     sv,
	}
}

func (s *Service) Task() sched.Task {
	return sched.Task{Name: "alert", Period: DefaultPeriod, Priority: Priority, Run: s.Tick}
}

// Tick runs one alert cycle against the latest snapshot. On store
// contention the previous snapshot is reused; alerting must not stall.
func (s *Service) Tick(ctx context.Context) {
	if snap, ok := s.store.Snapshot(); ok {
		s.snap = snap
	}

	if s.snap.AlertActive {
		if err := s.indicator.Set(true); err != nil {
			s.log.Warn("indicator set failed", zap.Error(err))
		}
		s.beepCount++
		if s.beepCount%2 == 0 {
			if err := s.beeper.Toggle(); err != nil {
				s.log.Warn("beeper toggle failed", zap.Error(err))
			}
		}
		target := ServoAngle(s.cfg.AngleTarget, s.snap.Angle)
		if err := s.servo.SetAngle(target); err != nil {
			s.log.Warn("servo set failed", zap.Error(err))
		}
		return
	}

	if err := s.indicator.Set(false); err != nil {
		s.log.Warn("indicator clear failed", zap.Error(err))
	}
	if err := s.beeper.Set(false); err != nil {
		s.log.Warn("beeper clear failed", zap.Error(err))
	}
	s.beepCount = 0
	if err := s.servo.SetAngle(NeutralAngle); err != nil {
		s.log.Warn("servo neutral failed", zap.Error(err))
	}
}

// ServoAngle computes the corrective actuator command for the current
// tilt: the deviation from target, clamped to ±MaxCorrection, applied
// around neutral, clamped to the servo's [0,180] span.
func ServoAngle(target, current float64) uint {
	diff := mathx.Clamp(target-current, -MaxCorrection, MaxCorrection)
	return uint(mathx.Clamp(NeutralAngle+diff, 0, 180))
}
