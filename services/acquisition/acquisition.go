// Package acquisition samples the bed sensors and publishes every cycle
// into the state store. The tilt angle is read on each cycle; the slower
// environmental part is sampled every EnvReadStride cycles using the
// driver's two-phase API, releasing the shared sensor bus during the
// conversion delay.
package acquisition

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bedmonitor-go/drivers/envsensor"
	"bedmonitor-go/drivers/tilt"
	"bedmonitor-go/errcode"
	"bedmonitor-go/sched"
	"bedmonitor-go/state"
	"bedmonitor-go/x/syncx"
)

const (
	DefaultPeriod = 250 * time.Millisecond
	Priority      = 3

	// EnvReadStride spaces environmental reads: one per this many cycles.
	EnvReadStride = 12

	// Bus lock budgets. The tilt read is a short register transfer; the
	// environmental phases each get more headroom but never span the
	// conversion delay.
	tiltLockWait = 100 * time.Millisecond
	envLockWait  = 200 * time.Millisecond
)

// TiltSensor is the slice of the tilt driver the task uses.
type TiltSensor interface {
	Wake() error
	ReadAxes() (ax, ay, az int16, err error)
}

// EnvSensor is the slice of the environmental driver the task uses.
type EnvSensor interface {
	Reset() error
	Calibrate() error
	Trigger() (time.Duration, error)
	Collect() (envsensor.Reading, error)
}

type Service struct {
	log   *zap.Logger
	store *state.Store
	bus   *syncx.TimedMutex

	tilt TiltSensor
	env  EnvSensor

	cycle int

	// Last good values; a failed or skipped read keeps them.
	angle float64
	temp  float64
	hum   float64
	valid bool
}

// New wires the task. bus is the sensor-bus lock shared with anything
// else on the same I2C segment.
func New(store *state.Store, bus *syncx.TimedMutex, ts TiltSensor, es EnvSensor, log *zap.Logger) *Service {
	return &Service{
		log:   log,
		store: store,
		bus:   bus,
		tilt:  ts,
		env:   es,
	}
}

func (s *Service) Task() sched.Task {
	return sched.Task{Name: "acquisition", Period: DefaultPeriod, Priority: Priority, Run: s.Tick}
}

// Init brings both parts up. Every failure here is tolerated: the task
// keeps running and reports invalid data until reads start succeeding.
func (s *Service) Init(ctx context.Context) {
	if !s.bus.With(envLockWait, func() {
		if err := s.tilt.Wake(); err != nil {
			s.log.Warn("tilt wake failed", zap.Error(err))
		}
		if err := s.env.Reset(); err != nil {
			s.log.Warn("env sensor reset failed", zap.Error(err))
		}
	}) {
		s.log.Warn("sensor bus busy during init")
		return
	}

	// The part wants a short settle after reset before calibration.
	sleepCtx(ctx, 20*time.Millisecond)

	s.bus.With(envLockWait, func() {
		if err := s.env.Calibrate(); err != nil {
			s.log.Warn("env sensor calibrate failed", zap.Error(err))
		}
	})
}

// Tick runs one acquisition cycle: tilt always, environment on stride.
// The store write happens every cycle so readers see fresh alert state
// even when this cycle's sensor reads were skipped.
func (s *Service) Tick(ctx context.Context) {
	s.cycle++

	s.readTilt()
	if s.cycle%EnvReadStride == 0 {
		s.readEnv(ctx)
	}

	if !s.store.UpdateSensors(s.angle, s.temp, s.hum, s.valid) {
		s.log.Warn("state store busy, sensor update dropped")
	}
}

func (s *Service) readTilt() {
	var (
		ax, ay, az int16
		err        error
	)
	if !s.bus.With(tiltLockWait, func() {
		ax, ay, az, err = s.tilt.ReadAxes()
	}) {
		s.log.Debug("sensor bus busy, tilt read skipped")
		return
	}
	if err != nil {
		s.log.Warn("tilt read failed", zap.Error(err))
		return
	}
	s.angle = tilt.Inclination(ax, ay, az)
}

// readEnv runs the two-phase measurement, holding the bus only for the
// trigger and the collect, never across the conversion delay.
func (s *Service) readEnv(ctx context.Context) {
	var (
		delay time.Duration
		err   error
	)
	if !s.bus.With(envLockWait, func() {
		delay, err = s.env.Trigger()
	}) {
		s.log.Debug("sensor bus busy, env trigger skipped")
		return
	}
	if err != nil {
		s.log.Warn("env trigger failed", zap.Error(err))
		return
	}

	if !sleepCtx(ctx, delay) {
		return
	}

	var r envsensor.Reading
	if !s.bus.With(envLockWait, func() {
		r, err = s.env.Collect()
	}) {
		s.log.Debug("sensor bus busy, env collect skipped")
		return
	}
	if err != nil {
		if errcode.Of(err) == errcode.NotReady {
			s.log.Debug("env sensor still converting")
		} else {
			s.log.Warn("env read failed", zap.Error(err))
		}
		return
	}

	s.temp = r.Temperature
	s.hum = r.Humidity
	s.valid = true
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
