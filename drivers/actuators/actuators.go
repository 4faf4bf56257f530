// Package actuators wraps the alert outputs: indicator LED, buzzer and
// the corrective servo. The alert task talks to the small interfaces
// here; the periph-backed implementations carry the pin mechanics.
package actuators

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"bedmonitor-go/errcode"
	"bedmonitor-go/x/mathx"
)

// Indicator is a simple on/off output (alert LED).
type Indicator interface {
	Set(on bool) error
}

// Beeper is the audible output. Toggle flips the current level, which
// the alert task uses to produce the beep pattern.
type Beeper interface {
	Set(on bool) error
	Toggle() error
}

// Servo positions the corrective actuator, degrees in [0,180].
type Servo interface {
	SetAngle(deg uint) error
}

// ---- periph-backed implementations ----

type gpioOut struct {
	mu  sync.Mutex
	pin gpio.PinOut
	on  bool
}

func NewIndicator(pin gpio.PinOut) Indicator { return &gpioOut{pin: pin} }
func NewBeeper(pin gpio.PinOut) Beeper       { return &gpioOut{pin: pin} }

func (g *gpioOut) Set(on bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.on = on
	if err := g.pin.Out(gpio.Level(on)); err != nil {
		return &errcode.E{C: errcode.Error, Op: "actuators.Set", Err: err}
	}
	return nil
}

func (g *gpioOut) Toggle() error {
	g.mu.Lock()
	next := !g.on
	g.mu.Unlock()
	return g.Set(next)
}

// Servo timing: standard 50 Hz frame, 500–2500 µs pulse across 0–180°.
const (
	servoFrame    = 20 * time.Millisecond
	servoPulseMin = 500 * time.Microsecond
	servoPulseMax = 2500 * time.Microsecond
	servoFreq     = 50 * physic.Hertz
)

type pwmServo struct {
	pin gpio.PinOut
}

func NewServo(pin gpio.PinOut) Servo { return &pwmServo{pin: pin} }

func (s *pwmServo) SetAngle(deg uint) error {
	if err := s.pin.PWM(DutyForAngle(deg), servoFreq); err != nil {
		return &errcode.E{C: errcode.Error, Op: "actuators.SetAngle", Err: err}
	}
	return nil
}

// PulseForAngle maps degrees to the servo pulse width, clamping to the
// supported [0,180] span.
func PulseForAngle(deg uint) time.Duration {
	d := mathx.Clamp(deg, 0, 180)
	span := servoPulseMax - servoPulseMin
	return servoPulseMin + span*time.Duration(d)/180
}

// DutyForAngle converts the pulse width into a periph duty cycle.
func DutyForAngle(deg uint) gpio.Duty {
	pulse := PulseForAngle(deg)
	return gpio.Duty(int64(gpio.DutyMax) * int64(pulse) / int64(servoFrame))
}
