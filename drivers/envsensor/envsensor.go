// Package envsensor drives the AHT10-class temperature/humidity part.
// It exposes a two-phase measurement API so the caller can release the
// sensor bus during the part's internal conversion delay:
//
//	delay, err := s.Trigger() // start a measurement (fast)
//	r, err := s.Collect()     // fetch after the delay; NotReady while busy
//
// Conversion takes on the order of 80 ms; holding the shared bus for
// that long would starve the tilt reads.
package envsensor

import (
	"time"

	"periph.io/x/conn/v3/i2c"

	"bedmonitor-go/errcode"
)

// DefaultAddr is the sensor's I2C address.
const DefaultAddr = 0x38

const (
	cmdSoftReset = 0xBA

	statusBusy = 0x80

	// rawFullScale is the 20-bit measurement full scale.
	rawFullScale = 1 << 20
)

var (
	cmdCalibrate = []byte{0xE1, 0x08, 0x00}
	cmdTrigger   = []byte{0xAC, 0x33, 0x00}
)

// Reading is one decoded environmental sample.
type Reading struct {
	Temperature float64 // °C
	Humidity    float64 // %RH
}

type Sensor struct {
	dev *i2c.Dev

	// ConversionDelay is returned by Trigger as the wait hint before
	// Collect has a chance of succeeding.
	ConversionDelay time.Duration
}

func New(bus i2c.Bus, addr uint16) *Sensor {
	if addr == 0 {
		addr = DefaultAddr
	}
	return &Sensor{
		dev:             &i2c.Dev{Bus: bus, Addr: addr},
		ConversionDelay: 80 * time.Millisecond,
	}
}

// Reset soft-resets the part. Give it ~20 ms before the next command.
func (s *Sensor) Reset() error {
	if err := s.dev.Tx([]byte{cmdSoftReset}, nil); err != nil {
		return &errcode.E{C: errcode.Error, Op: "envsensor.Reset", Err: err}
	}
	return nil
}

// Calibrate issues the initialization/calibration command. Called once
// at task start; a failure is tolerated and simply logged by the caller,
// the part usually self-calibrates on the first trigger.
func (s *Sensor) Calibrate() error {
	if err := s.dev.Tx(cmdCalibrate, nil); err != nil {
		return &errcode.E{C: errcode.Error, Op: "envsensor.Calibrate", Err: err}
	}
	return nil
}

// Trigger starts one measurement and returns the conversion delay hint.
// The bus may (and should) be released while it elapses.
func (s *Sensor) Trigger() (time.Duration, error) {
	if err := s.dev.Tx(cmdTrigger, nil); err != nil {
		return 0, &errcode.E{C: errcode.Error, Op: "envsensor.Trigger", Err: err}
	}
	return s.ConversionDelay, nil
}

// Collect reads the measurement block. While the part still reports busy
// the error is NotReady; the caller discards the cycle and keeps its
// previous values.
func (s *Sensor) Collect() (Reading, error) {
	var buf [6]byte
	if err := s.dev.Tx(nil, buf[:]); err != nil {
		return Reading{}, &errcode.E{C: errcode.ShortRead, Op: "envsensor.Collect", Err: err}
	}
	if buf[0]&statusBusy != 0 {
		return Reading{}, &errcode.E{C: errcode.NotReady, Op: "envsensor.Collect"}
	}

	humRaw := uint32(buf[1])<<12 | uint32(buf[2])<<4 | uint32(buf[3])>>4
	tempRaw := (uint32(buf[3])&0x0F)<<16 | uint32(buf[4])<<8 | uint32(buf[5])

	return Reading{
		Humidity:    float64(humRaw) / rawFullScale * 100.0,
		Temperature: float64(tempRaw)/rawFullScale*200.0 - 50.0,
	}, nil
}
