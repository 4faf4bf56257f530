// Package tilt reads the bed's accelerometer (MPU6050 class part) and
// derives the inclination angle from the gravity vector. Register-level
// details stay here; the acquisition task only sees axes and degrees.
package tilt

import (
	"math"

	"periph.io/x/conn/v3/i2c"

	"bedmonitor-go/errcode"
)

// DefaultAddr is the accelerometer's I2C address.
const DefaultAddr = 0x68

const (
	regPowerMgmt = 0x6B
	regAccelXOut = 0x3B
)

type Sensor struct {
	dev *i2c.Dev
}

func New(bus i2c.Bus, addr uint16) *Sensor {
	if addr == 0 {
		addr = DefaultAddr
	}
	return &Sensor{dev: &i2c.Dev{Bus: bus, Addr: addr}}
}

// Wake takes the part out of sleep mode. Called once at task start.
func (s *Sensor) Wake() error {
	if err := s.dev.Tx([]byte{regPowerMgmt, 0x00}, nil); err != nil {
		return &errcode.E{C: errcode.Error, Op: "tilt.Wake", Err: err}
	}
	return nil
}

// ReadAxes returns the three raw acceleration axes.
func (s *Sensor) ReadAxes() (ax, ay, az int16, err error) {
	var buf [6]byte
	if err := s.dev.Tx([]byte{regAccelXOut}, buf[:]); err != nil {
		return 0, 0, 0, &errcode.E{C: errcode.Error, Op: "tilt.ReadAxes", Err: err}
	}
	ax = int16(uint16(buf[0])<<8 | uint16(buf[1]))
	ay = int16(uint16(buf[2])<<8 | uint16(buf[3]))
	az = int16(uint16(buf[4])<<8 | uint16(buf[5]))
	return ax, ay, az, nil
}

// Inclination converts raw axes to the bed's tilt in degrees: the angle
// between the X axis and the plane orthogonal to gravity.
func Inclination(ax, ay, az int16) float64 {
	x, y, z := float64(ax), float64(ay), float64(az)
	return math.Atan2(x, math.Sqrt(y*y+z*z)) * 180 / math.Pi
}
