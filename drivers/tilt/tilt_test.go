package tilt

import (
	"math"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestReadAxesDecoding(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: DefaultAddr, W: []byte{regAccelXOut}, R: []byte{0x10, 0x00, 0xFF, 0x00, 0x00, 0x80}},
		},
	}
	s := New(bus, 0)
	ax, ay, az, err := s.ReadAxes()
	if err != nil {
		t.Fatal(err)
	}
	if ax != 0x1000 {
		t.Fatalf("ax = %#x", ax)
	}
	if ay != -256 {
		t.Fatalf("ay = %d", ay)
	}
	if az != 128 {
		t.Fatalf("az = %d", az)
	}
}

func TestWake(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{{Addr: DefaultAddr, W: []byte{regPowerMgmt, 0x00}, R: nil}},
	}
	if err := New(bus, 0).Wake(); err != nil {
		t.Fatal(err)
	}
}

func TestInclination(t *testing.T) {
	cases := []struct {
		name       string
		ax, ay, az int16
		want       float64
	}{
		{"flat", 0, 0, 16384, 0},
		{"level on side", 0, 16384, 0, 0},
		{"45 degrees", 16384, 0, 16384, 45},
		{"straight up", 16384, 0, 0, 90},
		{"negative tilt", -16384, 0, 16384, -45},
	}
	for _, c := range cases {
		got := Inclination(c.ax, c.ay, c.az)
		if math.Abs(got-c.want) > 0.01 {
			t.Errorf("%s: Inclination = %.2f, want %.2f", c.name, got, c.want)
		}
	}
}
