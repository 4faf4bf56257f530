// Package state holds the single source of truth for the latest sensor
// readings and connectivity flags. Several tasks read and write it on
// sub-second periods, so every access goes through a bounded-wait lock:
// a caller that cannot acquire it in time skips the operation and keeps
// working with its previous copy.
package state

import (
	"time"

	"bedmonitor-go/x/mathx"
	"bedmonitor-go/x/syncx"
)

// DefaultLockWait bounds every store access.
const DefaultLockWait = 50 * time.Millisecond

// SystemState is the snapshot all consumer tasks work from.
type SystemState struct {
	Angle       float64
	Temperature float64
	Humidity    float64

	// DataValid turns true after the first successful environmental
	// reading and never reverts: a failed read keeps the last good values.
	DataValid bool

	// AlertActive is derived from Angle and the configured safe range.
	AlertActive bool

	WifiConnected bool
	MQTTConnected bool
}

// SafeRange is the inclusive tilt interval considered non-alerting.
type SafeRange struct {
	Min float64
	Max float64
}

// Contains reports whether angle is inside the safe range.
func (r SafeRange) Contains(angle float64) bool {
	return mathx.Between(angle, r.Min, r.Max)
}

// Store guards a SystemState value. Two disjoint writer domains exist:
// the acquisition task owns the sensor fields, the connectivity managers
// own the two flags. Both share the one lock, so neither may hold it
// longer than a field copy.
type Store struct {
	mu       *syncx.TimedMutex
	lockWait time.Duration
	rng      SafeRange

	data SystemState
}

func New(rng SafeRange, lockWait time.Duration) *Store {
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	return &Store{
		mu:       syncx.NewTimedMutex(),
		lockWait: lockWait,
		rng:      rng,
	}
}

// Snapshot returns a copy of the current state. ok is false when the lock
// could not be acquired in time; callers keep their previous snapshot.
func (s *Store) Snapshot() (snap SystemState, ok bool) {
	ok = s.mu.With(s.lockWait, func() {
		snap = s.data
	})
	return snap, ok
}

// UpdateSensors writes the sensor domain in one critical section.
// AlertActive is recomputed from the angle; DataValid only ever latches
// true. Reports false when the update was dropped on lock timeout.
func (s *Store) UpdateSensors(angle, temp, humidity float64, valid bool) bool {
	return s.mu.With(s.lockWait, func() {
		s.data.Angle = angle
		s.data.Temperature = temp
		s.data.Humidity = humidity
		s.data.AlertActive = !s.rng.Contains(angle)
		if valid {
			s.data.DataValid = true
		}
	})
}

// UpdateConnectivity writes the connectivity domain in one critical section.
func (s *Store) UpdateConnectivity(wifi, mqtt bool) bool {
	return s.mu.With(s.lockWait, func() {
		s.data.WifiConnected = wifi
		s.data.MQTTConnected = mqtt
	})
}

// Range returns the configured safe range.
func (s *Store) Range() SafeRange { return s.rng }
