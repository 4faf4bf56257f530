package state

import (
	"sync"
	"testing"
	"time"
)

func newStore() *Store {
	return New(SafeRange{Min: 30, Max: 45}, 50*time.Millisecond)
}

func TestUpdateSensorsDerivesAlert(t *testing.T) {
	s := newStore()

	cases := []struct {
		angle float64
		alert bool
	}{
		{37.5, false},
		{30.0, false},
		{45.0, false},
		{29.9, true},
		{45.1, true},
		{25.0, true},
		{70.0, true},
	}
	for _, c := range cases {
		if !s.UpdateSensors(c.angle, 36.5, 50.0, true) {
			t.Fatalf("angle %v: update dropped", c.angle)
		}
		snap, ok := s.Snapshot()
		if !ok {
			t.Fatalf("angle %v: snapshot dropped", c.angle)
		}
		if snap.AlertActive != c.alert {
			t.Errorf("angle %v: AlertActive=%v, want %v", c.angle, snap.AlertActive, c.alert)
		}
	}
}

func TestDataValidNeverReverts(t *testing.T) {
	s := newStore()

	snap, _ := s.Snapshot()
	if snap.DataValid {
		t.Fatal("DataValid should start false")
	}

	s.UpdateSensors(40, 36.5, 50, true)
	snap, _ = s.Snapshot()
	if !snap.DataValid {
		t.Fatal("DataValid should latch after a valid reading")
	}

	// A later failed environmental read writes valid=false; the flag and
	// the last good values must survive.
	s.UpdateSensors(41, 36.5, 50, false)
	snap, _ = s.Snapshot()
	if !snap.DataValid {
		t.Fatal("DataValid must not revert on a failed reading")
	}
	if snap.Temperature != 36.5 || snap.Humidity != 50 {
		t.Fatalf("stale values lost: %+v", snap)
	}
}

// A reader must never observe a mix of two different writer calls.
// Writers always publish a coherent triple (x, x+1, x+2).
func TestSnapshotAtomicity(t *testing.T) {
	s := newStore()
	s.UpdateSensors(0, 1, 2, true)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			base := float64(i % 100)
			s.UpdateSensors(base, base+1, base+2, true)
		}
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			snap, ok := s.Snapshot()
			if !ok {
				continue
			}
			if snap.Temperature != snap.Angle+1 || snap.Humidity != snap.Angle+2 {
				t.Errorf("torn snapshot: %+v", snap)
				return
			}
		}
	}()

	time.Sleep(100 * time.Millisecond)
	close(done)
	wg.Wait()
}

func TestOperationsSkipOnLockTimeout(t *testing.T) {
	s := New(SafeRange{Min: 30, Max: 45}, 5*time.Millisecond)
	s.UpdateSensors(40, 1, 2, true)

	// Hold the lock from "another task".
	if !s.mu.TryLockFor(0) {
		t.Fatal("setup lock failed")
	}
	defer s.mu.Unlock()

	if s.UpdateSensors(10, 0, 0, false) {
		t.Fatal("write should be dropped while the lock is held")
	}
	if s.UpdateConnectivity(true, true) {
		t.Fatal("connectivity write should be dropped while the lock is held")
	}
	if _, ok := s.Snapshot(); ok {
		t.Fatal("snapshot should be skipped while the lock is held")
	}
}

func TestWriterDomainsDoNotClobber(t *testing.T) {
	s := newStore()
	s.UpdateSensors(40, 36.5, 50, true)
	s.UpdateConnectivity(true, false)

	snap, _ := s.Snapshot()
	if snap.Angle != 40 || !snap.WifiConnected || snap.MQTTConnected {
		t.Fatalf("unexpected state: %+v", snap)
	}

	s.UpdateSensors(42, 37.0, 51, true)
	snap, _ = s.Snapshot()
	if !snap.WifiConnected {
		t.Fatal("sensor write must not touch connectivity flags")
	}
}
