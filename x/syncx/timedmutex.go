// Package syncx provides a mutual-exclusion primitive whose acquisition
// attempt gives up after a fixed timeout instead of blocking forever.
//
// Every shared resource in the monitor (sensor bus, display bus, system
// state) is guarded by one of these: a caller that cannot get the lock in
// time skips its operation for that cycle rather than stalling its task.
package syncx

import "time"

// TimedMutex is a mutex with bounded-wait acquisition.
// The zero value is not usable; call NewTimedMutex.
type TimedMutex struct {
	sem chan struct{}
}

func NewTimedMutex() *TimedMutex {
	return &TimedMutex{sem: make(chan struct{}, 1)}
}

// TryLockFor attempts to acquire the mutex, waiting at most d.
// It reports whether the lock was acquired. d <= 0 degrades to a
// non-blocking attempt.
func (m *TimedMutex) TryLockFor(d time.Duration) bool {
	if d <= 0 {
		select {
		case m.sem <- struct{}{}:
			return true
		default:
			return false
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case m.sem <- struct{}{}:
		return true
	case <-t.C:
		return false
	}
}

// Unlock releases the mutex. Unlocking a mutex that is not held panics,
// same as sync.Mutex.
func (m *TimedMutex) Unlock() {
	select {
	case <-m.sem:
	default:
		panic("syncx: unlock of unlocked TimedMutex")
	}
}

// With runs fn while holding the mutex, if it can be acquired within d.
// It reports whether fn ran.
func (m *TimedMutex) With(d time.Duration, fn func()) bool {
	if !m.TryLockFor(d) {
		return false
	}
	defer m.Unlock()
	fn()
	return true
}
