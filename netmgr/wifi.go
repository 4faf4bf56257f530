package netmgr

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WiFiConfig bounds the connect cycle.
type WiFiConfig struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	RetryBackoff   time.Duration
}

func (c *WiFiConfig) normalize() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 15 * time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 3 * time.Second
	}
}

// WiFi drives the radio through bounded connect cycles. Failed is
// terminal for one cycle only; the connectivity monitor task starts the
// next cycle on its own period.
type WiFi struct {
	log   *zap.Logger
	radio Radio
	cfg   WiFiConfig

	mu    sync.Mutex
	state ConnState
}

func NewWiFi(radio Radio, cfg WiFiConfig, log *zap.Logger) *WiFi {
	cfg.normalize()
	return &WiFi{
		log:   log,
		radio: radio,
		cfg:   cfg,
		state: StateDisconnected,
	}
}

func (w *WiFi) State() ConnState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *WiFi) setState(s ConnState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *WiFi) Connected() bool { return w.radio.Connected() }

// Connect runs one bounded retry cycle: up to MaxAttempts join attempts,
// each with its own timeout, with a full radio reinit between attempts.
// Reports whether the link came up. Failure leaves the system offline,
// never halts it.
func (w *WiFi) Connect(ctx context.Context) bool {
	w.setState(StateConnecting)

	// Each cycle starts from a freshly initialized radio; the previous
	// cycle deinitializes on the way out.
	if err := w.radio.Init(); err != nil {
		w.log.Error("wifi radio init failed", zap.Error(err))
		w.setState(StateFailed)
		return false
	}

	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		w.log.Info("wifi connect attempt",
			zap.Int("attempt", attempt),
			zap.Int("max", w.cfg.MaxAttempts))

		actx, cancel := context.WithTimeout(ctx, w.cfg.AttemptTimeout)
		err := w.radio.Connect(actx)
		cancel()
		if err == nil {
			w.setState(StateConnected)
			w.log.Info("wifi connected")
			return true
		}
		w.log.Warn("wifi attempt failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt == w.cfg.MaxAttempts {
			break
		}
		if !sleepCtx(ctx, w.cfg.RetryBackoff) {
			break
		}
		// Partial radio state makes retries unreliable; reset fully.
		w.radio.Deinit()
		if err := w.radio.Init(); err != nil {
			w.log.Error("wifi radio reinit failed", zap.Error(err))
			break
		}
	}

	w.radio.Deinit()
	w.setState(StateFailed)
	w.log.Warn("wifi connect cycle failed, continuing offline")
	return false
}

// sleepCtx waits for d or until ctx is done; reports whether the full
// wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
