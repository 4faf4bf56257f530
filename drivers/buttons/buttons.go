// Package buttons turns the two physical push buttons (uplink start /
// uplink stop) into discrete toggle events on a channel, decoupling the
// uplink task from edge-interrupt mechanics. Events are debounced and
// the queue drops the oldest entry on overflow; the consumer only cares
// about the latest intent.
package buttons

import (
	"context"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
)

// ToggleEvent asks the uplink to start (Enable) or stop transmitting.
type ToggleEvent struct {
	Enable bool
	At     time.Time
}

const defaultQueue = 8

type Watcher struct {
	log      *zap.Logger
	start    gpio.PinIn
	stop     gpio.PinIn
	debounce time.Duration

	out chan ToggleEvent
}

func NewWatcher(start, stop gpio.PinIn, debounce time.Duration, log *zap.Logger) *Watcher {
	return &Watcher{
		log:      log,
		start:    start,
		stop:     stop,
		debounce: debounce,
		out:      make(chan ToggleEvent, defaultQueue),
	}
}

// Events is the stream the uplink task drains each cycle.
func (w *Watcher) Events() <-chan ToggleEvent { return w.out }

// Start configures both pins for falling-edge detection with pull-ups
// and spawns one watch goroutine per pin. Loops exit when ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.start.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return err
	}
	if err := w.stop.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return err
	}
	go w.watch(ctx, w.start, true)
	go w.watch(ctx, w.stop, false)
	return nil
}

func (w *Watcher) watch(ctx context.Context, pin gpio.PinIn, enable bool) {
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		// Short timeout so ctx cancellation is noticed promptly.
		if !pin.WaitForEdge(200 * time.Millisecond) {
			continue
		}
		now := time.Now()
		if w.debounce > 0 && now.Sub(last) < w.debounce {
			continue
		}
		last = now
		w.emit(ToggleEvent{Enable: enable, At: now})
		w.log.Debug("button edge",
			zap.String("pin", pin.Name()), zap.Bool("enable", enable))
	}
}

func (w *Watcher) emit(ev ToggleEvent) {
	select {
	case w.out <- ev:
	default:
		// Queue full: drop the oldest, latest intent wins.
		select {
		case <-w.out:
		default:
		}
		select {
		case w.out <- ev:
		default:
		}
	}
}
