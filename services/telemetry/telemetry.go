// Package telemetry periodically publishes the encrypted readings to the
// broker. Every message is encrypted on its own so a lost publish never
// affects the others, and the task reconnects opportunistically instead
// of blocking the rest of the system on a dead link.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bedmonitor-go/config"
	"bedmonitor-go/netmgr"
	"bedmonitor-go/sched"
	"bedmonitor-go/security"
	"bedmonitor-go/state"
)

const (
	DefaultPeriod = 5 * time.Second
	Priority      = 1

	// Alert payloads.
	AlertOn  = "ATIVO"
	AlertOff = "OK"
	// StatusOnline is the liveness payload.
	StatusOnline = "online"
)

// Publisher is the slice of the broker manager the task uses.
type Publisher interface {
	Connect(ctx context.Context) netmgr.ConnectResult
	Connected() bool
	Publish(topic string, payload []byte) error
}

// LinkChecker reports whether the underlying network link is up.
type LinkChecker interface {
	Connected() bool
}

type Service struct {
	log    *zap.Logger
	store  *state.Store
	broker Publisher
	link   LinkChecker
	codec  *security.Codec
	topics config.TopicsConfig

	// publishPause spaces consecutive publishes within one cycle.
	publishPause time.Duration

	snap state.SystemState
}

func New(store *state.Store, broker Publisher, link LinkChecker, codec *security.Codec,
	topics config.TopicsConfig, publishPause time.Duration, log *zap.Logger) *Service {
	return &Service{
		log:          log,
		store:        store,
		broker:       broker,
		link:         link,
		codec:        codec,
		topics:       topics,
		publishPause: publishPause,
	}
}

func (s *Service) Task() sched.Task {
	return sched.Task{Name: "telemetry", Period: DefaultPeriod, Priority: Priority, Run: s.Tick}
}

// Tick publishes one telemetry batch. Without a network link the cycle
// only refreshes the connectivity flags; with a link but no session it
// attempts one reconnect before publishing.
func (s *Service) Tick(ctx context.Context) {
	if snap, ok := s.store.Snapshot(); ok {
		s.snap = snap
	}

	if !s.link.Connected() {
		s.updateConnectivity(false)
		return
	}

	if !s.broker.Connected() {
		if res := s.broker.Connect(ctx); res != netmgr.ResultConnected {
			s.log.Warn("broker reconnect failed", zap.Stringer("result", res))
			s.updateConnectivity(true)
			return
		}
	}

	s.publishBatch(ctx)
	s.updateConnectivity(true)
}

// publishBatch sends the five topic messages. Each one is encrypted and
// sent independently; a failure is logged and the batch continues.
func (s *Service) publishBatch(ctx context.Context) {
	msgs := []struct {
		topic   string
		payload string
	}{
		{s.topics.Temperature, fmt.Sprintf("%.1f", s.snap.Temperature)},
		{s.topics.Humidity, fmt.Sprintf("%.1f", s.snap.Humidity)},
		{s.topics.Angle, fmt.Sprintf("%.1f", s.snap.Angle)},
		{s.topics.Alert, alertPayload(s.snap.AlertActive)},
		{s.topics.Status, StatusOnline},
	}

	for i, m := range msgs {
		if err := s.publishEncrypted(m.topic, m.payload); err != nil {
			s.log.Warn("publish failed",
				zap.String("topic", m.topic), zap.Error(err))
		}
		if i < len(msgs)-1 && !sleepCtx(ctx, s.publishPause) {
			return
		}
	}
}

func (s *Service) publishEncrypted(topic, payload string) error {
	ct, err := s.codec.Encrypt(payload)
	if err != nil {
		return err
	}
	return s.broker.Publish(topic, ct)
}

func (s *Service) updateConnectivity(wifi bool) {
	if !s.store.UpdateConnectivity(wifi, s.broker.Connected()) {
		s.log.Warn("state store busy, connectivity update dropped")
	}
}

func alertPayload(active bool) string {
	if active {
		return AlertOn
	}
	return AlertOff
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
