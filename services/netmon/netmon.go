// Package netmon keeps the network link alive. It runs on a slow period,
// re-runs the full link bring-up whenever the radio reports down, and
// refreshes the connectivity flags so the display and telemetry tasks
// see the result.
package netmon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bedmonitor-go/sched"
	"bedmonitor-go/state"
)

const (
	DefaultPeriod = 10 * time.Second
	Priority      = 2
)

// Link is the slice of the link manager the task uses. Connect runs a
// full bounded retry cycle and reports whether the link came up.
type Link interface {
	Connected() bool
	Connect(ctx context.Context) bool
}

// Session reports whether the broker session is up.
type Session interface {
	Connected() bool
}

type Service struct {
	log     *zap.Logger
	store   *state.Store
	link    Link
	session Session
}

func New(store *state.Store, link Link, session Session, log *zap.Logger) *Service {
	return &Service{log: log, store: store, link: link, session: session}
}

func (s *Service) Task() sched.Task {
	return sched.Task{Name: "netmon", Period: DefaultPeriod, Priority: Priority, Run: s.Tick}
}

// Tick checks the link and reconnects when it is down. A failed cycle is
// not fatal; the next period tries again with a fresh attempt budget.
func (s *Service) Tick(ctx context.Context) {
	up := s.link.Connected()
	if !up {
		s.log.Info("network link down, reconnecting")
		up = s.link.Connect(ctx)
		if !up {
			s.log.Warn("network link reconnect failed")
		}
	}

	if !s.store.UpdateConnectivity(up, s.session.Connected()) {
		s.log.Warn("state store busy, connectivity update dropped")
	}
}
