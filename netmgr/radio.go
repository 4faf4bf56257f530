package netmgr

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"bedmonitor-go/errcode"
)

// Radio abstracts the WiFi link layer. A single Connect call is one join
// attempt honoring the context deadline; Deinit followed by Init is a
// full reset, required between attempts because partial radio state makes
// retries unreliable.
type Radio interface {
	Init() error
	Deinit()
	Connect(ctx context.Context) error
	Connected() bool
}

// ProbeRadio decides link health by dialing a TCP probe endpoint. On a
// host target the join handshake itself belongs to the OS; what the
// monitor needs is "can traffic actually flow", which the probe answers.
type ProbeRadio struct {
	Addr string

	// ProbeTimeout bounds the health-check dial in Connected.
	ProbeTimeout time.Duration

	initialized atomic.Bool
	connected   atomic.Bool
}

func NewProbeRadio(addr string) *ProbeRadio {
	r := &ProbeRadio{Addr: addr, ProbeTimeout: 2 * time.Second}
	r.initialized.Store(true)
	return r
}

func (r *ProbeRadio) Init() error {
	r.initialized.Store(true)
	return nil
}

func (r *ProbeRadio) Deinit() {
	r.initialized.Store(false)
	r.connected.Store(false)
}

func (r *ProbeRadio) Connect(ctx context.Context) error {
	if !r.initialized.Load() {
		return &errcode.E{C: errcode.Offline, Op: "radio.Connect", Msg: "radio not initialized"}
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", r.Addr)
	if err != nil {
		r.connected.Store(false)
		return &errcode.E{C: errcode.Timeout, Op: "radio.Connect", Err: err}
	}
	conn.Close()
	r.connected.Store(true)
	return nil
}

// Connected re-dials the probe endpoint each time it is asked. A cached
// flag would read true forever after the first success and the link
// supervisor would never notice a dead link; callers poll on multi-second
// periods, so the fresh dial is cheap.
func (r *ProbeRadio) Connected() bool {
	if !r.initialized.Load() {
		return false
	}
	conn, err := net.DialTimeout("tcp", r.Addr, r.ProbeTimeout)
	if err != nil {
		r.connected.Store(false)
		return false
	}
	conn.Close()
	r.connected.Store(true)
	return true
}
