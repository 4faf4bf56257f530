package netmgr

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"bedmonitor-go/errcode"
)

// BrokerConfig describes one broker endpoint and the bounds on its
// handshake. ConnectPolls × PollInterval is the accept-wait budget after
// the asynchronous connect call (default 30 × 100 ms ≈ 3 s).
type BrokerConfig struct {
	Host           string
	Port           int
	ClientID       string
	KeepAlive      time.Duration
	ConnectPolls   int
	PollInterval   time.Duration
	PublishTimeout time.Duration
}

func (c *BrokerConfig) normalize() {
	if c.Port <= 0 {
		c.Port = 1883
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = 60 * time.Second
	}
	if c.ConnectPolls <= 0 {
		c.ConnectPolls = 30
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 2 * time.Second
	}
}

// pahoClient is the slice of mqtt.Client the manager needs; narrow so
// tests can stand in a fake.
type pahoClient interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
}

// Broker owns the MQTT connection lifecycle:
//
//	Disconnected -> Resolving -> Connecting -> Connected
//	                    \------------\-----> Failed
//
// Failed ends the cycle; reconnection is opportunistic, driven once per
// telemetry period rather than in a tight loop.
type Broker struct {
	log *zap.Logger
	cfg BrokerConfig

	resolve   func(ctx context.Context, host string) ([]string, error)
	newClient func(opts *mqtt.ClientOptions) pahoClient

	// onConnect runs on broker accept (paho callback goroutine).
	onConnect func()

	mu     sync.Mutex
	state  ConnState
	client pahoClient
}

func NewBroker(cfg BrokerConfig, log *zap.Logger) *Broker {
	cfg.normalize()
	return &Broker{
		log: log,
		cfg: cfg,
		resolve: func(ctx context.Context, host string) ([]string, error) {
			return net.DefaultResolver.LookupHost(ctx, host)
		},
		newClient: func(opts *mqtt.ClientOptions) pahoClient {
			return mqtt.NewClient(opts)
		},
		state: StateDisconnected,
	}
}

// SetOnConnect registers a callback invoked every time the broker accepts
// a connection. Must be called before Connect.
func (b *Broker) SetOnConnect(fn func()) { b.onConnect = fn }

func (b *Broker) State() ConnState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Broker) setState(s ConnState) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

func (b *Broker) Connected() bool {
	b.mu.Lock()
	cli := b.client
	b.mu.Unlock()
	return cli != nil && cli.IsConnected()
}

// Connect runs one resolve/handshake cycle and waits, bounded, for the
// accept. Any previous client is torn down first; stale handles are worse
// than no handle.
func (b *Broker) Connect(ctx context.Context) ConnectResult {
	b.setState(StateResolving)
	addrs, err := b.resolve(ctx, b.cfg.Host)
	if err != nil || len(addrs) == 0 {
		b.log.Warn("broker name resolution failed",
			zap.String("host", b.cfg.Host), zap.Error(err))
		b.setState(StateFailed)
		return ResultFailed
	}
	addr := net.JoinHostPort(addrs[0], strconv.Itoa(b.cfg.Port))
	b.log.Info("broker resolved",
		zap.String("host", b.cfg.Host), zap.String("addr", addr))

	b.mu.Lock()
	if b.client != nil {
		b.client.Disconnect(250)
		b.client = nil
	}
	b.mu.Unlock()

	opts := mqtt.NewClientOptions().
		AddBroker("tcp://" + addr).
		SetClientID(b.cfg.ClientID).
		SetKeepAlive(b.cfg.KeepAlive).
		SetCleanSession(true).
		// The manager owns reconnection; paho must not retry behind its back.
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOnConnectHandler(func(mqtt.Client) {
			b.log.Info("broker connection accepted")
			if b.onConnect != nil {
				b.onConnect()
			}
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			b.log.Warn("broker connection lost", zap.Error(err))
			b.setState(StateDisconnected)
		})

	cli := b.newClient(opts)
	b.mu.Lock()
	b.client = cli
	b.state = StateConnecting
	b.mu.Unlock()

	cli.Connect() // asynchronous; outcome observed by polling below

	res := b.waitConnected(ctx)
	switch res {
	case ResultConnected:
		b.setState(StateConnected)
	default:
		b.setState(StateFailed)
	}
	return res
}

// waitConnected polls for the connection-accepted callback, up to
// ConnectPolls × PollInterval, and maps the outcome to a ConnectResult
// instead of blocking indefinitely.
func (b *Broker) waitConnected(ctx context.Context) ConnectResult {
	for i := 0; i < b.cfg.ConnectPolls; i++ {
		if b.Connected() {
			return ResultConnected
		}
		if !sleepCtx(ctx, b.cfg.PollInterval) {
			return ResultTimedOut
		}
	}
	if b.Connected() {
		return ResultConnected
	}
	return ResultTimedOut
}

// Publish sends one payload at QoS 0. Offline is an error the caller
// logs and moves past; it never aborts the caller's cycle.
func (b *Broker) Publish(topic string, payload []byte) error {
	b.mu.Lock()
	cli := b.client
	b.mu.Unlock()
	if cli == nil || !cli.IsConnected() {
		return &errcode.E{C: errcode.Offline, Op: "broker.Publish", Msg: "not connected"}
	}
	tok := cli.Publish(topic, 0, false, payload)
	if !tok.WaitTimeout(b.cfg.PublishTimeout) {
		return &errcode.E{C: errcode.Timeout, Op: "broker.Publish", Msg: topic}
	}
	if err := tok.Error(); err != nil {
		return &errcode.E{C: errcode.Error, Op: "broker.Publish", Msg: topic, Err: err}
	}
	return nil
}

// Close tears the client down; used on shutdown.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		b.client.Disconnect(250)
		b.client = nil
	}
	b.state = StateDisconnected
}
