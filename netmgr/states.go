// Package netmgr owns the WiFi and broker connection state machines:
// bounded retry with full radio reinit between attempts, an explicit
// resolve-then-connect broker handshake, and wait-with-timeout primitives
// instead of open-ended blocking. A channel that ends a cycle in Failed
// is not fatal: the rest of the system keeps running offline and the
// next periodic tick retries.
package netmgr

// ConnState is the lifecycle of one connectivity channel.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateResolving
	StateConnecting
	StateConnected
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateResolving:
		return "resolving"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ConnectResult is the outcome of one bounded connect cycle.
type ConnectResult int

const (
	ResultConnected ConnectResult = iota
	ResultTimedOut
	ResultFailed
)

func (r ConnectResult) String() string {
	switch r {
	case ResultConnected:
		return "connected"
	case ResultTimedOut:
		return "timed_out"
	case ResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}
