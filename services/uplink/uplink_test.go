package uplink

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bedmonitor-go/drivers/buttons"
	"bedmonitor-go/state"
)

type capturePort struct {
	lines []string
}

func (c *capturePort) Write(p []byte) (int, error) {
	c.lines = append(c.lines, string(p))
	return len(p), nil
}

func newTestService(t *testing.T) (*Service, *state.Store, *capturePort, chan buttons.ToggleEvent) {
	t.Helper()
	store := state.New(state.SafeRange{Min: 30, Max: 45}, 50*time.Millisecond)
	port := &capturePort{}
	events := make(chan buttons.ToggleEvent, 8)
	svc := New(store, port, events, zap.NewNop())
	return svc, store, port, events
}

func TestRecordFormat(t *testing.T) {
	line := Record(state.SystemState{
		Angle: 37.5, Temperature: 36.46, Humidity: 55.25, AlertActive: false,
	})
	assert.Equal(t, "36.5,55.2,37.5,0\n", line)

	line = Record(state.SystemState{
		Angle: 25.0, Temperature: 36.5, Humidity: 55.2, AlertActive: true,
	})
	assert.Equal(t, "36.5,55.2,25.0,1\n", line)
}

func TestStreamDisabledUntilStartPress(t *testing.T) {
	svc, store, port, events := newTestService(t)
	require.True(t, store.UpdateSensors(37.5, 36.5, 55.2, true))

	// No button event yet: nothing may go over the wire.
	svc.Tick(context.Background())
	svc.Tick(context.Background())
	assert.Empty(t, port.lines)

	events <- buttons.ToggleEvent{Enable: true, At: time.Now()}
	svc.Tick(context.Background())
	require.Len(t, port.lines, 1)
	assert.True(t, strings.HasSuffix(port.lines[0], "\n"))
	assert.Equal(t, "36.5,55.2,37.5,0\n", port.lines[0])
}

func TestStopPressPausesStream(t *testing.T) {
	svc, _, port, events := newTestService(t)

	events <- buttons.ToggleEvent{Enable: true, At: time.Now()}
	svc.Tick(context.Background())
	require.Len(t, port.lines, 1)

	events <- buttons.ToggleEvent{Enable: false, At: time.Now()}
	svc.Tick(context.Background())
	svc.Tick(context.Background())
	assert.Len(t, port.lines, 1)

	events <- buttons.ToggleEvent{Enable: true, At: time.Now()}
	svc.Tick(context.Background())
	assert.Len(t, port.lines, 2)
}

func TestLatestPressWins(t *testing.T) {
	svc, _, port, events := newTestService(t)

	// A burst of presses within one cycle: only the last matters.
	events <- buttons.ToggleEvent{Enable: false, At: time.Now()}
	events <- buttons.ToggleEvent{Enable: true, At: time.Now()}
	events <- buttons.ToggleEvent{Enable: false, At: time.Now()}
	svc.Tick(context.Background())
	assert.Empty(t, port.lines)
}
