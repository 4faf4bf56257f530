package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bedmonitor-go/config"
	"bedmonitor-go/netmgr"
	"bedmonitor-go/security"
	"bedmonitor-go/state"
)

var testTopics = config.TopicsConfig{
	Temperature: "hospital/cama/temperatura",
	Humidity:    "hospital/cama/umidade",
	Angle:       "hospital/cama/angulo",
	Alert:       "hospital/cama01/alerta",
	Status:      "hospital/cama/status",
}

type published struct {
	topic   string
	payload []byte
}

type fakeBroker struct {
	connected  bool
	connectRes netmgr.ConnectResult
	connects   int
	failTopic  string
	sent       []published
}

func (f *fakeBroker) Connect(ctx context.Context) netmgr.ConnectResult {
	f.connects++
	if f.connectRes == netmgr.ResultConnected {
		f.connected = true
	}
	return f.connectRes
}

func (f *fakeBroker) Connected() bool { return f.connected }

func (f *fakeBroker) Publish(topic string, payload []byte) error {
	if topic == f.failTopic {
		return errors.New("publish refused")
	}
	f.sent = append(f.sent, published{topic, payload})
	return nil
}

type fakeLink struct{ up bool }

func (f fakeLink) Connected() bool { return f.up }

func newTestService(t *testing.T, link *fakeLink, broker *fakeBroker) (*Service, *state.Store, *security.Codec) {
	t.Helper()
	codec, err := security.New([]byte("SEGURANCA1234567"), []byte("INICIALIV1234567"))
	require.NoError(t, err)
	store := state.New(state.SafeRange{Min: 30, Max: 45}, 50*time.Millisecond)
	svc := New(store, broker, link, codec, testTopics, 0, zap.NewNop())
	return svc, store, codec
}

func TestTickPublishesEncryptedBatch(t *testing.T) {
	broker := &fakeBroker{connected: true}
	svc, store, codec := newTestService(t, &fakeLink{up: true}, broker)
	require.True(t, store.UpdateSensors(37.5, 36.5, 55.2, true))

	svc.Tick(context.Background())
	require.Len(t, broker.sent, 5)

	want := map[string]string{
		testTopics.Temperature: "36.5",
		testTopics.Humidity:    "55.2",
		testTopics.Angle:       "37.5",
		testTopics.Alert:       "OK",
		testTopics.Status:      "online",
	}
	for _, p := range broker.sent {
		pt, err := codec.Decrypt(p.payload)
		require.NoError(t, err, "topic %s", p.topic)
		assert.Equal(t, want[p.topic], pt, "topic %s", p.topic)
	}

	snap, ok := store.Snapshot()
	require.True(t, ok)
	assert.True(t, snap.WifiConnected)
	assert.True(t, snap.MQTTConnected)
}

func TestTickAlertPayload(t *testing.T) {
	broker := &fakeBroker{connected: true}
	svc, store, codec := newTestService(t, &fakeLink{up: true}, broker)
	require.True(t, store.UpdateSensors(25, 36.5, 55.2, true))

	svc.Tick(context.Background())

	var got string
	for _, p := range broker.sent {
		if p.topic == testTopics.Alert {
			pt, err := codec.Decrypt(p.payload)
			require.NoError(t, err)
			got = pt
		}
	}
	assert.Equal(t, "ATIVO", got)
}

func TestTickSkipsWhenLinkDown(t *testing.T) {
	broker := &fakeBroker{connected: true}
	svc, store, _ := newTestService(t, &fakeLink{up: false}, broker)

	svc.Tick(context.Background())
	assert.Empty(t, broker.sent)
	assert.Zero(t, broker.connects)

	snap, ok := store.Snapshot()
	require.True(t, ok)
	assert.False(t, snap.WifiConnected)
}

func TestTickReconnectsBeforePublishing(t *testing.T) {
	broker := &fakeBroker{connectRes: netmgr.ResultConnected}
	svc, _, _ := newTestService(t, &fakeLink{up: true}, broker)

	svc.Tick(context.Background())
	assert.Equal(t, 1, broker.connects)
	assert.Len(t, broker.sent, 5)
}

func TestTickReconnectFailureOnlyRefreshesFlags(t *testing.T) {
	broker := &fakeBroker{connectRes: netmgr.ResultTimedOut}
	svc, store, _ := newTestService(t, &fakeLink{up: true}, broker)

	svc.Tick(context.Background())
	assert.Empty(t, broker.sent)

	snap, ok := store.Snapshot()
	require.True(t, ok)
	assert.True(t, snap.WifiConnected)
	assert.False(t, snap.MQTTConnected)
}

func TestPublishFailureDoesNotStopBatch(t *testing.T) {
	broker := &fakeBroker{connected: true, failTopic: testTopics.Humidity}
	svc, store, _ := newTestService(t, &fakeLink{up: true}, broker)
	require.True(t, store.UpdateSensors(37.5, 36.5, 55.2, true))

	svc.Tick(context.Background())

	topics := make([]string, 0, len(broker.sent))
	for _, p := range broker.sent {
		topics = append(topics, p.topic)
	}
	assert.Equal(t, []string{
		testTopics.Temperature,
		testTopics.Angle,
		testTopics.Alert,
		testTopics.Status,
	}, topics)
}
