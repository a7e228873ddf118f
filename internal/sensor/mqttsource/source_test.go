package mqttsource

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/anemometer/internal/sensor"
)

func startBroker(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	server := mochi.New(nil)
	require.NoError(t, server.AddHook(new(auth.AllowHook), nil))
	require.NoError(t, server.AddListener(listeners.NewTCP(listeners.Config{ID: "test", Address: addr})))
	require.NoError(t, server.Serve())
	t.Cleanup(func() { _ = server.Close() })

	return "tcp://" + addr
}

func TestReading_Conversions(t *testing.T) {
	r := Reading{TimestampNs: 5e9, AccelZ: -standardGravity, GyroX: 0.1, MagX: 12, MagY: -3, MagZ: 40}

	m := r.Magnetic()
	assert.Equal(t, time.Unix(5, 0), m.Timestamp)
	assert.Equal(t, 12.0, m.X)

	i := r.IMU()
	assert.InDelta(t, -1, i.Az, 1e-12)
	assert.Equal(t, 0.1, i.Gx)
}

func TestSource_FeedsFromBroker(t *testing.T) {
	broker := startBroker(t)
	const topic = "anemometer/sensors"

	src := New(Config{Broker: broker, ClientID: "source-test", Topic: topic})

	mags := make(chan sensor.MagneticSample, 1)
	imus := make(chan sensor.IMUSample, 1)
	src.Magnetic().Subscribe(uuid.New(), func(s sensor.MagneticSample) { mags <- s })
	src.IMU().Subscribe(uuid.New(), func(s sensor.IMUSample) { imus <- s })

	require.NoError(t, src.Magnetic().Start())
	require.NoError(t, src.IMU().Start())
	defer func() {
		require.NoError(t, src.IMU().Stop())
		require.NoError(t, src.Magnetic().Stop())
	}()

	pub := mqtt.NewClient(mqtt.NewClientOptions().AddBroker(broker).SetClientID("publisher"))
	token := pub.Connect()
	require.True(t, token.WaitTimeout(5*time.Second))
	require.NoError(t, token.Error())
	defer pub.Disconnect(250)

	payload, err := json.Marshal(Reading{TimestampNs: 1e9, MagX: 7, AccelZ: -standardGravity})
	require.NoError(t, err)
	token = pub.Publish(topic, 0, false, payload)
	require.True(t, token.WaitTimeout(5*time.Second))
	require.NoError(t, token.Error())

	select {
	case m := <-mags:
		assert.Equal(t, 7.0, m.X)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for magnetometer sample")
	}
	select {
	case i := <-imus:
		assert.InDelta(t, -1, i.Az, 1e-12)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for imu sample")
	}
}

func TestSource_UnreachableBroker(t *testing.T) {
	src := New(Config{Broker: "tcp://127.0.0.1:1", ClientID: "x", Topic: "t", Timeout: time.Second})

	err := src.Magnetic().Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, sensor.ErrUnavailable)
}
