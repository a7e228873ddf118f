package live

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/anemometer/internal/measurement"
)

var (
	_ measurement.Delegate         = (*Hub)(nil)
	_ measurement.ValidityObserver = (*Hub)(nil)
)

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var e Event
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func TestHub_StatusHandler(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/measurement")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	avg := 2.5
	h.SetState("running")
	h.AddSpeedMeasurement(3, &avg, &avg)

	resp, err = http.Get(srv.URL + "/api/measurement")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var s Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	assert.Equal(t, "running", s.State)
	require.NotNil(t, s.Speed)
	assert.Equal(t, 3.0, *s.Speed)
	assert.Equal(t, 2.5, *s.Average)
}

func TestHub_StreamsEvents(t *testing.T) {
	h := NewHub()
	h.TemperatureUpdated(12)

	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	initial := readEvent(t, conn)
	assert.Equal(t, "state", initial.Type)
	require.NotNil(t, initial.Status.Temperature)
	assert.Equal(t, 12.0, *initial.Status.Temperature)

	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 10*time.Millisecond)

	h.SetState("running")
	e := readEvent(t, conn)
	assert.Equal(t, "state", e.Type)
	assert.Equal(t, "running", e.Status.State)
	assert.Equal(t, 12.0, *e.Status.Temperature, "temperature survives a new session")

	h.ChangedValidity(true, false)
	e = readEvent(t, conn)
	assert.Equal(t, "validity", e.Type)
	assert.True(t, *e.Status.Valid)
	assert.False(t, *e.Status.DynamicsIsValid)

	h.MeasuringStoppedByModel()
	e = readEvent(t, conn)
	assert.Equal(t, "stopped", e.Status.State)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return h.Clients() == 0 }, time.Second, 10*time.Millisecond)
}
