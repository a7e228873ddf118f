// Package live streams measurement updates to browsers over WebSocket.
package live

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout   = 5 * time.Second
	clientBacklog  = 32
	readLimitBytes = 512
)

// Status is the latest known state of the running measurement.
type Status struct {
	Timestamp       time.Time `json:"timestamp"`
	State           string    `json:"state"`
	Speed           *float64  `json:"speed,omitempty"` // m/s
	Average         *float64  `json:"average,omitempty"`
	Max             *float64  `json:"max,omitempty"`
	Valid           *bool     `json:"valid,omitempty"`
	DynamicsIsValid *bool     `json:"dynamicsIsValid,omitempty"`
	Temperature     *float64  `json:"temperature,omitempty"` // °C
}

// Event is a single WebSocket message.
type Event struct {
	Type   string `json:"type"` // speed, validity, temperature or state
	Status Status `json:"status"`
}

type Option func(*Hub)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger.With(slog.String("component", "live"))
	}
}

// Hub is a measurement delegate that keeps the latest status and fans every
// update out to connected WebSocket clients. Slow clients drop events.
type Hub struct {
	mu      sync.RWMutex
	status  Status
	seen    bool
	clients map[uuid.UUID]chan []byte

	upgrader websocket.Upgrader
	logger   *slog.Logger
	now      func() time.Time
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[uuid.UUID]chan []byte),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) AddSpeedMeasurement(current float64, average, max *float64) {
	h.update("speed", func(s *Status) {
		s.Speed = &current
		s.Average = average
		s.Max = max
	})
}

func (h *Hub) MeasuringStoppedByModel() {
	h.SetState("stopped")
}

func (h *Hub) TemperatureUpdated(celsius float64) {
	h.update("temperature", func(s *Status) {
		s.Temperature = &celsius
	})
}

func (h *Hub) ChangedValidity(isValid, dynamicsIsValid bool) {
	h.update("validity", func(s *Status) {
		s.Valid = &isValid
		s.DynamicsIsValid = &dynamicsIsValid
	})
}

// SetState records a session state change, clearing readings when a new
// session starts.
func (h *Hub) SetState(state string) {
	h.update("state", func(s *Status) {
		if state == "running" {
			*s = Status{Temperature: s.Temperature}
		}
		s.State = state
	})
}

// Status returns the latest status and whether any update was received.
func (h *Hub) Status() (Status, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status, h.seen
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) update(kind string, fn func(*Status)) {
	h.mu.Lock()
	fn(&h.status)
	h.status.Timestamp = h.now()
	h.seen = true
	payload, err := json.Marshal(Event{Type: kind, Status: h.status})
	if err != nil {
		h.mu.Unlock()
		h.logger.Error("failed to marshal event", slog.Any("error", err))
		return
	}

	for id, ch := range h.clients {
		select {
		case ch <- payload:
		default:
			h.logger.Debug("client backlog full, dropping event", slog.String("client", id.String()))
		}
	}
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	id := uuid.New()
	ch := make(chan []byte, clientBacklog)

	h.mu.Lock()
	h.clients[id] = ch
	if h.seen {
		if payload, err := json.Marshal(Event{Type: "state", Status: h.status}); err == nil {
			ch <- payload
		}
	}
	h.mu.Unlock()

	logger := h.logger.With(slog.String("client", id.String()))
	logger.Info("client connected", slog.String("remote", r.RemoteAddr))

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(readLimitBytes)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warn("websocket error", slog.Any("error", err))
				}
				return
			}
		}
	}()

	defer func() {
		h.mu.Lock()
		delete(h.clients, id)
		h.mu.Unlock()
		_ = conn.Close()
		logger.Info("client disconnected")
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case payload := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Warn("websocket write failed", slog.Any("error", err))
				return
			}
		}
	}
}

// StatusHandler serves the latest status as JSON.
func (h *Hub) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, ok := h.Status()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			h.logger.Warn("json encode error", slog.Any("error", err))
		}
	})
}

// Handler routes the WebSocket stream and the status API.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", h)
	mux.Handle("GET /api/measurement", h.StatusHandler())
	return mux
}
