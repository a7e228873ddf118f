// Package publish forwards live measurement updates to an MQTT broker.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/roman-kulish/anemometer/internal/history"
)

const (
	DefaultTopicPrefix = "anemometer"
	DefaultTimeout     = 5 * time.Second
)

type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

type SpeedMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Speed     float64   `json:"speed"` // m/s
	Average   *float64  `json:"average,omitempty"`
	Max       *float64  `json:"max,omitempty"`
}

type ValidityMessage struct {
	Timestamp       time.Time `json:"timestamp"`
	Valid           bool      `json:"valid"`
	DynamicsIsValid bool      `json:"dynamicsIsValid"`
}

type TemperatureMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Celsius   float64   `json:"celsius"`
}

type StateMessage struct {
	Timestamp time.Time `json:"timestamp"`
	State     string    `json:"state"`
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger.With(slog.String("component", "publisher"))
	}
}

// Publisher is a measurement delegate that publishes every update as JSON
// under the configured topic prefix. Publishing never blocks the caller.
type Publisher struct {
	config Config
	client mqtt.Client
	logger *slog.Logger
	now    func() time.Time
}

// Connect dials the broker and returns a ready Publisher.
func Connect(config Config, opts ...Option) (*Publisher, error) {
	if config.TopicPrefix == "" {
		config.TopicPrefix = DefaultTopicPrefix
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	p := &Publisher{
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(config.ClientID).
		SetConnectTimeout(config.Timeout).
		SetAutoReconnect(true)

	p.client = mqtt.NewClient(clientOpts)
	if token := p.client.Connect(); !token.WaitTimeout(config.Timeout) {
		return nil, errors.New("connecting to broker: timed out")
	} else if token.Error() != nil {
		return nil, fmt.Errorf("connecting to broker: %w", token.Error())
	}

	p.logger.Info("connected", slog.String("broker", config.Broker))
	return p, nil
}

func (p *Publisher) Topic(name string) string {
	return p.config.TopicPrefix + "/" + name
}

func (p *Publisher) AddSpeedMeasurement(current float64, average, max *float64) {
	p.publish("speed", false, SpeedMessage{Timestamp: p.now(), Speed: current, Average: average, Max: max})
}

func (p *Publisher) MeasuringStoppedByModel() {
	p.publish("state", true, StateMessage{Timestamp: p.now(), State: "stopped"})
}

func (p *Publisher) TemperatureUpdated(celsius float64) {
	p.publish("temperature", true, TemperatureMessage{Timestamp: p.now(), Celsius: celsius})
}

func (p *Publisher) ChangedValidity(isValid, dynamicsIsValid bool) {
	p.publish("validity", true, ValidityMessage{Timestamp: p.now(), Valid: isValid, DynamicsIsValid: dynamicsIsValid})
}

// PublishState announces a session state change.
func (p *Publisher) PublishState(state string) {
	p.publish("state", true, StateMessage{Timestamp: p.now(), State: state})
}

// PublishSession announces a finished session summary.
func (p *Publisher) PublishSession(s history.Session) {
	p.publish("session", true, s)
}

func (p *Publisher) publish(name string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.Error("failed to marshal message", slog.String("topic", name), slog.Any("error", err))
		return
	}

	topic := p.Topic(name)
	token := p.client.Publish(topic, p.config.QoS, retained, payload)
	go func() {
		if !token.WaitTimeout(p.config.Timeout) {
			p.logger.Warn("publish timed out", slog.String("topic", topic))
			return
		}
		if err := token.Error(); err != nil {
			p.logger.Warn("publish failed", slog.String("topic", topic), slog.Any("error", err))
		}
	}()
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
