// Package mqttsource feeds magnetometer and IMU samples received over MQTT.
package mqttsource

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/roman-kulish/anemometer/internal/sensor"
)

const standardGravity = 9.80665 // m/s²

// Reading is the combined sensor payload published by the accessory bridge.
type Reading struct {
	TimestampNs int64   `json:"timestamp_ns"`
	AccelX      float64 `json:"accel_x"` // m/s²
	AccelY      float64 `json:"accel_y"`
	AccelZ      float64 `json:"accel_z"`
	GyroX       float64 `json:"gyro_x"` // rad/s
	GyroY       float64 `json:"gyro_y"`
	GyroZ       float64 `json:"gyro_z"`
	MagX        float64 `json:"mag_x"` // µT
	MagY        float64 `json:"mag_y"`
	MagZ        float64 `json:"mag_z"`
}

func (r Reading) time() time.Time {
	if r.TimestampNs == 0 {
		return time.Now()
	}
	return time.Unix(0, r.TimestampNs)
}

// Magnetic returns the magnetometer part of the reading.
func (r Reading) Magnetic() sensor.MagneticSample {
	return sensor.MagneticSample{Timestamp: r.time(), X: r.MagX, Y: r.MagY, Z: r.MagZ}
}

// IMU returns the inertial part of the reading with acceleration in g.
func (r Reading) IMU() sensor.IMUSample {
	return sensor.IMUSample{
		Timestamp: r.time(),
		Ax:        r.AccelX / standardGravity,
		Ay:        r.AccelY / standardGravity,
		Az:        r.AccelZ / standardGravity,
		Gx:        r.GyroX,
		Gy:        r.GyroY,
		Gz:        r.GyroZ,
	}
}

type Config struct {
	Broker   string
	ClientID string
	Topic    string
	Timeout  time.Duration
}

// WithLogger sets the logger for the source
func WithLogger(logger *slog.Logger) func(s *Source) {
	return func(s *Source) {
		s.logger = logger.With(slog.String("source", "mqtt"), slog.String("topic", s.config.Topic))
	}
}

// Source subscribes to the accessory topic while at least one of its feeds
// is started.
type Source struct {
	config   Config
	client   mqtt.Client
	magnetic *sensor.Feed[sensor.MagneticSample]
	imu      *sensor.Feed[sensor.IMUSample]
	shared   *sensor.Shared
	logger   *slog.Logger
}

func New(config Config, options ...func(s *Source)) *Source {
	s := Source{
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if s.config.Timeout == 0 {
		s.config.Timeout = 5 * time.Second
	}
	s.shared = sensor.NewShared(s.open, s.close)
	s.magnetic = sensor.NewFeed[sensor.MagneticSample]("mqtt magnetometer", sensor.OnStart(s.shared.Acquire), sensor.OnStop(s.shared.Release))
	s.imu = sensor.NewFeed[sensor.IMUSample]("mqtt imu", sensor.OnStart(s.shared.Acquire), sensor.OnStop(s.shared.Release))

	for _, option := range options {
		option(&s)
	}
	return &s
}

func (s *Source) Magnetic() *sensor.Feed[sensor.MagneticSample] {
	return s.magnetic
}

func (s *Source) IMU() *sensor.Feed[sensor.IMUSample] {
	return s.imu
}

func (s *Source) open() error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.config.Broker).
		SetClientID(s.config.ClientID).
		SetConnectTimeout(s.config.Timeout)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(s.config.Timeout) {
		return errors.New("connecting to broker: timed out")
	} else if token.Error() != nil {
		return fmt.Errorf("connecting to broker: %w", token.Error())
	}

	token := client.Subscribe(s.config.Topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		s.handle(msg.Payload())
	})
	if !token.WaitTimeout(s.config.Timeout) {
		client.Disconnect(250)
		return errors.New("subscribing: timed out")
	} else if token.Error() != nil {
		client.Disconnect(250)
		return fmt.Errorf("subscribing to %s: %w", s.config.Topic, token.Error())
	}

	s.client = client
	s.logger.Info("subscribed", slog.String("broker", s.config.Broker))
	return nil
}

func (s *Source) close() error {
	if s.client == nil {
		return nil
	}
	token := s.client.Unsubscribe(s.config.Topic)
	token.WaitTimeout(s.config.Timeout)
	s.client.Disconnect(250)
	s.client = nil
	return token.Error()
}

func (s *Source) handle(payload []byte) {
	var r Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		s.logger.Warn(fmt.Sprintf("unmarshal error: %s", err.Error()))
		return
	}
	s.magnetic.Push(r.Magnetic())
	s.imu.Push(r.IMU())
}
