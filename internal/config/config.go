// Package config loads the YAML configuration shared by the command line tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/anemometer/internal/calibration"
	"github.com/roman-kulish/anemometer/internal/dsp"
	"github.com/roman-kulish/anemometer/internal/dynamics"
	"github.com/roman-kulish/anemometer/internal/location"
	"github.com/roman-kulish/anemometer/internal/measurement"
	"github.com/roman-kulish/anemometer/internal/publish"
	"github.com/roman-kulish/anemometer/internal/sensor"
	"github.com/roman-kulish/anemometer/internal/thermometer"
	"github.com/roman-kulish/anemometer/internal/units"
	"github.com/roman-kulish/anemometer/internal/validity"
)

const (
	SourceSynthetic = "synthetic"
	SourceCommand   = "command"
	SourceMQTT      = "mqtt"
)

// Config represents the main application configuration
type Config struct {
	Settings    Settings          `yaml:"settings"`
	Measurement MeasurementConfig `yaml:"measurement"`
	Sensors     SensorsConfig     `yaml:"sensors"`
	GPS         GPSConfig         `yaml:"gps"`
	Thermometer ThermometerConfig `yaml:"thermometer"`
	Publish     PublishConfig     `yaml:"publish"`
	Web         WebConfig         `yaml:"web"`
	Storage     StorageConfig     `yaml:"storage"`

	// Profiles are partial documents overlaid on the base one, e.g. a
	// "bench" profile switching to the synthetic source.
	Profiles map[string]yaml.Node `yaml:"profiles,omitempty"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel        string   `yaml:"logLevel"`
	Profile         string   `yaml:"profile"`
	SessionDuration Duration `yaml:"sessionDuration"` // 0 runs until interrupted
	Unit            string   `yaml:"unit"`            // speed unit used in logs
}

type MeasurementConfig struct {
	SampleFrequency   float64         `yaml:"sampleFrequency"`
	Band              string          `yaml:"band"`
	Window            string          `yaml:"window"`
	Algorithm         string          `yaml:"algorithm"`
	DeviceModel       string          `yaml:"deviceModel"` // resolves the "auto" algorithm
	FFTForEvery       int             `yaml:"fftForEvery"`
	SaveEveryNthPoint int             `yaml:"saveEveryNthPoint"`
	MinimumDuration   Duration        `yaml:"minimumDuration"`
	RotorAxis         string          `yaml:"rotorAxis"`
	UpsideDown        bool            `yaml:"upsideDown"`
	LookupTemperature bool            `yaml:"lookupTemperature"`
	SensorTimeout     Duration        `yaml:"sensorTimeout"`
	MaxRetainedPoints int             `yaml:"maxRetainedPoints"`
	Direction         DirectionConfig `yaml:"direction"`
	Validity          ValidityConfig  `yaml:"validity"`
	Dynamics          DynamicsConfig  `yaml:"dynamics"`
}

type DirectionConfig struct {
	Smoothing    int     `yaml:"smoothing"`
	StabilityRun int     `yaml:"stabilityRun"`
	Tolerance    float64 `yaml:"tolerance"` // degrees
}

type ValidityConfig struct {
	AccelerationMax         float64  `yaml:"accelerationMax"`
	AngularVelocityMax      float64  `yaml:"angularVelocityMax"`
	OrientationDeviationMax float64  `yaml:"orientationDeviationMax"`
	PeakMagnitudeMin        float64  `yaml:"peakMagnitudeMin"`
	Checks                  []string `yaml:"checks"`
}

type DynamicsConfig struct {
	WindowSize    int     `yaml:"windowSize"`
	SteadinessMax float64 `yaml:"steadinessMax"`
}

type SensorsConfig struct {
	Source    string          `yaml:"source"`
	Synthetic SyntheticConfig `yaml:"synthetic"`
	Command   CommandConfig   `yaml:"command"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

type SyntheticConfig struct {
	RotorFrequency float64  `yaml:"rotorFrequency"`
	GustAmplitude  float64  `yaml:"gustAmplitude"`
	GustPeriod     Duration `yaml:"gustPeriod"`
	FieldAmplitude float64  `yaml:"fieldAmplitude"`
	Noise          float64  `yaml:"noise"`
	SampleRate     float64  `yaml:"sampleRate"`
	IMURate        float64  `yaml:"imuRate"`
	Heading        float64  `yaml:"heading"`
	Seed           uint64   `yaml:"seed"`
}

type CommandConfig struct {
	Path                 string   `yaml:"path"`
	Args                 []string `yaml:"args"`
	ParseErrorsThreshold uint8    `yaml:"parseErrorsThreshold"`
}

type MQTTConfig struct {
	Broker   string   `yaml:"broker"`
	ClientID string   `yaml:"clientID"`
	Topic    string   `yaml:"topic"`
	Timeout  Duration `yaml:"timeout"`
}

type GPSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Port     string `yaml:"port"`
	BaudRate uint   `yaml:"baudRate"`
}

type ThermometerConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Interface string   `yaml:"interface"`
	Bus       string   `yaml:"bus"`
	Address   uint16   `yaml:"address"`
	Interval  Duration `yaml:"interval"`
}

type PublishConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Broker      string   `yaml:"broker"`
	ClientID    string   `yaml:"clientID"`
	TopicPrefix string   `yaml:"topicPrefix"`
	QoS         byte     `yaml:"qos"`
	Timeout     Duration `yaml:"timeout"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DataDirectory string `yaml:"dataDirectory"`
	Database      string `yaml:"database"`
}

// Default returns the configuration used for every key a document leaves out.
func Default() *Config {
	m := measurement.DefaultConfig()
	s := sensor.DefaultSyntheticConfig()

	return &Config{
		Settings: Settings{
			LogLevel: "INFO",
			Unit:     string(units.MetresPerSecond),
		},
		Measurement: MeasurementConfig{
			SampleFrequency:   m.SampleFrequency,
			Band:              m.Band.String(),
			Window:            string(m.Window),
			Algorithm:         "auto",
			FFTForEvery:       m.FFTForEvery,
			SaveEveryNthPoint: m.SaveEveryNthPoint,
			MinimumDuration:   Duration(m.MinimumDuration),
			RotorAxis:         string(m.RotorAxis),
			LookupTemperature: m.LookupTemperature,
			SensorTimeout:     Duration(m.SensorTimeout),
			Direction: DirectionConfig{
				StabilityRun: m.DirectionStabilityRun,
				Tolerance:    m.DirectionTolerance,
			},
			Validity: ValidityConfig{
				AccelerationMax:         m.Thresholds.AccelerationMax,
				AngularVelocityMax:      m.Thresholds.AngularVelocityMax,
				OrientationDeviationMax: m.Thresholds.OrientationDeviationMax,
				PeakMagnitudeMin:        m.Thresholds.PeakMagnitudeMin,
			},
			Dynamics: DynamicsConfig{
				WindowSize:    dynamics.DefaultWindowSize,
				SteadinessMax: dynamics.DefaultSteadinessMax,
			},
		},
		Sensors: SensorsConfig{
			Source: SourceSynthetic,
			Synthetic: SyntheticConfig{
				RotorFrequency: s.RotorFrequency,
				GustAmplitude:  s.GustAmplitude,
				GustPeriod:     Duration(s.GustPeriod),
				FieldAmplitude: s.FieldAmplitude,
				Noise:          s.Noise,
				SampleRate:     s.SampleRate,
				IMURate:        s.IMURate,
				Heading:        s.Heading,
				Seed:           s.Seed,
			},
			MQTT: MQTTConfig{
				ClientID: "anemometer-meter",
				Topic:    "anemometer/sensors",
				Timeout:  Duration(5 * time.Second),
			},
		},
		GPS: GPSConfig{
			Port:     location.DefaultPort,
			BaudRate: location.DefaultBaudRate,
		},
		Thermometer: ThermometerConfig{
			Interface: "i2c",
			Address:   thermometer.DefaultAddress,
			Interval:  Duration(thermometer.DefaultInterval),
		},
		Publish: PublishConfig{
			ClientID:    "anemometer-publisher",
			TopicPrefix: publish.DefaultTopicPrefix,
			Timeout:     Duration(publish.DefaultTimeout),
		},
		Web: WebConfig{
			Address: ":8080",
		},
		Storage: StorageConfig{
			Enabled:       true,
			DataDirectory: "data",
			Database:      "anemometer.sqlite",
		},
	}
}

// Load reads the configuration at path and overlays the named profile. An
// empty profile falls back to settings.profile.
func Load(path, profile string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	return Parse(data, profile)
}

func Parse(data []byte, profile string) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if profile == "" {
		profile = c.Settings.Profile
	}
	if profile != "" {
		node, ok := c.Profiles[profile]
		if !ok {
			return nil, fmt.Errorf("unknown profile '%s'", profile)
		}
		if err := node.Decode(c); err != nil {
			return nil, fmt.Errorf("applying profile '%s': %w", profile, err)
		}
		c.Settings.Profile = profile
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if _, err := c.MeasurementConfig(); err != nil {
		errs = append(errs, fmt.Errorf("measurement: %w", err))
	}
	if _, err := units.ParseSpeedUnit(c.Settings.Unit); err != nil {
		errs = append(errs, fmt.Errorf("settings: %w", err))
	}
	if c.Settings.SessionDuration < 0 {
		errs = append(errs, fmt.Errorf("settings: session duration must not be negative: %s", c.Settings.SessionDuration))
	}
	if err := c.Sensors.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sensors: %w", err))
	}
	if c.Publish.Enabled && c.Publish.Broker == "" {
		errs = append(errs, errors.New("publish: broker is required"))
	}
	if c.Publish.QoS > 2 {
		errs = append(errs, fmt.Errorf("publish: invalid QoS %d", c.Publish.QoS))
	}
	if c.Web.Enabled && c.Web.Address == "" {
		errs = append(errs, errors.New("web: address is required"))
	}
	if c.Thermometer.Enabled && c.Thermometer.Interface != "i2c" && c.Thermometer.Interface != "spi" {
		errs = append(errs, fmt.Errorf("thermometer: unknown interface '%s'", c.Thermometer.Interface))
	}
	if c.Storage.Enabled && c.Storage.Database == "" {
		errs = append(errs, errors.New("storage: database file name is required"))
	}

	return errors.Join(errs...)
}

func (s *SensorsConfig) Validate() error {
	switch s.Source {
	case SourceSynthetic:
		if s.Synthetic.SampleRate <= 0 || s.Synthetic.IMURate <= 0 {
			return errors.New("synthetic sample rates must be positive")
		}
	case SourceCommand:
		if s.Command.Path == "" {
			return errors.New("command path is required")
		}
	case SourceMQTT:
		if s.MQTT.Broker == "" || s.MQTT.Topic == "" {
			return errors.New("MQTT broker and topic are required")
		}
	default:
		return fmt.Errorf("unknown source '%s' (expected synthetic, command or mqtt)", s.Source)
	}
	return nil
}

// MeasurementConfig resolves the measurement section into controller settings.
func (c *Config) MeasurementConfig() (measurement.Config, error) {
	m := c.Measurement
	var errs []error

	band, err := dsp.ParseBand(m.Band)
	errs = append(errs, err)
	window, err := dsp.ParseWindowFunction(m.Window)
	errs = append(errs, err)
	algorithm, err := calibration.ParseAlgorithm(m.Algorithm, m.DeviceModel)
	errs = append(errs, err)
	axis, err := sensor.ParseAxis(m.RotorAxis)
	errs = append(errs, err)

	enabled := validity.AllChecks
	if len(m.Validity.Checks) > 0 {
		enabled, err = validity.ParseChecks(m.Validity.Checks)
		errs = append(errs, err)
	}

	if err = errors.Join(errs...); err != nil {
		return measurement.Config{}, err
	}

	mc := measurement.Config{
		SampleFrequency:   m.SampleFrequency,
		Band:              band,
		Window:            window,
		Algorithm:         algorithm,
		FFTForEvery:       m.FFTForEvery,
		SaveEveryNthPoint: m.SaveEveryNthPoint,
		MinimumDuration:   m.MinimumDuration.Duration(),
		Thresholds: validity.Thresholds{
			AccelerationMax:         m.Validity.AccelerationMax,
			AngularVelocityMax:      m.Validity.AngularVelocityMax,
			OrientationDeviationMax: m.Validity.OrientationDeviationMax,
			PeakMagnitudeMin:        m.Validity.PeakMagnitudeMin,
			Enabled:                 enabled,
		},
		RotorAxis:             axis,
		DirectionSmoothing:    m.Direction.Smoothing,
		DirectionStabilityRun: m.Direction.StabilityRun,
		DirectionTolerance:    m.Direction.Tolerance,
		UpsideDown:            m.UpsideDown,
		LookupTemperature:     m.LookupTemperature,
		SensorTimeout:         m.SensorTimeout.Duration(),
		MaxRetainedPoints:     m.MaxRetainedPoints,
	}
	return mc, mc.Validate()
}

// SyntheticSource converts the synthetic sensor section.
func (s SyntheticConfig) SyntheticSource() sensor.SyntheticConfig {
	return sensor.SyntheticConfig{
		RotorFrequency: s.RotorFrequency,
		GustAmplitude:  s.GustAmplitude,
		GustPeriod:     s.GustPeriod.Duration(),
		FieldAmplitude: s.FieldAmplitude,
		Noise:          s.Noise,
		SampleRate:     s.SampleRate,
		IMURate:        s.IMURate,
		Heading:        s.Heading,
		Seed:           s.Seed,
	}
}
