package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roman-kulish/anemometer/internal/config"
	"github.com/roman-kulish/anemometer/internal/dynamics"
	"github.com/roman-kulish/anemometer/internal/live"
	"github.com/roman-kulish/anemometer/internal/location"
	"github.com/roman-kulish/anemometer/internal/measurement"
	"github.com/roman-kulish/anemometer/internal/publish"
	"github.com/roman-kulish/anemometer/internal/sensor"
	"github.com/roman-kulish/anemometer/internal/sensor/mqttsource"
	"github.com/roman-kulish/anemometer/internal/storage"
	"github.com/roman-kulish/anemometer/internal/telemetry"
	"github.com/roman-kulish/anemometer/internal/thermometer"
	"github.com/roman-kulish/anemometer/internal/units"
)

const shutdownTimeout = 5 * time.Second

// sources are the raw sensor streams of the configured accessory
type sources struct {
	magnetic sensor.Source[sensor.MagneticSample]
	imu      sensor.Source[sensor.IMUSample]
}

func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	mc, err := cfg.MeasurementConfig()
	if err != nil {
		return fmt.Errorf("invalid measurement configuration: %w", err)
	}
	unit, err := units.ParseSpeedUnit(cfg.Settings.Unit)
	if err != nil {
		return err
	}

	src, err := createSources(&cfg.Sensors, logger)
	if err != nil {
		return fmt.Errorf("failed to create sensors: %w", err)
	}

	analyzer := dynamics.NewAnalyzer(src.imu,
		dynamics.WithWindowSize(cfg.Measurement.Dynamics.WindowSize),
		dynamics.WithSteadinessMax(cfg.Measurement.Dynamics.SteadinessMax),
		dynamics.WithUpsideDown(mc.UpsideDown),
		dynamics.WithLogger(logger),
	)

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	latest := &telemetry.Latest{}
	startTelemetry(ctx, cfg, latest, &wg, logger)

	sessionConfig, err := json.Marshal(cfg.Measurement)
	if err != nil {
		return fmt.Errorf("failed to marshal session configuration: %w", err)
	}

	var delegates measurement.Delegates
	options := []func(*Orchestrator){
		WithLogger(logger),
		WithTelemetry(latest),
		WithDuration(cfg.Settings.SessionDuration.Duration()),
		WithUnit(unit),
		WithSessionConfig(string(sessionConfig)),
	}

	if cfg.Publish.Enabled {
		pub, err := publish.Connect(publish.Config{
			Broker:      cfg.Publish.Broker,
			ClientID:    cfg.Publish.ClientID,
			TopicPrefix: cfg.Publish.TopicPrefix,
			QoS:         cfg.Publish.QoS,
			Timeout:     cfg.Publish.Timeout.Duration(),
		}, publish.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("failed to connect publisher: %w", err)
		}
		defer pub.Close()

		delegates = append(delegates, pub)
		options = append(options, WithStateHook(pub.PublishState), WithSessionHook(pub.PublishSession))
	}

	if cfg.Web.Enabled {
		hub := live.NewHub(live.WithLogger(logger))
		server := &http.Server{
			Addr:              cfg.Web.Address,
			Handler:           hub.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("web server listening", slog.String("address", cfg.Web.Address))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("web server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		delegates = append(delegates, hub)
		options = append(options, WithStateHook(hub.SetState))
	}

	if cfg.Storage.Enabled {
		store, err := createStorage(&cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer store.Close()

		options = append(options, WithStore(store))
	}

	orchestrator, err := NewOrchestrator(src.magnetic, analyzer, mc, delegates, options...)
	if err != nil {
		return fmt.Errorf("failed to create measurement: %w", err)
	}
	return orchestrator.Run(ctx)
}

func createSources(cfg *config.SensorsConfig, logger *slog.Logger) (*sources, error) {
	switch cfg.Source {
	case config.SourceSynthetic:
		s := sensor.NewSynthetic(cfg.Synthetic.SyntheticSource(), sensor.WithSyntheticLogger(logger))
		return &sources{magnetic: s.Magnetic(), imu: s.IMU()}, nil

	case config.SourceCommand:
		options := []func(*sensor.Command){sensor.WithLogger(logger)}
		if cfg.Command.ParseErrorsThreshold > 0 {
			options = append(options, sensor.WithParseErrorsThreshold(cfg.Command.ParseErrorsThreshold))
		}
		c := sensor.NewCommand(cfg.Command.Path, cfg.Command.Args, options...)
		return &sources{magnetic: c.Magnetic(), imu: c.IMU()}, nil

	case config.SourceMQTT:
		s := mqttsource.New(mqttsource.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			Timeout:  cfg.MQTT.Timeout.Duration(),
		}, mqttsource.WithLogger(logger))
		return &sources{magnetic: s.Magnetic(), imu: s.IMU()}, nil

	default:
		return nil, fmt.Errorf("unknown sensor source '%s'", cfg.Source)
	}
}

// startTelemetry runs the optional GPS receiver and thermometer until ctx is done.
func startTelemetry(ctx context.Context, cfg *config.Config, latest *telemetry.Latest, wg *sync.WaitGroup, logger *slog.Logger) {
	if cfg.GPS.Enabled {
		receiver := location.NewReceiver(location.Config{
			Port:     cfg.GPS.Port,
			BaudRate: cfg.GPS.BaudRate,
		}, latest, location.WithLogger(logger))

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := receiver.Run(ctx); err != nil {
				logger.Error("GPS receiver stopped", slog.Any("error", err))
			}
		}()
	}

	if cfg.Thermometer.Enabled {
		dev, bus, err := thermometer.Open(thermometer.Config{
			Interface: cfg.Thermometer.Interface,
			Bus:       cfg.Thermometer.Bus,
			Address:   cfg.Thermometer.Address,
		})
		if err != nil {
			logger.Warn("thermometer unavailable", slog.Any("error", err))
			return
		}
		poller := thermometer.NewPoller(dev, latest, cfg.Thermometer.Interval.Duration(), thermometer.WithLogger(logger))

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer bus.Close()
			_ = poller.Run(ctx)
		}()
	}
}

func createStorage(cfg *config.StorageConfig) (*storage.SqliteStore, error) {
	dir := cfg.DataDirectory
	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = filepath.Join(wd, dir)
	}

	stat, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dir, err)
		}
		return nil, fmt.Errorf("checking storage directory '%s': %w", dir, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dir)
	}

	return storage.NewSqliteStore(filepath.Join(dir, cfg.Database)), nil
}
