package app

import (
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/roman-kulish/anemometer/internal/history"
	"github.com/roman-kulish/anemometer/internal/storage"
)

var (
	ErrNoSessions = errors.New("database has no sessions")
	ErrNoPoints   = errors.New("session has no points to plot")
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	if _, err = os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	series, err := readSeries(ctx, store, config, logger)
	if err != nil {
		return err
	}

	renderer, err := NewChartRenderer(RenderConfig{
		Location:      config.TimeZone,
		Width:         config.Width,
		Height:        config.Height,
		Unit:          config.Unit,
		ColorTheme:    config.Theme,
		NoAnnotations: config.NoAnnotations,
	})
	if err != nil {
		return fmt.Errorf("creating chart renderer: %w", err)
	}

	logger.Info("rendering chart",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.String("unit", string(config.Unit)),
			slog.Int("width", config.Width),
			slog.Int("height", config.Height),
		))

	img, err := renderer.Render(series)
	if err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	switch config.Format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}

func readSeries(ctx context.Context, store *storage.SqliteStore, config *Config, logger *slog.Logger) (*SeriesData, error) {
	sessionID := config.SessionID
	if sessionID == "" {
		latest, err := latestSession(ctx, store)
		if err != nil {
			return nil, err
		}
		sessionID = latest.ID
		logger.Info("no session given, using the latest", slog.String("sessionID", sessionID))
	}

	var opts []storage.ReaderOption
	if config.ValidOnly {
		opts = append(opts, storage.WithValidOnly())
	}

	iter, err := store.ReadPoints(ctx, sessionID, opts...)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	series := NewSeriesData(iter.Session())
	for iter.Next(ctx) {
		series.Update(iter.Current())
	}
	if err = iter.Error(); err != nil {
		return nil, err
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("session '%s': %w", sessionID, ErrNoPoints)
	}

	logger.Info("finished reading data points",
		slog.Group("stats",
			slog.String("sessionID", sessionID),
			slog.String("minTimestamp", series.TimestampStart.In(config.TimeZone).Format(time.DateTime)),
			slog.String("maxTimestamp", series.TimestampEnd.In(config.TimeZone).Format(time.DateTime)),
			slog.Int("points", series.Len()),
			slog.Int("validPoints", series.ValidCount),
			slog.String("maxSpeed", config.Unit.Format(series.SpeedMax)),
		))

	return series, nil
}

func latestSession(ctx context.Context, store storage.Store) (*history.Session, error) {
	sessions, err := store.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrNoSessions
	}
	// sessions come ordered by start time
	return sessions[len(sessions)-1], nil
}
