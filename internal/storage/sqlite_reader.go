package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roman-kulish/anemometer/internal/history"
)

// PointReader provides an iterator-based interface for reading the retained
// points of a session with optional time and validity filtering.
type PointReader interface {
	// Session returns the session this reader is accessing.
	Session() *history.Session

	// Next advances the iterator and returns true if there is another point
	// to read, false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the current point in the iteration.
	Current() *history.Point

	// Error returns any error that occurred during iteration.
	Error() error

	// Close releases any resources associated with the reader.
	Close() error
}

// ReaderOption configures a SqlitePointReader with specific filtering criteria.
type ReaderOption func(*SqlitePointReader)

// WithStartTime excludes points recorded before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqlitePointReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes points recorded after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqlitePointReader) {
		r.endTime = &t
	}
}

// WithTimeRange is equivalent to applying both WithStartTime and WithEndTime.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqlitePointReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// WithValidOnly excludes points that failed validation.
func WithValidOnly() ReaderOption {
	return func(r *SqlitePointReader) {
		r.validOnly = true
	}
}

// SqlitePointReader implements PointReader for SQLite database backend.
type SqlitePointReader struct {
	db *sql.DB

	sessionID string
	session   *history.Session

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter
	validOnly bool

	current *history.Point
	rows    *sql.Rows
	err     error
}

func newSqlitePointReader(ctx context.Context, db *sql.DB, sessionID string, opts ...ReaderOption) (*SqlitePointReader, error) {
	r := &SqlitePointReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return r, nil
}

func (r *SqlitePointReader) init(ctx context.Context) error {
	if r.db == nil {
		return errors.New("database connection required")
	}
	if r.sessionID == "" {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: r.loadSession},
		{msg: "initializing filters", fn: r.initFilters},
		{msg: "initializing query", fn: r.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (r *SqlitePointReader) loadSession(ctx context.Context) (err error) {
	r.session, err = loadSession(ctx, r.db, r.sessionID)
	return
}

func (r *SqlitePointReader) initFilters(context.Context) error {
	if r.startTime != nil && r.endTime != nil && r.startTime.After(*r.endTime) {
		return fmt.Errorf("start time %s is after end time %s", r.startTime, r.endTime)
	}
	return nil
}

func (r *SqlitePointReader) initQuery(ctx context.Context) (err error) {
	from, to := int64(math.MinInt64), int64(math.MaxInt64)
	if r.startTime != nil {
		from = r.startTime.UnixNano()
	}
	if r.endTime != nil {
		to = r.endTime.UnixNano()
	}

	stmt, err := r.db.PrepareContext(ctx, selectPointsSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if r.rows, err = stmt.QueryContext(ctx, r.sessionID, from, to, r.validOnly); err != nil {
		return err
	}
	return nil
}

func (r *SqlitePointReader) Session() *history.Session {
	return r.session
}

func (r *SqlitePointReader) Next(ctx context.Context) bool {
	if r.err != nil || r.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		r.err = ctx.Err()
		return false
	default:
	}

	if !r.rows.Next() {
		r.current = nil
		return false
	}

	var data pointData
	if r.err = r.rows.Scan(&data.Timestamp, &data.Speed, &data.Valid, &data.Direction); r.err != nil {
		r.err = fmt.Errorf("scanning point: %w", r.err)
		return false
	}

	p := fromPointData(data)
	r.current = &p
	return true
}

func (r *SqlitePointReader) Current() *history.Point {
	return r.current
}

func (r *SqlitePointReader) Error() error {
	if r.err != nil {
		return r.err
	}
	if r.rows != nil {
		return r.rows.Err()
	}
	return nil
}

func (r *SqlitePointReader) Close() error {
	if r.rows != nil {
		err := r.rows.Close()
		r.current = nil
		r.rows = nil
		return err
	}
	return nil
}

// ReadAll drains a reader into a slice.
func ReadAll(ctx context.Context, r PointReader) ([]history.Point, error) {
	var points []history.Point
	for r.Next(ctx) {
		points = append(points, *r.Current())
	}
	return points, r.Error()
}
