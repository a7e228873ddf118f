package storage

import (
	"database/sql"
)

type sessionData struct {
	ID              string
	StartTime       int64
	EndTime         int64
	Algorithm       string
	Band            string
	Average         sql.NullFloat64
	Max             sql.NullFloat64
	Direction       sql.NullFloat64
	Points          int
	ValidPoints     int
	Progress        float64
	TelemetryTime   sql.NullInt64
	Latitude        sql.NullFloat64
	Longitude       sql.NullFloat64
	Altitude        sql.NullFloat64
	GroundSpeed     sql.NullFloat64
	Satellites      sql.NullInt64
	Temperature     sql.NullFloat64
	TemperatureTime sql.NullInt64
	Config          sql.NullString
}

func (d *sessionData) args() []any {
	return []any{
		d.ID,
		d.StartTime,
		d.EndTime,
		d.Algorithm,
		d.Band,
		d.Average,
		d.Max,
		d.Direction,
		d.Points,
		d.ValidPoints,
		d.Progress,
		d.TelemetryTime,
		d.Latitude,
		d.Longitude,
		d.Altitude,
		d.GroundSpeed,
		d.Satellites,
		d.Temperature,
		d.TemperatureTime,
		d.Config,
	}
}

func (d *sessionData) dest() []any {
	return []any{
		&d.ID,
		&d.StartTime,
		&d.EndTime,
		&d.Algorithm,
		&d.Band,
		&d.Average,
		&d.Max,
		&d.Direction,
		&d.Points,
		&d.ValidPoints,
		&d.Progress,
		&d.TelemetryTime,
		&d.Latitude,
		&d.Longitude,
		&d.Altitude,
		&d.GroundSpeed,
		&d.Satellites,
		&d.Temperature,
		&d.TemperatureTime,
		&d.Config,
	}
}

type pointData struct {
	Timestamp int64
	Speed     float64
	Valid     bool
	Direction sql.NullFloat64
}
