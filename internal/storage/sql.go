package storage

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id               TEXT PRIMARY KEY,
    start_time       INTEGER NOT NULL,
    end_time         INTEGER NOT NULL,
    algorithm        TEXT    NOT NULL,
    band             TEXT    NOT NULL,
    average          REAL,
    max              REAL,
    direction        REAL,
    points           INTEGER NOT NULL,
    valid_points     INTEGER NOT NULL,
    progress         REAL    NOT NULL,
    telemetry_time   INTEGER,
    latitude         REAL,
    longitude        REAL,
    altitude         REAL,
    ground_speed     REAL,
    satellites       INTEGER,
    temperature      REAL,
    temperature_time INTEGER,
    config           TEXT
);

CREATE TABLE IF NOT EXISTS points (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT    NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
    timestamp  INTEGER NOT NULL,
    speed      REAL    NOT NULL,
    valid      INTEGER NOT NULL,
    direction  REAL
);`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_points_session_timestamp ON points (session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions (start_time);`

	insertSessionSQL = `
INSERT INTO sessions (id,
                      start_time,
                      end_time,
                      algorithm,
                      band,
                      average,
                      max,
                      direction,
                      points,
                      valid_points,
                      progress,
                      telemetry_time,
                      latitude,
                      longitude,
                      altitude,
                      ground_speed,
                      satellites,
                      temperature,
                      temperature_time,
                      config)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sessionColumns = `
    id,
    start_time,
    end_time,
    algorithm,
    band,
    average,
    max,
    direction,
    points,
    valid_points,
    progress,
    telemetry_time,
    latitude,
    longitude,
    altitude,
    ground_speed,
    satellites,
    temperature,
    temperature_time,
    config`

	selectSessionSQL = `
SELECT ` + sessionColumns + `
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT ` + sessionColumns + `
FROM sessions
ORDER BY start_time`

	insertPointSQL = `
INSERT INTO points (session_id,
                    timestamp,
                    speed,
                    valid,
                    direction)
VALUES `

	insertPointPlaceholder = "(?, ?, ?, ?, ?)"

	selectPointsSQL = `
SELECT
    timestamp,
    speed,
    valid,
    direction
FROM points
WHERE
    session_id = ?
    AND timestamp BETWEEN ? AND ?
    AND valid >= ?
ORDER BY timestamp, id`
)
