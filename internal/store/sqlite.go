package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/i474232898/forecast-aggregation/internal/weather"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS forecasts (
	seq          INTEGER PRIMARY KEY,
	id           TEXT NOT NULL,
	source       TEXT NOT NULL,
	location     TEXT NOT NULL,
	fetched_at   TEXT NOT NULL,
	observations TEXT NOT NULL,
	days         TEXT NOT NULL
);`

// SQLiteStore persists forecasts with the pure Go modernc.org/sqlite driver.
type SQLiteStore struct {
	db         *sql.DB
	maxHistory int
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
// maxHistory <= 0 keeps every forecast.
func NewSQLiteStore(path string, maxHistory int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, maxHistory: maxHistory}, nil
}

// Save inserts f unless a forecast with the same or a newer Seq exists.
func (s *SQLiteStore) Save(f weather.Forecast) (err error) {
	location, err := json.Marshal(f.Location)
	if err != nil {
		return fmt.Errorf("encode location: %w", err)
	}
	observations, err := json.Marshal(f.Observations)
	if err != nil {
		return fmt.Errorf("encode observations: %w", err)
	}
	days, err := json.Marshal(f.Days)
	if err != nil {
		return fmt.Errorf("encode days: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var latest sql.NullInt64
	if err = tx.QueryRow(`SELECT MAX(seq) FROM forecasts`).Scan(&latest); err != nil {
		return err
	}
	if latest.Valid && f.Seq <= uint64(latest.Int64) {
		err = fmt.Errorf("%w: seq %d, latest %d", weather.ErrStaleForecast, f.Seq, latest.Int64)
		return err
	}

	_, err = tx.Exec(`INSERT INTO forecasts(seq, id, source, location, fetched_at, observations, days) VALUES(?,?,?,?,?,?,?)`,
		int64(f.Seq), f.ID, f.Source, string(location), f.FetchedAt.UTC().Format(time.RFC3339Nano), string(observations), string(days))
	if err != nil {
		return err
	}

	if s.maxHistory > 0 {
		_, err = tx.Exec(`DELETE FROM forecasts WHERE seq NOT IN (SELECT seq FROM forecasts ORDER BY seq DESC LIMIT ?)`, s.maxHistory)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Latest returns the forecast with the highest Seq.
func (s *SQLiteStore) Latest() (weather.Forecast, error) {
	out, err := s.History(1)
	if err != nil {
		return weather.Forecast{}, err
	}
	return out[0], nil
}

// History returns up to limit forecasts, newest first. limit <= 0 means all.
func (s *SQLiteStore) History(limit int) ([]weather.Forecast, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT seq, id, source, location, fetched_at, observations, days FROM forecasts ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []weather.Forecast
	for rows.Next() {
		f, err := scanForecast(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanForecast(rows *sql.Rows) (weather.Forecast, error) {
	var f weather.Forecast
	var seq int64
	var location, fetchedAt, observations, days string
	if err := rows.Scan(&seq, &f.ID, &f.Source, &location, &fetchedAt, &observations, &days); err != nil {
		return f, err
	}
	f.Seq = uint64(seq)

	ts, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return f, fmt.Errorf("forecast %d: fetched_at: %w", seq, err)
	}
	f.FetchedAt = ts

	if err := errors.Join(
		json.Unmarshal([]byte(location), &f.Location),
		json.Unmarshal([]byte(observations), &f.Observations),
		json.Unmarshal([]byte(days), &f.Days),
	); err != nil {
		return f, fmt.Errorf("forecast %d: decode: %w", seq, err)
	}
	return f, nil
}
