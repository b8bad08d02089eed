package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rivermonitor/internal/apperror"
	"rivermonitor/internal/codec"
	"rivermonitor/internal/model"
	"rivermonitor/internal/query"
)

// TimeLayout is how upload_time is stored, always in UTC.
const TimeLayout = "2006-01-02 15:04:05"

// instantColumn evaluates upload_time as Unix seconds.
const instantColumn = "CAST(strftime('%s', upload_time) AS INTEGER)"

var columns = query.Columns{
	Instant:   instantColumn,
	Recency:   "upload_time",
	Insertion: "id",
}

const selectObservation = `SELECT id, ` + instantColumn + `, river_name, est_level, model_points, country_name, basin_name FROM water_level`

// ObservationRepository implements repository.ObservationRepository for SQLite.
type ObservationRepository struct {
	db *DB
}

// NewObservationRepository creates a new SQLite observation repository.
func NewObservationRepository(db *DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// Insert adds a new observation inside a transaction.
func (r *ObservationRepository) Insert(ctx context.Context, obs *model.Observation, beforeCommit func() error) error {
	const op = "sqlite.Insert"

	r.db.Lock()
	defer r.db.Unlock()

	conn, err := r.db.Checkout(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return persistence(op, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO water_level (upload_time, river_name, est_level, model_points, country_name, basin_name)
		VALUES (?, ?, ?, ?, ?, ?)
	`, FormatTime(obs.Timestamp), obs.RiverName, obs.EstLevel, codec.EncodePoints(obs.Points), obs.CountryName, obs.BasinName)
	if err != nil {
		return persistence(op, "failed to insert observation", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return persistence(op, "failed to read observation id", err)
	}

	if beforeCommit != nil {
		if err := beforeCommit(); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return persistence(op, "failed to commit observation", err)
	}
	obs.ID = id
	return nil
}

// Find returns the observations selected by w. Range results come back in
// insertion order; an open window yields at most the latest record.
func (r *ObservationRepository) Find(ctx context.Context, w query.Window) ([]model.Observation, error) {
	const op = "sqlite.Find"

	q := query.Build(w, columns)

	conn, err := r.db.Checkout(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, q.SQL(selectObservation), q.Args...)
	if err != nil {
		return nil, persistence(op, "failed to query observations", err)
	}
	defer rows.Close()

	observations := []model.Observation{}
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, *obs)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence(op, "failed to iterate observations", err)
	}

	return observations, nil
}

// GetByTimestamp retrieves the observation stored at ts.
func (r *ObservationRepository) GetByTimestamp(ctx context.Context, ts int64) (*model.Observation, error) {
	conn, err := r.db.Checkout(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	obs, err := scanObservation(conn.QueryRowContext(ctx, selectObservation+` WHERE upload_time = ?`, FormatTime(time.Unix(ts, 0))))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return obs, nil
}

// LatestTimestamp returns the newest upload time in Unix seconds.
func (r *ObservationRepository) LatestTimestamp(ctx context.Context) (int64, error) {
	const op = "sqlite.LatestTimestamp"

	conn, err := r.db.Checkout(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	var ts int64
	err = conn.QueryRowContext(ctx, `SELECT `+instantColumn+` FROM water_level ORDER BY upload_time DESC LIMIT 1`).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, persistence(op, "failed to get latest timestamp", err)
	}
	return ts, nil
}

// Timestamps lists every stored upload time, oldest first.
func (r *ObservationRepository) Timestamps(ctx context.Context) ([]int64, error) {
	const op = "sqlite.Timestamps"

	conn, err := r.db.Checkout(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `SELECT `+instantColumn+` FROM water_level ORDER BY upload_time`)
	if err != nil {
		return nil, persistence(op, "failed to query timestamps", err)
	}
	defer rows.Close()

	var timestamps []int64
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, persistence(op, "failed to scan timestamp", err)
		}
		timestamps = append(timestamps, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence(op, "failed to iterate timestamps", err)
	}
	return timestamps, nil
}

// FormatTime renders t the way upload_time is stored.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

type scanner interface {
	Scan(dest ...any) error
}

// scanObservation passes sql.ErrNoRows through unchanged.
func scanObservation(s scanner) (*model.Observation, error) {
	const op = "sqlite.scanObservation"

	var (
		obs  model.Observation
		ts   int64
		blob []byte
	)
	err := s.Scan(&obs.ID, &ts, &obs.RiverName, &obs.EstLevel, &blob, &obs.CountryName, &obs.BasinName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, persistence(op, "failed to scan observation", err)
	}

	points, err := codec.DecodePoints(blob)
	if err != nil {
		return nil, apperror.New(apperror.KindCorruptEncoding, op, fmt.Errorf("observation %d: %w", obs.ID, err))
	}
	obs.Points = points
	obs.Timestamp = time.Unix(ts, 0).UTC()
	return &obs, nil
}

func persistence(op, msg string, err error) error {
	return apperror.New(apperror.KindPersistence, op, fmt.Errorf("%s: %w", msg, err))
}
