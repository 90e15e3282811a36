// Package alertstore persists drift alerts produced by the temporal
// fusion engine, so operators can audit which sources degraded and when.
package alertstore

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/rmj95fgb7x-art/lex-kernel-oracle/errors"
	"github.com/rmj95fgb7x-art/lex-kernel-oracle/kernel"
)

// Alert is one persisted drift alert, tagged with the stream it came from.
type Alert struct {
	ID             string    `json:"id"`
	StreamID       string    `json:"stream_id"`
	Timestep       int       `json:"timestep"`
	MinWeight      float64   `json:"min_weight"`
	OutlierIndices []int     `json:"outlier_indices"`
	Weights        []float64 `json:"weights"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store handles persistence of drift alerts
type Store struct {
	db *sql.DB
}

// NewStore creates a new drift alert store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record persists one drift alert for a stream and returns the stored row.
func (s *Store) Record(streamID string, alert kernel.DriftAlert) (*Alert, error) {
	indicesJSON, err := json.Marshal(alert.OutlierIndices)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal outlier indices")
	}
	weightsJSON, err := json.Marshal(alert.Weights)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal weights")
	}

	row := &Alert{
		ID:             uuid.NewString(),
		StreamID:       streamID,
		Timestep:       alert.Timestep,
		MinWeight:      alert.MinWeight,
		OutlierIndices: alert.OutlierIndices,
		Weights:        alert.Weights,
		CreatedAt:      time.Now().UTC(),
	}

	query := `
		INSERT INTO drift_alerts (
			id, stream_id, timestep, min_weight,
			outlier_indices, weights, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query,
		row.ID,
		row.StreamID,
		row.Timestep,
		row.MinWeight,
		string(indicesJSON),
		string(weightsJSON),
		row.CreatedAt,
	)
	if err != nil {
		err = errors.Wrap(err, "failed to record drift alert")
		err = errors.WithDetailf(err, "Stream ID: %s", streamID)
		err = errors.WithDetailf(err, "Timestep: %d", alert.Timestep)
		return nil, err
	}

	return row, nil
}

// Get returns one alert by ID.
func (s *Store) Get(id string) (*Alert, error) {
	query := `
		SELECT id, stream_id, timestep, min_weight,
		       outlier_indices, weights, created_at
		FROM drift_alerts
		WHERE id = ?
	`
	alert, err := scanAlert(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "drift alert %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get drift alert")
	}
	return alert, nil
}

// ListByStream returns a stream's alerts in timestep order, newest last,
// capped at limit (0 = no cap).
func (s *Store) ListByStream(streamID string, limit int) ([]*Alert, error) {
	query := `
		SELECT id, stream_id, timestep, min_weight,
		       outlier_indices, weights, created_at
		FROM drift_alerts
		WHERE stream_id = ?
		ORDER BY timestep ASC
	`
	args := []interface{}{streamID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list drift alerts")
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// ListRecent returns the most recently created alerts across all streams.
func (s *Store) ListRecent(limit int) ([]*Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, stream_id, timestep, min_weight,
		       outlier_indices, weights, created_at
		FROM drift_alerts
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list recent drift alerts")
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// Count returns the number of alerts stored for a stream.
func (s *Store) Count(streamID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM drift_alerts WHERE stream_id = ?", streamID,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count drift alerts")
	}
	return count, nil
}

// Prune deletes alerts created before the cutoff, returning how many rows
// were removed.
func (s *Store) Prune(before time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM drift_alerts WHERE created_at < ?", before)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prune drift alerts")
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count pruned drift alerts")
	}
	return removed, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row rowScanner) (*Alert, error) {
	var alert Alert
	var indicesJSON, weightsJSON string

	err := row.Scan(
		&alert.ID,
		&alert.StreamID,
		&alert.Timestep,
		&alert.MinWeight,
		&indicesJSON,
		&weightsJSON,
		&alert.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(indicesJSON), &alert.OutlierIndices); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal outlier indices")
	}
	if err := json.Unmarshal([]byte(weightsJSON), &alert.Weights); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal weights")
	}

	return &alert, nil
}

func collectAlerts(rows *sql.Rows) ([]*Alert, error) {
	var alerts []*Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan drift alert")
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate drift alerts")
	}
	return alerts, nil
}
