// Package store persists analysis runs, track snapshots and fusion runs to
// sqlite. Full structures are stored as JSON blobs alongside a few queryable
// columns; the database is a record of what the analyzer produced, not the
// source of truth for live tracking state.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Store wraps the sqlite handle.
type Store struct {
	*sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS analysis_runs (
			analysis_id          TEXT PRIMARY KEY,
			created_unix_nanos   BIGINT,
			detection_count      INTEGER,
			emitter_count        INTEGER,
			coverage_start_nanos BIGINT,
			coverage_end_nanos   BIGINT,
			result_json          TEXT
		);
		CREATE TABLE IF NOT EXISTS tracks (
			emitter_id            TEXT PRIMARY KEY,
			first_detection_nanos BIGINT,
			last_detection_nanos  BIGINT,
			classification        TEXT,
			confidence            TEXT,
			track_json            TEXT
		);
		CREATE TABLE IF NOT EXISTS fusion_runs (
			fusion_id          TEXT PRIMARY KEY,
			created_unix_nanos BIGINT,
			humint_count       INTEGER,
			sigint_count       INTEGER,
			correlation_count  INTEGER,
			prediction_count   INTEGER,
			result_json        TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_tracks_last_detection
			ON tracks(last_detection_nanos);
		CREATE INDEX IF NOT EXISTS idx_analysis_runs_created
			ON analysis_runs(created_unix_nanos);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db}, nil
}

// retryOnBusy retries a write a few times when sqlite reports the database
// locked by a concurrent writer.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		err = fn()
		if err == nil || !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	return err
}

// AnalysisRun is one persisted analysis result.
type AnalysisRun struct {
	AnalysisID         string          `json:"analysisId"`
	CreatedUnixNanos   int64           `json:"createdUnixNanos"`
	DetectionCount     int             `json:"detectionCount"`
	EmitterCount       int             `json:"emitterCount"`
	CoverageStartNanos int64           `json:"coverageStartNanos"`
	CoverageEndNanos   int64           `json:"coverageEndNanos"`
	ResultJSON         json.RawMessage `json:"resultJson,omitempty"`
}

// SaveAnalysisRun persists a run. An empty AnalysisID gets a generated one.
func (s *Store) SaveAnalysisRun(run *AnalysisRun) error {
	if run.AnalysisID == "" {
		run.AnalysisID = "an_" + uuid.NewString()
	}
	if run.CreatedUnixNanos == 0 {
		run.CreatedUnixNanos = time.Now().UnixNano()
	}

	var resultStr interface{}
	if len(run.ResultJSON) > 0 {
		resultStr = string(run.ResultJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.Exec(`
			INSERT OR REPLACE INTO analysis_runs (
				analysis_id, created_unix_nanos, detection_count, emitter_count,
				coverage_start_nanos, coverage_end_nanos, result_json
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.AnalysisID, run.CreatedUnixNanos, run.DetectionCount, run.EmitterCount,
			run.CoverageStartNanos, run.CoverageEndNanos, resultStr,
		)
		return err
	})
}

// GetAnalysisRun returns a run by ID, or sql.ErrNoRows.
func (s *Store) GetAnalysisRun(analysisID string) (*AnalysisRun, error) {
	row := s.QueryRow(`
		SELECT analysis_id, created_unix_nanos, detection_count, emitter_count,
		       coverage_start_nanos, coverage_end_nanos, result_json
		FROM analysis_runs
		WHERE analysis_id = ?`, analysisID)
	return scanAnalysisRun(row)
}

// ListAnalysisRuns returns the most recent runs, newest first.
func (s *Store) ListAnalysisRuns(limit int) ([]*AnalysisRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Query(`
		SELECT analysis_id, created_unix_nanos, detection_count, emitter_count,
		       coverage_start_nanos, coverage_end_nanos, result_json
		FROM analysis_runs
		ORDER BY created_unix_nanos DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []*AnalysisRun
	for rows.Next() {
		r, err := scanAnalysisRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAnalysisRun(row rowScanner) (*AnalysisRun, error) {
	var r AnalysisRun
	var resultStr sql.NullString
	err := row.Scan(
		&r.AnalysisID, &r.CreatedUnixNanos, &r.DetectionCount, &r.EmitterCount,
		&r.CoverageStartNanos, &r.CoverageEndNanos, &resultStr,
	)
	if err != nil {
		return nil, err
	}
	if resultStr.Valid {
		r.ResultJSON = json.RawMessage(resultStr.String)
	}
	return &r, nil
}

// TrackRecord is one persisted track snapshot.
type TrackRecord struct {
	EmitterID           string          `json:"emitterId"`
	FirstDetectionNanos int64           `json:"firstDetectionNanos"`
	LastDetectionNanos  int64           `json:"lastDetectionNanos"`
	Classification      string          `json:"classification"`
	Confidence          string          `json:"confidence"`
	TrackJSON           json.RawMessage `json:"trackJson,omitempty"`
}

// UpsertTracks writes track snapshots, replacing any existing record for
// the same emitter.
func (s *Store) UpsertTracks(records []TrackRecord) error {
	if len(records) == 0 {
		return nil
	}
	return retryOnBusy(func() error {
		tx, err := s.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO tracks (
				emitter_id, first_detection_nanos, last_detection_nanos,
				classification, confidence, track_json
			) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i := range records {
			r := &records[i]
			var trackStr interface{}
			if len(r.TrackJSON) > 0 {
				trackStr = string(r.TrackJSON)
			}
			if _, err := stmt.Exec(
				r.EmitterID, r.FirstDetectionNanos, r.LastDetectionNanos,
				r.Classification, r.Confidence, trackStr,
			); err != nil {
				return fmt.Errorf("upsert track %s: %w", r.EmitterID, err)
			}
		}
		return tx.Commit()
	})
}

// ListTracks returns all persisted tracks, most recently active first.
func (s *Store) ListTracks() ([]*TrackRecord, error) {
	rows, err := s.Query(`
		SELECT emitter_id, first_detection_nanos, last_detection_nanos,
		       classification, confidence, track_json
		FROM tracks
		ORDER BY last_detection_nanos DESC`)
	if err != nil {
		return nil, fmt.Errorf("query tracks: %w", err)
	}
	defer rows.Close()

	var records []*TrackRecord
	for rows.Next() {
		var r TrackRecord
		var trackStr sql.NullString
		if err := rows.Scan(
			&r.EmitterID, &r.FirstDetectionNanos, &r.LastDetectionNanos,
			&r.Classification, &r.Confidence, &trackStr,
		); err != nil {
			return nil, err
		}
		if trackStr.Valid {
			r.TrackJSON = json.RawMessage(trackStr.String)
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// DeleteTracksOlderThan removes tracks last seen before the cutoff,
// mirroring the in-memory prune.
func (s *Store) DeleteTracksOlderThan(cutoffNanos int64) (int64, error) {
	var affected int64
	err := retryOnBusy(func() error {
		res, err := s.Exec(`DELETE FROM tracks WHERE last_detection_nanos < ?`, cutoffNanos)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

// FusionRun is one persisted fusion result.
type FusionRun struct {
	FusionID         string          `json:"fusionId"`
	CreatedUnixNanos int64           `json:"createdUnixNanos"`
	HumintCount      int             `json:"humintCount"`
	SigintCount      int             `json:"sigintCount"`
	CorrelationCount int             `json:"correlationCount"`
	PredictionCount  int             `json:"predictionCount"`
	ResultJSON       json.RawMessage `json:"resultJson,omitempty"`
}

// SaveFusionRun persists a fusion run. An empty FusionID gets a generated one.
func (s *Store) SaveFusionRun(run *FusionRun) error {
	if run.FusionID == "" {
		run.FusionID = "fr_" + uuid.NewString()
	}
	if run.CreatedUnixNanos == 0 {
		run.CreatedUnixNanos = time.Now().UnixNano()
	}

	var resultStr interface{}
	if len(run.ResultJSON) > 0 {
		resultStr = string(run.ResultJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.Exec(`
			INSERT OR REPLACE INTO fusion_runs (
				fusion_id, created_unix_nanos, humint_count, sigint_count,
				correlation_count, prediction_count, result_json
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.FusionID, run.CreatedUnixNanos, run.HumintCount, run.SigintCount,
			run.CorrelationCount, run.PredictionCount, resultStr,
		)
		return err
	})
}

// ListFusionRuns returns the most recent fusion runs, newest first.
func (s *Store) ListFusionRuns(limit int) ([]*FusionRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Query(`
		SELECT fusion_id, created_unix_nanos, humint_count, sigint_count,
		       correlation_count, prediction_count, result_json
		FROM fusion_runs
		ORDER BY created_unix_nanos DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query fusion runs: %w", err)
	}
	defer rows.Close()

	var runs []*FusionRun
	for rows.Next() {
		var r FusionRun
		var resultStr sql.NullString
		if err := rows.Scan(
			&r.FusionID, &r.CreatedUnixNanos, &r.HumintCount, &r.SigintCount,
			&r.CorrelationCount, &r.PredictionCount, &resultStr,
		); err != nil {
			return nil, err
		}
		if resultStr.Valid {
			r.ResultJSON = json.RawMessage(resultStr.String)
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}
