package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sigint.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAnalysisRunRoundTrip(t *testing.T) {
	s := openTestStore(t)

	run := &AnalysisRun{
		DetectionCount:     12,
		EmitterCount:       3,
		CoverageStartNanos: 1000,
		CoverageEndNanos:   9000,
		ResultJSON:         json.RawMessage(`{"emitters":[]}`),
	}
	if err := s.SaveAnalysisRun(run); err != nil {
		t.Fatalf("SaveAnalysisRun: %v", err)
	}
	if !strings.HasPrefix(run.AnalysisID, "an_") {
		t.Errorf("expected generated analysis ID with an_ prefix, got %q", run.AnalysisID)
	}
	if run.CreatedUnixNanos == 0 {
		t.Error("expected created timestamp to be set")
	}

	got, err := s.GetAnalysisRun(run.AnalysisID)
	if err != nil {
		t.Fatalf("GetAnalysisRun: %v", err)
	}
	if got.DetectionCount != 12 || got.EmitterCount != 3 {
		t.Errorf("counts = %d/%d, want 12/3", got.DetectionCount, got.EmitterCount)
	}
	if string(got.ResultJSON) != `{"emitters":[]}` {
		t.Errorf("result JSON = %s", got.ResultJSON)
	}
}

func TestGetAnalysisRunMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetAnalysisRun("an_nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestListAnalysisRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)

	for i := 1; i <= 3; i++ {
		run := &AnalysisRun{
			AnalysisID:       "an_" + string(rune('a'+i-1)),
			CreatedUnixNanos: int64(i * 1000),
		}
		if err := s.SaveAnalysisRun(run); err != nil {
			t.Fatalf("SaveAnalysisRun: %v", err)
		}
	}

	runs, err := s.ListAnalysisRuns(2)
	if err != nil {
		t.Fatalf("ListAnalysisRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].AnalysisID != "an_c" || runs[1].AnalysisID != "an_b" {
		t.Errorf("unexpected order: %s, %s", runs[0].AnalysisID, runs[1].AnalysisID)
	}
}

func TestUpsertTracksReplaces(t *testing.T) {
	s := openTestStore(t)

	rec := TrackRecord{
		EmitterID:           "emit_1",
		FirstDetectionNanos: 1000,
		LastDetectionNanos:  2000,
		Classification:      "early-warning-radar",
		Confidence:          "medium",
		TrackJSON:           json.RawMessage(`{"locations":1}`),
	}
	if err := s.UpsertTracks([]TrackRecord{rec}); err != nil {
		t.Fatalf("UpsertTracks: %v", err)
	}

	rec.LastDetectionNanos = 5000
	rec.Confidence = "high"
	if err := s.UpsertTracks([]TrackRecord{rec}); err != nil {
		t.Fatalf("UpsertTracks (replace): %v", err)
	}

	tracks, err := s.ListTracks()
	if err != nil {
		t.Fatalf("ListTracks: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track after upsert, got %d", len(tracks))
	}
	if tracks[0].LastDetectionNanos != 5000 || tracks[0].Confidence != "high" {
		t.Errorf("track not replaced: %+v", tracks[0])
	}
}

func TestListTracksOrder(t *testing.T) {
	s := openTestStore(t)

	recs := []TrackRecord{
		{EmitterID: "emit_old", LastDetectionNanos: 1000},
		{EmitterID: "emit_new", LastDetectionNanos: 9000},
	}
	if err := s.UpsertTracks(recs); err != nil {
		t.Fatalf("UpsertTracks: %v", err)
	}

	tracks, err := s.ListTracks()
	if err != nil {
		t.Fatalf("ListTracks: %v", err)
	}
	if len(tracks) != 2 || tracks[0].EmitterID != "emit_new" {
		t.Errorf("expected emit_new first, got %+v", tracks)
	}
}

func TestDeleteTracksOlderThan(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UnixNano()
	recs := []TrackRecord{
		{EmitterID: "emit_stale", LastDetectionNanos: now - int64(25*time.Hour)},
		{EmitterID: "emit_fresh", LastDetectionNanos: now - int64(time.Hour)},
	}
	if err := s.UpsertTracks(recs); err != nil {
		t.Fatalf("UpsertTracks: %v", err)
	}

	deleted, err := s.DeleteTracksOlderThan(now - int64(24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteTracksOlderThan: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	tracks, err := s.ListTracks()
	if err != nil {
		t.Fatalf("ListTracks: %v", err)
	}
	if len(tracks) != 1 || tracks[0].EmitterID != "emit_fresh" {
		t.Errorf("expected only emit_fresh to survive, got %+v", tracks)
	}
}

func TestFusionRunRoundTrip(t *testing.T) {
	s := openTestStore(t)

	run := &FusionRun{
		HumintCount:      4,
		SigintCount:      2,
		CorrelationCount: 3,
		PredictionCount:  1,
		ResultJSON:       json.RawMessage(`{"fusedEntities":[]}`),
	}
	if err := s.SaveFusionRun(run); err != nil {
		t.Fatalf("SaveFusionRun: %v", err)
	}
	if !strings.HasPrefix(run.FusionID, "fr_") {
		t.Errorf("expected generated fusion ID with fr_ prefix, got %q", run.FusionID)
	}

	runs, err := s.ListFusionRuns(10)
	if err != nil {
		t.Fatalf("ListFusionRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 fusion run, got %d", len(runs))
	}
	got := runs[0]
	if got.HumintCount != 4 || got.SigintCount != 2 || got.CorrelationCount != 3 || got.PredictionCount != 1 {
		t.Errorf("counts = %+v", got)
	}
	if string(got.ResultJSON) != `{"fusedEntities":[]}` {
		t.Errorf("result JSON = %s", got.ResultJSON)
	}
}
