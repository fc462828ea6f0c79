// Package analysis runs the full detection-to-intelligence pipeline: raw
// detections are parsed, grouped by signature, multilaterated, fed into the
// track store, and summarized as an electronic order of battle.
package analysis

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/eob"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/geolocate"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/monitoring"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/signal"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/store"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/timeutil"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/tracker"
)

// Coverage is the time window the accepted detections span.
type Coverage struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// Result is one analysis run over a detection batch.
type Result struct {
	AnalysisID string    `json:"analysisId"`
	Timestamp  time.Time `json:"timestamp"`

	// Detections holds every parsed detection from the batch, including
	// those whose groups were too small to geolocate.
	Detections []signal.Detection `json:"detections"`

	// UpdatedTrackIDs lists the track touched by each accepted geolocation
	// estimate, in processing order.
	UpdatedTrackIDs []string `json:"updatedTrackIds"`

	// Emitters is the full track picture after this batch, not just the
	// tracks the batch touched.
	Emitters []tracker.Track `json:"emitters"`

	ElectronicOrderOfBattle eob.OrderOfBattle `json:"electronicOrderOfBattle"`
	Coverage                Coverage          `json:"coverage"`
}

// Analyzer wires the pipeline stages together around a shared track store.
// The persistence store is optional; a nil db keeps runs in memory only.
type Analyzer struct {
	tracks *tracker.Store
	db     *store.Store
	clock  timeutil.Clock
}

// NewAnalyzer builds an Analyzer over an existing track store. A nil clock
// uses real time.
func NewAnalyzer(tracks *tracker.Store, db *store.Store, clock timeutil.Clock) *Analyzer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Analyzer{tracks: tracks, db: db, clock: clock}
}

// Run executes the pipeline over one raw detection batch.
//
// Malformed detections and groups that fail geolocation are skipped with a
// log line; the run itself only fails on persistence errors, and even those
// are logged rather than returned so a flaky disk never loses the in-memory
// result.
func (a *Analyzer) Run(raw []signal.RawDetection) *Result {
	dets := signal.ParseDetections(raw)
	groups := signal.GroupBySignature(dets)

	estimates := make([]geolocate.Estimate, 0, len(groups))
	for _, g := range groups {
		if !g.Geolocatable() {
			monitoring.Logf("analysis: group %s has %d detections, below geolocation minimum",
				g.Signature, len(g.Detections))
			continue
		}
		est, err := geolocate.Locate(g.Detections)
		if err != nil {
			monitoring.Logf("analysis: geolocation failed for group %s: %v", g.Signature, err)
			continue
		}
		estimates = append(estimates, est)
	}

	res := &Result{
		AnalysisID:      "an_" + uuid.NewString(),
		Timestamp:       a.clock.Now(),
		Detections:      dets,
		UpdatedTrackIDs: a.tracks.ProcessEstimates(estimates),
		Coverage:        coverageOf(dets),
	}
	res.Emitters = a.tracks.Snapshot()
	res.ElectronicOrderOfBattle = eob.Build(res.Emitters)

	a.persist(res)
	return res
}

func coverageOf(dets []signal.Detection) Coverage {
	var c Coverage
	for _, d := range dets {
		if c.StartTime.IsZero() || d.Timestamp.Before(c.StartTime) {
			c.StartTime = d.Timestamp
		}
		if d.Timestamp.After(c.EndTime) {
			c.EndTime = d.Timestamp
		}
	}
	return c
}

func (a *Analyzer) persist(res *Result) {
	if a.db == nil {
		return
	}

	resultJSON, err := json.Marshal(res)
	if err != nil {
		monitoring.Logf("analysis: marshaling run %s: %v", res.AnalysisID, err)
		resultJSON = nil
	}
	run := &store.AnalysisRun{
		AnalysisID:         res.AnalysisID,
		CreatedUnixNanos:   res.Timestamp.UnixNano(),
		DetectionCount:     len(res.Detections),
		EmitterCount:       len(res.Emitters),
		CoverageStartNanos: res.Coverage.StartTime.UnixNano(),
		CoverageEndNanos:   res.Coverage.EndTime.UnixNano(),
		ResultJSON:         resultJSON,
	}
	if err := a.db.SaveAnalysisRun(run); err != nil {
		monitoring.Logf("analysis: persisting run %s: %v", res.AnalysisID, err)
	}

	if err := a.tracks.Flush(a.db); err != nil {
		monitoring.Logf("analysis: persisting tracks for run %s: %v", res.AnalysisID, err)
	}
}
