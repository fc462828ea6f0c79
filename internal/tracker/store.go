package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/classify"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/geo"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/geolocate"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/monitoring"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/signal"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/timeutil"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/velocity"
)

// Association constants.
const (
	// MatchThreshold is the minimum characteristics similarity for a
	// track to be an association candidate.
	MatchThreshold = 0.7

	// MaxAssociationGap is the largest time delta between a track's last
	// location and a new estimate that still allows association.
	MaxAssociationGap = 300 * time.Second

	// MaxEmitterSpeedMps (~100 km/h) bounds how far an emitter can
	// plausibly have moved between detections.
	MaxEmitterSpeedMps = 27.8

	// speedSlack loosens the plausibility gate to absorb geolocation noise.
	speedSlack = 1.5

	// highConfidenceLocationCount is the location count beyond which a
	// track's confidence escalates to high.
	highConfidenceLocationCount = 5

	// reclassifyEvery re-invokes the classifier on every Nth location.
	reclassifyEvery = 5
)

// Config holds the store's tuning parameters.
type Config struct {
	// MatchThreshold overrides the default association threshold.
	MatchThreshold float64

	// MaxAssociationGap overrides the default association time gate.
	MaxAssociationGap time.Duration

	// PruneHorizon is the age beyond which a track's last detection marks
	// it stale; pruning is a hard deletion.
	PruneHorizon time.Duration

	// PruneInterval is the cadence of the pruning maintenance pass.
	PruneInterval time.Duration

	// VelocityRefreshInterval is the cadence of velocity re-estimation.
	VelocityRefreshInterval time.Duration
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		PruneHorizon:            24 * time.Hour,
		PruneInterval:           60 * time.Second,
		VelocityRefreshInterval: 15 * time.Second,
	}
}

// Store owns the track set. All mutation happens under a single writer lock;
// readers receive copies. Construct one store per process or per test.
type Store struct {
	mu     sync.RWMutex
	cfg    Config
	clock  timeutil.Clock
	tracks map[string]*Track
	order  []string // insertion order, for deterministic iteration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewStore creates an empty track store. A nil clock uses the real clock.
func NewStore(cfg Config, clock timeutil.Clock) *Store {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.MatchThreshold <= 0 || cfg.MatchThreshold > 1 {
		cfg.MatchThreshold = MatchThreshold
	}
	if cfg.MaxAssociationGap <= 0 {
		cfg.MaxAssociationGap = MaxAssociationGap
	}
	if cfg.PruneHorizon <= 0 {
		cfg.PruneHorizon = 24 * time.Hour
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = 60 * time.Second
	}
	if cfg.VelocityRefreshInterval <= 0 {
		cfg.VelocityRefreshInterval = 15 * time.Second
	}
	return &Store{
		cfg:    cfg,
		clock:  clock,
		tracks: make(map[string]*Track),
	}
}

// ProcessEstimates runs ProcessEstimate for a batch. A failure on one
// estimate is recorded and skipped so a bad record cannot abort the batch.
// Returns the IDs of the tracks touched or created, one per surviving input.
func (s *Store) ProcessEstimates(ests []geolocate.Estimate) []string {
	ids := make([]string, 0, len(ests))
	for i := range ests {
		id, err := s.processOne(&ests[i])
		if err != nil {
			monitoring.Logf("tracker: skipping estimate %d: %v", i, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// ProcessEstimate associates a location estimate with an existing track or
// spawns a new one, returning the track ID and whether it was created.
func (s *Store) ProcessEstimate(est geolocate.Estimate) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.associateLocked(&est); ok {
		return id, false
	}
	return s.spawnLocked(&est), true
}

func (s *Store) processOne(est *geolocate.Estimate) (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("track update panicked: %v", r)
		}
	}()
	if est.Timestamp.IsZero() {
		return "", fmt.Errorf("estimate has no timestamp")
	}
	id, _ = s.ProcessEstimate(*est)
	return id, nil
}

// associateLocked finds the best matching track for an estimate.
// A candidate needs a characteristics match at or above MatchThreshold, a
// non-negative time delta within MaxAssociationGap, and a spatially
// plausible displacement. Among candidates the highest match score wins;
// ties keep the earliest-created track.
func (s *Store) associateLocked(est *geolocate.Estimate) (string, bool) {
	bestID := ""
	bestScore := 0.0

	for _, id := range s.order {
		t := s.tracks[id]

		last, ok := t.LatestLocation()
		if !ok {
			continue
		}

		dt := est.Timestamp.Sub(last.Timestamp)
		if dt < 0 || dt > s.cfg.MaxAssociationGap {
			continue
		}

		score := MatchScore(t.Characteristics, est.Characteristics)
		if score < s.cfg.MatchThreshold {
			continue
		}

		maxPlausible := speedSlack*(dt.Seconds()*MaxEmitterSpeedMps) + est.AccuracyM + last.AccuracyM
		if geo.HaversineM(est.Location, last.Location) > maxPlausible {
			continue
		}

		if score > bestScore {
			bestScore = score
			bestID = id
		}
	}

	if bestID == "" {
		return "", false
	}
	s.updateLocked(s.tracks[bestID], est)
	return bestID, true
}

// updateLocked appends a location to a track and refreshes the running state.
func (s *Store) updateLocked(t *Track, est *geolocate.Estimate) {
	t.Locations = append(t.Locations, *est)
	t.LastDetection = est.Timestamp
	t.Characteristics = signal.Merge(t.Characteristics, est.Characteristics)

	// Confidence escalates with evidence and never silently downgrades.
	if next := confidenceForCount(len(t.Locations)); next.Outranks(t.Confidence) {
		t.Confidence = next
	}

	if len(t.Locations)%reclassifyEvery == 0 {
		if res := classify.Classify(t.Characteristics); res.Confidence.Outranks(t.Classification.Confidence) {
			t.Classification = res
			t.Platform.Type = res.PlatformType
			t.Platform.Confidence = res.Confidence
			if len(res.Models) > 0 {
				t.Platform.Model = res.Models[0]
			}
		}
	}
}

func (s *Store) spawnLocked(est *geolocate.Estimate) string {
	id := "emit_" + uuid.NewString()

	res := classify.Classify(est.Characteristics)
	t := &Track{
		ID:              id,
		FirstDetection:  est.Timestamp,
		LastDetection:   est.Timestamp,
		Locations:       []geolocate.Estimate{*est},
		Characteristics: est.Characteristics,
		Confidence:      signal.ConfidenceLow,
		Classification:  res,
		Platform: PlatformAssessment{
			Type:       res.PlatformType,
			Confidence: res.Confidence,
		},
	}
	if len(res.Models) > 0 {
		t.Platform.Model = res.Models[0]
	}

	s.tracks[id] = t
	s.order = append(s.order, id)
	return id
}

func confidenceForCount(n int) signal.ConfidenceLevel {
	switch {
	case n > highConfidenceLocationCount:
		return signal.ConfidenceHigh
	case n >= 3:
		return signal.ConfidenceMedium
	default:
		return signal.ConfidenceLow
	}
}

// Prune hard-deletes every track whose last detection is older than the
// prune horizon. Returns the number removed.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-s.cfg.PruneHorizon)
	removed := 0
	kept := s.order[:0]
	for _, id := range s.order {
		t := s.tracks[id]
		if t.LastDetection.Before(cutoff) {
			delete(s.tracks, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	if removed > 0 {
		monitoring.Logf("tracker: pruned %d stale tracks, %d remain", removed, len(s.order))
	}
	return removed
}

// RefreshVelocities re-estimates velocity and mobility for every track from
// its recent location history.
func (s *Store) RefreshVelocities() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		t := s.tracks[id]
		if len(t.Locations) < 2 {
			continue
		}
		est := velocity.EstimateFromFixes(t.recentFixes())
		t.Velocity = &est
		t.Platform.Mobility = est.Mobility
	}
}

// Get returns a copy of a track by ID.
func (s *Store) Get(id string) (Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tracks[id]
	if !ok {
		return Track{}, false
	}
	return t.clone(), true
}

// Snapshot returns copies of all tracks in insertion order.
func (s *Store) Snapshot() []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Track, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tracks[id].clone())
	}
	return out
}

// Len returns the number of live tracks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// Start launches the background maintenance loop: pruning on PruneInterval
// and velocity refresh on VelocityRefreshInterval. Call Close to stop.
func (s *Store) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.maintain(ctx)
}

func (s *Store) maintain(ctx context.Context) {
	defer close(s.done)

	prune := s.clock.NewTicker(s.cfg.PruneInterval)
	defer prune.Stop()
	vel := s.clock.NewTicker(s.cfg.VelocityRefreshInterval)
	defer vel.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-prune.C():
			s.Prune()
		case <-vel.C():
			s.RefreshVelocities()
		}
	}
}

// Close stops the maintenance loop if running.
func (s *Store) Close() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}
}
