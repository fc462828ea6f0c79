// Package tracker owns the long-lived mutable track state: it associates
// incoming location estimates with existing tracks or spawns new ones,
// maintains running characteristics under a single-writer discipline, and
// prunes stale tracks on a maintenance interval.
package tracker

import (
	"time"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/classify"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/geolocate"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/signal"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/velocity"
)

// PlatformAssessment is the track-level judgement of what kind of platform
// the emitter sits on.
type PlatformAssessment struct {
	Type       string                 `json:"type"`
	Model      string                 `json:"model,omitempty"`
	Confidence signal.ConfidenceLevel `json:"confidence"`
	Mobility   velocity.Mobility      `json:"mobility,omitempty"`
}

// Track is the mutable aggregate state of one inferred emitter. A Track is
// exclusively owned by the Store; external components receive copies.
//
// Invariant: LastDetection equals the timestamp of the newest location, and
// Confidence never silently downgrades; only pruning removes a track.
type Track struct {
	ID             string    `json:"emitterId"`
	FirstDetection time.Time `json:"firstDetection"`
	LastDetection  time.Time `json:"lastDetection"`

	// Locations is ordered by timestamp, oldest first.
	Locations []geolocate.Estimate `json:"locations"`

	Characteristics signal.Characteristics `json:"characteristics"`
	Confidence      signal.ConfidenceLevel `json:"confidenceLevel"`
	Classification  classify.Result        `json:"classification"`
	Platform        PlatformAssessment     `json:"platformAssessment"`
	Velocity        *velocity.Estimate     `json:"velocity,omitempty"`
}

// LatestLocation returns the newest location estimate, or false when the
// track has none.
func (t *Track) LatestLocation() (geolocate.Estimate, bool) {
	if len(t.Locations) == 0 {
		return geolocate.Estimate{}, false
	}
	return t.Locations[len(t.Locations)-1], true
}

// recentFixes converts the newest locations into velocity estimator input.
func (t *Track) recentFixes() []velocity.Fix {
	start := 0
	if len(t.Locations) > velocity.MaxFixes {
		start = len(t.Locations) - velocity.MaxFixes
	}
	fixes := make([]velocity.Fix, 0, len(t.Locations)-start)
	for _, loc := range t.Locations[start:] {
		fixes = append(fixes, velocity.Fix{
			Time:      loc.Timestamp,
			Location:  loc.Location,
			AccuracyM: loc.AccuracyM,
		})
	}
	return fixes
}

// clone returns a deep-enough copy for read-only use. Location estimates and
// characteristics are treated as immutable values, so slice headers are
// re-allocated but elements are shared.
func (t *Track) clone() Track {
	out := *t
	out.Locations = append([]geolocate.Estimate(nil), t.Locations...)
	if t.Velocity != nil {
		v := *t.Velocity
		out.Velocity = &v
	}
	return out
}
