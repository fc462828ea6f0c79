package tracker

import (
	"fmt"
	"time"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/classify"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/geo"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/geolocate"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/monitoring"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/signal"
)

// ImportedLocation is one historical fix in a pre-built emitter record.
type ImportedLocation struct {
	Timestamp       time.Time              `json:"timestamp"`
	Location        geo.LatLng             `json:"location"`
	AccuracyM       float64                `json:"accuracy"`
	ConfidenceLevel signal.ConfidenceLevel `json:"confidenceLevel"`
	SignalIDs       []string               `json:"signalIds"`
}

// ImportedEmitter is a pre-built emitter supplied by an upstream system,
// loaded into the store directly without re-running geolocation.
type ImportedEmitter struct {
	EmitterID          string                 `json:"emitterId"`
	FirstDetection     time.Time              `json:"firstDetection"`
	LastDetection      time.Time              `json:"lastDetection"`
	Locations          []ImportedLocation     `json:"locations"`
	Characteristics    signal.Characteristics `json:"characteristics"`
	Classification     *classify.Result       `json:"classification,omitempty"`
	PlatformAssessment *PlatformAssessment    `json:"platformAssessment,omitempty"`
}

func (e *ImportedEmitter) validate() error {
	if e.EmitterID == "" {
		return fmt.Errorf("missing emitterId")
	}
	if len(e.Locations) == 0 {
		return fmt.Errorf("emitter %s has no locations", e.EmitterID)
	}
	for i := range e.Locations {
		if e.Locations[i].Timestamp.IsZero() {
			return fmt.Errorf("emitter %s location %d has no timestamp", e.EmitterID, i)
		}
	}
	return nil
}

// ImportEmitters loads pre-built emitters into the store. Malformed records
// are logged and skipped so one bad emitter cannot abort the import.
// Returns the IDs of the tracks created or replaced.
func (s *Store) ImportEmitters(emitters []ImportedEmitter) []string {
	ids := make([]string, 0, len(emitters))
	for i := range emitters {
		e := &emitters[i]
		if err := e.validate(); err != nil {
			monitoring.Logf("tracker: skipping imported emitter %d: %v", i, err)
			continue
		}
		ids = append(ids, s.importOne(e))
	}
	return ids
}

func (s *Store) importOne(e *ImportedEmitter) string {
	locs := make([]geolocate.Estimate, len(e.Locations))
	for i, l := range e.Locations {
		locs[i] = geolocate.Estimate{
			Timestamp:       l.Timestamp,
			Location:        l.Location,
			AccuracyM:       l.AccuracyM,
			Confidence:      l.ConfidenceLevel,
			SignalIDs:       append([]string(nil), l.SignalIDs...),
			Characteristics: e.Characteristics,
		}
	}

	first := e.FirstDetection
	if first.IsZero() {
		first = locs[0].Timestamp
	}
	last := e.LastDetection
	if last.IsZero() {
		last = locs[len(locs)-1].Timestamp
	}

	t := &Track{
		ID:              e.EmitterID,
		FirstDetection:  first,
		LastDetection:   last,
		Locations:       locs,
		Characteristics: e.Characteristics,
		Confidence:      confidenceForCount(len(locs)),
	}

	if e.Classification != nil {
		t.Classification = *e.Classification
	} else {
		t.Classification = classify.Classify(e.Characteristics)
	}
	if e.PlatformAssessment != nil {
		t.Platform = *e.PlatformAssessment
	} else {
		t.Platform = PlatformAssessment{
			Type:       t.Classification.PlatformType,
			Confidence: t.Classification.Confidence,
		}
		if len(t.Classification.Models) > 0 {
			t.Platform.Model = t.Classification.Models[0]
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tracks[e.EmitterID]; !exists {
		s.order = append(s.order, e.EmitterID)
	}
	s.tracks[e.EmitterID] = t
	return e.EmitterID
}
