// Package correlate scores cross-source entity pairs on spatial, temporal
// and semantic axes, producing ranked correlation results for the fusion
// layer. Scoring is pure pairwise work with no shared mutable state.
package correlate

import (
	"fmt"
	"strings"
	"time"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/geo"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/signal"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/tracker"
)

// Source identifies where an entity came from.
type Source string

const (
	SourceHumint Source = "humint"
	SourceSigint Source = "sigint"
)

// Entity is the trait shared by both entity kinds: correlation scoring is
// written against this interface so the same scorers handle humint/sigint,
// humint/humint, and sigint/sigint pairs.
type Entity interface {
	// ID is the derived dedup identity; fusion uses it to mark an entity
	// as consumed so nothing is fused twice.
	ID() string
	Source() Source
	Type() string
	Subtype() string

	// Coordinates reports the entity's position, when known.
	Coordinates() (geo.LatLng, bool)
	// LocationName is the free-text place name, when known.
	LocationName() string

	Timestamp() time.Time
	Description() string
	Confidence() signal.ConfidenceLevel
}

// HumintEntity is a typed entity extracted from a human field report.
type HumintEntity struct {
	ReportID   string                 `json:"reportId"`
	EntityType string                 `json:"type"`
	EntitySub  string                 `json:"subtype"`
	Location   *geo.LatLng            `json:"coordinates,omitempty"`
	Name       string                 `json:"locationName,omitempty"`
	Time       time.Time              `json:"timestamp"`
	Text       string                 `json:"description"`
	Level      signal.ConfidenceLevel `json:"confidence"`
	Properties map[string]string      `json:"properties,omitempty"`
}

func (e HumintEntity) ID() string {
	return fmt.Sprintf("humint-%s-%s-%s", e.ReportID, e.EntityType, e.EntitySub)
}

func (e HumintEntity) Source() Source  { return SourceHumint }
func (e HumintEntity) Type() string    { return e.EntityType }
func (e HumintEntity) Subtype() string { return e.EntitySub }

func (e HumintEntity) Coordinates() (geo.LatLng, bool) {
	if e.Location == nil {
		return geo.LatLng{}, false
	}
	return *e.Location, true
}

func (e HumintEntity) LocationName() string               { return e.Name }
func (e HumintEntity) Timestamp() time.Time               { return e.Time }
func (e HumintEntity) Description() string                { return e.Text }
func (e HumintEntity) Confidence() signal.ConfidenceLevel { return e.Level }

// SigintEntity is an entity derived from a tracked emitter.
type SigintEntity struct {
	EmitterID      string                 `json:"emitterId"`
	Classification string                 `json:"classification"`
	PlatformType   string                 `json:"platformType"`
	Location       geo.LatLng             `json:"coordinates"`
	HasLocation    bool                   `json:"hasLocation"`
	Time           time.Time              `json:"timestamp"`
	Text           string                 `json:"description"`
	Level          signal.ConfidenceLevel `json:"confidence"`
}

// EntityFromTrack converts a track snapshot into a correlatable entity.
func EntityFromTrack(t tracker.Track) SigintEntity {
	e := SigintEntity{
		EmitterID:      t.ID,
		Classification: t.Classification.Label,
		PlatformType:   t.Platform.Type,
		Time:           t.LastDetection,
		Level:          t.Confidence,
	}
	if loc, ok := t.LatestLocation(); ok {
		e.Location = loc.Location
		e.HasLocation = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s emitter", t.Classification.Label)
	if t.Platform.Model != "" {
		fmt.Fprintf(&b, ", candidate model %s", t.Platform.Model)
	}
	if t.Platform.Mobility != "" {
		fmt.Fprintf(&b, ", assessed %s", t.Platform.Mobility)
	}
	e.Text = b.String()
	return e
}

func (e SigintEntity) ID() string      { return "sigint-" + e.EmitterID }
func (e SigintEntity) Source() Source  { return SourceSigint }
func (e SigintEntity) Type() string    { return "electronic_emitter" }
func (e SigintEntity) Subtype() string { return e.Classification }

func (e SigintEntity) Coordinates() (geo.LatLng, bool) {
	return e.Location, e.HasLocation
}

func (e SigintEntity) LocationName() string               { return "" }
func (e SigintEntity) Timestamp() time.Time               { return e.Time }
func (e SigintEntity) Description() string                { return e.Text }
func (e SigintEntity) Confidence() signal.ConfidenceLevel { return e.Level }

// radarRelated reports whether an entity plausibly refers to a radar or
// air-defense system; such pairs use the longer-range score ladders.
func radarRelated(e Entity) bool {
	if e.Source() == SourceSigint {
		return strings.Contains(e.Subtype(), "radar")
	}
	s := strings.ToLower(e.Subtype() + " " + e.Type())
	return strings.Contains(s, "radar") || strings.Contains(s, "air-defense") ||
		strings.Contains(s, "air_defense") || strings.Contains(s, "sam")
}
