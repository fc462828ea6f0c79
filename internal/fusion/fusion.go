// Package fusion merges correlated humint and sigint entities into fused
// intelligence products with combined confidence. A fusion run is a pure
// function of its input entity sets plus the correlation engine's output;
// fused entities are never mutated after creation.
package fusion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/correlate"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/geo"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/monitoring"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/signal"
)

// DefaultThreshold is the correlation score above which a pair is fused.
const DefaultThreshold = 0.65

// Location blend weights when neither side's position is trusted outright.
const (
	humintLocationWeight = 0.4
	sigintLocationWeight = 0.6

	// trustedSpatialScore is the spatial score above which the sigint
	// coordinates are taken as-is.
	trustedSpatialScore = 0.8
)

// FusedEntity is one merged intelligence product.
type FusedEntity struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	HumintSources []string               `json:"humintSources"`
	SigintSources []string               `json:"sigintSources"`
	Location      *geo.LatLng            `json:"location,omitempty"`
	LocationName  string                 `json:"locationName,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
	Description   string                 `json:"description"`
	Confidence    signal.ConfidenceLevel `json:"confidence"`
	Correlation   *correlate.Result      `json:"correlation,omitempty"`
}

// Prediction is a downstream forecast statement attached to a fusion result.
type Prediction struct {
	ID         string                 `json:"id"`
	Text       string                 `json:"text"`
	Confidence signal.ConfidenceLevel `json:"confidence"`
}

// Stats summarizes one fusion run.
type Stats struct {
	HumintEntityCount int `json:"humintEntityCount"`
	SigintEntityCount int `json:"sigintEntityCount"`
	CorrelationCount  int `json:"correlationCount"`
	PredictionCount   int `json:"predictionCount"`
}

// Result is the output of one fusion run.
type Result struct {
	Timestamp     time.Time          `json:"timestamp"`
	FusedEntities []FusedEntity      `json:"fusedEntities"`
	Correlations  []correlate.Result `json:"correlations"`
	Predictions   []Prediction       `json:"predictions"`
	Stats         Stats              `json:"stats"`
}

// ConfidenceCombiner merges the two source confidences with the correlation
// score. External implementations are called with a bounded timeout; failure
// falls back to the built-in rule.
type ConfidenceCombiner interface {
	Combine(ctx context.Context, a, b signal.ConfidenceLevel, correlationScore float64) (signal.ConfidenceLevel, error)
}

// Predictor is the optional downstream forecast generator. Its failure
// degrades the result to zero predictions, never the whole run.
type Predictor interface {
	Predict(ctx context.Context, fused []FusedEntity) ([]Prediction, error)
}

// Config tunes the orchestrator.
type Config struct {
	// Threshold is the minimum correlation score for fusing a pair.
	Threshold float64

	// EmitSampleOnEmpty makes a run over zero entities return a clearly
	// marked placeholder entity instead of an empty result, so the API
	// boundary can distinguish "nothing to fuse" from "ran out of data".
	EmitSampleOnEmpty bool

	// ExternalTimeout bounds each combiner or predictor call.
	ExternalTimeout time.Duration
}

// DefaultConfig returns the default fusion configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:         DefaultThreshold,
		EmitSampleOnEmpty: true,
		ExternalTimeout:   5 * time.Second,
	}
}

// Orchestrator runs fusion over entity sets.
type Orchestrator struct {
	cfg      Config
	engine   *correlate.Engine
	combiner ConfidenceCombiner
	predict  Predictor
	clock    func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCombiner installs an external confidence combiner.
func WithCombiner(c ConfidenceCombiner) Option {
	return func(o *Orchestrator) { o.combiner = c }
}

// WithPredictor installs the downstream prediction generator.
func WithPredictor(p Predictor) Option {
	return func(o *Orchestrator) { o.predict = p }
}

// WithClock overrides the result-timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = now }
}

// NewOrchestrator creates a fusion orchestrator on top of a correlation
// engine.
func NewOrchestrator(cfg Config, engine *correlate.Engine, opts ...Option) *Orchestrator {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.ExternalTimeout <= 0 {
		cfg.ExternalTimeout = 5 * time.Second
	}
	o := &Orchestrator{cfg: cfg, engine: engine, clock: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Fuse correlates the humint set against the sigint set and merges accepted
// pairs. Every entity ends up in exactly one fused product: pairs above the
// threshold merge, the rest become single-source entities.
func (o *Orchestrator) Fuse(ctx context.Context, humint []correlate.HumintEntity, sigint []correlate.SigintEntity) (Result, error) {
	res := Result{
		Timestamp: o.clock(),
		Stats: Stats{
			HumintEntityCount: len(humint),
			SigintEntityCount: len(sigint),
		},
	}

	if len(humint) == 0 && len(sigint) == 0 {
		if o.cfg.EmitSampleOnEmpty {
			res.FusedEntities = []FusedEntity{sampleEntity(res.Timestamp)}
		}
		return res, nil
	}

	as := make([]correlate.Entity, len(humint))
	for i := range humint {
		as[i] = humint[i]
	}
	bs := make([]correlate.Entity, len(sigint))
	for i := range sigint {
		bs[i] = sigint[i]
	}

	correlations, err := o.engine.Correlate(ctx, as, bs)
	if err != nil {
		return Result{}, fmt.Errorf("fusion run failed: %w", err)
	}

	byID := make(map[string]correlate.Entity, len(as)+len(bs))
	for _, e := range append(append([]correlate.Entity{}, as...), bs...) {
		byID[e.ID()] = e
	}

	consumed := make(map[string]bool)
	seq := 0
	for _, c := range correlations {
		if c.Combined < o.cfg.Threshold {
			continue
		}
		if consumed[c.EntityA] || consumed[c.EntityB] {
			continue
		}
		consumed[c.EntityA] = true
		consumed[c.EntityB] = true

		seq++
		res.Correlations = append(res.Correlations, c)
		res.FusedEntities = append(res.FusedEntities,
			o.mergePair(ctx, seq, byID[c.EntityA], byID[c.EntityB], &c))
	}
	res.Stats.CorrelationCount = len(res.Correlations)

	// Leftovers become single-source products, humint first, input order.
	for _, e := range as {
		if !consumed[e.ID()] {
			seq++
			res.FusedEntities = append(res.FusedEntities, singleSource(seq, e))
			consumed[e.ID()] = true
		}
	}
	for _, e := range bs {
		if !consumed[e.ID()] {
			seq++
			res.FusedEntities = append(res.FusedEntities, singleSource(seq, e))
			consumed[e.ID()] = true
		}
	}

	res.Predictions = o.runPredictor(ctx, res.FusedEntities)
	res.Stats.PredictionCount = len(res.Predictions)
	return res, nil
}

// mergePair builds one fused product from an accepted correlation. a is the
// humint side whenever sources differ; order them before merging.
func (o *Orchestrator) mergePair(ctx context.Context, seq int, a, b correlate.Entity, c *correlate.Result) FusedEntity {
	if a.Source() == correlate.SourceSigint && b.Source() == correlate.SourceHumint {
		a, b = b, a
	}

	f := FusedEntity{
		ID:          fmt.Sprintf("fused-%d", seq),
		Type:        fusedType(a),
		Timestamp:   laterOf(a.Timestamp(), b.Timestamp()),
		Description: mergeDescriptions(a, b),
		Correlation: c,
	}
	f.HumintSources, f.SigintSources = sourceLists(a, b)

	// The humint side names the place; sigint coordinates win outright
	// only when the spatial evidence is strong.
	f.LocationName = a.LocationName()
	if b.LocationName() != "" && f.LocationName == "" {
		f.LocationName = b.LocationName()
	}
	ca, okA := a.Coordinates()
	cb, okB := b.Coordinates()
	switch {
	case okA && okB && c.Spatial.Score > trustedSpatialScore:
		loc := sigintSideCoords(a, b, ca, cb)
		f.Location = &loc
	case okA && okB:
		f.Location = &geo.LatLng{
			Lat: humintLocationWeight*ca.Lat + sigintLocationWeight*cb.Lat,
			Lng: humintLocationWeight*ca.Lng + sigintLocationWeight*cb.Lng,
		}
	case okA:
		f.Location = &ca
	case okB:
		f.Location = &cb
	}

	f.Confidence = o.combineConfidence(ctx, a.Confidence(), b.Confidence(), c.Combined)
	return f
}

// sigintSideCoords returns the coordinates of whichever side is sigint,
// defaulting to b's when neither is.
func sigintSideCoords(a, b correlate.Entity, ca, cb geo.LatLng) geo.LatLng {
	if a.Source() == correlate.SourceSigint {
		return ca
	}
	return cb
}

// definedUnitTypes keep their own type through fusion. The generic
// military_unit is deliberately not here: a generic unit reported with a
// radar subtype is better described by what the radar implies.
var definedUnitTypes = map[string]bool{
	"infantry_unit":  true,
	"armor_unit":     true,
	"artillery_unit": true,
	"logistics_unit": true,
}

func fusedType(humintSide correlate.Entity) string {
	t := humintSide.Type()
	if definedUnitTypes[t] {
		return t
	}
	sub := strings.ToLower(humintSide.Subtype())
	if strings.Contains(sub, "radar") || strings.Contains(sub, "air-defense") ||
		strings.Contains(sub, "air_defense") || strings.Contains(sub, "sam") {
		return "air_defense_system"
	}
	return t
}

func sourceLists(entities ...correlate.Entity) (humint, sigint []string) {
	for _, e := range entities {
		if e.Source() == correlate.SourceHumint {
			humint = append(humint, e.ID())
		} else {
			sigint = append(sigint, e.ID())
		}
	}
	return humint, sigint
}

func mergeDescriptions(a, b correlate.Entity) string {
	da, db := a.Description(), b.Description()
	switch {
	case da == "":
		return db
	case db == "":
		return da
	default:
		return da + "; corroborated by " + db
	}
}

func singleSource(seq int, e correlate.Entity) FusedEntity {
	f := FusedEntity{
		ID:           fmt.Sprintf("fused-%d", seq),
		Type:         fusedType(e),
		Timestamp:    e.Timestamp(),
		Description:  e.Description(),
		LocationName: e.LocationName(),
		Confidence:   e.Confidence(),
	}
	f.HumintSources, f.SigintSources = sourceLists(e)
	if c, ok := e.Coordinates(); ok {
		f.Location = &c
	}
	return f
}

// combineConfidence asks the external combiner first, falling back to the
// built-in rule on absence or failure.
func (o *Orchestrator) combineConfidence(ctx context.Context, a, b signal.ConfidenceLevel, score float64) signal.ConfidenceLevel {
	if o.combiner != nil {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.ExternalTimeout)
		level, err := o.combiner.Combine(callCtx, a, b, score)
		cancel()
		if err == nil {
			return level
		}
		monitoring.Logf("fusion: confidence combiner failed, using fallback: %v", err)
	}
	return fallbackConfidence(a, b, score)
}

// fallbackConfidence averages the source confidences and discounts by the
// correlation score.
func fallbackConfidence(a, b signal.ConfidenceLevel, score float64) signal.ConfidenceLevel {
	avg := (a.Score() + b.Score()) / 2
	return signal.LevelFromScore(avg * (0.5 + 0.5*score))
}

func (o *Orchestrator) runPredictor(ctx context.Context, fused []FusedEntity) []Prediction {
	if o.predict == nil {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.ExternalTimeout)
	defer cancel()

	preds, err := o.predict.Predict(callCtx, fused)
	if err != nil {
		monitoring.Logf("fusion: predictor failed, continuing without predictions: %v", err)
		return nil
	}
	return preds
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// sampleEntity is the placeholder emitted on an entirely empty run.
func sampleEntity(ts time.Time) FusedEntity {
	return FusedEntity{
		ID:          "fused-sample",
		Type:        "sample_entity",
		Timestamp:   ts,
		Description: "placeholder: no humint or sigint entities were available for fusion",
		Confidence:  signal.ConfidenceLow,
	}
}
