package correlate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/cache"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/monitoring"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/signal"
)

// Scoring weights and gates.
const (
	// gateThreshold aborts a pair when spatial or temporal evidence alone
	// rules it out.
	gateThreshold = 0.3

	// cheapPathThreshold skips semantic scoring when position and time
	// already make a strong case.
	cheapPathThreshold = 0.7

	cheapSpatialWeight  = 0.6
	cheapTemporalWeight = 0.4

	fullSpatialWeight  = 0.4
	fullTemporalWeight = 0.2
	fullSemanticWeight = 0.4
)

// SemanticProvider is an optional external scorer for description-level
// similarity. Its absence or failure never blocks correlation; the engine
// falls back to the lexical scorer.
type SemanticProvider interface {
	Score(ctx context.Context, a, b Entity) (SubScore, error)
}

// Result is one scored entity pair.
type Result struct {
	EntityA  string   `json:"entityA"`
	EntityB  string   `json:"entityB"`
	Spatial  SubScore `json:"spatial"`
	Temporal SubScore `json:"temporal"`

	// Semantic is nil when the cheap path skipped it.
	Semantic *SubScore `json:"semantic,omitempty"`

	Combined   float64                `json:"combined"`
	Confidence signal.ConfidenceLevel `json:"confidence"`
}

// Config tunes the engine.
type Config struct {
	// SemanticTimeout bounds each external semantic provider call.
	SemanticTimeout time.Duration

	// SemanticCacheSize and SemanticCacheTTL bound the provider-score cache.
	SemanticCacheSize int
	SemanticCacheTTL  time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		SemanticTimeout:   3 * time.Second,
		SemanticCacheSize: 1024,
		SemanticCacheTTL:  10 * time.Minute,
	}
}

// Engine scores entity pairs. It is safe for concurrent use.
type Engine struct {
	cfg      Config
	provider SemanticProvider
	semCache *cache.Cache[string, SubScore]
}

// NewEngine creates a correlation engine. provider may be nil, in which
// case the lexical fallback is always used.
func NewEngine(cfg Config, provider SemanticProvider) *Engine {
	if cfg.SemanticTimeout <= 0 {
		cfg.SemanticTimeout = 3 * time.Second
	}
	if cfg.SemanticCacheSize <= 0 {
		cfg.SemanticCacheSize = 1024
	}
	if cfg.SemanticCacheTTL <= 0 {
		cfg.SemanticCacheTTL = 10 * time.Minute
	}
	return &Engine{
		cfg:      cfg,
		provider: provider,
		semCache: cache.New[string, SubScore](cfg.SemanticCacheSize, cfg.SemanticCacheTTL),
	}
}

// Correlate scores every A×B pair and returns results sorted by combined
// score, descending. The sort is stable so equal scores keep input order.
// The run is abortable between pairs via ctx; a panic inside one pair is
// recorded and skipped without affecting the others.
func (e *Engine) Correlate(ctx context.Context, as, bs []Entity) ([]Result, error) {
	results := make([]Result, 0, len(as))
	for _, a := range as {
		for _, b := range bs {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("correlation aborted: %w", err)
			}
			if a.ID() == b.ID() {
				continue
			}
			r, ok := e.scorePair(ctx, a, b)
			if ok {
				results = append(results, r)
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Combined > results[j].Combined
	})
	return results, nil
}

// ScorePair scores a single pair, reporting false when the pair is gated
// out as not correlated.
func (e *Engine) ScorePair(ctx context.Context, a, b Entity) (Result, bool) {
	return e.scorePair(ctx, a, b)
}

func (e *Engine) scorePair(ctx context.Context, a, b Entity) (res Result, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.Logf("correlate: pair %s/%s panicked: %v", a.ID(), b.ID(), r)
			res, ok = Result{}, false
		}
	}()

	spatial := spatialScore(a, b)
	if spatial.Score < gateThreshold {
		return Result{}, false
	}
	temporal := temporalScore(a, b)
	if temporal.Score < gateThreshold {
		return Result{}, false
	}

	res = Result{
		EntityA:  a.ID(),
		EntityB:  b.ID(),
		Spatial:  spatial,
		Temporal: temporal,
	}

	cheap := cheapSpatialWeight*spatial.Score + cheapTemporalWeight*temporal.Score
	if cheap >= cheapPathThreshold {
		res.Combined = clamp01(cheap)
		res.Confidence = confidenceFor(res.Combined)
		return res, true
	}

	semantic := e.semanticScore(ctx, a, b)
	res.Semantic = &semantic
	res.Combined = clamp01(fullSpatialWeight*spatial.Score +
		fullTemporalWeight*temporal.Score +
		fullSemanticWeight*semantic.Score)
	res.Confidence = confidenceFor(res.Combined)
	return res, true
}

// semanticScore consults the external provider when configured, falling
// back to the lexical scorer on absence, timeout, or error.
func (e *Engine) semanticScore(ctx context.Context, a, b Entity) SubScore {
	if e.provider == nil {
		return lexicalSemanticScore(a, b)
	}

	key := pairCacheKey(a, b)
	if s, ok := e.semCache.Get(key); ok {
		return s
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.SemanticTimeout)
	defer cancel()

	s, err := e.provider.Score(callCtx, a, b)
	if err != nil {
		monitoring.Logf("correlate: semantic provider failed for %s/%s, using lexical fallback: %v", a.ID(), b.ID(), err)
		s = lexicalSemanticScore(a, b)
		s.Reason += " (provider unavailable)"
		return s
	}
	s.Score = clamp01(s.Score)
	e.semCache.Set(key, s)
	return s
}

func pairCacheKey(a, b Entity) string {
	ka, kb := a.ID(), b.ID()
	if ka > kb {
		ka, kb = kb, ka
	}
	return ka + "|" + kb
}

func confidenceFor(score float64) signal.ConfidenceLevel {
	switch {
	case score >= 0.8:
		return signal.ConfidenceHigh
	case score >= 0.6:
		return signal.ConfidenceMedium
	default:
		return signal.ConfidenceLow
	}
}
