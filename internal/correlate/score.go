package correlate

import (
	"fmt"
	"math"
	"strings"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/geo"
)

// SubScore is one scoring axis with its explanation.
type SubScore struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// ladder maps a measured value to a score via ascending thresholds.
type ladder struct {
	thresholds []float64
	scores     []float64
	floor      float64
}

func (l ladder) score(v float64) float64 {
	for i, t := range l.thresholds {
		if v <= t {
			return l.scores[i]
		}
	}
	return l.floor
}

// Distance ladders in meters. Radar detections carry more positional slack
// than visual sightings, so radar-related pairs use the longer-range ladder.
var (
	spatialRadarLadder = ladder{
		thresholds: []float64{500, 2000, 5000, 10000, 20000},
		scores:     []float64{0.95, 0.85, 0.7, 0.5, 0.3},
		floor:      0.1,
	}
	spatialStandardLadder = ladder{
		thresholds: []float64{200, 1000, 3000, 5000, 10000},
		scores:     []float64{0.95, 0.85, 0.7, 0.5, 0.3},
		floor:      0.1,
	}
)

// Time ladders in minutes.
var (
	temporalRadarLadder = ladder{
		thresholds: []float64{10, 30, 60, 120, 240, 480},
		scores:     []float64{0.95, 0.85, 0.7, 0.5, 0.3, 0.1},
		floor:      0.05,
	}
	temporalStandardLadder = ladder{
		thresholds: []float64{5, 15, 30, 60, 120},
		scores:     []float64{0.95, 0.85, 0.7, 0.5, 0.3},
		floor:      0.1,
	}
)

// crossSourceBonus rewards a humint sighting and a sigint detection of the
// same object inside a tight window, in either order.
const (
	crossSourceBonus       = 0.1
	crossSourceWindowMin   = 60.0
	crossSourceBonusCeil   = 0.95
	noLocationInfoScore    = 0.3
	missingSideNameDefault = 0.3
)

// spatialScore compares two entities' positions. With coordinates on both
// sides it is a pure distance ladder; with names only it falls back to name
// matching. The result is symmetric in its arguments.
func spatialScore(a, b Entity) SubScore {
	ca, okA := a.Coordinates()
	cb, okB := b.Coordinates()

	if okA && okB {
		d := geo.HaversineM(ca, cb)
		l := spatialStandardLadder
		if radarRelated(a) || radarRelated(b) {
			l = spatialRadarLadder
		}
		return SubScore{
			Score:  l.score(d),
			Reason: fmt.Sprintf("%.0f m apart", d),
		}
	}

	if a.LocationName() != "" && b.LocationName() != "" {
		s, how := nameMatchScore(a.LocationName(), b.LocationName())
		return SubScore{Score: s, Reason: "location name " + how}
	}

	return SubScore{Score: noLocationInfoScore, Reason: "no location information on one side"}
}

// nameMatchScore compares two place names: exact, substring, then
// proportional word overlap.
func nameMatchScore(a, b string) (float64, string) {
	na := strings.ToLower(strings.TrimSpace(a))
	nb := strings.ToLower(strings.TrimSpace(b))
	if na == nb && na != "" {
		return 0.9, "exact match"
	}
	if na != "" && nb != "" && (strings.Contains(na, nb) || strings.Contains(nb, na)) {
		return 0.7, "substring match"
	}

	wa := strings.Fields(na)
	wb := strings.Fields(nb)
	if len(wa) == 0 || len(wb) == 0 {
		return missingSideNameDefault, "no usable name"
	}
	set := map[string]bool{}
	for _, w := range wa {
		set[w] = true
	}
	common := 0
	for _, w := range wb {
		if set[w] {
			common++
		}
	}
	denom := len(wa)
	if len(wb) > denom {
		denom = len(wb)
	}
	return 0.6 * float64(common) / float64(denom), "word overlap"
}

// temporalScore compares two entities' timestamps. Symmetric in A/B aside
// from the cross-source bonus, which applies in either direction.
func temporalScore(a, b Entity) SubScore {
	dtMin := math.Abs(a.Timestamp().Sub(b.Timestamp()).Minutes())

	l := temporalStandardLadder
	if radarRelated(a) || radarRelated(b) {
		l = temporalRadarLadder
	}
	s := l.score(dtMin)
	reason := fmt.Sprintf("%.0f min apart", dtMin)

	// A sighting confirmed by signal (or the reverse) inside the hour is
	// stronger evidence than either timestamp alone suggests.
	if a.Source() != b.Source() && dtMin <= crossSourceWindowMin {
		s = math.Min(s+crossSourceBonus, crossSourceBonusCeil)
		reason += ", cross-source confirmation window"
	}
	return SubScore{Score: clamp01(s), Reason: reason}
}

// typeCompatibility is the fixed lookup for how plausibly two entity types
// refer to the same object. Keys are unordered pairs.
var typeCompatibility = map[[2]string]float64{
	pairKey("military_unit", "military_unit"):           1.0,
	pairKey("military_unit", "electronic_emitter"):      0.7,
	pairKey("military_unit", "equipment"):               0.8,
	pairKey("equipment", "electronic_emitter"):          0.8,
	pairKey("equipment", "equipment"):                   1.0,
	pairKey("electronic_emitter", "electronic_emitter"): 1.0,
	pairKey("location", "military_unit"):                0.6,
	pairKey("location", "electronic_emitter"):           0.5,
	pairKey("activity", "electronic_emitter"):           0.6,
	pairKey("activity", "military_unit"):                0.7,
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

func typeCompatibilityScore(a, b Entity) float64 {
	if s, ok := typeCompatibility[pairKey(a.Type(), b.Type())]; ok {
		return s
	}
	if a.Type() == b.Type() {
		return 0.9
	}
	return 0.4
}

// stopWords are dropped during description tokenization, alongside any
// token of three characters or fewer.
var stopWords = map[string]bool{
	"with": true, "from": true, "this": true, "that": true, "near": true,
	"were": true, "been": true, "have": true, "observed": true,
	"reported": true, "located": true, "approximately": true, "area": true,
}

func tokenize(s string) []string {
	s = strings.ToLower(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) <= 3 || stopWords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// lexicalOverlap scores two descriptions by token overlap: Jaccard weighted
// 40% plus average per-side coverage weighted 60%.
func lexicalOverlap(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	setA := map[string]bool{}
	for _, t := range ta {
		setA[t] = true
	}
	setB := map[string]bool{}
	for _, t := range tb {
		setB[t] = true
	}
	common := 0
	for t := range setA {
		if setB[t] {
			common++
		}
	}
	union := len(setA) + len(setB) - common
	if union == 0 {
		return 0
	}

	jaccard := float64(common) / float64(union)
	coverage := (float64(common)/float64(len(setA)) + float64(common)/float64(len(setB))) / 2
	return 0.4*jaccard + 0.6*coverage
}

// lexicalSemanticScore is the always-available non-AI semantic scorer:
// description overlap weighted against type compatibility.
func lexicalSemanticScore(a, b Entity) SubScore {
	lex := lexicalOverlap(a.Description(), b.Description())
	compat := typeCompatibilityScore(a, b)
	return SubScore{
		Score:  clamp01(0.4*lex + 0.6*compat),
		Reason: fmt.Sprintf("lexical overlap %.2f, type compatibility %.2f", lex, compat),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
