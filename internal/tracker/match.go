package tracker

import (
	"math"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/signal"
)

// Characteristics comparison weights. Frequency overlap dominates: two
// emitters on disjoint bands are never the same platform.
const (
	weightFrequency    = 0.60
	weightPulseWidth   = 0.10
	weightPRF          = 0.15
	weightPulsePattern = 0.05
	weightModulation   = 0.10

	// closeGapCredit is awarded when frequency ranges do not overlap but
	// the gap is under 20% of the narrower range's width.
	closeGapCredit    = 0.5
	closeGapFraction  = 0.2
)

// MatchScore compares two characteristic aggregates and returns a
// similarity in [0,1]. Scores at or above the store's match threshold make
// a track a candidate for association.
func MatchScore(a, b signal.Characteristics) float64 {
	score := weightFrequency*frequencyOverlapScore(a, b) +
		weightPulseWidth*ratioScore(a.PulseWidthUs, b.PulseWidthUs) +
		weightPRF*ratioScore(a.PulseRepetitionHz, b.PulseRepetitionHz) +
		weightPulsePattern*setOverlapScore(a.PulsePatterns, b.PulsePatterns) +
		weightModulation*setOverlapScore(a.Modulations, b.Modulations)
	return clamp01(score)
}

// frequencyOverlapScore is the intersection-over-union of the two frequency
// ranges, with a fixed credit for close-but-not-overlapping ranges.
func frequencyOverlapScore(a, b signal.Characteristics) float64 {
	lo := math.Max(a.FrequencyMinMHz, b.FrequencyMinMHz)
	hi := math.Min(a.FrequencyMaxMHz, b.FrequencyMaxMHz)
	unionLo := math.Min(a.FrequencyMinMHz, b.FrequencyMinMHz)
	unionHi := math.Max(a.FrequencyMaxMHz, b.FrequencyMaxMHz)

	if unionHi == unionLo {
		// Both ranges collapse to the same single frequency.
		return 1.0
	}
	if hi > lo {
		return (hi - lo) / (unionHi - unionLo)
	}
	if hi == lo {
		// Ranges touch at a point.
		return closeGapCredit
	}

	gap := lo - hi
	narrower := math.Min(a.FrequencyMaxMHz-a.FrequencyMinMHz, b.FrequencyMaxMHz-b.FrequencyMinMHz)
	if narrower > 0 && gap < closeGapFraction*narrower {
		return closeGapCredit
	}
	return 0
}

// ratioScore compares two scalar pulse parameters: 1 for equal values,
// falling off with relative difference. Two absent (zero) values are treated
// as equally unknown; one absent value matches nothing.
func ratioScore(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 1.0
	}
	if a == 0 || b == 0 {
		return 0
	}
	return 1 - math.Abs(a-b)/math.Max(a, b)
}

// setOverlapScore is the Jaccard index of two string sets. Two empty sets
// score a neutral 0.5; one empty set scores 0.
func setOverlapScore(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0.5
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	inter := 0
	union := len(a)
	for _, s := range b {
		if set[s] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
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
