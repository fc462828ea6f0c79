// Package signal defines the raw detection data model shared across the
// analysis pipeline, parses incoming detection records, and buckets
// detections into candidate-emitter groups by signal signature.
package signal

import (
	"sort"
	"time"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/geo"
)

// ConfidenceLevel is the three-step confidence scale used throughout the
// pipeline for location estimates, tracks, classifications and elements.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// Rank returns the ordinal of the confidence level (low=0, medium=1, high=2).
// Unknown values rank below low.
func (c ConfidenceLevel) Rank() int {
	switch c {
	case ConfidenceLow:
		return 0
	case ConfidenceMedium:
		return 1
	case ConfidenceHigh:
		return 2
	default:
		return -1
	}
}

// Outranks reports whether c is strictly higher than other.
func (c ConfidenceLevel) Outranks(other ConfidenceLevel) bool {
	return c.Rank() > other.Rank()
}

// Score converts the level to a numeric confidence in [0,1].
func (c ConfidenceLevel) Score() float64 {
	switch c {
	case ConfidenceHigh:
		return 0.9
	case ConfidenceMedium:
		return 0.6
	case ConfidenceLow:
		return 0.3
	default:
		return 0.1
	}
}

// LevelFromScore maps a numeric confidence to the three-step scale.
func LevelFromScore(score float64) ConfidenceLevel {
	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.6:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Detection is one receiver's reading of a signal. Immutable once created.
type Detection struct {
	SignalID   string
	Timestamp  time.Time
	ReceiverID string

	// ReceiverLocation is the receiver position. HasReceiverLocation is
	// false when the incoming record omitted it and the parser attached
	// the {0,0,0} default.
	ReceiverLocation    geo.LatLngAlt
	HasReceiverLocation bool

	FrequencyMHz      float64
	SignalStrengthDBm float64
	AngleOfArrivalDeg float64

	PulseWidthUs      float64
	PulseRepetitionHz float64
	PulsePattern      string

	Modulation   string
	Polarization string
}

// Characteristics are the aggregated signal characteristics of an emitter,
// derived from one or more detections and maintained on a track as a running
// aggregate. Update via Merge rather than mutating in place.
type Characteristics struct {
	FrequencyMinMHz   float64  `json:"frequencyMinMhz"`
	FrequencyMaxMHz   float64  `json:"frequencyMaxMhz"`
	PulseWidthUs      float64  `json:"pulseWidthUs"`
	PulseRepetitionHz float64  `json:"pulseRepetitionHz"`
	PulsePatterns     []string `json:"pulsePatterns,omitempty"`
	Modulations       []string `json:"modulations,omitempty"`
	SampleCount       int      `json:"sampleCount"`
}

// MidFrequencyMHz returns the midpoint of the frequency range.
func (c Characteristics) MidFrequencyMHz() float64 {
	return (c.FrequencyMinMHz + c.FrequencyMaxMHz) / 2
}

// Aggregate computes the characteristics of a detection group.
func Aggregate(dets []Detection) Characteristics {
	var c Characteristics
	if len(dets) == 0 {
		return c
	}

	c.FrequencyMinMHz = dets[0].FrequencyMHz
	c.FrequencyMaxMHz = dets[0].FrequencyMHz

	var sumPW, sumPRF float64
	patterns := map[string]bool{}
	mods := map[string]bool{}

	for _, d := range dets {
		if d.FrequencyMHz < c.FrequencyMinMHz {
			c.FrequencyMinMHz = d.FrequencyMHz
		}
		if d.FrequencyMHz > c.FrequencyMaxMHz {
			c.FrequencyMaxMHz = d.FrequencyMHz
		}
		sumPW += d.PulseWidthUs
		sumPRF += d.PulseRepetitionHz
		if d.PulsePattern != "" {
			patterns[d.PulsePattern] = true
		}
		if d.Modulation != "" {
			mods[d.Modulation] = true
		}
	}

	n := float64(len(dets))
	c.PulseWidthUs = sumPW / n
	c.PulseRepetitionHz = sumPRF / n
	c.PulsePatterns = sortedKeys(patterns)
	c.Modulations = sortedKeys(mods)
	c.SampleCount = len(dets)
	return c
}

// Merge returns a new Characteristics combining an existing aggregate with a
// new sample. Pulse stats are weighted by sample counts; frequency ranges
// expand; pattern and modulation sets union. Pure function: neither input is
// mutated, so callers can apply it under single-writer discipline without
// partial-update races.
func Merge(old, sample Characteristics) Characteristics {
	if old.SampleCount == 0 {
		return sample
	}
	if sample.SampleCount == 0 {
		return old
	}

	merged := Characteristics{
		FrequencyMinMHz: old.FrequencyMinMHz,
		FrequencyMaxMHz: old.FrequencyMaxMHz,
		SampleCount:     old.SampleCount + sample.SampleCount,
	}
	if sample.FrequencyMinMHz < merged.FrequencyMinMHz {
		merged.FrequencyMinMHz = sample.FrequencyMinMHz
	}
	if sample.FrequencyMaxMHz > merged.FrequencyMaxMHz {
		merged.FrequencyMaxMHz = sample.FrequencyMaxMHz
	}

	oldW := float64(old.SampleCount)
	newW := float64(sample.SampleCount)
	total := oldW + newW
	merged.PulseWidthUs = (old.PulseWidthUs*oldW + sample.PulseWidthUs*newW) / total
	merged.PulseRepetitionHz = (old.PulseRepetitionHz*oldW + sample.PulseRepetitionHz*newW) / total

	merged.PulsePatterns = unionSorted(old.PulsePatterns, sample.PulsePatterns)
	merged.Modulations = unionSorted(old.Modulations, sample.Modulations)
	return merged
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func unionSorted(a, b []string) []string {
	set := map[string]bool{}
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		set[s] = true
	}
	return sortedKeys(set)
}
