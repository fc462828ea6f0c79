package signal

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	// FrequencyQuantumMHz is the frequency bucket width for signature keys.
	FrequencyQuantumMHz = 10.0

	// MinGroupForGeolocation is the smallest group multilateration can use:
	// three independent bearings.
	MinGroupForGeolocation = 3
)

// Group is a set of detections sharing a signature key, presumed to
// originate from a single emitter.
type Group struct {
	Signature  string
	Detections []Detection
}

// Geolocatable reports whether the group carries enough independent bearings
// for multilateration.
func (g Group) Geolocatable() bool {
	return len(g.Detections) >= MinGroupForGeolocation
}

// SignatureKey derives the grouping key for a detection: 10 MHz-quantized
// frequency, pulse width rounded to 0.01 us, and a 2-character modulation tag.
func SignatureKey(d Detection) string {
	freqBucket := int(math.Floor(d.FrequencyMHz/FrequencyQuantumMHz)) * int(FrequencyQuantumMHz)
	pw := math.Round(d.PulseWidthUs*100) / 100
	return fmt.Sprintf("%d-%.2f-%s", freqBucket, pw, modulationTag(d.Modulation))
}

func modulationTag(mod string) string {
	mod = strings.ToUpper(strings.TrimSpace(mod))
	if mod == "" {
		return "??"
	}
	if len(mod) < 2 {
		return mod + "?"
	}
	return mod[:2]
}

// GroupBySignature buckets detections into candidate-emitter groups.
// Groups are returned in a stable order (sorted by signature key) so that
// downstream processing is deterministic for identical input.
func GroupBySignature(dets []Detection) []Group {
	buckets := make(map[string][]Detection)
	for _, d := range dets {
		key := SignatureKey(d)
		buckets[key] = append(buckets[key], d)
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([]Group, 0, len(keys))
	for _, k := range keys {
		groups = append(groups, Group{Signature: k, Detections: buckets[k]})
	}
	return groups
}
