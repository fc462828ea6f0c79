// Package eob assembles an electronic order of battle from the current track
// set: spatial clustering of emitters followed by rule-based typing of each
// cluster into a military element. The EOB is rebuilt from scratch on every
// request and carries no identity across rebuilds.
package eob

import (
	"fmt"
	"sort"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/classify"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/geo"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/signal"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/tracker"
)

// ClusterRadiusM is the grouping radius, measured from each cluster's first
// member rather than a recomputed centroid. The policy is order dependent,
// which is why Build iterates tracks in a stable sorted order.
const ClusterRadiusM = 5000

// Element categories.
const (
	CategoryAirDefense     = "air-defense"
	CategoryGroundForce    = "ground-force"
	CategoryCommunications = "communications"
	CategoryNaval          = "naval"
	CategoryAir            = "air"
	CategoryUnknown        = "unknown"
)

// Member functions within an element.
const (
	FunctionSurveillance      = "surveillance"
	FunctionEngagement        = "engagement"
	FunctionCommandAndControl = "command-and-control"
	FunctionSupport           = "support"
)

// Member is one track's role inside an element.
type Member struct {
	TrackID        string                 `json:"emitterId"`
	Classification string                 `json:"classification"`
	Function       string                 `json:"function"`
	Confidence     signal.ConfidenceLevel `json:"confidence"`
}

// Element is a derived grouping of tracks judged to form a single military
// element.
type Element struct {
	ID         string                 `json:"id"`
	Category   string                 `json:"category"`
	Type       string                 `json:"type"`
	Members    []Member               `json:"members"`
	Center     geo.LatLng             `json:"center"`
	Confidence signal.ConfidenceLevel `json:"confidence"`
	Notes      string                 `json:"notes,omitempty"`
}

// OrderOfBattle is the full categorized element set.
type OrderOfBattle struct {
	AirDefenseElements     []Element `json:"airDefenseElements"`
	GroundForceElements    []Element `json:"groundForceElements"`
	NavalElements          []Element `json:"navalElements"`
	AirElements            []Element `json:"airElements"`
	CommunicationsElements []Element `json:"communicationsElements"`
	UnknownElements        []Element `json:"unknownElements"`
}

// ElementCount returns the total number of elements across all categories.
func (o *OrderOfBattle) ElementCount() int {
	return len(o.AirDefenseElements) + len(o.GroundForceElements) +
		len(o.NavalElements) + len(o.AirElements) +
		len(o.CommunicationsElements) + len(o.UnknownElements)
}

// alwaysSignificant lists classifications that keep a lone track as a
// single-member element. An isolated early-warning or fire-control radar is
// militarily meaningful on its own.
var alwaysSignificant = map[string]bool{
	classify.LabelEarlyWarning:  true,
	classify.LabelFireControl:   true,
	classify.LabelMultifunction: true,
}

// categoryTables maps each category to the classifications it tallies.
// categoryOrder is the fixed tie-break: when two categories tie at an equal
// nonzero count, the earlier one wins.
var categoryOrder = []string{CategoryAirDefense, CategoryGroundForce, CategoryCommunications, CategoryNaval}

var categoryTables = map[string]map[string]bool{
	CategoryAirDefense: {
		classify.LabelEarlyWarning:    true,
		classify.LabelAcquisition:     true,
		classify.LabelAirSurveillance: true,
		classify.LabelSurveillance:    true,
		classify.LabelMultifunction:   true,
		classify.LabelFireControl:     true,
	},
	CategoryGroundForce: {
		classify.LabelBattlefield: true,
		classify.LabelTargeting:   true,
	},
	CategoryCommunications: {
		classify.LabelTacticalComms: true,
	},
	CategoryNaval: {
		"naval-surveillance-radar": true,
		"navigation-radar":         true,
	},
}

type cluster struct {
	anchor  geo.LatLng // first member's location, fixed for the cluster's life
	members []tracker.Track
}

// Build assembles the order of battle from a track snapshot. Tracks without
// a resolvable location are ignored.
func Build(tracks []tracker.Track) OrderOfBattle {
	located := make([]tracker.Track, 0, len(tracks))
	for _, t := range tracks {
		if _, ok := t.LatestLocation(); ok {
			located = append(located, t)
		}
	}
	sortTracks(located)

	clusters := clusterTracks(located)

	var oob OrderOfBattle
	seq := 0
	for _, c := range clusters {
		if !retain(c) {
			continue
		}
		seq++
		el := buildElement(c, seq)
		switch el.Category {
		case CategoryAirDefense:
			oob.AirDefenseElements = append(oob.AirDefenseElements, el)
		case CategoryGroundForce:
			oob.GroundForceElements = append(oob.GroundForceElements, el)
		case CategoryNaval:
			oob.NavalElements = append(oob.NavalElements, el)
		case CategoryAir:
			oob.AirElements = append(oob.AirElements, el)
		case CategoryCommunications:
			oob.CommunicationsElements = append(oob.CommunicationsElements, el)
		default:
			oob.UnknownElements = append(oob.UnknownElements, el)
		}
	}
	return oob
}

// sortTracks orders tracks by first detection, breaking ties by ID, so the
// greedy clustering sees a deterministic input order.
func sortTracks(tracks []tracker.Track) {
	sort.SliceStable(tracks, func(i, j int) bool {
		if tracks[i].FirstDetection.Equal(tracks[j].FirstDetection) {
			return tracks[i].ID < tracks[j].ID
		}
		return tracks[i].FirstDetection.Before(tracks[j].FirstDetection)
	})
}

// clusterTracks performs greedy clustering: each track joins the first
// cluster whose anchor is within ClusterRadiusM, else starts a new one.
func clusterTracks(tracks []tracker.Track) []*cluster {
	var clusters []*cluster
	for _, t := range tracks {
		loc, _ := t.LatestLocation()
		placed := false
		for _, c := range clusters {
			if geo.HaversineM(c.anchor, loc.Location) <= ClusterRadiusM {
				c.members = append(c.members, t)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, &cluster{anchor: loc.Location, members: []tracker.Track{t}})
		}
	}
	return clusters
}

// retain decides whether a cluster becomes an element. Multi-member clusters
// always do; singletons survive only when the lone track is significant.
func retain(c *cluster) bool {
	if len(c.members) > 1 {
		return true
	}
	t := c.members[0]
	if alwaysSignificant[t.Classification.Label] {
		return true
	}
	return t.Confidence == signal.ConfidenceHigh &&
		len(t.Locations) > 5 &&
		t.Platform.Confidence != signal.ConfidenceLow
}

func buildElement(c *cluster, seq int) Element {
	category := pickCategory(c.members)
	el := Element{
		ID:         fmt.Sprintf("eob-%03d", seq),
		Category:   category,
		Type:       elementType(category, c.members),
		Members:    make([]Member, 0, len(c.members)),
		Center:     center(c.members),
		Confidence: elementConfidence(c.members),
	}
	for _, t := range c.members {
		el.Members = append(el.Members, Member{
			TrackID:        t.ID,
			Classification: t.Classification.Label,
			Function:       memberFunction(t.Classification.Label),
			Confidence:     t.Confidence,
		})
	}
	el.Notes = fmt.Sprintf("%d emitters, dominant category %s", len(c.members), category)
	return el
}

// pickCategory tallies member classifications against the category tables.
// Highest count wins; ties resolve by fixed table order. All-zero tallies
// fall back to platform-assessment hints.
func pickCategory(members []tracker.Track) string {
	best := ""
	bestCount := 0
	for _, cat := range categoryOrder {
		table := categoryTables[cat]
		count := 0
		for _, t := range members {
			if table[t.Classification.Label] {
				count++
			}
		}
		if count > bestCount {
			best = cat
			bestCount = count
		}
	}
	if bestCount > 0 {
		return best
	}
	return platformFallback(members)
}

// platformFallback categorizes by the majority platform hint when no
// classification tally lands.
func platformFallback(members []tracker.Track) string {
	counts := map[string]int{}
	for _, t := range members {
		counts[t.Platform.Type]++
	}
	switch maxKey(counts) {
	case classify.PlatformGroundBased, classify.PlatformFixedSite:
		return CategoryGroundForce
	case classify.PlatformNaval:
		return CategoryNaval
	case classify.PlatformAirborne:
		return CategoryAir
	default:
		return CategoryUnknown
	}
}

func maxKey(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best, bestCount := "", 0
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best
}

func elementType(category string, members []tracker.Track) string {
	switch category {
	case CategoryAirDefense:
		return determineAirDefenseType(members)
	case CategoryGroundForce:
		return determineGroundForceType(members)
	case CategoryCommunications:
		return "communications-node"
	case CategoryNaval:
		return "naval-group"
	case CategoryAir:
		return "air-asset"
	default:
		return "unknown-element"
	}
}

// determineAirDefenseType refines an air-defense cluster: surveillance plus
// fire-control together indicate an integrated system.
func determineAirDefenseType(members []tracker.Track) string {
	var hasSurveillance, hasFireControl, hasEarlyWarning bool
	for _, t := range members {
		switch t.Classification.Label {
		case classify.LabelEarlyWarning:
			hasEarlyWarning = true
			hasSurveillance = true
		case classify.LabelAcquisition, classify.LabelAirSurveillance, classify.LabelSurveillance:
			hasSurveillance = true
		case classify.LabelFireControl, classify.LabelMultifunction:
			hasFireControl = true
		}
	}
	switch {
	case hasSurveillance && hasFireControl:
		return "integrated-air-defense"
	case hasFireControl:
		return "sam-battery"
	case hasEarlyWarning:
		return "early-warning-site"
	default:
		return "air-defense-element"
	}
}

func determineGroundForceType(members []tracker.Track) string {
	for _, t := range members {
		if t.Classification.Label == classify.LabelTargeting {
			return "artillery-unit"
		}
	}
	for _, t := range members {
		if t.Classification.Label == classify.LabelBattlefield {
			return "reconnaissance-unit"
		}
	}
	return "ground-force-element"
}

func memberFunction(label string) string {
	switch label {
	case classify.LabelFireControl, classify.LabelTargeting, classify.LabelSeeker, classify.LabelMultifunction:
		return FunctionEngagement
	case classify.LabelEarlyWarning, classify.LabelAcquisition, classify.LabelAirSurveillance,
		classify.LabelSurveillance, classify.LabelBattlefield:
		return FunctionSurveillance
	case classify.LabelTacticalComms:
		return FunctionCommandAndControl
	default:
		return FunctionSupport
	}
}

// elementConfidence is high when more than half the members are high
// confidence, medium when high plus medium members clear half, else low.
func elementConfidence(members []tracker.Track) signal.ConfidenceLevel {
	high, medium := 0, 0
	for _, t := range members {
		switch t.Confidence {
		case signal.ConfidenceHigh:
			high++
		case signal.ConfidenceMedium:
			medium++
		}
	}
	n := len(members)
	switch {
	case high*2 > n:
		return signal.ConfidenceHigh
	case (high+medium)*2 > n:
		return signal.ConfidenceMedium
	default:
		return signal.ConfidenceLow
	}
}

func center(members []tracker.Track) geo.LatLng {
	pts := make([]geo.LatLng, 0, len(members))
	for _, t := range members {
		if loc, ok := t.LatestLocation(); ok {
			pts = append(pts, loc.Location)
		}
	}
	return geo.Centroid(pts)
}
