// Package geolocate resolves position estimates for candidate emitters by
// multilaterating the bearing rays of a signature group. Locate is a pure
// function over immutable detections and may run fully in parallel across
// groups.
package geolocate

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/geo"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/monitoring"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/signal"
)

const (
	// MinDeterminant rejects near-parallel bearing pairs.
	MinDeterminant = 1e-10

	// MaxIntersectionRangeM rejects intersections farther than 100 km from
	// either receiver as geometric outliers.
	MaxIntersectionRangeM = 100_000.0

	// FallbackAccuracyNoIntersectionsM is reported when no bearing pair
	// produced a usable intersection and the receiver centroid is used.
	FallbackAccuracyNoIntersectionsM = 800.0

	// FallbackAccuracyFewReceiversM is reported when fewer than three
	// receivers are usable and the first receiver's position is returned.
	FallbackAccuracyFewReceiversM = 500.0
)

// ErrNoUsableReceivers is returned when no detection in the group carries a
// receiver location; only then does geolocation yield no result.
var ErrNoUsableReceivers = errors.New("geolocate: no detections with usable receiver locations")

// Estimate is a geolocation result for one candidate emitter.
// Consumed once by the track store, after which exactly one track owns it.
type Estimate struct {
	Timestamp       time.Time              `json:"timestamp"`
	Location        geo.LatLng             `json:"location"`
	AccuracyM       float64                `json:"accuracy"`
	Confidence      signal.ConfidenceLevel `json:"confidenceLevel"`
	SignalIDs       []string               `json:"signalIds"`
	Characteristics signal.Characteristics `json:"characteristics"`
}

// Locate multilaterates a position estimate from a signature group.
//
// For every unordered pair of detections the bearing rays are intersected on
// a local tangent plane; near-parallel pairs and intersections beyond 100 km
// of either receiver are skipped. Each surviving intersection is weighted by
// the pair's mean linear signal power. The estimate is the weight-normalized
// centroid, with accuracy the RMS spread of intersections around it.
//
// Degraded inputs never fail: with no valid intersections the unweighted
// receiver centroid is returned at 800 m accuracy, and with fewer than three
// usable receivers the first receiver's position at 500 m. Only a group with
// zero usable receivers yields an error.
func Locate(dets []signal.Detection) (Estimate, error) {
	usable := make([]signal.Detection, 0, len(dets))
	for _, d := range dets {
		if d.HasReceiverLocation {
			usable = append(usable, d)
		}
	}
	if len(usable) == 0 {
		return Estimate{}, ErrNoUsableReceivers
	}

	est := Estimate{
		Timestamp:       latestTimestamp(dets),
		SignalIDs:       signalIDs(dets),
		Characteristics: signal.Aggregate(dets),
	}

	if len(usable) < signal.MinGroupForGeolocation {
		monitoring.Logf("geolocate: only %d usable receivers, returning first receiver position", len(usable))
		est.Location = usable[0].ReceiverLocation.LatLng()
		est.AccuracyM = FallbackAccuracyFewReceiversM
		est.Confidence = signal.ConfidenceLow
		return est, nil
	}

	plane := geo.NewTangentPlane(receiverCentroid(usable))

	type intersection struct {
		x, y, weight float64
	}
	var hits []intersection

	for i := 0; i < len(usable); i++ {
		for j := i + 1; j < len(usable); j++ {
			a, b := usable[i], usable[j]
			ax, ay := plane.Project(a.ReceiverLocation.LatLng())
			bx, by := plane.Project(b.ReceiverLocation.LatLng())

			x, y, ok := geo.RayIntersection(ax, ay, a.AngleOfArrivalDeg, bx, by, b.AngleOfArrivalDeg, MinDeterminant)
			if !ok {
				continue
			}
			if math.Hypot(x-ax, y-ay) > MaxIntersectionRangeM ||
				math.Hypot(x-bx, y-by) > MaxIntersectionRangeM {
				continue
			}

			// dBm to linear power; strong pairs dominate the centroid.
			w := (dbmToLinear(a.SignalStrengthDBm) + dbmToLinear(b.SignalStrengthDBm)) / 2
			hits = append(hits, intersection{x: x, y: y, weight: w})
		}
	}

	if len(hits) == 0 {
		monitoring.Logf("geolocate: no valid bearing intersections among %d receivers, using receiver centroid", len(usable))
		est.Location = receiverCentroid(usable)
		est.AccuracyM = FallbackAccuracyNoIntersectionsM
		est.Confidence = confidenceLevel(len(usable), est.AccuracyM, meanStrength(usable))
		return est, nil
	}

	var sumW, sumX, sumY float64
	for _, h := range hits {
		sumW += h.weight
		sumX += h.x * h.weight
		sumY += h.y * h.weight
	}
	cx := sumX / sumW
	cy := sumY / sumW

	// RMS distance of intersections from the weighted centroid.
	sq := make([]float64, len(hits))
	for i, h := range hits {
		d := math.Hypot(h.x-cx, h.y-cy)
		sq[i] = d * d
	}
	accuracy := math.Sqrt(stat.Mean(sq, nil))

	est.Location = plane.Unproject(cx, cy)
	est.AccuracyM = accuracy
	est.Confidence = confidenceLevel(len(usable), accuracy, meanStrength(usable))
	return est, nil
}

// confidenceLevel combines three weighted factors: detection count saturating
// at five, accuracy against 100/500/1000 m thresholds, and mean signal
// strength against -50/-70/-90 dBm thresholds.
func confidenceLevel(count int, accuracyM, meanDBm float64) signal.ConfidenceLevel {
	countFactor := math.Min(float64(count), 5) / 5

	var accFactor float64
	switch {
	case accuracyM < 100:
		accFactor = 1.0
	case accuracyM < 500:
		accFactor = 0.7
	case accuracyM < 1000:
		accFactor = 0.4
	default:
		accFactor = 0.2
	}

	var strengthFactor float64
	switch {
	case meanDBm > -50:
		strengthFactor = 1.0
	case meanDBm > -70:
		strengthFactor = 0.7
	case meanDBm > -90:
		strengthFactor = 0.4
	default:
		strengthFactor = 0.2
	}

	score := 0.4*countFactor + 0.3*accFactor + 0.3*strengthFactor
	switch {
	case score > 0.7:
		return signal.ConfidenceHigh
	case score > 0.4:
		return signal.ConfidenceMedium
	default:
		return signal.ConfidenceLow
	}
}

func dbmToLinear(dbm float64) float64 {
	return math.Pow(10, dbm/10)
}

func meanStrength(dets []signal.Detection) float64 {
	if len(dets) == 0 {
		return -120
	}
	var sum float64
	for _, d := range dets {
		sum += d.SignalStrengthDBm
	}
	return sum / float64(len(dets))
}

func receiverCentroid(dets []signal.Detection) geo.LatLng {
	pts := make([]geo.LatLng, len(dets))
	for i, d := range dets {
		pts[i] = d.ReceiverLocation.LatLng()
	}
	return geo.Centroid(pts)
}

func latestTimestamp(dets []signal.Detection) time.Time {
	var latest time.Time
	for _, d := range dets {
		if d.Timestamp.After(latest) {
			latest = d.Timestamp
		}
	}
	return latest
}

func signalIDs(dets []signal.Detection) []string {
	ids := make([]string, len(dets))
	for i, d := range dets {
		ids[i] = d.SignalID
	}
	return ids
}
