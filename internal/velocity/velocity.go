// Package velocity derives heading, speed and a mobility class from a
// track's recent location history. Segment speeds are weighted by location
// accuracy; the mean bearing uses the circular-mean technique so headings
// near north do not cancel out.
package velocity

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/geo"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/signal"
)

// Mobility classes derived from mean speed.
type Mobility string

const (
	MobilityStationary      Mobility = "stationary"
	MobilityQuasiStationary Mobility = "quasi-stationary"
	MobilitySlowMoving      Mobility = "slow-moving"
	MobilityStopAndGo       Mobility = "stop-and-go"
	MobilityMobile          Mobility = "mobile"
	MobilityHighlyMobile    Mobility = "highly-mobile"
)

// Speed thresholds (m/s) between mobility classes.
const (
	stationaryMaxMps      = 0.1
	quasiStationaryMaxMps = 1.0
	slowMovingMaxMps      = 5.0
	mobileMaxMps          = 15.0
)

// Variance thresholds for reliability assignment.
const (
	speedVarHigh      = 2.0    // below: consistent speed
	speedVarLow       = 10.0   // above: erratic
	bearingVarHighDeg = 400.0  // deg^2, below: consistent heading
	bearingVarLowDeg  = 2500.0 // deg^2, above: erratic
)

// MaxFixes is how many of a track's most recent locations feed the estimate.
const MaxFixes = 5

// Fix is one time-ordered location sample with its accuracy radius.
type Fix struct {
	Time      time.Time
	Location  geo.LatLng
	AccuracyM float64
}

// Estimate is the derived velocity and mobility state of a track.
type Estimate struct {
	SpeedMps           float64                `json:"speedMps"`
	HeadingDeg         float64                `json:"headingDeg"`
	SpeedVariance      float64                `json:"speedVariance"`
	HeadingVarianceDeg float64                `json:"headingVarianceDeg"`
	Reliability        signal.ConfidenceLevel `json:"reliability"`
	Mobility           Mobility               `json:"mobility"`
	SegmentCount       int                    `json:"segmentCount"`
}

// Estimate computes velocity from up to MaxFixes most recent fixes,
// time-ordered oldest first. Fewer than two usable segments yields zero
// speed and direction at low reliability rather than an error.
func EstimateFromFixes(fixes []Fix) Estimate {
	if len(fixes) > MaxFixes {
		fixes = fixes[len(fixes)-MaxFixes:]
	}

	type segment struct {
		speedMps   float64
		bearingDeg float64
		weight     float64
	}
	var segments []segment

	for i := 1; i < len(fixes); i++ {
		a, b := fixes[i-1], fixes[i]
		dt := b.Time.Sub(a.Time).Seconds()
		if dt <= 0 {
			continue
		}
		dist := geo.HaversineM(a.Location, b.Location)
		segments = append(segments, segment{
			speedMps:   dist / dt,
			bearingDeg: geo.InitialBearingDeg(a.Location, b.Location),
			// Accurate fix pairs count for more.
			weight: 1 / (1 + a.AccuracyM + b.AccuracyM),
		})
	}

	// A single segment cannot show consistency, so it contributes nothing:
	// zero speed and direction at low reliability, never an error.
	if len(segments) < 2 {
		return Estimate{
			Reliability:  signal.ConfidenceLow,
			Mobility:     MobilityStationary,
			SegmentCount: len(segments),
		}
	}

	speeds := make([]float64, len(segments))
	weights := make([]float64, len(segments))
	var sinSum, cosSum float64
	for i, s := range segments {
		speeds[i] = s.speedMps
		weights[i] = s.weight
		rad := s.bearingDeg * math.Pi / 180
		sinSum += s.weight * math.Sin(rad)
		cosSum += s.weight * math.Cos(rad)
	}

	meanSpeed := stat.Mean(speeds, weights)
	speedVar := stat.Variance(speeds, weights)

	meanBearing := math.Atan2(sinSum, cosSum) * 180 / math.Pi
	meanBearing = math.Mod(meanBearing+360, 360)

	// Circular variance: weighted mean of squared minimal angular
	// differences from the mean bearing.
	var bearingVar, weightSum float64
	for _, s := range segments {
		d := geo.AngularDiffDeg(s.bearingDeg, meanBearing)
		bearingVar += s.weight * d * d
		weightSum += s.weight
	}
	bearingVar /= weightSum

	erratic := speedVar > speedVarHigh

	return Estimate{
		SpeedMps:           meanSpeed,
		HeadingDeg:         meanBearing,
		SpeedVariance:      speedVar,
		HeadingVarianceDeg: bearingVar,
		Reliability:        reliability(speedVar, bearingVar),
		Mobility:           classifyMobility(meanSpeed, speedVar, erratic),
		SegmentCount:       len(segments),
	}
}

func reliability(speedVar, bearingVar float64) signal.ConfidenceLevel {
	if speedVar > speedVarLow || bearingVar > bearingVarLowDeg {
		return signal.ConfidenceLow
	}
	if speedVar < speedVarHigh && bearingVar < bearingVarHighDeg {
		return signal.ConfidenceHigh
	}
	return signal.ConfidenceMedium
}

func classifyMobility(meanSpeed, speedVar float64, erratic bool) Mobility {
	switch {
	case meanSpeed < stationaryMaxMps:
		return MobilityStationary
	case meanSpeed < quasiStationaryMaxMps:
		return MobilityQuasiStationary
	case meanSpeed < slowMovingMaxMps:
		if erratic {
			return MobilityStopAndGo
		}
		return MobilitySlowMoving
	case meanSpeed < mobileMaxMps:
		return MobilityMobile
	default:
		return MobilityHighlyMobile
	}
}
