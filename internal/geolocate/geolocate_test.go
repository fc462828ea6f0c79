package geolocate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/geo"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/monitoring"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/signal"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

// bearingDetection builds a detection whose angle of arrival points exactly
// at the target emitter.
func bearingDetection(id string, rx geo.LatLng, target geo.LatLng, strengthDBm float64, ts time.Time) signal.Detection {
	return signal.Detection{
		SignalID:            id,
		Timestamp:           ts,
		ReceiverID:          "rx-" + id,
		ReceiverLocation:    geo.LatLngAlt{Lat: rx.Lat, Lng: rx.Lng},
		HasReceiverLocation: true,
		FrequencyMHz:        2840,
		SignalStrengthDBm:   strengthDBm,
		AngleOfArrivalDeg:   geo.InitialBearingDeg(rx, target),
		PulseWidthUs:        1.2,
		PulseRepetitionHz:   300,
		Modulation:          "pulse",
	}
}

func TestLocate_TriangulatesKnownEmitter(t *testing.T) {
	emitter := geo.LatLng{Lat: 47.8345, Lng: 35.1645}
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	dets := []signal.Detection{
		bearingDetection("s1", geo.LatLng{Lat: 47.90, Lng: 35.05}, emitter, -60, ts),
		bearingDetection("s2", geo.LatLng{Lat: 47.76, Lng: 35.08}, emitter, -62, ts.Add(time.Second)),
		bearingDetection("s3", geo.LatLng{Lat: 47.82, Lng: 35.30}, emitter, -58, ts.Add(2*time.Second)),
	}

	est, err := Locate(dets)
	require.NoError(t, err)

	errM := geo.HaversineM(est.Location, emitter)
	assert.Less(t, errM, 200.0, "resolved position should be within 200 m of truth, got %.1f m", errM)
	assert.LessOrEqual(t, errM, est.AccuracyM+200, "true position should lie near the reported accuracy radius")
	assert.GreaterOrEqual(t, est.Confidence.Rank(), signal.ConfidenceMedium.Rank())
	assert.Equal(t, []string{"s1", "s2", "s3"}, est.SignalIDs)
	assert.Equal(t, ts.Add(2*time.Second), est.Timestamp)
	assert.Equal(t, 2840.0, est.Characteristics.MidFrequencyMHz())
}

func TestLocate_NoUsableReceivers(t *testing.T) {
	dets := []signal.Detection{
		{SignalID: "s1", HasReceiverLocation: false},
		{SignalID: "s2", HasReceiverLocation: false},
	}
	_, err := Locate(dets)
	assert.ErrorIs(t, err, ErrNoUsableReceivers)
}

func TestLocate_FewerThanThreeReceivers(t *testing.T) {
	emitter := geo.LatLng{Lat: 47.8345, Lng: 35.1645}
	ts := time.Now()
	dets := []signal.Detection{
		bearingDetection("s1", geo.LatLng{Lat: 47.90, Lng: 35.05}, emitter, -60, ts),
		bearingDetection("s2", geo.LatLng{Lat: 47.76, Lng: 35.08}, emitter, -62, ts),
	}

	est, err := Locate(dets)
	require.NoError(t, err)

	assert.Equal(t, geo.LatLng{Lat: 47.90, Lng: 35.05}, est.Location, "falls back to first receiver position")
	assert.Equal(t, FallbackAccuracyFewReceiversM, est.AccuracyM)
	assert.Equal(t, signal.ConfidenceLow, est.Confidence)
}

func TestLocate_ParallelBearingsFallBackToCentroid(t *testing.T) {
	ts := time.Now()
	mk := func(id string, lat, lng float64) signal.Detection {
		return signal.Detection{
			SignalID:            id,
			Timestamp:           ts,
			ReceiverLocation:    geo.LatLngAlt{Lat: lat, Lng: lng},
			HasReceiverLocation: true,
			FrequencyMHz:        2840,
			SignalStrengthDBm:   -80,
			AngleOfArrivalDeg:   0, // all looking due north: no intersections
		}
	}
	dets := []signal.Detection{
		mk("s1", 47.80, 35.10),
		mk("s2", 47.80, 35.15),
		mk("s3", 47.80, 35.20),
	}

	est, err := Locate(dets)
	require.NoError(t, err)

	assert.Equal(t, FallbackAccuracyNoIntersectionsM, est.AccuracyM)
	assert.InDelta(t, 47.80, est.Location.Lat, 1e-9)
	assert.InDelta(t, 35.15, est.Location.Lng, 1e-9)
}

func TestLocate_RejectsFarIntersections(t *testing.T) {
	// Two nearly-parallel bearings from close receivers intersect hundreds
	// of kilometers away; the outlier must be rejected, leaving the third
	// receiver's pairs to resolve nothing (also near-parallel), so the
	// centroid fallback applies.
	ts := time.Now()
	mk := func(id string, lat, lng, aoa float64) signal.Detection {
		return signal.Detection{
			SignalID:            id,
			Timestamp:           ts,
			ReceiverLocation:    geo.LatLngAlt{Lat: lat, Lng: lng},
			HasReceiverLocation: true,
			SignalStrengthDBm:   -70,
			AngleOfArrivalDeg:   aoa,
		}
	}
	dets := []signal.Detection{
		mk("s1", 47.80, 35.10, 10.0),
		mk("s2", 47.80, 35.11, 10.2),
		mk("s3", 47.80, 35.12, 10.4),
	}

	est, err := Locate(dets)
	require.NoError(t, err)
	assert.Equal(t, FallbackAccuracyNoIntersectionsM, est.AccuracyM)
}

func TestConfidenceLevel_Factors(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		accuracyM float64
		meanDBm   float64
		want      signal.ConfidenceLevel
	}{
		{"strong close many", 5, 50, -40, signal.ConfidenceHigh},
		{"typical", 3, 300, -65, signal.ConfidenceMedium},
		{"weak far few", 1, 5000, -100, signal.ConfidenceLow},
		{"many but inaccurate", 5, 2000, -95, signal.ConfidenceMedium},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, confidenceLevel(tc.count, tc.accuracyM, tc.meanDBm))
		})
	}
}
