package velocity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/geo"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/signal"
)

// fixesAlongTrack builds fixes moving north at a constant speed.
func fixesAlongTrack(start geo.LatLng, speedMps float64, interval time.Duration, n int, accuracyM float64) []Fix {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fixes := make([]Fix, n)
	// 1 degree latitude ~= 111.2 km.
	degPerMeter := 1.0 / 111200.0
	for i := range fixes {
		dt := time.Duration(i) * interval
		fixes[i] = Fix{
			Time:      t0.Add(dt),
			Location:  geo.LatLng{Lat: start.Lat + speedMps*dt.Seconds()*degPerMeter, Lng: start.Lng},
			AccuracyM: accuracyM,
		}
	}
	return fixes
}

func TestEstimate_ConstantNorthboundSpeed(t *testing.T) {
	fixes := fixesAlongTrack(geo.LatLng{Lat: 47.8, Lng: 35.1}, 10.0, 30*time.Second, 5, 50)

	est := EstimateFromFixes(fixes)

	assert.Equal(t, 4, est.SegmentCount)
	assert.InDelta(t, 10.0, est.SpeedMps, 0.2)
	assert.InDelta(t, 0.0, geo.AngularDiffDeg(est.HeadingDeg, 0), 1.0, "heading should be due north")
	assert.Equal(t, signal.ConfidenceHigh, est.Reliability)
	assert.Equal(t, MobilityMobile, est.Mobility)
}

func TestEstimate_Stationary(t *testing.T) {
	p := geo.LatLng{Lat: 47.8, Lng: 35.1}
	t0 := time.Now()
	fixes := []Fix{
		{Time: t0, Location: p, AccuracyM: 100},
		{Time: t0.Add(time.Minute), Location: p, AccuracyM: 100},
		{Time: t0.Add(2 * time.Minute), Location: p, AccuracyM: 100},
	}

	est := EstimateFromFixes(fixes)
	assert.InDelta(t, 0.0, est.SpeedMps, 1e-9)
	assert.Equal(t, MobilityStationary, est.Mobility)
}

func TestEstimate_FewerThanTwoSegments(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		est := EstimateFromFixes(nil)
		assert.Equal(t, 0.0, est.SpeedMps)
		assert.Equal(t, 0.0, est.HeadingDeg)
		assert.Equal(t, signal.ConfidenceLow, est.Reliability)
	})

	t.Run("single fix", func(t *testing.T) {
		est := EstimateFromFixes([]Fix{{Time: time.Now(), Location: geo.LatLng{Lat: 47.8, Lng: 35.1}}})
		assert.Equal(t, 0.0, est.SpeedMps)
		assert.Equal(t, signal.ConfidenceLow, est.Reliability)
	})

	t.Run("one segment yields zero speed and direction", func(t *testing.T) {
		// Two fixes 300 m and 30 s apart form one segment; a single
		// displacement cannot show consistency, so no velocity is claimed.
		fixes := fixesAlongTrack(geo.LatLng{Lat: 47.8, Lng: 35.1}, 10.0, 30*time.Second, 2, 50)
		est := EstimateFromFixes(fixes)
		assert.Equal(t, 1, est.SegmentCount)
		assert.Equal(t, 0.0, est.SpeedMps)
		assert.Equal(t, 0.0, est.HeadingDeg)
		assert.Equal(t, MobilityStationary, est.Mobility)
		assert.Equal(t, signal.ConfidenceLow, est.Reliability)
	})
}

func TestEstimate_NorthWraparoundBearing(t *testing.T) {
	// Alternate headings 350 and 10 degrees: naive averaging gives 180,
	// circular mean gives 0.
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := geo.LatLng{Lat: 47.8, Lng: 35.1}
	step := 300.0 / 111200.0 // ~300 m per hop

	fixes := []Fix{
		{Time: t0, Location: p, AccuracyM: 20},
		{Time: t0.Add(30 * time.Second), Location: geo.LatLng{Lat: p.Lat + step*0.985, Lng: p.Lng - step*0.174/0.67}, AccuracyM: 20},
		{Time: t0.Add(60 * time.Second), Location: geo.LatLng{Lat: p.Lat + 2*step*0.985, Lng: p.Lng}, AccuracyM: 20},
	}

	est := EstimateFromFixes(fixes)
	assert.Less(t, geo.AngularDiffDeg(est.HeadingDeg, 0), 15.0,
		"circular mean of ~350 and ~10 degrees should be near north, got %v", est.HeadingDeg)
}

func TestEstimate_UsesOnlyRecentFixes(t *testing.T) {
	// 10 fixes; only the last MaxFixes should matter. Early fixes move
	// fast, late fixes are stationary.
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var fixes []Fix
	for i := 0; i < 6; i++ {
		fixes = append(fixes, Fix{
			Time:      t0.Add(time.Duration(i) * time.Minute),
			Location:  geo.LatLng{Lat: 47.8 + float64(i)*0.01, Lng: 35.1},
			AccuracyM: 50,
		})
	}
	stationaryAt := fixes[len(fixes)-1].Location
	for i := 6; i < 11; i++ {
		fixes = append(fixes, Fix{
			Time:      t0.Add(time.Duration(i) * time.Minute),
			Location:  stationaryAt,
			AccuracyM: 50,
		})
	}

	est := EstimateFromFixes(fixes)
	assert.Equal(t, MobilityStationary, est.Mobility, "only the last five fixes feed the estimate")
}

func TestClassifyMobility(t *testing.T) {
	tests := []struct {
		name    string
		speed   float64
		erratic bool
		want    Mobility
	}{
		{"stationary", 0.05, false, MobilityStationary},
		{"quasi-stationary", 0.5, false, MobilityQuasiStationary},
		{"slow", 3, false, MobilitySlowMoving},
		{"stop and go", 3, true, MobilityStopAndGo},
		{"mobile", 12, false, MobilityMobile},
		{"highly mobile", 25, false, MobilityHighlyMobile},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyMobility(tc.speed, 0, tc.erratic))
		})
	}
}

func TestReliability(t *testing.T) {
	assert.Equal(t, signal.ConfidenceHigh, reliability(0.5, 100))
	assert.Equal(t, signal.ConfidenceMedium, reliability(5, 100))
	assert.Equal(t, signal.ConfidenceMedium, reliability(0.5, 1000))
	assert.Equal(t, signal.ConfidenceLow, reliability(20, 100))
	assert.Equal(t, signal.ConfidenceLow, reliability(0.5, 3000))
}
