package signal

import (
	"fmt"
	"time"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/geo"
	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/monitoring"
)

// RawDetection is the wire shape of one incoming detection record.
type RawDetection struct {
	SignalID         string         `json:"signalId"`
	Timestamp        time.Time      `json:"timestamp"`
	ReceiverID       string         `json:"receiverId"`
	ReceiverLocation *geo.LatLngAlt `json:"receiverLocation,omitempty"`

	FrequencyMHz      float64 `json:"frequency"`
	SignalStrengthDBm float64 `json:"signalStrength"`
	AngleOfArrivalDeg float64 `json:"angleOfArrival"`

	Pulse struct {
		WidthUs             float64 `json:"width"`
		RepetitionFrequency float64 `json:"repetitionFrequency"`
		Pattern             string  `json:"pattern"`
	} `json:"pulse"`

	AdditionalParameters struct {
		Modulation   string `json:"modulation"`
		Polarization string `json:"polarization"`
	} `json:"additionalParameters"`
}

// validate reports why a raw record is unusable, or nil.
func (r *RawDetection) validate() error {
	if r.SignalID == "" {
		return fmt.Errorf("missing signalId")
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("missing timestamp")
	}
	if r.FrequencyMHz < 0 {
		return fmt.Errorf("negative frequency %f", r.FrequencyMHz)
	}
	if r.AngleOfArrivalDeg < 0 || r.AngleOfArrivalDeg >= 360 {
		return fmt.Errorf("angle of arrival %f out of [0,360)", r.AngleOfArrivalDeg)
	}
	return nil
}

// ParseDetections converts raw records to Detections. Malformed records are
// skipped and logged; a batch never fails as a whole. A missing receiver
// location is tolerated: the zero coordinate is attached and the record is
// logged, and such detections are excluded from multilateration geometry.
func ParseDetections(raw []RawDetection) []Detection {
	out := make([]Detection, 0, len(raw))
	for i := range raw {
		r := &raw[i]
		if err := r.validate(); err != nil {
			monitoring.Logf("signal: skipping malformed detection %d (%s): %v", i, r.SignalID, err)
			continue
		}

		d := Detection{
			SignalID:          r.SignalID,
			Timestamp:         r.Timestamp,
			ReceiverID:        r.ReceiverID,
			FrequencyMHz:      r.FrequencyMHz,
			SignalStrengthDBm: r.SignalStrengthDBm,
			AngleOfArrivalDeg: r.AngleOfArrivalDeg,
			PulseWidthUs:      r.Pulse.WidthUs,
			PulseRepetitionHz: r.Pulse.RepetitionFrequency,
			PulsePattern:      r.Pulse.Pattern,
			Modulation:        r.AdditionalParameters.Modulation,
			Polarization:      r.AdditionalParameters.Polarization,
		}

		if r.ReceiverLocation != nil {
			d.ReceiverLocation = *r.ReceiverLocation
			d.HasReceiverLocation = true
		} else {
			monitoring.Logf("signal: detection %s from %s has no receiver location, attaching default", r.SignalID, r.ReceiverID)
			d.ReceiverLocation = geo.LatLngAlt{}
		}

		out = append(out, d)
	}
	return out
}
