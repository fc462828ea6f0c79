// Package classify infers platform type and candidate models for an emitter
// from its aggregated signal characteristics. Classification is a pure
// function over immutable characteristics; the track store re-invokes it as
// tracks accumulate detections.
package classify

import (
	"math"

	"github.com/Team-Zarathustra/Zarathustra-Warsaw-sub001/internal/signal"
)

// Classification labels for emitters, tallied by the order-of-battle builder.
const (
	LabelEarlyWarning      = "early-warning-radar"
	LabelAcquisition       = "acquisition-radar"
	LabelAirSurveillance   = "air-surveillance-radar"
	LabelSurveillance      = "surveillance-radar"
	LabelMultifunction     = "multifunction-radar"
	LabelFireControl       = "fire-control-radar"
	LabelTargeting         = "targeting-radar"
	LabelBattlefield       = "battlefield-surveillance-radar"
	LabelSeeker            = "seeker-radar"
	LabelTacticalComms     = "tactical-communications"
	LabelUnknown           = "unknown"
)

// Platform type hints used by the order-of-battle fallback rules.
const (
	PlatformGroundBased = "ground-based"
	PlatformFixedSite   = "fixed-site"
	PlatformAirborne    = "airborne"
	PlatformNaval       = "naval"
	PlatformUnknown     = "unknown"
)

// Result is a classification outcome: a label, a platform type, and a ranked
// list of candidate models. Missing frequency data yields LabelUnknown at low
// confidence with no models, never a fabricated model name.
type Result struct {
	Label        string                 `json:"classification"`
	Confidence   signal.ConfidenceLevel `json:"confidence"`
	PlatformType string                 `json:"platformType"`
	Models       []string               `json:"candidateModels,omitempty"`
}

// band is one of nine named radar/communication frequency bands.
type band struct {
	name         string
	minMHz       float64
	maxMHz       float64
	label        string
	platformType string
	models       []string
}

// bands in ascending frequency order. Mid-frequency lookup walks this table.
var bands = []band{
	{"VHF", 30, 300, LabelEarlyWarning, PlatformFixedSite, []string{"P-18 Spoon Rest D", "1L13 Nebo-SV", "P-12 Spoon Rest A"}},
	{"UHF", 300, 1000, LabelAcquisition, PlatformFixedSite, []string{"P-15 Flat Face", "1L119 Nebo-SVU"}},
	{"L", 1000, 2000, LabelAirSurveillance, PlatformGroundBased, []string{"96L6E", "76N6 Clam Shell"}},
	{"S", 2000, 4000, LabelSurveillance, PlatformGroundBased, []string{"64N6E Big Bird", "9S18M1 Snow Drift", "JY-27"}},
	{"C", 4000, 8000, LabelMultifunction, PlatformGroundBased, []string{"9S32 Grill Pan", "30N6E2"}},
	{"X", 8000, 12000, LabelFireControl, PlatformGroundBased, []string{"30N6E Flap Lid", "9S35 Fire Dome", "SNR-75"}},
	{"Ku", 12000, 18000, LabelTargeting, PlatformGroundBased, []string{"9S36", "Zoopark-1"}},
	{"K", 18000, 27000, LabelBattlefield, PlatformGroundBased, []string{"SNAR-10", "PSNR-8"}},
	{"Ka", 27000, 40000, LabelSeeker, PlatformAirborne, []string{"9B-1103M", "ARGS-14"}},
}

// amFMModulations trigger reclassification of VHF/UHF emitters as
// tactical communications rather than radar.
var amFMModulations = map[string]bool{
	"AM": true, "FM": true, "am": true, "fm": true,
	"NFM": true, "WFM": true, "nfm": true, "wfm": true,
}

// Classify maps aggregated characteristics to a classification result.
func Classify(c signal.Characteristics) Result {
	mid := c.MidFrequencyMHz()
	if mid <= 0 {
		return Result{
			Label:        LabelUnknown,
			Confidence:   signal.ConfidenceLow,
			PlatformType: PlatformUnknown,
		}
	}

	// HF and below is communications territory, not radar.
	if mid < 30 {
		return Result{
			Label:        LabelTacticalComms,
			Confidence:   signal.ConfidenceMedium,
			PlatformType: PlatformGroundBased,
			Models:       []string{"HF field radio"},
		}
	}

	b := bandFor(mid)
	if b == nil {
		// Above Ka: out of every table we know.
		return Result{
			Label:        LabelUnknown,
			Confidence:   signal.ConfidenceLow,
			PlatformType: PlatformUnknown,
		}
	}

	// VHF/UHF emitters carrying voice modulation are comms, not radar.
	if (b.name == "VHF" || b.name == "UHF") && hasAMFM(c.Modulations) {
		return Result{
			Label:        LabelTacticalComms,
			Confidence:   signal.ConfidenceHigh,
			PlatformType: PlatformGroundBased,
			Models:       []string{"VHF/UHF tactical radio"},
		}
	}

	res := Result{
		Label:        b.label,
		Confidence:   signal.ConfidenceMedium,
		PlatformType: b.platformType,
		Models:       append([]string(nil), b.models...),
	}
	refine(&res, b, c)
	return res
}

// refine narrows the candidate model list and raises confidence when
// distinctive pulse traits match.
func refine(res *Result, b *band, c signal.Characteristics) {
	prf := c.PulseRepetitionHz

	switch b.name {
	case "VHF":
		// The 250-350 Hz PRF window is the signature of the P-18 family.
		if prf >= 250 && prf <= 350 {
			res.Models = []string{"P-18 Spoon Rest D"}
			res.Confidence = signal.ConfidenceHigh
		}
	case "S":
		if prf >= 250 && prf <= 400 {
			res.Models = []string{"9S18M1 Snow Drift", "64N6E Big Bird"}
			res.Confidence = signal.ConfidenceHigh
		}
	case "X":
		if prf > 1500 {
			// High-PRF X-band points at engagement radars.
			res.Models = []string{"30N6E Flap Lid", "9S35 Fire Dome"}
			res.Confidence = signal.ConfidenceHigh
		}
	}

	// Frequency agility above 3% of the mid frequency marks a modern,
	// jam-resistant set and promotes the first-ranked model.
	if agility(c) > 0.03 && res.Confidence == signal.ConfidenceMedium {
		res.Confidence = signal.ConfidenceHigh
	}
}

func agility(c signal.Characteristics) float64 {
	mid := c.MidFrequencyMHz()
	if mid <= 0 {
		return 0
	}
	return math.Abs(c.FrequencyMaxMHz-c.FrequencyMinMHz) / mid
}

func bandFor(midMHz float64) *band {
	for i := range bands {
		if midMHz >= bands[i].minMHz && midMHz < bands[i].maxMHz {
			return &bands[i]
		}
	}
	return nil
}

func hasAMFM(mods []string) bool {
	for _, m := range mods {
		if amFMModulations[m] {
			return true
		}
	}
	return false
}
