package weather

import (
	"fmt"
	"math"
	"sort"
)

// FlightCategory is the standard ceiling/visibility classification.
type FlightCategory string

const (
	CategoryVFR     FlightCategory = "VFR"
	CategoryMVFR    FlightCategory = "MVFR"
	CategoryIFR     FlightCategory = "IFR"
	CategoryLIFR    FlightCategory = "LIFR"
	CategoryUnknown FlightCategory = "UNKNOWN"
)

// Category thresholds (ceiling ft / visibility SM).
const (
	vfrCeilingFt     = 3000
	vfrVisibilitySM  = 5.0
	mvfrCeilingFt    = 1000
	mvfrVisibilitySM = 3.0
	ifrCeilingFt     = 500
	ifrVisibilitySM  = 1.0
)

// Categorize classifies conditions. Either input nil yields UNKNOWN.
func Categorize(visibilitySM *float64, ceilingFt *float64) FlightCategory {
	if visibilitySM == nil || ceilingFt == nil {
		return CategoryUnknown
	}
	vis, ceil := *visibilitySM, *ceilingFt

	if vis < ifrVisibilitySM || ceil < ifrCeilingFt {
		return CategoryLIFR
	}
	if vis < mvfrVisibilitySM || ceil < mvfrCeilingFt {
		return CategoryIFR
	}
	if vis < vfrVisibilitySM || ceil < vfrCeilingFt {
		return CategoryMVFR
	}
	return CategoryVFR
}

// RecommendationFor returns pilot-facing guidance for a category.
func RecommendationFor(cat FlightCategory) string {
	switch cat {
	case CategoryVFR:
		return "VFR conditions. Routine VFR flight should be feasible."
	case CategoryMVFR:
		return "Marginal VFR conditions. Consider delaying, changing route, or filing IFR if qualified."
	case CategoryIFR:
		return "IFR conditions. VFR flight is not recommended."
	case CategoryLIFR:
		return "Low IFR conditions. VFR flight is not recommended."
	}
	return "Insufficient data to assess VFR/IFR suitability."
}

// WarningsFor lists condition warnings worth surfacing alongside a plan.
func WarningsFor(visibilitySM, ceilingFt, windSpeedKt *float64) []string {
	var out []string
	if visibilitySM != nil && *visibilitySM < 5 {
		out = append(out, fmt.Sprintf("Reduced visibility (%.1f SM).", *visibilitySM))
	}
	if ceilingFt != nil && *ceilingFt < 3000 {
		out = append(out, fmt.Sprintf("Low ceiling (%.0f ft).", *ceilingFt))
	}
	if windSpeedKt != nil && *windSpeedKt >= 20 {
		out = append(out, fmt.Sprintf("High winds (%.0f kt).", *windSpeedKt))
	}
	return out
}

// EstimateCeilingFtFromCloudCover converts a cloud cover percentage into a
// rough ceiling. Coarse, but enough to rank forecast hours against each
// other.
func EstimateCeilingFtFromCloudCover(cloudPct *float64) *float64 {
	if cloudPct == nil {
		return nil
	}
	var ft float64
	switch {
	case *cloudPct >= 75:
		ft = 1500
	case *cloudPct >= 50:
		ft = 3000
	case *cloudPct >= 25:
		ft = 5000
	default:
		ft = 10000
	}
	return &ft
}

// HourlyConditions is one forecast hour used for departure window scoring.
type HourlyConditions struct {
	Time            string
	VisibilityM     *float64
	CloudCoverPct   *float64
	PrecipitationMM *float64
	WindSpeedKt     *float64
}

// DepartureWindow is a scored span of consecutive forecast hours.
type DepartureWindow struct {
	StartTime      string         `json:"start_time"`
	EndTime        string         `json:"end_time"`
	Score          float64        `json:"score"`
	FlightCategory FlightCategory `json:"flight_category"`
}

// ScoreConditions rates a set of conditions; higher is better. Category
// dominates, with precipitation and winds above 10 kt as penalties.
func ScoreConditions(cat FlightCategory, precipitationMM, windSpeedKt *float64) float64 {
	catWeight := map[FlightCategory]float64{
		CategoryVFR: 4, CategoryMVFR: 3, CategoryIFR: 2, CategoryLIFR: 1, CategoryUnknown: 0.5,
	}[cat]

	precip := 0.0
	if precipitationMM != nil && *precipitationMM > 0 {
		precip = *precipitationMM
	}
	wind := 0.0
	if windSpeedKt != nil && *windSpeedKt > 0 {
		wind = *windSpeedKt
	}
	return catWeight*100 - precip*15 - math.Max(0, wind-10)*2
}

// BestDepartureWindows slides a window over the hourly forecast and returns
// the top-scoring spans, best first.
func BestDepartureWindows(hourly []HourlyConditions, windowHours, maxWindows int) []DepartureWindow {
	if windowHours < 1 || len(hourly) < windowHours {
		return nil
	}

	var windows []DepartureWindow
	for i := 0; i+windowHours <= len(hourly); i++ {
		span := hourly[i : i+windowHours]

		visSM := metersToSM(meanOf(span, func(h HourlyConditions) *float64 { return h.VisibilityM }))
		ceiling := EstimateCeilingFtFromCloudCover(meanOf(span, func(h HourlyConditions) *float64 { return h.CloudCoverPct }))
		precip := meanOf(span, func(h HourlyConditions) *float64 { return h.PrecipitationMM })
		wind := meanOf(span, func(h HourlyConditions) *float64 { return h.WindSpeedKt })

		cat := Categorize(visSM, ceiling)
		score := ScoreConditions(cat, precip, wind)

		windows = append(windows, DepartureWindow{
			StartTime:      span[0].Time,
			EndTime:        span[len(span)-1].Time,
			Score:          math.Round(score*10) / 10,
			FlightCategory: cat,
		})
	}

	sort.SliceStable(windows, func(i, j int) bool {
		return windows[i].Score > windows[j].Score
	})
	if len(windows) > maxWindows {
		windows = windows[:maxWindows]
	}
	return windows
}

func meanOf(span []HourlyConditions, get func(HourlyConditions) *float64) *float64 {
	sum, n := 0.0, 0
	for _, h := range span {
		if v := get(h); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	m := sum / float64(n)
	return &m
}

func metersToSM(meters *float64) *float64 {
	if meters == nil {
		return nil
	}
	sm := *meters / 1609.34
	return &sm
}
