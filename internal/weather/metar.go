package weather

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// METAR field extraction. These cover the common US report shapes; fields
// that fail to parse are simply left unset.
var (
	windRe = regexp.MustCompile(`\b(\d{3}|VRB)(\d{2,3})(G(\d{2,3}))?KT\b`)
	tempRe = regexp.MustCompile(`\b(M?\d{2})/(M?\d{2})\b`)
	visRe  = regexp.MustCompile(`\b((P?\d+)(?: \d/\d)?|\d+/\d)SM\b`)
	ceilRe = regexp.MustCompile(`\b(BKN|OVC|VV)(\d{3})\b`)
)

// ParsedMETAR holds the fields the planner cares about. Pointers are nil
// when the report does not carry the field.
type ParsedMETAR struct {
	WindDirectionDeg *int     `json:"wind_direction,omitempty"` // nil for VRB
	WindSpeedKt      *int     `json:"wind_speed_kt,omitempty"`
	WindGustKt       *int     `json:"wind_gust_kt,omitempty"`
	VisibilitySM     *float64 `json:"visibility_sm,omitempty"`
	TemperatureF     *int     `json:"temperature_f,omitempty"`
	CeilingFt        *int     `json:"ceiling_ft,omitempty"`
}

// ParseMETAR extracts wind, visibility, temperature, and ceiling from a raw
// METAR string. Ceiling is the lowest broken, overcast, or vertical
// visibility layer.
func ParseMETAR(raw string) ParsedMETAR {
	var out ParsedMETAR

	if m := windRe.FindStringSubmatch(raw); m != nil {
		if m[1] != "VRB" {
			if dir, err := strconv.Atoi(m[1]); err == nil {
				out.WindDirectionDeg = &dir
			}
		}
		if spd, err := strconv.Atoi(m[2]); err == nil {
			out.WindSpeedKt = &spd
		}
		if m[4] != "" {
			if gust, err := strconv.Atoi(m[4]); err == nil {
				out.WindGustKt = &gust
			}
		}
	}

	if m := visRe.FindStringSubmatch(raw); m != nil {
		if vis, ok := parseVisibilitySM(m[1]); ok {
			out.VisibilitySM = &vis
		}
	}

	if m := tempRe.FindStringSubmatch(raw); m != nil {
		if c, ok := parseSignedTemp(m[1]); ok {
			f := int(math.Round(float64(c)*9.0/5.0 + 32.0))
			out.TemperatureF = &f
		}
	}

	ceiling := 0
	for _, m := range ceilRe.FindAllStringSubmatch(raw, -1) {
		hundreds, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		ft := hundreds * 100
		if ceiling == 0 || ft < ceiling {
			ceiling = ft
		}
	}
	if ceiling > 0 {
		out.CeilingFt = &ceiling
	}

	return out
}

// parseVisibilitySM handles "10", "P6", "1/2", and "1 1/2" style tokens.
func parseVisibilitySM(token string) (float64, bool) {
	token = strings.TrimSuffix(strings.TrimSpace(token), "SM")

	if strings.HasPrefix(token, "P") {
		v, err := strconv.ParseFloat(token[1:], 64)
		return v, err == nil
	}

	if whole, frac, found := strings.Cut(token, " "); found {
		w, err := strconv.Atoi(whole)
		if err != nil {
			return 0, false
		}
		f, ok := parseFraction(frac)
		if !ok {
			return 0, false
		}
		return float64(w) + f, true
	}

	if strings.Contains(token, "/") {
		return parseFraction(token)
	}

	v, err := strconv.ParseFloat(token, 64)
	return v, err == nil
}

func parseFraction(token string) (float64, bool) {
	num, den, found := strings.Cut(token, "/")
	if !found {
		return 0, false
	}
	n, err1 := strconv.Atoi(num)
	d, err2 := strconv.Atoi(den)
	if err1 != nil || err2 != nil || d == 0 {
		return 0, false
	}
	return float64(n) / float64(d), true
}

func parseSignedTemp(token string) (int, bool) {
	if strings.HasPrefix(token, "M") {
		v, err := strconv.Atoi(token[1:])
		return -v, err == nil
	}
	v, err := strconv.Atoi(token)
	return v, err == nil
}
