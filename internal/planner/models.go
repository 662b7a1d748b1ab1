package planner

import "math"

// Request is a route planning request. Codes may be ICAO or IATA.
type Request struct {
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	Speed       float64 `json:"speed"`
	SpeedUnit   string  `json:"speed_unit,omitempty"` // "knots" (default) or "mph"
	AltitudeFt  int     `json:"altitude"`

	AvoidAirspaces    bool `json:"avoid_airspaces,omitempty"`
	AvoidTerrain      bool `json:"avoid_terrain,omitempty"`
	ApplyWind         bool `json:"apply_wind,omitempty"`
	IncludeAlternates bool `json:"include_alternates,omitempty"`

	PlanFuelStops     bool     `json:"plan_fuel_stops,omitempty"`
	AircraftRangeNM   *float64 `json:"aircraft_range_nm,omitempty"`
	FuelOnBoardGal    *float64 `json:"fuel_on_board_gal,omitempty"`
	FuelBurnGPH       *float64 `json:"fuel_burn_gph,omitempty"`
	ReserveMinutes    int      `json:"reserve_minutes,omitempty"`
	FuelStrategy      string   `json:"fuel_strategy,omitempty"` // "fewest_stops" (default) or "economy"
	MaxLegDistanceNM  float64  `json:"max_leg_distance,omitempty"`
}

// SpeedKt returns the requested true airspeed in knots.
func (r *Request) SpeedKt() float64 {
	if r.SpeedUnit == "mph" {
		return r.Speed * 0.868976
	}
	return r.Speed
}

// Segment is one piece of the planned route geometry. Start and End are
// [lat, lon] pairs.
type Segment struct {
	Start       [2]float64 `json:"start"`
	End         [2]float64 `json:"end"`
	Type        string     `json:"type"` // climb, cruise, descent
	VFRAltitude int        `json:"vfr_altitude"`
}

// Leg is one row of the navigation log: airport to airport, with courses,
// time en route, and running elapsed time including refuel ground time.
type Leg struct {
	From          string  `json:"from"`
	To            string  `json:"to"`
	DistanceNM    float64 `json:"distance_nm"`
	TrueCourseDeg float64 `json:"true_course_deg"`
	MagCourseDeg  float64 `json:"mag_course_deg"`
	GroundspeedKt float64 `json:"groundspeed_kt"`
	ETEMin        float64 `json:"ete_min"`
	ElapsedMin    float64 `json:"elapsed_min"`
	RefuelStop    bool    `json:"refuel_stop"`
	RefuelMin     int     `json:"refuel_min,omitempty"`
}

// Plan is the planning result. Partial plans emitted during streaming use
// the same shape with later fields unset.
type Plan struct {
	Route             []string   `json:"route"`
	DistanceNM        float64    `json:"distance_nm"`
	TimeHr            float64    `json:"time_hr"`
	OriginCoords      [2]float64 `json:"origin_coords"`
	DestinationCoords [2]float64 `json:"destination_coords"`
	Segments          []Segment  `json:"segments"`
	Legs              []Leg      `json:"legs,omitempty"`
	FuelStops         []string   `json:"fuel_stops,omitempty"`

	Alternates interface{} `json:"alternates,omitempty"`

	FuelBurnGPH                *float64 `json:"fuel_burn_gph,omitempty"`
	ReserveMinutes             *int     `json:"reserve_minutes,omitempty"`
	FuelRequiredGal            *float64 `json:"fuel_required_gal,omitempty"`
	FuelRequiredWithReserveGal *float64 `json:"fuel_required_with_reserve_gal,omitempty"`

	WindSpeedKt      *float64 `json:"wind_speed_kt,omitempty"`
	WindDirectionDeg *int     `json:"wind_direction_deg,omitempty"`
	HeadwindKt       *float64 `json:"headwind_kt,omitempty"`
	CrosswindKt      *float64 `json:"crosswind_kt,omitempty"`
	GroundspeedKt    *float64 `json:"groundspeed_kt,omitempty"`
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
