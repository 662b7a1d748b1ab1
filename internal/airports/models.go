package airports

// Airport is one entry from the airport dataset. Codes are stored upper-case.
type Airport struct {
	ICAO         string  `json:"icao"`
	IATA         string  `json:"iata,omitempty"`
	Name         string  `json:"name"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	ElevationFt  float64 `json:"elevation_ft"`
	Type         string  `json:"type"` // large_airport, medium_airport, small_airport, heliport, ...
	Municipality string  `json:"municipality,omitempty"`
	Region       string  `json:"region,omitempty"`
	Country      string  `json:"country,omitempty"`
}

// HasFuel reports whether the airport is a plausible fuel stop. The dataset
// carries no fuel availability, so the planner treats every towered-or-larger
// field as refuelable and lets callers exclude heliports and closed fields.
func (a *Airport) HasFuel() bool {
	switch a.Type {
	case "large_airport", "medium_airport", "small_airport":
		return true
	}
	return false
}

// NearbyAirport pairs an airport with its distance from a query point.
type NearbyAirport struct {
	Airport    *Airport `json:"airport"`
	DistanceNM float64  `json:"distance_nm"`
}
