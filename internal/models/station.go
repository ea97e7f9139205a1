package models

// Coordinate is a geographic point in floating-point degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Station is one radar site from the station table. Immutable for the
// process lifetime.
type Station struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Location Coordinate `json:"location"`
}

// EventLocation is the dashboard's configured point of interest, loaded once
// at startup and read-only thereafter.
type EventLocation struct {
	Name       string     `json:"name"`
	Coordinate Coordinate `json:"coordinate"`
}
