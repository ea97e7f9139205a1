package stations

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"eventdash/internal/models"
)

// defaultTable covers the NEXRAD sites around the default event region.
// A STATIONS_FILE JSON array extends or replaces it without recompiling.
var defaultTable = []models.Station{
	{ID: "KMUX", Name: "San Francisco Bay Area", Location: models.Coordinate{Lat: 37.1551, Lon: -121.8984}},
	{ID: "KDAX", Name: "Sacramento", Location: models.Coordinate{Lat: 38.5011, Lon: -121.6778}},
	{ID: "KHNX", Name: "San Joaquin Valley", Location: models.Coordinate{Lat: 36.3142, Lon: -119.6321}},
	{ID: "KBBX", Name: "Beale AFB", Location: models.Coordinate{Lat: 39.4961, Lon: -121.6317}},
	{ID: "KBHX", Name: "Eureka", Location: models.Coordinate{Lat: 40.4986, Lon: -124.2919}},
	{ID: "KVTX", Name: "Los Angeles", Location: models.Coordinate{Lat: 34.4117, Lon: -119.1795}},
	{ID: "KEYX", Name: "Edwards AFB", Location: models.Coordinate{Lat: 35.0978, Lon: -117.5608}},
	{ID: "KRGX", Name: "Reno", Location: models.Coordinate{Lat: 39.7542, Lon: -119.4622}},
}

// Load returns the station table. When path is empty the compiled-in default
// table is returned; otherwise the JSON file at path replaces it entirely.
func Load(path string) ([]models.Station, error) {
	if path == "" {
		return defaultTable, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading station table: %w", err)
	}

	var table []models.Station
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing station table: %w", err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("station table %s is empty", path)
	}

	return table, nil
}

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two coordinates in
// kilometers.
func Haversine(a, b models.Coordinate) float64 {
	const rad = math.Pi / 180

	dLat := (b.Lat - a.Lat) * rad
	dLon := (b.Lon - a.Lon) * rad

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Nearest selects the candidate closest to target by great-circle distance.
// Ties go to the first candidate encountered, so the result is stable for a
// fixed table order. The candidate list must be non-empty.
func Nearest(target models.Coordinate, candidates []models.Station) (models.Station, float64) {
	best := candidates[0]
	bestDist := Haversine(target, best.Location)

	for _, s := range candidates[1:] {
		if d := Haversine(target, s.Location); d < bestDist {
			best = s
			bestDist = d
		}
	}

	return best, bestDist
}
