package models

import (
	"time"
)

// DataType identifies one of the periodically fetched artifact streams.
// Each type owns its own cache subdirectory and scheduler interval.
type DataType string

const (
	TypeRadar   DataType = "radar"
	TypeMRMS    DataType = "mrms"
	TypeWeather DataType = "weather"
)

// Format tags the on-disk shape of a cached artifact. The extension is the
// only part of a filename that is not timestamp-derived, so lookup by
// timestamp tries formats in a per-type priority order.
type Format string

const (
	FormatImage       Format = "raster-image"           // rendered PNG
	FormatLoop        Format = "raster-loop"            // animated GIF from Ridge
	FormatGrid        Format = "compressed-grid"        // gzipped GRIB2
	FormatPlaceholder Format = "structured-placeholder" // JSON record
)

// Ext returns the file extension (without leading dot) for the format.
func (f Format) Ext() string {
	switch f {
	case FormatImage:
		return "png"
	case FormatLoop:
		return "gif"
	case FormatGrid:
		return "grib2.gz"
	case FormatPlaceholder:
		return "json"
	}
	return "bin"
}

// FormatForExt maps a file extension back to its format tag.
func FormatForExt(ext string) (Format, bool) {
	switch ext {
	case "png":
		return FormatImage, true
	case "gif":
		return FormatLoop, true
	case "grib2.gz":
		return FormatGrid, true
	case "json":
		return FormatPlaceholder, true
	}
	return "", false
}

// FetchResult describes one artifact produced by a pipeline run. Files are
// never mutated after the result is created, only deleted by retention
// trimming.
type FetchResult struct {
	Type      DataType  `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	Format    Format    `json:"format"`
}

// Placeholder is the JSON payload written when every real data source in a
// pipeline has failed. Its content doubles as its own cache record.
type Placeholder struct {
	Timestamp time.Time     `json:"timestamp"`
	Source    string        `json:"source"`
	Message   string        `json:"message"`
	Location  EventLocation `json:"location"`
}

// Observation is a normalized surface weather reading from any upstream.
type Observation struct {
	StationID    string    `json:"station_id"`
	Timestamp    time.Time `json:"timestamp"`
	TemperatureC float64   `json:"temperature_c"`
	HumidityPct  float64   `json:"humidity_pct"`
	WindSpeedMS  float64   `json:"wind_speed_ms"`
	WindGustMS   float64   `json:"wind_gust_ms"`
	PressureHpa  float64   `json:"pressure_hpa"`
	Conditions   string    `json:"conditions"`
	Source       string    `json:"source"`
}
