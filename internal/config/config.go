package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Server struct {
		Port         string
		ReadTimeout  time.Duration
		WriteTimeout time.Duration
	}

	Event struct {
		Name string
		Lat  float64
		Lon  float64
	}

	Cache struct {
		DataDir string
	}

	Stations struct {
		File string // optional JSON table; empty uses the compiled-in default
	}

	Radar struct {
		Interval   time.Duration
		MaxEntries int
		RidgeURL   string
	}

	MRMS struct {
		Interval      time.Duration
		MaxEntries    int
		BucketURL     string
		Product       string
		LookbackHours int
	}

	Weather struct {
		Interval      time.Duration
		MaxEntries    int
		SynopticURL   string
		SynopticToken string
		NWSURL        string
		NWSStation    string
	}

	Renderer struct {
		RadarScript string
		GridScript  string
		Timeout     time.Duration
	}

	Client struct {
		Timeout         time.Duration
		DownloadTimeout time.Duration
		MaxRetries      int
		RetryDelay      time.Duration
		Multiplier      float64
		Threshold       int
		BreakerTimeout  time.Duration
		UserAgent       string
	}

	FetchTimeout time.Duration
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		zap.L().Info("No .env file found, using environment variables")
	}

	cfg := &Config{}

	// Server configuration
	cfg.Server.Port = getEnv("FIBER_PORT", "8080")
	cfg.Server.ReadTimeout = parseDuration(getEnv("FIBER_READ_TIMEOUT", "10s"))
	cfg.Server.WriteTimeout = parseDuration(getEnv("FIBER_WRITE_TIMEOUT", "30s"))

	// Event location
	cfg.Event.Name = getEnv("EVENT_NAME", "Event")
	cfg.Event.Lat = parseFloat(getEnv("EVENT_LAT", "37.403147"))
	cfg.Event.Lon = parseFloat(getEnv("EVENT_LON", "-121.969814"))

	// Cache
	cfg.Cache.DataDir = getEnv("DATA_DIR", "./data")

	// Station table
	cfg.Stations.File = getEnv("STATIONS_FILE", "")

	// Radar pipeline
	cfg.Radar.Interval = parseDuration(getEnv("RADAR_INTERVAL", "2m"))
	cfg.Radar.MaxEntries = parseInt(getEnv("RADAR_MAX_ENTRIES", "30"))
	cfg.Radar.RidgeURL = getEnv("RIDGE_URL", "https://radar.weather.gov")

	// MRMS pipeline
	cfg.MRMS.Interval = parseDuration(getEnv("MRMS_INTERVAL", "5m"))
	cfg.MRMS.MaxEntries = parseInt(getEnv("MRMS_MAX_ENTRIES", "24"))
	cfg.MRMS.BucketURL = getEnv("MRMS_BUCKET_URL", "https://noaa-mrms-pds.s3.amazonaws.com")
	cfg.MRMS.Product = getEnv("MRMS_PRODUCT", "MergedReflectivityQCComposite_00.50")
	cfg.MRMS.LookbackHours = parseInt(getEnv("MRMS_LOOKBACK_HOURS", "3"))

	// Weather pipeline
	cfg.Weather.Interval = parseDuration(getEnv("WEATHER_INTERVAL", "5m"))
	cfg.Weather.MaxEntries = parseInt(getEnv("WEATHER_MAX_ENTRIES", "100"))
	cfg.Weather.SynopticURL = getEnv("SYNOPTIC_URL", "https://api.synopticdata.com/v2")
	cfg.Weather.SynopticToken = getEnv("SYNOPTIC_TOKEN", "")
	cfg.Weather.NWSURL = getEnv("NWS_URL", "https://api.weather.gov")
	cfg.Weather.NWSStation = getEnv("NWS_STATION", "KSJC")

	// External renderer
	cfg.Renderer.RadarScript = getEnv("RADAR_RENDER_SCRIPT", "./scripts/render_radar.py")
	cfg.Renderer.GridScript = getEnv("GRID_RENDER_SCRIPT", "./scripts/render_grid.py")
	cfg.Renderer.Timeout = parseDuration(getEnv("RENDER_TIMEOUT", "120s"))

	// HTTP client behavior
	cfg.Client.Timeout = parseDuration(getEnv("HTTP_TIMEOUT", "15s"))
	cfg.Client.DownloadTimeout = parseDuration(getEnv("DOWNLOAD_TIMEOUT", "120s"))
	cfg.Client.MaxRetries = parseInt(getEnv("MAX_RETRIES", "3"))
	cfg.Client.RetryDelay = parseDuration(getEnv("RETRY_DELAY", "1s"))
	cfg.Client.Multiplier = parseFloat(getEnv("RETRY_MULTIPLIER", "2"))
	cfg.Client.Threshold = parseInt(getEnv("CIRCUIT_BREAKER_THRESHOLD", "3"))
	cfg.Client.BreakerTimeout = parseDuration(getEnv("CIRCUIT_BREAKER_TIMEOUT", "30s"))
	cfg.Client.UserAgent = getEnv("HTTP_USER_AGENT", "eventdash (dashboard backend)")

	// Upper bound on one scheduled fetch-and-trim cycle
	cfg.FetchTimeout = parseDuration(getEnv("FETCH_TIMEOUT", "150s"))

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(value string) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		zap.L().Warn("Failed to parse duration", zap.String("value", value), zap.Error(err))
		return 0
	}
	return duration
}

func parseInt(value string) int {
	intValue, err := strconv.Atoi(value)
	if err != nil {
		zap.L().Warn("Failed to parse int", zap.String("value", value), zap.Error(err))
		return 0
	}
	return intValue
}

func parseFloat(value string) float64 {
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		zap.L().Warn("Failed to parse float", zap.String("value", value), zap.Error(err))
		return 0
	}
	return floatValue
}
