package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 37.403147, cfg.Event.Lat)
	assert.Equal(t, -121.969814, cfg.Event.Lon)
	assert.Equal(t, "./data", cfg.Cache.DataDir)
	assert.Equal(t, 2*time.Minute, cfg.Radar.Interval)
	assert.Equal(t, 24, cfg.MRMS.MaxEntries)
	assert.Equal(t, 3, cfg.MRMS.LookbackHours)
	assert.Equal(t, "KSJC", cfg.Weather.NWSStation)
	assert.Equal(t, 150*time.Second, cfg.FetchTimeout)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("FIBER_PORT", "9000")
	t.Setenv("EVENT_LAT", "40.5")
	t.Setenv("MRMS_LOOKBACK_HOURS", "6")
	t.Setenv("RADAR_INTERVAL", "45s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 40.5, cfg.Event.Lat)
	assert.Equal(t, 6, cfg.MRMS.LookbackHours)
	assert.Equal(t, 45*time.Second, cfg.Radar.Interval)
}

func TestParseHelpers_BadValuesFallToZero(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseDuration("soon"))
	assert.Equal(t, 0, parseInt("many"))
	assert.Equal(t, 0.0, parseFloat("far"))
}
