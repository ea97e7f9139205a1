package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"eventdash/internal/models"
	"eventdash/internal/observability"
	"eventdash/pkg/client"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const synopticOK = `{
  "STATION": [{
    "STID": "KSJC",
    "NAME": "San Jose Intl",
    "OBSERVATIONS": {
      "air_temp_value_1": {"value": 22.8, "date_time": "2026-08-25T12:00:00Z"},
      "relative_humidity_value_1": {"value": 54.0, "date_time": "2026-08-25T12:00:00Z"},
      "wind_speed_value_1": {"value": 4.1, "date_time": "2026-08-25T12:00:00Z"},
      "weather_summary_value_1d": {"value": "clear"}
    }
  }],
  "SUMMARY": {"RESPONSE_CODE": 1, "RESPONSE_MESSAGE": "OK"}
}`

const nwsOK = `{
  "properties": {
    "timestamp": "2026-08-25T11:55:00+00:00",
    "textDescription": "Haze",
    "temperature": {"value": 20.0},
    "windSpeed": {"value": 10.8},
    "relativeHumidity": {"value": 70.0},
    "seaLevelPressure": {"value": 101300}
  }
}`

func newWeatherPipeline(t *testing.T, synopticURL, nwsURL string) *WeatherPipeline {
	t.Helper()
	synoptic := client.NewSynopticClient(synopticURL, "testtoken", testClientConfig(), zap.NewNop())
	nws := client.NewNWSClient(nwsURL, testClientConfig(), zap.NewNop())
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 25, 12, 10, 0, 0, time.UTC))
	return NewWeatherPipeline(testEvent, newTestCache(t), synoptic, nws, "KSJC",
		clock, observability.NewMetricsForTesting(), zap.NewNop())
}

func downServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestWeatherPipeline_SynopticTier(t *testing.T) {
	synoptic := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, synopticOK)
	}))
	defer synoptic.Close()

	var nwsCalls int
	nws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nwsCalls++
		fmt.Fprint(w, nwsOK)
	}))
	defer nws.Close()

	p := newWeatherPipeline(t, synoptic.URL, nws.URL)

	res, err := p.FetchLatest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "synoptic", res.Source)
	assert.Zero(t, nwsCalls, "primary success must not reach the fallback")

	var obs models.Observation
	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &obs))
	assert.Equal(t, "KSJC", obs.StationID)
	assert.Equal(t, 22.8, obs.TemperatureC)
}

func TestWeatherPipeline_FallsBackToNWS(t *testing.T) {
	nws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stations/KSJC/observations/latest", r.URL.Path)
		fmt.Fprint(w, nwsOK)
	}))
	defer nws.Close()

	p := newWeatherPipeline(t, downServer(t).URL, nws.URL)

	res, err := p.FetchLatest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "nws", res.Source)
	assert.True(t, time.Date(2026, 8, 25, 11, 55, 0, 0, time.UTC).Equal(res.Timestamp))
}

func TestWeatherPipeline_ServesLastCachedObservation(t *testing.T) {
	p := newWeatherPipeline(t, downServer(t).URL, downServer(t).URL)

	obs := models.Observation{
		StationID:    "KSJC",
		Timestamp:    time.Date(2026, 8, 25, 11, 30, 0, 0, time.UTC),
		TemperatureC: 19.5,
		Source:       "synoptic",
	}
	data, err := json.Marshal(obs)
	require.NoError(t, err)
	_, err = p.store.Write(models.TypeWeather, obs.Timestamp, models.FormatPlaceholder, data)
	require.NoError(t, err)

	res, err := p.FetchLatest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "cache", res.Source)
	assert.True(t, obs.Timestamp.Equal(res.Timestamp))
}

func TestWeatherPipeline_CachedObservationOutlivesNewerPlaceholder(t *testing.T) {
	// An outage cycle leaves a placeholder as the newest weather entry. With
	// every upstream still down, the next cycle must reach past it and
	// re-serve the real observation underneath.
	p := newWeatherPipeline(t, downServer(t).URL, downServer(t).URL)

	obs := models.Observation{
		StationID:    "KSJC",
		Timestamp:    time.Date(2026, 8, 25, 11, 30, 0, 0, time.UTC),
		TemperatureC: 18.2,
		Source:       "synoptic",
	}
	data, err := json.Marshal(obs)
	require.NoError(t, err)
	_, err = p.store.Write(models.TypeWeather, obs.Timestamp, models.FormatPlaceholder, data)
	require.NoError(t, err)

	_, err = writePlaceholder(p.store, models.TypeWeather, testEvent,
		time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC), "outage")
	require.NoError(t, err)

	res, err := p.FetchLatest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "cache", res.Source)
	assert.True(t, obs.Timestamp.Equal(res.Timestamp))
}

func TestWeatherPipeline_CachedPlaceholderDoesNotCount(t *testing.T) {
	// A placeholder sitting in the cache is not an observation; with all
	// sources down the pipeline must write a fresh placeholder, not re-serve
	// the stale one as if it were data.
	p := newWeatherPipeline(t, downServer(t).URL, downServer(t).URL)

	stale := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	_, err := writePlaceholder(p.store, models.TypeWeather, testEvent, stale, "earlier outage")
	require.NoError(t, err)

	res, err := p.FetchLatest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "placeholder", res.Source)
	assert.True(t, time.Date(2026, 8, 25, 12, 10, 0, 0, time.UTC).Equal(res.Timestamp))
}

func TestWeatherPipeline_ExhaustionYieldsPlaceholder(t *testing.T) {
	p := newWeatherPipeline(t, downServer(t).URL, downServer(t).URL)

	res, err := p.FetchLatest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "placeholder", res.Source)
	assert.Equal(t, models.FormatPlaceholder, res.Format)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "unavailable")
}
