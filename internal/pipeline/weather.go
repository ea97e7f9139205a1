package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"eventdash/internal/cache"
	"eventdash/internal/models"
	"eventdash/internal/observability"
	"eventdash/pkg/client"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// WeatherPipeline fetches the latest surface observation for the event
// location: Synoptic first, NWS second, the most recent cached observation
// third, placeholder last. Structurally the same chain as radar, with JSON
// artifacts throughout.
type WeatherPipeline struct {
	event      models.EventLocation
	store      *cache.Cache
	synoptic   *client.SynopticClient
	nws        *client.NWSClient
	nwsStation string
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *zap.Logger
}

func NewWeatherPipeline(
	event models.EventLocation,
	store *cache.Cache,
	synoptic *client.SynopticClient,
	nws *client.NWSClient,
	nwsStation string,
	clock clockwork.Clock,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *WeatherPipeline {
	return &WeatherPipeline{
		event:      event,
		store:      store,
		synoptic:   synoptic,
		nws:        nws,
		nwsStation: nwsStation,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchLatest runs the fallback chain; the placeholder tier guarantees it
// never errors.
func (p *WeatherPipeline) FetchLatest(ctx context.Context) (*models.FetchResult, error) {
	start := time.Now()
	defer func() {
		p.metrics.FetchDuration.WithLabelValues(string(models.TypeWeather)).Observe(time.Since(start).Seconds())
	}()

	return runChain(ctx, models.TypeWeather, []Strategy{
		{Name: "synoptic", Run: p.fetchSynoptic},
		{Name: "nws", Run: p.fetchNWS},
		{Name: "last-cached", Run: p.fetchCached},
		{Name: "placeholder", Run: p.fetchPlaceholder},
	}, p.metrics, p.logger)
}

func (p *WeatherPipeline) fetchSynoptic(ctx context.Context) (*models.FetchResult, error) {
	obs, err := p.synoptic.Latest(ctx, p.event.Coordinate)
	if err != nil {
		return nil, &models.TransientError{Source: "synoptic", Err: err}
	}
	return p.storeObservation(obs)
}

func (p *WeatherPipeline) fetchNWS(ctx context.Context) (*models.FetchResult, error) {
	obs, err := p.nws.LatestObservation(ctx, p.nwsStation)
	if err != nil {
		return nil, &models.TransientError{Source: "nws", Err: err}
	}
	return p.storeObservation(obs)
}

// fetchCached re-emits the newest cached observation. Placeholder entries are
// not observations; the scan skips past them so an outage record never
// shadows real data still on disk.
func (p *WeatherPipeline) fetchCached(ctx context.Context) (*models.FetchResult, error) {
	entries, err := p.store.ListRecent(models.TypeWeather, 0)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		data, err := os.ReadFile(e.Path)
		if err != nil {
			continue
		}
		var obs models.Observation
		if json.Unmarshal(data, &obs) != nil || obs.StationID == "" {
			continue
		}

		p.logger.Info("Serving last cached observation",
			zap.Time("observed_at", e.Timestamp),
			zap.String("station", obs.StationID))
		return resultFromEntry(e, "cache"), nil
	}

	return nil, fmt.Errorf("no cached observation to fall back on")
}

func (p *WeatherPipeline) fetchPlaceholder(ctx context.Context) (*models.FetchResult, error) {
	p.metrics.Placeholders.WithLabelValues(string(models.TypeWeather)).Inc()
	return writePlaceholder(p.store, models.TypeWeather, p.event, p.clock.Now(),
		"weather observations unavailable from all sources")
}

func (p *WeatherPipeline) storeObservation(obs *models.Observation) (*models.FetchResult, error) {
	data, err := json.MarshalIndent(obs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding observation: %w", err)
	}

	ts := obs.Timestamp.UTC().Truncate(time.Second)
	path, err := p.store.Write(models.TypeWeather, ts, models.FormatPlaceholder, data)
	if err != nil {
		return nil, err
	}

	return &models.FetchResult{
		Type:      models.TypeWeather,
		Timestamp: ts,
		Source:    obs.Source,
		Path:      path,
		SizeBytes: int64(len(data)),
		Format:    models.FormatPlaceholder,
	}, nil
}
