package pipeline

import (
	"context"
	"os"
	"time"

	"eventdash/internal/cache"
	"eventdash/internal/models"
	"eventdash/internal/observability"
	"eventdash/internal/render"
	"eventdash/internal/stations"
	"eventdash/pkg/client"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// RadarPipeline produces the latest per-station radar image through a
// three-tier chain: renderer-enhanced station image, raw Ridge loop GIF,
// placeholder. The nearest station is resolved once at construction and
// threaded through every run.
type RadarPipeline struct {
	station    models.Station
	distanceKm float64
	event      models.EventLocation
	store      *cache.Cache
	ridge      *client.RidgeClient
	renderer   render.Renderer
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *zap.Logger
}

func NewRadarPipeline(
	event models.EventLocation,
	table []models.Station,
	store *cache.Cache,
	ridge *client.RidgeClient,
	renderer render.Renderer,
	clock clockwork.Clock,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *RadarPipeline {
	station, distanceKm := stations.Nearest(event.Coordinate, table)
	logger.Info("Selected nearest radar station",
		zap.String("station", station.ID),
		zap.String("name", station.Name),
		zap.Float64("distance_km", distanceKm))

	return &RadarPipeline{
		station:    station,
		distanceKm: distanceKm,
		event:      event,
		store:      store,
		ridge:      ridge,
		renderer:   renderer,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
	}
}

// Station returns the station the pipeline resolved for the event.
func (p *RadarPipeline) Station() (models.Station, float64) {
	return p.station, p.distanceKm
}

// FetchLatest runs the fallback chain. It never returns an error: the final
// placeholder tier always succeeds.
func (p *RadarPipeline) FetchLatest(ctx context.Context) (*models.FetchResult, error) {
	start := time.Now()
	defer func() {
		p.metrics.FetchDuration.WithLabelValues(string(models.TypeRadar)).Observe(time.Since(start).Seconds())
	}()

	return runChain(ctx, models.TypeRadar, []Strategy{
		{Name: "enhanced-station-image", Run: p.fetchEnhanced},
		{Name: "ridge-loop", Run: p.fetchLoop},
		{Name: "placeholder", Run: p.fetchPlaceholder},
	}, p.metrics, p.logger)
}

func (p *RadarPipeline) fetchEnhanced(ctx context.Context) (*models.FetchResult, error) {
	ts := p.clock.Now().UTC().Truncate(time.Second)

	tmp, err := p.store.TempPath(models.TypeRadar, ts, models.FormatImage)
	if err != nil {
		return nil, err
	}
	if err := p.renderer.RenderRadar(ctx, p.station.ID, tmp); err != nil {
		os.Remove(tmp)
		return nil, err
	}

	path, err := p.store.Promote(tmp, models.TypeRadar, ts, models.FormatImage)
	if err != nil {
		return nil, err
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	return &models.FetchResult{
		Type:      models.TypeRadar,
		Timestamp: ts,
		Source:    "station-" + p.station.ID,
		Path:      path,
		SizeBytes: size,
		Format:    models.FormatImage,
	}, nil
}

func (p *RadarPipeline) fetchLoop(ctx context.Context) (*models.FetchResult, error) {
	data, err := p.ridge.LatestLoop(ctx, p.station.ID)
	if err != nil {
		return nil, &models.TransientError{Source: "ridge", Err: err}
	}

	ts := p.clock.Now().UTC().Truncate(time.Second)
	path, err := p.store.Write(models.TypeRadar, ts, models.FormatLoop, data)
	if err != nil {
		return nil, err
	}

	return &models.FetchResult{
		Type:      models.TypeRadar,
		Timestamp: ts,
		Source:    "ridge-loop",
		Path:      path,
		SizeBytes: int64(len(data)),
		Format:    models.FormatLoop,
	}, nil
}

func (p *RadarPipeline) fetchPlaceholder(ctx context.Context) (*models.FetchResult, error) {
	p.metrics.Placeholders.WithLabelValues(string(models.TypeRadar)).Inc()
	return writePlaceholder(p.store, models.TypeRadar, p.event, p.clock.Now(),
		"radar data unavailable from all sources")
}
