package pipeline

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"eventdash/internal/cache"
	"eventdash/internal/models"
	"eventdash/internal/observability"
	"eventdash/internal/render"
	"eventdash/pkg/client"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// MRMSPipeline produces rendered MRMS composite reflectivity imagery via
// discovery → download → decompress → render, with every intermediate step
// skipped when its output is already cached. Discovery exhausting the hourly
// look-back window is the one error that propagates to callers; everything
// else degrades to a placeholder.
type MRMSPipeline struct {
	event         models.EventLocation
	store         *cache.Cache
	bucket        *client.MRMSClient
	renderer      render.Renderer
	clock         clockwork.Clock
	metrics       *observability.Metrics
	logger        *zap.Logger
	lookbackHours int
}

func NewMRMSPipeline(
	event models.EventLocation,
	store *cache.Cache,
	bucket *client.MRMSClient,
	renderer render.Renderer,
	clock clockwork.Clock,
	metrics *observability.Metrics,
	logger *zap.Logger,
	lookbackHours int,
) *MRMSPipeline {
	return &MRMSPipeline{
		event:         event,
		store:         store,
		bucket:        bucket,
		renderer:      renderer,
		clock:         clock,
		metrics:       metrics,
		logger:        logger,
		lookbackHours: lookbackHours,
	}
}

// FetchLatest renders the newest available composite grid. Returns
// models.ErrSourceUnavailable when the bucket has no objects in the look-back
// window; any other failure yields a placeholder result.
func (p *MRMSPipeline) FetchLatest(ctx context.Context) (*models.FetchResult, error) {
	start := time.Now()
	defer func() {
		p.metrics.FetchDuration.WithLabelValues(string(models.TypeMRMS)).Observe(time.Since(start).Seconds())
	}()

	key, err := p.discoverLatest(ctx)
	if err != nil {
		if errors.Is(err, models.ErrSourceUnavailable) {
			p.metrics.FetchAttempts.WithLabelValues(string(models.TypeMRMS), "discovery", "failure").Inc()
			return nil, err
		}
		p.logger.Warn("MRMS discovery failed, substituting placeholder", zap.Error(err))
		return p.placeholder("composite grid discovery failed")
	}

	res, err := p.materialize(ctx, key)
	if err != nil {
		p.metrics.FetchAttempts.WithLabelValues(string(models.TypeMRMS), "composite-grid", "failure").Inc()
		p.logger.Warn("MRMS materialization failed, substituting placeholder",
			zap.String("key", key),
			zap.Error(err))
		return p.placeholder("composite grid processing failed")
	}

	p.metrics.FetchAttempts.WithLabelValues(string(models.TypeMRMS), "composite-grid", "success").Inc()
	return res, nil
}

// FetchNearest returns the rendering closest in time to target, rendering it
// on demand when not already cached. Discovery is scoped to target's UTC
// hour; an empty hour is ErrSourceUnavailable.
func (p *MRMSPipeline) FetchNearest(ctx context.Context, target time.Time) (*models.FetchResult, error) {
	target = target.UTC().Truncate(time.Second)

	if e, ok := p.store.FindByTimestamp(models.TypeMRMS, target); ok && e.Format == models.FormatImage {
		return resultFromEntry(e, "cache"), nil
	}

	keys, err := p.bucket.ListHour(ctx, target)
	if err != nil {
		return nil, &models.TransientError{Source: "mrms-list", Err: err}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("hour %s has no objects: %w",
			target.Format("2006-01-02T15Z"), models.ErrSourceUnavailable)
	}

	// Smallest seconds-of-day distance wins; strict less-than keeps the first
	// key in listing order on ties.
	targetSec := secondsOfDay(target)
	best := ""
	bestDiff := 0
	for _, k := range keys {
		ts, err := client.ParseKeyTimestamp(k)
		if err != nil {
			p.logger.Warn("Skipping key with unparseable timestamp", zap.String("key", k))
			continue
		}
		diff := targetSec - secondsOfDay(ts)
		if diff < 0 {
			diff = -diff
		}
		if best == "" || diff < bestDiff {
			best, bestDiff = k, diff
		}
	}
	if best == "" {
		return nil, fmt.Errorf("hour listing had no parseable keys: %w", models.ErrSourceUnavailable)
	}

	return p.materialize(ctx, best)
}

// discoverLatest finds the newest object key, stepping back one UTC hour at a
// time when an hourly prefix is empty, bounded by lookbackHours.
func (p *MRMSPipeline) discoverLatest(ctx context.Context) (string, error) {
	now := p.clock.Now().UTC()

	for i := 0; i < p.lookbackHours; i++ {
		keys, err := p.bucket.ListHour(ctx, now.Add(-time.Duration(i)*time.Hour))
		if err != nil {
			return "", &models.TransientError{Source: "mrms-list", Err: err}
		}
		if len(keys) == 0 {
			continue
		}

		// Descending lexicographic order equals reverse-chronological order
		// only because the embedded date/time fields are fixed-width and
		// zero-padded; see client.ParseKeyTimestamp.
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
		return keys[0], nil
	}

	return "", fmt.Errorf("no objects in the last %d hourly prefixes: %w",
		p.lookbackHours, models.ErrSourceUnavailable)
}

// materialize walks the key through download, decompression, and rendering,
// skipping any step whose output already exists on disk. Downloads are
// content-addressed by the key's embedded timestamp.
func (p *MRMSPipeline) materialize(ctx context.Context, key string) (*models.FetchResult, error) {
	ts, err := client.ParseKeyTimestamp(key)
	if err != nil {
		return nil, err
	}

	if e, ok := p.store.FindByTimestamp(models.TypeMRMS, ts); ok && e.Format == models.FormatImage {
		p.logger.Debug("MRMS rendering already cached", zap.Time("timestamp", ts))
		return resultFromEntry(e, "cache"), nil
	}

	gzPath := p.store.Path(models.TypeMRMS, ts, models.FormatGrid)
	if _, err := os.Stat(gzPath); err != nil {
		if _, err := p.bucket.Download(ctx, key, gzPath); err != nil {
			return nil, &models.TransientError{Source: "mrms-download", Err: err}
		}
	}

	gridPath := strings.TrimSuffix(gzPath, ".gz")
	if _, err := os.Stat(gridPath); err != nil {
		if err := gunzipFile(gzPath, gridPath); err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", gzPath, err)
		}
	}

	tmp, err := p.store.TempPath(models.TypeMRMS, ts, models.FormatImage)
	if err != nil {
		return nil, err
	}
	if err := p.renderer.RenderGrid(ctx, gridPath, tmp, p.event.Coordinate); err != nil {
		os.Remove(tmp)
		return nil, err
	}

	path, err := p.store.Promote(tmp, models.TypeMRMS, ts, models.FormatImage)
	if err != nil {
		return nil, err
	}

	// The decompressed grid was only needed for rendering; the .gz original
	// stays as the cached grid artifact.
	os.Remove(gridPath)

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	return &models.FetchResult{
		Type:      models.TypeMRMS,
		Timestamp: ts,
		Source:    "mrms-" + p.bucket.Product(),
		Path:      path,
		SizeBytes: size,
		Format:    models.FormatImage,
	}, nil
}

func (p *MRMSPipeline) placeholder(message string) (*models.FetchResult, error) {
	p.metrics.Placeholders.WithLabelValues(string(models.TypeMRMS)).Inc()
	return writePlaceholder(p.store, models.TypeMRMS, p.event, p.clock.Now(), message)
}

func gunzipFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return err
	}
	defer gz.Close()

	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, gz); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, dest)
}

func secondsOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}
