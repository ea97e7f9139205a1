package pipeline

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"eventdash/internal/cache"
	"eventdash/internal/models"
	"eventdash/internal/observability"
	"eventdash/pkg/client"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- shared test fixtures ---

var testEvent = models.EventLocation{
	Name:       "Test Event",
	Coordinate: models.Coordinate{Lat: 37.403147, Lon: -121.969814},
}

var testStations = []models.Station{
	{ID: "KTST", Name: "Test Radar", Location: models.Coordinate{Lat: 37.2, Lon: -121.9}},
	{ID: "KFAR", Name: "Far Radar", Location: models.Coordinate{Lat: 45.0, Lon: -100.0}},
}

func testClientConfig() client.ClientConfig {
	return client.ClientConfig{
		Timeout:        5 * time.Second,
		MaxRetries:     0,
		RetryDelay:     time.Millisecond,
		Multiplier:     2,
		Threshold:      3,
		BreakerTimeout: time.Minute,
	}
}

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	return cache.New(t.TempDir(), zap.NewNop())
}

// fakeRenderer satisfies render.Renderer without spawning processes. The grid
// input is captured at call time because the pipeline deletes it after a
// successful render.
type fakeRenderer struct {
	radarErr     error
	gridErr      error
	payload      []byte
	radarCalls   int
	gridCalls    int
	lastGrid     string
	lastGridData []byte
}

func (f *fakeRenderer) RenderRadar(_ context.Context, _, outputPath string) error {
	f.radarCalls++
	if f.radarErr != nil {
		return f.radarErr
	}
	return os.WriteFile(outputPath, f.payload, 0o644)
}

func (f *fakeRenderer) RenderGrid(_ context.Context, gridPath, outputPath string, _ models.Coordinate) error {
	f.gridCalls++
	f.lastGrid = gridPath
	if data, err := os.ReadFile(gridPath); err == nil {
		f.lastGridData = data
	}
	if f.gridErr != nil {
		return f.gridErr
	}
	return os.WriteFile(outputPath, f.payload, 0o644)
}

// --- runChain combinator ---

func TestRunChain_FirstSuccessShortCircuits(t *testing.T) {
	m := observability.NewMetricsForTesting()
	var calls []string

	ok := &models.FetchResult{Source: "first"}
	res, err := runChain(context.Background(), models.TypeRadar, []Strategy{
		{Name: "first", Run: func(ctx context.Context) (*models.FetchResult, error) {
			calls = append(calls, "first")
			return ok, nil
		}},
		{Name: "second", Run: func(ctx context.Context) (*models.FetchResult, error) {
			calls = append(calls, "second")
			return nil, errors.New("never reached")
		}},
	}, m, zap.NewNop())

	require.NoError(t, err)
	assert.Same(t, ok, res)
	assert.Equal(t, []string{"first"}, calls)
}

func TestRunChain_FallsThroughInOrder(t *testing.T) {
	m := observability.NewMetricsForTesting()
	var calls []string

	res, err := runChain(context.Background(), models.TypeRadar, []Strategy{
		{Name: "a", Run: func(ctx context.Context) (*models.FetchResult, error) {
			calls = append(calls, "a")
			return nil, errors.New("a down")
		}},
		{Name: "b", Run: func(ctx context.Context) (*models.FetchResult, error) {
			calls = append(calls, "b")
			return nil, errors.New("b down")
		}},
		{Name: "c", Run: func(ctx context.Context) (*models.FetchResult, error) {
			calls = append(calls, "c")
			return &models.FetchResult{Source: "c"}, nil
		}},
	}, m, zap.NewNop())

	require.NoError(t, err)
	assert.Equal(t, "c", res.Source)
	assert.Equal(t, []string{"a", "b", "c"}, calls)
}

func TestRunChain_AllFailReturnsLastError(t *testing.T) {
	m := observability.NewMetricsForTesting()
	last := errors.New("final failure")

	_, err := runChain(context.Background(), models.TypeRadar, []Strategy{
		{Name: "a", Run: func(ctx context.Context) (*models.FetchResult, error) {
			return nil, errors.New("a down")
		}},
		{Name: "b", Run: func(ctx context.Context) (*models.FetchResult, error) {
			return nil, last
		}},
	}, m, zap.NewNop())

	require.Error(t, err)
	assert.ErrorIs(t, err, last)
}

func TestWritePlaceholder_RecordContainsEventLocation(t *testing.T) {
	store := newTestCache(t)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	res, err := writePlaceholder(store, models.TypeRadar, testEvent, now, "data unavailable")
	require.NoError(t, err)

	assert.Equal(t, "placeholder", res.Source)
	assert.Equal(t, models.FormatPlaceholder, res.Format)
	assert.True(t, now.Equal(res.Timestamp))

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "data unavailable")
	assert.Contains(t, string(data), "37.403147")
}
