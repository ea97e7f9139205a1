package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"eventdash/internal/cache"
	"eventdash/internal/models"
	"eventdash/internal/observability"

	"go.uber.org/zap"
)

// Strategy is one fallback tier: a named closure that either produces a
// result or fails, handing control to the next tier.
type Strategy struct {
	Name string
	Run  func(ctx context.Context) (*models.FetchResult, error)
}

// runChain evaluates strategies left to right, returning the first success.
// Every tier failure is logged and counted; the returned error is the last
// tier's (chains that end in a placeholder tier never reach it).
func runChain(ctx context.Context, dt models.DataType, strategies []Strategy, m *observability.Metrics, logger *zap.Logger) (*models.FetchResult, error) {
	var lastErr error

	for _, s := range strategies {
		res, err := s.Run(ctx)
		if err == nil {
			m.FetchAttempts.WithLabelValues(string(dt), s.Name, "success").Inc()
			logger.Info("Fetch tier succeeded",
				zap.String("type", string(dt)),
				zap.String("tier", s.Name),
				zap.String("path", res.Path),
				zap.Int64("size_bytes", res.SizeBytes))
			return res, nil
		}

		m.FetchAttempts.WithLabelValues(string(dt), s.Name, "failure").Inc()
		logger.Warn("Fetch tier failed, falling back",
			zap.String("type", string(dt)),
			zap.String("tier", s.Name),
			zap.Error(err))
		lastErr = err
	}

	return nil, fmt.Errorf("all %d tiers exhausted for %s: %w", len(strategies), dt, lastErr)
}

// writePlaceholder synthesizes the always-successful final tier: a structured
// record naming the event location and why no real data is available.
func writePlaceholder(store *cache.Cache, dt models.DataType, event models.EventLocation, now time.Time, message string) (*models.FetchResult, error) {
	now = now.UTC().Truncate(time.Second)

	payload := models.Placeholder{
		Timestamp: now,
		Source:    "placeholder",
		Message:   message,
		Location:  event,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding placeholder: %w", err)
	}

	path, err := store.Write(dt, now, models.FormatPlaceholder, data)
	if err != nil {
		return nil, fmt.Errorf("caching placeholder: %w", err)
	}

	return &models.FetchResult{
		Type:      dt,
		Timestamp: now,
		Source:    "placeholder",
		Path:      path,
		SizeBytes: int64(len(data)),
		Format:    models.FormatPlaceholder,
	}, nil
}

func resultFromEntry(e cache.Entry, source string) *models.FetchResult {
	return &models.FetchResult{
		Type:      e.Type,
		Timestamp: e.Timestamp,
		Source:    source,
		Path:      e.Path,
		SizeBytes: e.SizeBytes,
		Format:    e.Format,
	}
}
