package api

import (
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"eventdash/internal/cache"
	"eventdash/internal/models"
	"eventdash/internal/pipeline"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handler struct {
	radar   *pipeline.RadarPipeline
	mrms    *pipeline.MRMSPipeline
	weather *pipeline.WeatherPipeline
	store   *cache.Cache
	event   models.EventLocation
	logger  *zap.Logger
}

func NewHandler(
	radar *pipeline.RadarPipeline,
	mrms *pipeline.MRMSPipeline,
	weather *pipeline.WeatherPipeline,
	store *cache.Cache,
	event models.EventLocation,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		radar:   radar,
		mrms:    mrms,
		weather: weather,
		store:   store,
		event:   event,
		logger:  logger,
	}
}

// GetRadarLatest handles GET /api/v1/radar/latest
func (h *Handler) GetRadarLatest(c *fiber.Ctx) error {
	res, err := h.radar.FetchLatest(c.Context())
	if err != nil {
		h.logger.Error("Radar fetch failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch radar data",
		})
	}
	return c.JSON(h.summary(res))
}

// GetMRMSLatest handles GET /api/v1/mrms/latest
func (h *Handler) GetMRMSLatest(c *fiber.Ctx) error {
	res, err := h.mrms.FetchLatest(c.Context())
	if err != nil {
		if errors.Is(err, models.ErrSourceUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "No MRMS source data exists for the look-back window",
			})
		}
		h.logger.Error("MRMS fetch failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch MRMS data",
		})
	}
	return c.JSON(h.summary(res))
}

// GetMRMSAt handles GET /api/v1/mrms/at/:timestamp
func (h *Handler) GetMRMSAt(c *fiber.Ctx) error {
	target, err := time.Parse(time.RFC3339, c.Params("timestamp"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Timestamp must be RFC 3339, e.g. 2026-08-25T12:30:00Z",
		})
	}

	res, err := h.mrms.FetchNearest(c.Context(), target)
	if err != nil {
		if errors.Is(err, models.ErrSourceUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "No MRMS source data exists for that hour",
			})
		}
		h.logger.Error("MRMS nearest-timestamp fetch failed",
			zap.Time("target", target),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch MRMS data",
		})
	}
	return c.JSON(h.summary(res))
}

// GetWeatherLatest handles GET /api/v1/weather/latest
func (h *Handler) GetWeatherLatest(c *fiber.Ctx) error {
	res, err := h.weather.FetchLatest(c.Context())
	if err != nil {
		h.logger.Error("Weather fetch failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch weather data",
		})
	}
	return c.JSON(h.summary(res))
}

// GetHistory handles GET /api/v1/:type/history
func (h *Handler) GetHistory(c *fiber.Ctx) error {
	dt := models.DataType(c.Params("type"))
	switch dt {
	case models.TypeRadar, models.TypeMRMS, models.TypeWeather:
	default:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown data type",
		})
	}

	limit, err := strconv.Atoi(c.Query("limit", "10"))
	if err != nil || limit < 1 || limit > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Limit must be between 1 and 100",
		})
	}

	entries, err := h.store.ListRecent(dt, limit)
	if err != nil {
		h.logger.Error("History listing failed",
			zap.String("type", string(dt)),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list cached artifacts",
		})
	}

	items := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		items = append(items, fiber.Map{
			"timestamp":  e.Timestamp,
			"format":     e.Format,
			"size_bytes": e.SizeBytes,
			"url":        h.dataURL(e.Path),
		})
	}

	return c.JSON(fiber.Map{
		"type":    dt,
		"entries": items,
	})
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(startTime).String(),
	})
}

// GetStats handles GET /api/v1/stats
func (h *Handler) GetStats(c *fiber.Ctx) error {
	station, distanceKm := h.radar.Station()

	counts := fiber.Map{}
	for _, dt := range []models.DataType{models.TypeRadar, models.TypeMRMS, models.TypeWeather} {
		entries, err := h.store.ListRecent(dt, 0)
		if err != nil {
			continue
		}
		counts[string(dt)] = len(entries)
	}

	return c.JSON(fiber.Map{
		"event":               h.event,
		"radar_station":       station,
		"station_distance_km": distanceKm,
		"cached_entries":      counts,
	})
}

// summary converts a pipeline result into the JSON shape served to the
// dashboard, with the artifact reachable under /data.
func (h *Handler) summary(res *models.FetchResult) fiber.Map {
	return fiber.Map{
		"type":       res.Type,
		"timestamp":  res.Timestamp,
		"source":     res.Source,
		"format":     res.Format,
		"size_bytes": res.SizeBytes,
		"url":        h.dataURL(res.Path),
	}
}

func (h *Handler) dataURL(path string) string {
	rel, err := filepath.Rel(h.store.Root(), path)
	if err != nil {
		return ""
	}
	return "/data/" + strings.ReplaceAll(rel, string(filepath.Separator), "/")
}

var startTime = time.Now()
