package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventdash/internal/api"
	"eventdash/internal/cache"
	"eventdash/internal/config"
	"eventdash/internal/models"
	"eventdash/internal/observability"
	"eventdash/internal/pipeline"
	"eventdash/internal/render"
	"eventdash/internal/scheduler"
	"eventdash/internal/stations"
	"eventdash/pkg/client"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	logger.Info("Starting Event Dashboard Backend")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	event := models.EventLocation{
		Name:       cfg.Event.Name,
		Coordinate: models.Coordinate{Lat: cfg.Event.Lat, Lon: cfg.Event.Lon},
	}
	logger.Info("Event location configured",
		zap.String("name", event.Name),
		zap.Float64("lat", event.Coordinate.Lat),
		zap.Float64("lon", event.Coordinate.Lon))

	table, err := stations.Load(cfg.Stations.File)
	if err != nil {
		logger.Fatal("Failed to load station table", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	store := cache.New(cfg.Cache.DataDir, logger)
	clock := clockwork.NewRealClock()

	clientConfig := client.ClientConfig{
		Timeout:        cfg.Client.Timeout,
		MaxRetries:     cfg.Client.MaxRetries,
		RetryDelay:     cfg.Client.RetryDelay,
		Multiplier:     cfg.Client.Multiplier,
		Threshold:      cfg.Client.Threshold,
		BreakerTimeout: cfg.Client.BreakerTimeout,
		Headers:        map[string]string{"User-Agent": cfg.Client.UserAgent},
	}
	downloadConfig := clientConfig
	downloadConfig.Timeout = cfg.Client.DownloadTimeout

	ridge := client.NewRidgeClient(cfg.Radar.RidgeURL, clientConfig, logger)
	mrms := client.NewMRMSClient(cfg.MRMS.BucketURL, cfg.MRMS.Product, downloadConfig, logger)
	synoptic := client.NewSynopticClient(cfg.Weather.SynopticURL, cfg.Weather.SynopticToken, clientConfig, logger)
	nws := client.NewNWSClient(cfg.Weather.NWSURL, clientConfig, logger)

	renderer := render.NewSubprocess(cfg.Renderer.RadarScript, cfg.Renderer.GridScript, cfg.Renderer.Timeout, logger)

	radarPipe := pipeline.NewRadarPipeline(event, table, store, ridge, renderer, clock, metrics, logger)
	mrmsPipe := pipeline.NewMRMSPipeline(event, store, mrms, renderer, clock, metrics, logger, cfg.MRMS.LookbackHours)
	weatherPipe := pipeline.NewWeatherPipeline(event, store, synoptic, nws, cfg.Weather.NWSStation, clock, metrics, logger)

	jobs := []*scheduler.Job{
		{Type: models.TypeRadar, Interval: cfg.Radar.Interval, MaxEntries: cfg.Radar.MaxEntries, Fetch: radarPipe.FetchLatest},
		{Type: models.TypeMRMS, Interval: cfg.MRMS.Interval, MaxEntries: cfg.MRMS.MaxEntries, Fetch: mrmsPipe.FetchLatest},
		{Type: models.TypeWeather, Interval: cfg.Weather.Interval, MaxEntries: cfg.Weather.MaxEntries, Fetch: weatherPipe.FetchLatest},
	}
	fetchScheduler := scheduler.New(jobs, store, cfg.FetchTimeout, metrics, logger)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorHandler: errorHandler,
	})

	handler := api.NewHandler(radarPipe, mrmsPipe, weatherPipe, store, event, logger)
	api.SetupRoutes(app, handler, cfg.Cache.DataDir, logger)

	if err := fetchScheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Starting server", zap.String("address", addr))

		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop scheduler first so no new cache writes start mid-shutdown.
	fetchScheduler.Stop()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func errorHandler(c *fiber.Ctx, err error) error {
	zap.L().Error("HTTP error",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))

	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   err.Error(),
		"success": false,
	})
}
