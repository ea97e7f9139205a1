package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"eventdash/internal/models"

	"go.uber.org/zap"
)

// Renderer is the capability interface over the out-of-process image
// pipeline. Implementations must leave a non-empty file at outputPath on
// success.
type Renderer interface {
	// RenderRadar fetches and enhances the latest imagery for a radar station.
	RenderRadar(ctx context.Context, stationID, outputPath string) error
	// RenderGrid rasterizes a decompressed reflectivity grid, framed around
	// center.
	RenderGrid(ctx context.Context, gridPath, outputPath string, center models.Coordinate) error
}

// Subprocess invokes the configured rendering scripts. The scripts are a
// black box here: invoke, wait with a timeout, check the exit status, then
// verify the output exists and is non-empty.
type Subprocess struct {
	radarScript string
	gridScript  string
	timeout     time.Duration
	logger      *zap.Logger
}

func NewSubprocess(radarScript, gridScript string, timeout time.Duration, logger *zap.Logger) *Subprocess {
	return &Subprocess{
		radarScript: radarScript,
		gridScript:  gridScript,
		timeout:     timeout,
		logger:      logger,
	}
}

func (s *Subprocess) RenderRadar(ctx context.Context, stationID, outputPath string) error {
	return s.run(ctx, s.radarScript, stationID, outputPath)
}

func (s *Subprocess) RenderGrid(ctx context.Context, gridPath, outputPath string, center models.Coordinate) error {
	return s.run(ctx, s.gridScript, gridPath, outputPath,
		strconv.FormatFloat(center.Lat, 'f', -1, 64),
		strconv.FormatFloat(center.Lon, 'f', -1, 64))
}

func (s *Subprocess) run(ctx context.Context, script string, args ...string) error {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, script, args...)
	start := time.Now()

	out, err := cmd.CombinedOutput()
	if err != nil {
		s.logger.Warn("Renderer exited with error",
			zap.String("script", script),
			zap.Duration("duration", time.Since(start)),
			zap.ByteString("output", tail(out, 512)),
			zap.Error(err))
		return &models.RenderError{Tool: script, Err: err}
	}

	// outputPath is always the last path-like argument before any coordinates;
	// radar passes (station, out), grid passes (in, out, lat, lon).
	outputPath := args[1]
	info, statErr := os.Stat(outputPath)
	if statErr != nil {
		return &models.RenderError{Tool: script, Err: fmt.Errorf("output missing: %w", statErr)}
	}
	if info.Size() == 0 {
		return &models.RenderError{Tool: script, Err: fmt.Errorf("output %s is empty", outputPath)}
	}

	s.logger.Debug("Renderer finished",
		zap.String("script", script),
		zap.Duration("duration", time.Since(start)),
		zap.Int64("output_bytes", info.Size()))

	return nil
}

func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}
