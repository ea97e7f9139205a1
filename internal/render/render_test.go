package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"eventdash/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "render.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestSubprocess_RenderRadarWritesOutput(t *testing.T) {
	script := writeScript(t, `printf 'fake png for %s' "$1" > "$2"`)
	s := NewSubprocess(script, script, 5*time.Second, zap.NewNop())

	out := filepath.Join(t.TempDir(), "radar.png")
	require.NoError(t, s.RenderRadar(context.Background(), "KMUX", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "fake png for KMUX", string(data))
}

func TestSubprocess_RenderGridPassesCenter(t *testing.T) {
	script := writeScript(t, `printf '%s %s %s' "$1" "$3" "$4" > "$2"`)
	s := NewSubprocess(script, script, 5*time.Second, zap.NewNop())

	out := filepath.Join(t.TempDir(), "grid.png")
	err := s.RenderGrid(context.Background(), "/tmp/in.grib2", out, models.Coordinate{Lat: 37.5, Lon: -121.25})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/in.grib2 37.5 -121.25", string(data))
}

func TestSubprocess_NonZeroExit(t *testing.T) {
	script := writeScript(t, `echo 'boom' >&2; exit 3`)
	s := NewSubprocess(script, script, 5*time.Second, zap.NewNop())

	err := s.RenderRadar(context.Background(), "KMUX", filepath.Join(t.TempDir(), "out.png"))
	require.Error(t, err)

	var rerr *models.RenderError
	assert.True(t, errors.As(err, &rerr))
}

func TestSubprocess_EmptyOutputIsAnError(t *testing.T) {
	script := writeScript(t, `: > "$2"`)
	s := NewSubprocess(script, script, 5*time.Second, zap.NewNop())

	err := s.RenderRadar(context.Background(), "KMUX", filepath.Join(t.TempDir(), "out.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestSubprocess_MissingOutputIsAnError(t *testing.T) {
	script := writeScript(t, `exit 0`)
	s := NewSubprocess(script, script, 5*time.Second, zap.NewNop())

	err := s.RenderRadar(context.Background(), "KMUX", filepath.Join(t.TempDir(), "out.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestSubprocess_TimeoutKillsScript(t *testing.T) {
	script := writeScript(t, `sleep 10`)
	s := NewSubprocess(script, script, 100*time.Millisecond, zap.NewNop())

	start := time.Now()
	err := s.RenderRadar(context.Background(), "KMUX", filepath.Join(t.TempDir(), "out.png"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
