package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"eventdash/internal/models"

	"go.uber.org/zap"
)

// Cache persists fetched artifacts under one subdirectory per data type. The
// directory is the sole source of truth: every filename deterministically
// encodes the artifact's timestamp and format, so entries can be enumerated,
// sorted, and matched without reading file contents.
type Cache struct {
	root   string
	logger *zap.Logger
}

// Entry is one cached artifact, reconstructed from its filename.
type Entry struct {
	Path      string          `json:"path"`
	Name      string          `json:"name"`
	Timestamp time.Time       `json:"timestamp"`
	Format    models.Format   `json:"format"`
	Type      models.DataType `json:"type"`
	SizeBytes int64           `json:"size_bytes"`
}

// findPriority is the fixed order of format extensions FindByTimestamp tries
// per data type.
var findPriority = map[models.DataType][]models.Format{
	models.TypeRadar:   {models.FormatImage, models.FormatLoop, models.FormatPlaceholder},
	models.TypeMRMS:    {models.FormatImage, models.FormatPlaceholder, models.FormatGrid},
	models.TypeWeather: {models.FormatPlaceholder},
}

func New(root string, logger *zap.Logger) *Cache {
	return &Cache{root: root, logger: logger}
}

// Root returns the base cache directory, for static file hosting.
func (c *Cache) Root() string { return c.root }

const tsLayout = "2006-01-02T15-04-05Z"

// EncodeTimestamp renders t as a filesystem-safe UTC instant. The layout is
// fixed-width and zero-padded, which is what makes lexicographic filename
// order equal chronological order; ListRecent and Trim depend on that.
func EncodeTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(tsLayout)
}

// DecodeTimestamp reverses EncodeTimestamp.
func DecodeTimestamp(s string) (time.Time, error) {
	return time.Parse(tsLayout, s)
}

// Path returns the canonical location for an artifact without touching disk.
func (c *Cache) Path(dt models.DataType, ts time.Time, f models.Format) string {
	name := fmt.Sprintf("%s_%s.%s", dt, EncodeTimestamp(ts), f.Ext())
	return filepath.Join(c.root, string(dt), name)
}

// Write stores data at the canonical path for (dt, ts, f), creating the type
// directory if absent and overwriting any file of the same name. The write
// goes to a temporary sibling first and is renamed into place, so a
// concurrent reader either sees nothing or the complete file.
func (c *Cache) Write(dt models.DataType, ts time.Time, f models.Format, data []byte) (string, error) {
	dest := c.Path(dt, ts, f)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}

	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("publishing cache file: %w", err)
	}

	return dest, nil
}

// TempPath returns a temporary sibling of the canonical path, creating the
// type directory so external writers (the renderer) can target it. Pair with
// Promote; temp files are invisible to ListRecent and FindByTimestamp.
func (c *Cache) TempPath(dt models.DataType, ts time.Time, f models.Format) (string, error) {
	dest := c.Path(dt, ts, f)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}
	return dest + ".tmp", nil
}

// Promote atomically moves an already-written file (e.g. renderer output)
// into its canonical cache location.
func (c *Cache) Promote(src string, dt models.DataType, ts time.Time, f models.Format) (string, error) {
	dest := c.Path(dt, ts, f)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}
	if err := os.Rename(src, dest); err != nil {
		return "", fmt.Errorf("promoting cache file: %w", err)
	}
	return dest, nil
}

// ListRecent returns up to limit entries for dt, newest first. Sorting is
// lexicographic descending on the filename, valid because of the fixed-width
// timestamp encoding. limit <= 0 means no limit.
func (c *Cache) ListRecent(dt models.DataType, limit int) ([]Entry, error) {
	dir := filepath.Join(c.root, string(dt))
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var names []string
	for _, f := range files {
		if f.IsDir() || !strings.HasPrefix(f.Name(), string(dt)+"_") || strings.HasSuffix(f.Name(), ".tmp") {
			continue
		}
		// Intermediate files (e.g. decompressed grids) carry extensions
		// outside the format set and are not cache entries.
		if _, _, ok := splitEntryName(dt, f.Name()); !ok {
			continue
		}
		names = append(names, f.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		e, err := c.parseEntry(dt, dir, name)
		if err != nil {
			c.logger.Warn("Skipping unparseable cache file",
				zap.String("file", name),
				zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// FindByTimestamp looks up the artifact written for exactly ts, trying each
// known format extension for dt in priority order. The boolean is false when
// no format matches.
func (c *Cache) FindByTimestamp(dt models.DataType, ts time.Time) (Entry, bool) {
	for _, f := range findPriority[dt] {
		p := c.Path(dt, ts, f)
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		return Entry{
			Path:      p,
			Name:      filepath.Base(p),
			Timestamp: ts.UTC().Truncate(time.Second),
			Format:    f,
			Type:      dt,
			SizeBytes: info.Size(),
		}, true
	}
	return Entry{}, false
}

// Trim deletes every entry for dt beyond the newest maxEntries. A no-op when
// fewer exist. Deletion is best-effort per file: a failed unlink is logged
// and skipped, never fatal.
func (c *Cache) Trim(dt models.DataType, maxEntries int) int {
	entries, err := c.ListRecent(dt, 0)
	if err != nil {
		c.logger.Warn("Cache trim listing failed",
			zap.String("type", string(dt)),
			zap.Error(err))
		return 0
	}
	if len(entries) <= maxEntries {
		return 0
	}

	removed := 0
	for _, e := range entries[maxEntries:] {
		if err := os.Remove(e.Path); err != nil {
			c.logger.Warn("Cache trim could not delete file",
				zap.String("file", e.Path),
				zap.Error(err))
			continue
		}
		removed++
	}

	c.logger.Info("Cache trimmed",
		zap.String("type", string(dt)),
		zap.Int("removed", removed),
		zap.Int("kept", len(entries)-removed))

	return removed
}

// splitEntryName extracts the encoded timestamp and format from a cache
// filename. The encoded timestamp contains no dots, so the first dot starts
// the extension.
func splitEntryName(dt models.DataType, name string) (string, models.Format, bool) {
	rest, ok := strings.CutPrefix(name, string(dt)+"_")
	if !ok {
		return "", "", false
	}
	tsPart, ext, ok := strings.Cut(rest, ".")
	if !ok {
		return "", "", false
	}
	format, ok := models.FormatForExt(ext)
	if !ok {
		return "", "", false
	}
	return tsPart, format, true
}

func (c *Cache) parseEntry(dt models.DataType, dir, name string) (Entry, error) {
	tsPart, format, ok := splitEntryName(dt, name)
	if !ok {
		return Entry{}, fmt.Errorf("name %q is not a cache entry", name)
	}
	ts, err := DecodeTimestamp(tsPart)
	if err != nil {
		return Entry{}, fmt.Errorf("bad timestamp in %q: %w", name, err)
	}

	var size int64
	if info, err := os.Stat(filepath.Join(dir, name)); err == nil {
		size = info.Size()
	}

	return Entry{
		Path:      filepath.Join(dir, name),
		Name:      name,
		Timestamp: ts,
		Format:    format,
		Type:      dt,
		SizeBytes: size,
	}, nil
}
