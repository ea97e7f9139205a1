package client

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MRMSClient talks to the public NOAA MRMS object-storage bucket: anonymous
// prefix listings (XML) plus object downloads. No SDK or credentials are
// involved; both operations are plain HTTP GETs.
type MRMSClient struct {
	*BaseClient
	bucketURL string
	product   string
}

// listBucketResult is the subset of the S3 ListObjectsV2 XML response we
// consume.
type listBucketResult struct {
	XMLName  xml.Name `xml:"ListBucketResult"`
	Contents []struct {
		Key  string `xml:"Key"`
		Size int64  `xml:"Size"`
	} `xml:"Contents"`
}

func NewMRMSClient(bucketURL, product string, config ClientConfig, logger *zap.Logger) *MRMSClient {
	return &MRMSClient{
		BaseClient: NewBaseClient("mrms", config, logger),
		bucketURL:  strings.TrimRight(bucketURL, "/"),
		product:    product,
	}
}

// Product returns the configured MRMS product name.
func (c *MRMSClient) Product() string { return c.product }

// hourPrefix builds the object prefix for one UTC hour of the product. Keys
// under it look like:
//
//	CONUS/<product>/<yyyymmdd>/MRMS_<product>_<yyyymmdd>-<hhmmss>.grib2.gz
func (c *MRMSClient) hourPrefix(t time.Time) string {
	date := t.UTC().Format("20060102")
	return fmt.Sprintf("CONUS/%s/%s/MRMS_%s_%s-%02d", c.product, date, c.product, date, t.UTC().Hour())
}

// ListHour returns the object keys for the UTC hour containing t, in the
// order the bucket listing reports them. An empty slice means the hour has no
// objects yet.
func (c *MRMSClient) ListHour(ctx context.Context, t time.Time) ([]string, error) {
	listURL := fmt.Sprintf("%s/?list-type=2&prefix=%s", c.bucketURL, url.QueryEscape(c.hourPrefix(t)))

	data, err := c.GetWithRetry(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("listing bucket: %w", err)
	}

	var result listBucketResult
	if err := xml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing bucket listing: %w", err)
	}

	keys := make([]string, 0, len(result.Contents))
	for _, obj := range result.Contents {
		keys = append(keys, obj.Key)
	}

	c.logger.Debug("Listed MRMS hour",
		zap.Time("hour", t.UTC().Truncate(time.Hour)),
		zap.Int("keys", len(keys)))

	return keys, nil
}

// Download fetches an object to dest, writing through a temporary sibling and
// renaming into place so a partial download never lands at the final path.
func (c *MRMSClient) Download(ctx context.Context, key, dest string) (int64, error) {
	data, err := c.GetWithRetry(ctx, c.bucketURL+"/"+key)
	if err != nil {
		return 0, fmt.Errorf("downloading %s: %w", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("creating download dir: %w", err)
	}
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return 0, fmt.Errorf("writing download: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("publishing download: %w", err)
	}

	return int64(len(data)), nil
}

const keyTimeLayout = "20060102-150405"

// ParseKeyTimestamp extracts the UTC instant embedded in an MRMS object key
// filename. The embedded fields are fixed-width and zero-padded, which is the
// property that makes lexicographically sorting keys equivalent to sorting
// them chronologically; callers that sort keys rely on it.
func ParseKeyTimestamp(key string) (time.Time, error) {
	name := filepath.Base(key)
	name = strings.TrimSuffix(name, ".grib2.gz")

	idx := strings.LastIndex(name, "_")
	if idx < 0 || idx+1 >= len(name) {
		return time.Time{}, fmt.Errorf("key %q has no timestamp field", key)
	}

	ts, err := time.Parse(keyTimeLayout, name[idx+1:])
	if err != nil {
		return time.Time{}, fmt.Errorf("key %q has malformed timestamp: %w", key, err)
	}
	return ts.UTC(), nil
}
