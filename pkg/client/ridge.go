package client

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// RidgeClient fetches per-station radar imagery from the NOAA Ridge2 server.
type RidgeClient struct {
	*BaseClient
	baseURL string
}

func NewRidgeClient(baseURL string, config ClientConfig, logger *zap.Logger) *RidgeClient {
	return &RidgeClient{
		BaseClient: NewBaseClient("ridge", config, logger),
		baseURL:    baseURL,
	}
}

// LatestLoop downloads the current animated reflectivity loop for a station.
func (c *RidgeClient) LatestLoop(ctx context.Context, stationID string) ([]byte, error) {
	url := fmt.Sprintf("%s/ridge/standard/%s_loop.gif", c.baseURL, stationID)

	data, err := c.GetWithRetry(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching radar loop for %s: %w", stationID, err)
	}
	return data, nil
}
