package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"eventdash/internal/models"

	"go.uber.org/zap"
)

// NWSClient reads station observations from api.weather.gov. Fallback source
// for the weather pipeline; requires no token, only a User-Agent header
// (supplied through ClientConfig.Headers).
type NWSClient struct {
	*BaseClient
	baseURL string
}

type nwsObservationResponse struct {
	Properties struct {
		Timestamp        string      `json:"timestamp"`
		TextDescription  string      `json:"textDescription"`
		Temperature      nwsQuantity `json:"temperature"`
		WindSpeed        nwsQuantity `json:"windSpeed"`
		WindGust         nwsQuantity `json:"windGust"`
		RelativeHumidity nwsQuantity `json:"relativeHumidity"`
		SeaLevelPressure nwsQuantity `json:"seaLevelPressure"`
	} `json:"properties"`
}

type nwsQuantity struct {
	Value *float64 `json:"value"`
}

func NewNWSClient(baseURL string, config ClientConfig, logger *zap.Logger) *NWSClient {
	return &NWSClient{
		BaseClient: NewBaseClient("nws", config, logger),
		baseURL:    baseURL,
	}
}

// LatestObservation returns the most recent observation for an NWS station.
func (c *NWSClient) LatestObservation(ctx context.Context, stationID string) (*models.Observation, error) {
	url := fmt.Sprintf("%s/stations/%s/observations/latest", c.baseURL, stationID)

	data, err := c.GetWithRetry(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching NWS observation for %s: %w", stationID, err)
	}

	var resp nwsObservationResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing NWS observation: %w", err)
	}

	obsTime, err := time.Parse(time.RFC3339, resp.Properties.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("NWS observation has bad timestamp %q: %w", resp.Properties.Timestamp, err)
	}

	// NWS reports wind in km/h and pressure in Pa.
	return &models.Observation{
		StationID:    stationID,
		Timestamp:    obsTime.UTC(),
		TemperatureC: deref(resp.Properties.Temperature.Value),
		HumidityPct:  deref(resp.Properties.RelativeHumidity.Value),
		WindSpeedMS:  deref(resp.Properties.WindSpeed.Value) / 3.6,
		WindGustMS:   deref(resp.Properties.WindGust.Value) / 3.6,
		PressureHpa:  deref(resp.Properties.SeaLevelPressure.Value) / 100,
		Conditions:   resp.Properties.TextDescription,
		Source:       "nws",
	}, nil
}
