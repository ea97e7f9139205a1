package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"eventdash/internal/models"

	"go.uber.org/zap"
)

// SynopticClient reads the latest surface observation near a coordinate from
// the Synoptic Data time-series API. Primary source for the weather pipeline.
type SynopticClient struct {
	*BaseClient
	baseURL string
	token   string
}

type synopticLatestResponse struct {
	Station []struct {
		STID         string `json:"STID"`
		Name         string `json:"NAME"`
		Observations struct {
			AirTemp          synopticValue `json:"air_temp_value_1"`
			RelativeHumidity synopticValue `json:"relative_humidity_value_1"`
			WindSpeed        synopticValue `json:"wind_speed_value_1"`
			WindGust         synopticValue `json:"wind_gust_value_1"`
			SeaLevelPressure synopticValue `json:"sea_level_pressure_value_1d"`
			WeatherSummary   struct {
				Value string `json:"value"`
			} `json:"weather_summary_value_1d"`
		} `json:"OBSERVATIONS"`
	} `json:"STATION"`
	Summary struct {
		ResponseCode    int    `json:"RESPONSE_CODE"`
		ResponseMessage string `json:"RESPONSE_MESSAGE"`
	} `json:"SUMMARY"`
}

type synopticValue struct {
	Value    *float64 `json:"value"`
	DateTime string   `json:"date_time"`
}

func NewSynopticClient(baseURL, token string, config ClientConfig, logger *zap.Logger) *SynopticClient {
	return &SynopticClient{
		BaseClient: NewBaseClient("synoptic", config, logger),
		baseURL:    baseURL,
		token:      token,
	}
}

// Latest returns the most recent observation from the station nearest to loc.
func (c *SynopticClient) Latest(ctx context.Context, loc models.Coordinate) (*models.Observation, error) {
	url := fmt.Sprintf(
		"%s/stations/latest?token=%s&radius=%f,%f,50&limit=1&units=metric&vars=air_temp,relative_humidity,wind_speed,wind_gust,sea_level_pressure",
		c.baseURL, c.token, loc.Lat, loc.Lon)

	data, err := c.GetWithRetry(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching synoptic latest: %w", err)
	}

	var resp synopticLatestResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing synoptic response: %w", err)
	}
	if resp.Summary.ResponseCode != 1 {
		return nil, fmt.Errorf("synoptic API error: %s", resp.Summary.ResponseMessage)
	}
	if len(resp.Station) == 0 {
		return nil, fmt.Errorf("synoptic returned no stations near %.4f,%.4f", loc.Lat, loc.Lon)
	}

	st := resp.Station[0]
	obsTime, err := time.Parse(time.RFC3339, st.Observations.AirTemp.DateTime)
	if err != nil {
		obsTime = time.Now().UTC()
	}

	return &models.Observation{
		StationID:    st.STID,
		Timestamp:    obsTime.UTC(),
		TemperatureC: deref(st.Observations.AirTemp.Value),
		HumidityPct:  deref(st.Observations.RelativeHumidity.Value),
		WindSpeedMS:  deref(st.Observations.WindSpeed.Value),
		WindGustMS:   deref(st.Observations.WindGust.Value),
		PressureHpa:  deref(st.Observations.SeaLevelPressure.Value) / 100,
		Conditions:   st.Observations.WeatherSummary.Value,
		Source:       "synoptic",
	}, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
