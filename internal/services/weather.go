package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"annadata-backend/internal/models"
)

const providerOpenWeather = "openweather"

// weatherCache is optional; a nil cache means every call goes upstream.
type weatherCache interface {
	Get(ctx context.Context, location string) (*models.WeatherResult, bool)
	Set(ctx context.Context, location string, result *models.WeatherResult)
}

type WeatherClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	cache   weatherCache
}

func NewWeatherClient(apiKey, baseURL string, timeout time.Duration, cache weatherCache) *WeatherClient {
	return &WeatherClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		cache:   cache,
	}
}

type openWeatherResponse struct {
	Name string `json:"name"`
	Main *struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

// GetWeather fetches current conditions for a free-form location (city, district).
func (c *WeatherClient) GetWeather(ctx context.Context, location string) (*models.WeatherResult, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, requiredField("location", "Location is required")
	}
	if c.apiKey == "" {
		return nil, &ConfigError{Message: "Server misconfigured: weather API key missing"}
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, location); ok {
			return cached, nil
		}
	}

	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &InternalError{Err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Service: providerOpenWeather, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{
			Service:    providerOpenWeather,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("weather lookup failed for %q", location),
		}
	}

	var payload openWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &UpstreamError{Service: providerOpenWeather, Err: fmt.Errorf("decode response: %w", err)}
	}
	if payload.Main == nil || payload.Main.Temp == nil || len(payload.Weather) == 0 {
		return nil, &UpstreamError{Service: providerOpenWeather, Err: errors.New("malformed weather payload")}
	}

	name := payload.Name
	if name == "" {
		name = location
	}
	result := &models.WeatherResult{
		Location:    name,
		Temp:        *payload.Main.Temp,
		Description: payload.Weather[0].Description,
	}

	if c.cache != nil {
		c.cache.Set(ctx, location, result)
	}
	log.Printf("weather: %s %.1f°C %s", result.Location, result.Temp, result.Description)
	return result, nil
}
