package handlers

import (
	"context"
	"net/http"

	"annadata-backend/internal/models"
)

type weatherService interface {
	GetWeather(ctx context.Context, location string) (*models.WeatherResult, error)
}

type WeatherHandler struct {
	weather weatherService
}

func NewWeatherHandler(weather weatherService) *WeatherHandler {
	return &WeatherHandler{weather: weather}
}

func (h *WeatherHandler) Weather(w http.ResponseWriter, r *http.Request) {
	var req models.WeatherRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, "weather", err)
		return
	}

	result, err := h.weather.GetWeather(r.Context(), req.Location)
	if err != nil {
		handleServiceError(w, r, "weather", err)
		return
	}

	writeJSON(w, http.StatusOK, models.WeatherResponse{
		Type:        "weather",
		Location:    result.Location,
		Temp:        result.Temp,
		Description: result.Description,
	})
}
