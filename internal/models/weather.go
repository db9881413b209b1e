package models

type WeatherRequest struct {
	Location string `json:"location"`
}

// WeatherResult is the reshaped upstream weather payload. Temp is in °C.
type WeatherResult struct {
	Location    string  `json:"location"`
	Temp        float64 `json:"temp"`
	Description string  `json:"desc"`
}

type WeatherResponse struct {
	Type        string  `json:"type"`
	Location    string  `json:"location"`
	Temp        float64 `json:"temp"`
	Description string  `json:"desc"`
}
