package models

import "encoding/json"

// Location is a geocoding result, either from the upstream search endpoint
// or synthesized from raw coordinates when the caller skips geocoding.
type Location struct {
	Name      string  `json:"name"`
	Country   string  `json:"country,omitempty"`
	Admin1    string  `json:"admin1,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CurrentWeather mirrors Open-Meteo's current_weather block.
type CurrentWeather struct {
	Temperature   float64 `json:"temperature"`
	WindSpeed     float64 `json:"windspeed"`
	WindDirection float64 `json:"winddirection"`
	WeatherCode   int     `json:"weathercode"`
	IsDay         int     `json:"is_day"`
	Time          string  `json:"time"`
}

// Forecast is the relevant subset of an Open-Meteo forecast response.
// Hourly series are kept raw and passed through to clients unchanged.
type Forecast struct {
	CurrentWeather *CurrentWeather            `json:"current_weather,omitempty"`
	Hourly         map[string]json.RawMessage `json:"hourly,omitempty"`
}

type WeatherResponse struct {
	Location    Location                   `json:"location"`
	Current     CurrentWeather             `json:"current"`
	Hourly      map[string]json.RawMessage `json:"hourly"`
	WeatherDesc string                     `json:"weather_desc"`
	WeatherIcon string                     `json:"weather_icon"`
}
