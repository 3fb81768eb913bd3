package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"cosmoweather/internal/cache"
	"cosmoweather/internal/meteo"
	"cosmoweather/internal/models"
	"cosmoweather/internal/weathercode"

	"github.com/go-chi/chi/v5"
)

const (
	defaultHourlyVars      = "temperature_2m,relativehumidity_2m,windspeed_10m"
	defaultSuggestionLimit = 6
)

// Caches holds the per-payload TTL caches consulted before any upstream
// call. Each handler owns its key scheme; the caches are otherwise opaque.
type Caches struct {
	Suggestions *cache.Cache[[]meteo.Suggestion]
	Geocodes    *cache.Cache[models.Location]
	Forecasts   *cache.Cache[models.Forecast]
}

type Server struct {
	meteo  *meteo.Client
	caches Caches
}

func NewServer(client *meteo.Client, caches Caches) *Server {
	return &Server{meteo: client, caches: caches}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/autocomplete", s.handleAutocomplete)
	r.Get("/weather", s.handleWeather)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'query' is required")
		return
	}

	limit := defaultSuggestionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		// Passed through to the upstream as-is; out-of-range values are its
		// call to reject.
		limit = l
	}

	key := fmt.Sprintf("autocomplete:%s:%d", strings.ToLower(query), limit)
	if cached, ok := s.caches.Suggestions.Get(key); ok {
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, http.StatusOK, cached)
		return
	}

	locations, err := s.meteo.Search(r.Context(), query, limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to search locations")
		return
	}

	s.caches.Suggestions.Set(key, locations)
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, locations)
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	latStr := r.URL.Query().Get("lat")
	lonStr := r.URL.Query().Get("lon")

	// An explicitly empty hourly_vars drops the hourly series entirely; only
	// an absent parameter gets the default list.
	hourlyParam := defaultHourlyVars
	if vals, ok := r.URL.Query()["hourly_vars"]; ok {
		hourlyParam = vals[0]
	}
	hourlyVars := splitVars(hourlyParam)

	var location models.Location
	switch {
	case latStr != "" && lonStr != "":
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid lat parameter")
			return
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid lon parameter")
			return
		}
		name := city
		if name == "" {
			name = fmt.Sprintf("%.3f,%.3f", lat, lon)
		}
		location = models.Location{Name: name, Latitude: lat, Longitude: lon}

	case city != "":
		loc, errStatus, errMsg := s.resolveCity(r.Context(), city)
		if errStatus != 0 {
			writeError(w, errStatus, errMsg)
			return
		}
		location = loc

	default:
		writeError(w, http.StatusBadRequest, "provide either city or lat and lon")
		return
	}

	key := fmt.Sprintf("forecast:%.4f,%.4f:%s",
		location.Latitude, location.Longitude, strings.Join(hourlyVars, ","))

	forecast, ok := s.caches.Forecasts.Get(key)
	cacheStatus := "HIT"
	if !ok {
		cacheStatus = "MISS"
		fetched, err := s.meteo.Forecast(r.Context(), location.Latitude, location.Longitude, hourlyVars)
		if err != nil {
			writeError(w, http.StatusBadGateway, "failed to fetch weather")
			return
		}
		if fetched.CurrentWeather == nil {
			// Incomplete upstream payload; never cached.
			writeError(w, http.StatusBadGateway, "no current weather returned by upstream API")
			return
		}
		s.caches.Forecasts.Set(key, fetched)
		forecast = fetched
	}

	info := weathercode.Lookup(forecast.CurrentWeather.WeatherCode)
	resp := models.WeatherResponse{
		Location:    location,
		Current:     *forecast.CurrentWeather,
		Hourly:      forecast.Hourly,
		WeatherDesc: info.Desc,
		WeatherIcon: info.Icon,
	}
	if resp.Hourly == nil {
		resp.Hourly = map[string]json.RawMessage{}
	}

	w.Header().Set("X-Cache", cacheStatus)
	writeJSON(w, http.StatusOK, resp)
}

// resolveCity geocodes a city name, caching the top match. A non-zero status
// carries an error for the caller to write out.
func (s *Server) resolveCity(ctx context.Context, city string) (models.Location, int, string) {
	key := "geocode:" + strings.ToLower(city)
	if loc, ok := s.caches.Geocodes.Get(key); ok {
		return loc, 0, ""
	}

	results, err := s.meteo.Search(ctx, city, 1)
	if err != nil {
		return models.Location{}, http.StatusBadGateway, "failed to resolve city"
	}
	if len(results) == 0 {
		return models.Location{}, http.StatusNotFound, fmt.Sprintf("city '%s' not found", city)
	}

	top := results[0]
	if top.Latitude == nil || top.Longitude == nil {
		// A coordinateless match is unusable and must not be cached.
		return models.Location{}, http.StatusBadGateway, "upstream geocoding did not return coordinates"
	}

	loc := models.Location{
		Name:      top.Name,
		Country:   top.Country,
		Admin1:    top.Admin1,
		Latitude:  *top.Latitude,
		Longitude: *top.Longitude,
	}
	if loc.Name == "" {
		loc.Name = city
	}
	s.caches.Geocodes.Set(key, loc)
	return loc, 0, ""
}

func splitVars(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
