package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"cosmoweather/internal/cache"
	"cosmoweather/internal/meteo"
	"cosmoweather/internal/models"

	"github.com/go-chi/chi/v5"
)

const (
	geocodeLondon = `{"results":[{"name":"London","country":"United Kingdom","admin1":"England","latitude":51.5085,"longitude":-0.1257}]}`
	forecastRainy = `{
		"current_weather":{"temperature":14.9,"windspeed":11.2,"winddirection":230,"weathercode":61,"is_day":1,"time":"2025-06-01T12:00"},
		"hourly":{"time":["2025-06-01T00:00"],"temperature_2m":[13.1],"relativehumidity_2m":[82],"windspeed_10m":[9.4]}
	}`
)

type fakeUpstream struct {
	mu                sync.Mutex
	geocodeCalls      int
	forecastCalls     int
	geocodeStatus     int
	geocodeBody       string
	forecastStatus    int
	forecastBody      string
	lastGeocodeQuery  url.Values
	lastForecastQuery url.Values
}

func (u *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	var status int
	var body string
	switch r.URL.Path {
	case "/v1/search":
		u.geocodeCalls++
		u.lastGeocodeQuery = r.URL.Query()
		status, body = u.geocodeStatus, u.geocodeBody
	case "/v1/forecast":
		u.forecastCalls++
		u.lastForecastQuery = r.URL.Query()
		status, body = u.forecastStatus, u.forecastBody
	default:
		status, body = http.StatusNotFound, `{"error":"not found"}`
	}
	u.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (u *fakeUpstream) calls() (geocode, forecast int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.geocodeCalls, u.forecastCalls
}

func (u *fakeUpstream) setGeocode(status int, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.geocodeStatus, u.geocodeBody = status, body
}

func (u *fakeUpstream) setForecast(status int, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.forecastStatus, u.forecastBody = status, body
}

func (u *fakeUpstream) queries() (geocode, forecast url.Values) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastGeocodeQuery, u.lastForecastQuery
}

type testEnv struct {
	router   http.Handler
	upstream *fakeUpstream
	caches   Caches
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	up := &fakeUpstream{
		geocodeStatus:  http.StatusOK,
		geocodeBody:    geocodeLondon,
		forecastStatus: http.StatusOK,
		forecastBody:   forecastRainy,
	}
	ts := httptest.NewServer(up)
	t.Cleanup(ts.Close)

	client := meteo.New(meteo.Config{
		GeocodeURL:  ts.URL + "/v1/search",
		ForecastURL: ts.URL + "/v1/forecast",
	})
	caches := Caches{
		Suggestions: cache.New[[]meteo.Suggestion](5*time.Minute, nil),
		Geocodes:    cache.New[models.Location](5*time.Minute, nil),
		Forecasts:   cache.New[models.Forecast](5*time.Minute, nil),
	}
	srv := NewServer(client, caches)

	r := chi.NewRouter()
	r.Route("/api", srv.RegisterRoutes)
	return &testEnv{router: r, upstream: up, caches: caches}
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rw := httptest.NewRecorder()
	e.router.ServeHTTP(rw, req)
	return rw
}

func TestAutocompleteRequiresQuery(t *testing.T) {
	e := newTestEnv(t)
	if rw := e.get("/api/autocomplete"); rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestAutocompleteReturnsMatchesAndCaches(t *testing.T) {
	e := newTestEnv(t)

	rw := e.get("/api/autocomplete?query=Lon&limit=3")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rw.Code, rw.Body.String())
	}
	if got := rw.Header().Get("X-Cache"); got != "MISS" {
		t.Fatalf("expected X-Cache MISS, got %q", got)
	}
	var locs []meteo.Suggestion
	if err := json.Unmarshal(rw.Body.Bytes(), &locs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(locs) != 1 || locs[0].Name != "London" {
		t.Fatalf("unexpected locations %+v", locs)
	}

	rw = e.get("/api/autocomplete?query=Lon&limit=3")
	if got := rw.Header().Get("X-Cache"); got != "HIT" {
		t.Fatalf("expected X-Cache HIT on repeat, got %q", got)
	}
	if geo, _ := e.upstream.calls(); geo != 1 {
		t.Fatalf("expected 1 upstream geocode call, got %d", geo)
	}
}

func TestAutocompleteInvalidLimitIs400(t *testing.T) {
	e := newTestEnv(t)
	if rw := e.get("/api/autocomplete?query=Lon&limit=abc"); rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed limit, got %d", rw.Code)
	}
	if geo, _ := e.upstream.calls(); geo != 0 {
		t.Fatalf("malformed limit must not reach upstream, got %d calls", geo)
	}
}

func TestAutocompleteLimitPassedThroughUnmodified(t *testing.T) {
	e := newTestEnv(t)
	if rw := e.get("/api/autocomplete?query=Lon&limit=25"); rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	geo, _ := e.upstream.queries()
	if got := geo.Get("count"); got != "25" {
		t.Fatalf("expected count=25 forwarded upstream, got %q", got)
	}
}

func TestAutocompleteKeyIncludesLimit(t *testing.T) {
	e := newTestEnv(t)
	_ = e.get("/api/autocomplete?query=Lon&limit=3")
	_ = e.get("/api/autocomplete?query=Lon&limit=5")
	if geo, _ := e.upstream.calls(); geo != 2 {
		t.Fatalf("different limits must not share an entry, got %d calls", geo)
	}
}

func TestWeatherRequiresLocation(t *testing.T) {
	e := newTestEnv(t)
	if rw := e.get("/api/weather"); rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
	if rw := e.get("/api/weather?lat=51.5"); rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for lat without lon, got %d", rw.Code)
	}
	if rw := e.get("/api/weather?lat=abc&lon=0.1"); rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad lat, got %d", rw.Code)
	}
}

func TestWeatherByCity(t *testing.T) {
	e := newTestEnv(t)

	rw := e.get("/api/weather?city=London")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rw.Code, rw.Body.String())
	}
	var resp models.WeatherResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Location.Name != "London" || resp.Location.Country != "United Kingdom" {
		t.Fatalf("unexpected location %+v", resp.Location)
	}
	if resp.Current.Temperature != 14.9 {
		t.Fatalf("unexpected temperature %v", resp.Current.Temperature)
	}
	if resp.WeatherDesc != "Slight rain" || resp.WeatherIcon != "🌧️" {
		t.Fatalf("unexpected weathercode mapping: %q %q", resp.WeatherDesc, resp.WeatherIcon)
	}
	if _, ok := resp.Hourly["temperature_2m"]; !ok {
		t.Fatalf("expected hourly passthrough, got %v", resp.Hourly)
	}
}

func TestWeatherByCityCachesGeocodeAndForecast(t *testing.T) {
	e := newTestEnv(t)

	rw := e.get("/api/weather?city=London")
	if got := rw.Header().Get("X-Cache"); got != "MISS" {
		t.Fatalf("expected X-Cache MISS, got %q", got)
	}
	rw = e.get("/api/weather?city=London")
	if got := rw.Header().Get("X-Cache"); got != "HIT" {
		t.Fatalf("expected X-Cache HIT, got %q", got)
	}

	geo, fc := e.upstream.calls()
	if geo != 1 || fc != 1 {
		t.Fatalf("expected 1 geocode and 1 forecast call, got %d/%d", geo, fc)
	}
}

func TestWeatherUnknownCityIs404(t *testing.T) {
	e := newTestEnv(t)
	e.upstream.setGeocode(http.StatusOK, `{"generationtime_ms":0.4}`)

	rw := e.get("/api/weather?city=Atlantis")
	if rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rw.Code, rw.Body.String())
	}
}

func TestWeatherGeocodeWithoutCoordinatesIs502AndNotCached(t *testing.T) {
	e := newTestEnv(t)
	e.upstream.setGeocode(http.StatusOK, `{"results":[{"name":"Nowhere"}]}`)

	rw := e.get("/api/weather?city=Nowhere")
	if rw.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for coordinateless match, got %d body=%s", rw.Code, rw.Body.String())
	}
	if n := e.caches.Geocodes.Len(); n != 0 {
		t.Fatalf("coordinateless match must not be cached, have %d entries", n)
	}
	if _, fc := e.upstream.calls(); fc != 0 {
		t.Fatalf("expected no forecast call, got %d", fc)
	}

	// A later valid answer for the same city must be served, not shadowed
	// by a poisoned entry.
	e.upstream.setGeocode(http.StatusOK, geocodeLondon)
	if rw := e.get("/api/weather?city=Nowhere"); rw.Code != http.StatusOK {
		t.Fatalf("expected recovery 200, got %d", rw.Code)
	}
}

func TestWeatherByCoordinatesSkipsGeocoding(t *testing.T) {
	e := newTestEnv(t)

	rw := e.get("/api/weather?lat=51.5085&lon=-0.1257")
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rw.Code, rw.Body.String())
	}
	var resp models.WeatherResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Location.Name != "51.508,-0.126" {
		t.Fatalf("expected synthesized name, got %q", resp.Location.Name)
	}
	if geo, _ := e.upstream.calls(); geo != 0 {
		t.Fatalf("expected no geocode calls, got %d", geo)
	}
}

func TestWeatherUpstreamFailureIs502AndNotCached(t *testing.T) {
	e := newTestEnv(t)
	e.upstream.setForecast(http.StatusInternalServerError, `{"error":true}`)

	rw := e.get("/api/weather?lat=51.5&lon=-0.12")
	if rw.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rw.Code)
	}
	if n := e.caches.Forecasts.Len(); n != 0 {
		t.Fatalf("failed fetch must not populate the cache, have %d entries", n)
	}

	// Upstream recovers; the next request fetches fresh instead of serving
	// a poisoned entry.
	e.upstream.setForecast(http.StatusOK, forecastRainy)
	if rw := e.get("/api/weather?lat=51.5&lon=-0.12"); rw.Code != http.StatusOK {
		t.Fatalf("expected recovery 200, got %d", rw.Code)
	}
}

func TestWeatherIncompleteUpstreamPayloadIs502AndNotCached(t *testing.T) {
	e := newTestEnv(t)
	e.upstream.setForecast(http.StatusOK, `{"hourly":{"time":[]}}`)

	rw := e.get("/api/weather?lat=51.5&lon=-0.12")
	if rw.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for missing current_weather, got %d", rw.Code)
	}
	if n := e.caches.Forecasts.Len(); n != 0 {
		t.Fatalf("partial payload must not be cached, have %d entries", n)
	}
}

func TestWeatherDefaultHourlyVarsSentUpstream(t *testing.T) {
	e := newTestEnv(t)
	if rw := e.get("/api/weather?lat=51.5&lon=-0.12"); rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	_, fc := e.upstream.queries()
	if got := fc.Get("hourly"); got != defaultHourlyVars {
		t.Fatalf("expected default hourly vars upstream, got %q", got)
	}
}

func TestWeatherExplicitEmptyHourlyVarsOmitsHourlyParam(t *testing.T) {
	e := newTestEnv(t)
	if rw := e.get("/api/weather?lat=51.5&lon=-0.12&hourly_vars="); rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	_, fc := e.upstream.queries()
	if fc.Has("hourly") {
		t.Fatalf("expected no hourly param upstream, got %q", fc.Get("hourly"))
	}
}

func TestWeatherHourlyVarsIsolateCacheEntries(t *testing.T) {
	e := newTestEnv(t)
	_ = e.get("/api/weather?lat=51.5&lon=-0.12")
	_ = e.get("/api/weather?lat=51.5&lon=-0.12&hourly_vars=temperature_2m")
	if _, fc := e.upstream.calls(); fc != 2 {
		t.Fatalf("different hourly vars must not share an entry, got %d calls", fc)
	}
}
