package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mumuon/drivefinder/route-service/offline"
	"github.com/mumuon/drivefinder/route-service/routecache"
)

const providerDirections = `{
  "code": "Ok",
  "routes": [{
    "distance": 2000,
    "duration": 120,
    "geometry": {"type": "LineString", "coordinates": [[-122.42, 37.77], [-122.41, 37.78], [-122.40, 37.79]]},
    "legs": [{
      "distance": 2000,
      "duration": 120,
      "steps": [
        {"distance": 1000, "duration": 60, "name": "Market St", "geometry": {"type": "LineString", "coordinates": [[-122.42, 37.77], [-122.41, 37.78]]}, "maneuver": {"type": "depart", "location": [-122.42, 37.77]}},
        {"distance": 0, "duration": 0, "name": "", "geometry": {"type": "LineString", "coordinates": [[-122.41, 37.78]]}, "maneuver": {"type": "continue", "location": [-122.41, 37.78]}},
        {"distance": 1000, "duration": 60, "name": "Castro St", "geometry": {"type": "LineString", "coordinates": [[-122.41, 37.78], [-122.40, 37.79]]}, "maneuver": {"type": "arrive", "location": [-122.40, 37.79]}}
      ]
    }]
  }]
}`

const providerIsochrone = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"contour": 30, "color": "#04e813"}, "geometry": {"type": "Polygon", "coordinates": [[[-122.5, 37.7], [-122.3, 37.7], [-122.3, 37.9], [-122.5, 37.7]]]}},
    {"type": "Feature", "properties": {"contour": 15, "color": "#6706ce"}, "geometry": {"type": "Polygon", "coordinates": [[[-122.45, 37.75], [-122.4, 37.75], [-122.4, 37.8], [-122.45, 37.75]]]}},
    {"type": "Feature", "properties": {"contour": 5}, "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]}}
  ]
}`

func testConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			MaxBodyBytes: 1 << 20,
		},
		Cache: CacheConfig{Size: 10, TTL: time.Minute},
		Offline: OfflineConfig{
			MinZoom:  offline.DefaultMinZoom,
			MaxZoom:  offline.DefaultMaxZoom,
			BufferKm: offline.DefaultBufferKm,
		},
	}
}

func newTestServer(t *testing.T) (*APIServer, *prometheus.Registry) {
	t.Helper()
	cfg := testConfig()

	cache, err := routecache.New(&routecache.Options{Size: cfg.Cache.Size, TTL: cfg.Cache.TTL})
	if err != nil {
		t.Fatal(err)
	}
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	if err != nil {
		t.Fatal(err)
	}
	service, err := NewRouteService(cfg, cache, metrics)
	if err != nil {
		t.Fatal(err)
	}
	return NewAPIServer(service, metrics, cfg), reg
}

func do(t *testing.T, s *APIServer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func directionsBody(withResponse bool, routeID string) string {
	body := `{"profile": "driving", "coordinates": [[-122.42, 37.77], [-122.40, 37.79]], "alternatives": false, "dayIndex": 1, "routeId": "` + routeID + `"`
	if withResponse {
		body += `, "response": ` + providerDirections
	}
	return body + "}"
}

func TestNormalizeDirections_MissThenHit(t *testing.T) {
	s, _ := newTestServer(t)

	first := do(t, s, http.MethodPost, "/api/directions/normalize", directionsBody(true, "trip"))
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", first.Code, first.Body.String())
	}
	if got := first.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("first request X-Cache = %q, want MISS", got)
	}

	var out struct {
		Summary []struct {
			TotalDistance float64 `json:"totalDistance"`
			StepCount     int     `json:"stepCount"`
		} `json:"summary"`
		GeoJSON struct {
			Segments struct {
				Features []struct {
					ID         string         `json:"id"`
					Properties map[string]any `json:"properties"`
				} `json:"features"`
			} `json:"segments"`
			BBox []float64 `json:"bbox"`
		} `json:"geojson"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Summary) != 1 || out.Summary[0].StepCount != 2 || out.Summary[0].TotalDistance != 2000 {
		t.Errorf("unexpected summary %+v", out.Summary)
	}
	segs := out.GeoJSON.Segments.Features
	if len(segs) != 2 || segs[0].ID != "trip:0:0:0" || segs[1].ID != "trip:0:0:2" {
		t.Fatalf("unexpected segments %+v", segs)
	}
	if segs[1].Properties["cumulativeDistance"] != 2000.0 || segs[1].Properties["dayIndex"] != 1.0 {
		t.Errorf("unexpected segment properties %v", segs[1].Properties)
	}

	// The cached provider response serves a request without a payload and
	// is renormalized with the new route id.
	second := do(t, s, http.MethodPost, "/api/directions/normalize", directionsBody(false, "other"))
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200 on hit, got %d: %s", second.Code, second.Body.String())
	}
	if got := second.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("second request X-Cache = %q, want HIT", got)
	}
	if !strings.Contains(second.Body.String(), `"other:0:0:2"`) {
		t.Errorf("hit was not renormalized with the request route id: %s", second.Body.String())
	}
}

func TestNormalizeDirections_Deterministic(t *testing.T) {
	a, _ := newTestServer(t)
	b, _ := newTestServer(t)

	ra := do(t, a, http.MethodPost, "/api/directions/normalize", directionsBody(true, "trip"))
	rb := do(t, b, http.MethodPost, "/api/directions/normalize", directionsBody(true, "trip"))
	if !bytes.Equal(ra.Body.Bytes(), rb.Body.Bytes()) {
		t.Error("identical requests produced different bodies")
	}
}

func TestNormalizeDirections_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"profile":`, http.StatusBadRequest},
		{"unknown profile", `{"profile": "teleport", "coordinates": [[0, 0], [1, 1]], "response": {"routes": []}}`, http.StatusBadRequest},
		{"single coordinate", `{"profile": "driving", "coordinates": [[0, 0]], "response": {"routes": []}}`, http.StatusBadRequest},
		{"coordinate out of range", `{"profile": "driving", "coordinates": [[0, 0], [200, 0]], "response": {"routes": []}}`, http.StatusBadRequest},
		{"negative day", `{"profile": "driving", "coordinates": [[0, 0], [1, 1]], "dayIndex": -1, "response": {"routes": []}}`, http.StatusBadRequest},
		{"negative step distance", `{"profile": "driving", "coordinates": [[0, 0], [1, 1]], "response": {"routes": [{"legs": [{"steps": [{"distance": -5}]}]}]}}`, http.StatusBadRequest},
		{"miss without response", `{"profile": "walking", "coordinates": [[0, 0], [1, 1]]}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			rec := do(t, s, http.MethodPost, "/api/directions/normalize", tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestNormalizeDirections_EmptyRoutes(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/directions/normalize",
		`{"profile": "cycling", "coordinates": [[0, 0], [1, 1]], "response": {"routes": []}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"summary":[]`) || !strings.Contains(body, `"bbox":[null,null,null,null]`) {
		t.Errorf("unexpected empty output %s", body)
	}
}

func TestNormalizeIsochrone(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/isochrone/normalize",
		`{"center": [-122.4194, 37.7749], "response": `+providerIsochrone+`}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var out struct {
		Contours []struct {
			Minutes float64 `json:"minutes"`
		} `json:"contours"`
		GeoJSON struct {
			Features []struct {
				ID string `json:"id"`
			} `json:"features"`
		} `json:"geojson"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Contours) != 2 || out.Contours[0].Minutes != 15 || out.Contours[1].Minutes != 30 {
		t.Errorf("contours not sorted ascending: %+v", out.Contours)
	}
	if len(out.GeoJSON.Features) != 2 || out.GeoJSON.Features[0].ID != "iso:-122.41940,37.77490:30" {
		t.Errorf("unexpected features %+v", out.GeoJSON.Features)
	}
}

func TestNormalizeIsochrone_Errors(t *testing.T) {
	s, _ := newTestServer(t)

	if rec := do(t, s, http.MethodPost, "/api/isochrone/normalize", `{"center": [0, 0]}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing response: expected 400, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/isochrone/normalize", `{"center": [0, 95], "response": {"features": []}}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad center: expected 400, got %d", rec.Code)
	}
}

func TestEstimate(t *testing.T) {
	s, reg := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/offline/estimate", `{"bbox": [-74.02, 40.70, -73.93, 40.80]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var est offline.Estimate
	if err := json.Unmarshal(rec.Body.Bytes(), &est); err != nil {
		t.Fatal(err)
	}
	if est.MinZoom != 6 || est.MaxZoom != 16 || est.ExceedsLimit || est.SuggestedMaxZoom != nil {
		t.Errorf("unexpected default estimate %+v", est)
	}
	if len(est.Zooms) != 11 {
		t.Errorf("expected 11 zoom levels, got %d", len(est.Zooms))
	}

	rec = do(t, s, http.MethodPost, "/api/offline/estimate", `{"bbox": [-125, 24, -66, 49], "minZoom": 4, "maxZoom": 14}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &est); err != nil {
		t.Fatal(err)
	}
	if !est.ExceedsLimit || est.SuggestedMaxZoom == nil {
		t.Errorf("expected over-budget estimate with suggestion, got %+v", est)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "offline_estimates_over_budget_total" {
			found = mf.GetMetric()[0].GetCounter().GetValue() == 1
		}
	}
	if !found {
		t.Error("over-budget counter was not incremented once")
	}
}

func TestEstimate_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing bbox", `{}`},
		{"inverted bbox", `{"bbox": [10, 10, 5, 5]}`},
		{"out of range", `{"bbox": [-190, 0, 0, 1]}`},
		{"short bbox", `{"bbox": [0, 0, 1]}`},
		{"inverted zooms", `{"bbox": [0, 0, 1, 1], "minZoom": 10, "maxZoom": 8}`},
		{"zoom out of range", `{"bbox": [0, 0, 1, 1], "maxZoom": 30}`},
		{"negative buffer", `{"bbox": [0, 0, 1, 1], "bufferKm": -1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			rec := do(t, s, http.MethodPost, "/api/offline/estimate", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestListTiles(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/offline/tiles", `{"bbox": [-122.42, 37.77, -122.40, 37.79], "zoom": 12, "bufferKm": 0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out TilesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Count == 0 || out.Count != len(out.Tiles) {
		t.Fatalf("count %d does not match %d tiles", out.Count, len(out.Tiles))
	}
	for _, tile := range out.Tiles {
		if tile[2] != 12 {
			t.Errorf("tile %v at wrong zoom", tile)
		}
		if tile[0] != 655 {
			t.Errorf("tile %v outside column 655", tile)
		}
	}
	b := out.Bounds
	if b[0] > -122.42 || b[1] > 37.77 || b[2] < -122.40 || b[3] < 37.79 {
		t.Errorf("block bounds %v do not cover the requested box", b)
	}

	rec = do(t, s, http.MethodPost, "/api/offline/tiles", `{"bbox": [-125, 24, -66, 49], "zoom": 14}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for oversized listing, got %d", rec.Code)
	}
}

func TestNormalizeDirections_UndecodableCacheEntry(t *testing.T) {
	s, _ := newTestServer(t)
	key := routecache.Key(routecache.KeyParams{
		Profile:     "driving",
		Coordinates: []orb.Point{{-122.42, 37.77}, {-122.40, 37.79}},
	})
	if err := s.service.cache.Set(key, []byte("not json")); err != nil {
		t.Fatal(err)
	}

	rec := do(t, s, http.MethodPost, "/api/directions/normalize", directionsBody(true, "trip"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("X-Cache = %q, want MISS for an unreadable entry", got)
	}

	rec = do(t, s, http.MethodPost, "/api/directions/normalize", directionsBody(false, "trip"))
	if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "HIT" {
		t.Errorf("expected the entry to be replaced, got %d %q", rec.Code, rec.Header().Get("X-Cache"))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/directions/normalize", directionsBody(true, "trip"))
	do(t, s, http.MethodPost, "/api/directions/normalize", directionsBody(true, "trip"))

	rec := do(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.CacheEntries != 1 || health.CacheHitRate != 0.5 {
		t.Errorf("unexpected health %+v", health)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected generated X-Request-ID header")
	}

	rec = do(t, s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	for _, name := range []string{"route_cache_lookups_total", "route_normalize_duration_seconds", "route_cache_entries"} {
		if !strings.Contains(rec.Body.String(), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestPurgeCache(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/directions/normalize", directionsBody(true, "trip"))

	rec := do(t, s, http.MethodDelete, "/api/cache", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"purged":1`) {
		t.Fatalf("unexpected purge response %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/api/directions/normalize", directionsBody(false, "trip"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 after purge, got %d", rec.Code)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)
	if rec := do(t, s, http.MethodGet, "/api/offline/estimate", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
