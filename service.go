package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mumuon/drivefinder/route-service/directions"
	"github.com/mumuon/drivefinder/route-service/geometry"
	"github.com/mumuon/drivefinder/route-service/isochrone"
	"github.com/mumuon/drivefinder/route-service/offline"
	"github.com/mumuon/drivefinder/route-service/routecache"
)

// MaxTileListing caps the number of tiles returned by a single listing
const MaxTileListing = 5000

var (
	// ErrInvalidRequest wraps request validation failures
	ErrInvalidRequest = errors.New("invalid request")
	// ErrProviderResponseRequired means the cache had nothing for the key and
	// the request carried no provider response to normalize
	ErrProviderResponseRequired = errors.New("provider response required")
	// ErrTooManyTiles means a listing would exceed MaxTileListing
	ErrTooManyTiles = errors.New("too many tiles")
)

// RouteService runs the normalizers and estimator behind request validation,
// caching and metrics
type RouteService struct {
	cache    *routecache.Cache
	metrics  *Metrics
	validate *validator.Validate
	offline  OfflineConfig
}

// NewRouteService creates a new route service
func NewRouteService(cfg *Config, cache *routecache.Cache, metrics *Metrics) (*RouteService, error) {
	v, err := newValidator()
	if err != nil {
		return nil, err
	}
	return &RouteService{
		cache:    cache,
		metrics:  metrics,
		validate: v,
		offline:  cfg.Offline,
	}, nil
}

// NormalizeDirections validates req, resolves the provider response through
// the cache and normalizes it. The second return value reports a cache hit.
// On a hit the cached provider response wins over any response in req.
func (s *RouteService) NormalizeDirections(req *DirectionsRequest) (*directions.Output, bool, error) {
	if err := s.check(req); err != nil {
		return nil, false, err
	}

	key := routecache.Key(routecache.KeyParams{
		Profile:      req.Profile,
		Coordinates:  req.Coordinates,
		Alternatives: req.Alternatives,
		Avoid:        req.Avoid,
	})
	logger := slog.With("cache_key", key, "day_index", req.DayIndex)

	resp, hit, err := s.providerResponse(key, req.Response)
	if err != nil {
		return nil, false, err
	}
	s.metrics.ObserveCacheLookup(hit)
	s.metrics.SetCacheEntries(s.cache.Len())

	start := time.Now()
	out := directions.Normalize(resp, req.DayIndex, req.RouteID).Output()
	s.metrics.ObserveNormalize("directions", time.Since(start))

	logger.Debug("directions normalized",
		"cache_hit", hit,
		"alternatives", len(out.Summary),
		"segments", len(out.GeoJSON.Segments.Features),
	)
	return out, hit, nil
}

func (s *RouteService) providerResponse(key string, posted *directions.Response) (*directions.Response, bool, error) {
	if data, ok := s.cache.Get(key); ok {
		var cached directions.Response
		err := json.Unmarshal(data, &cached)
		if err == nil {
			return &cached, true, nil
		}
		// Unreadable entry: drop it and fall through to the posted response
		s.cache.Remove(key)
		slog.Warn("dropped undecodable cache entry", "cache_key", key, "error", err)
	}

	if posted == nil {
		return nil, false, fmt.Errorf("%w for key %s", ErrProviderResponseRequired, key)
	}

	data, err := json.Marshal(posted)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode provider response: %w", err)
	}
	if err := s.cache.Set(key, data); err != nil {
		return nil, false, err
	}
	return posted, false, nil
}

// NormalizeIsochrone validates req and normalizes its contour polygons
func (s *RouteService) NormalizeIsochrone(req *IsochroneRequest) (*isochrone.Output, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	start := time.Now()
	out := isochrone.Normalize(req.Response, req.Center).Output()
	s.metrics.ObserveNormalize("isochrone", time.Since(start))

	slog.Debug("isochrone normalized", "center", req.Center, "contours", len(out.Contours))
	return out, nil
}

// EstimateRegion validates req, fills unset options from the configured
// defaults and runs the offline estimator
func (s *RouteService) EstimateRegion(req *EstimateRequest) (*offline.Estimate, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	opts := s.offline.EstimateOptions()
	if req.MinZoom != nil {
		opts.MinZoom = *req.MinZoom
	}
	if req.MaxZoom != nil {
		opts.MaxZoom = *req.MaxZoom
	}
	if req.BufferKm != nil {
		opts.BufferKm = *req.BufferKm
	}
	if opts.MaxZoom < opts.MinZoom {
		return nil, fmt.Errorf("%w: maxZoom %d is below minZoom %d", ErrInvalidRequest, opts.MaxZoom, opts.MinZoom)
	}

	start := time.Now()
	est := offline.EstimateRegionWithOptions(*req.BBox, opts)
	s.metrics.ObserveNormalize("offline_estimate", time.Since(start))

	logger := slog.With("min_zoom", est.MinZoom, "max_zoom", est.MaxZoom)
	if est.ExceedsLimit {
		s.metrics.IncOverBudget()
		logger.Info("offline region over budget",
			"tile_count", est.TileCount,
			"size_mb", est.EstimatedSizeMB,
			"suggested_max_zoom", *est.SuggestedMaxZoom,
		)
	} else {
		logger.Debug("offline region estimated", "tile_count", est.TileCount, "size_mb", est.EstimatedSizeMB)
	}
	return est, nil
}

// ListTiles enumerates the tiles of one zoom level of a buffered region
func (s *RouteService) ListTiles(req *TilesRequest) (*TilesResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	bufferKm := s.offline.BufferKm
	if req.BufferKm != nil {
		bufferKm = *req.BufferKm
	}
	bounds := offline.BufferBBox(*req.BBox, bufferKm)
	r := offline.RangeAt(bounds.SouthWest(), bounds.NorthEast(), req.Zoom)

	if n := r.Count(); n > MaxTileListing {
		return nil, fmt.Errorf("%w: zoom %d covers %d tiles, limit is %d", ErrTooManyTiles, req.Zoom, n, MaxTileListing)
	}

	resp := &TilesResponse{
		Zoom:   req.Zoom,
		Bounds: geometry.FromBound(r.Bound()),
		Tiles:  [][3]uint32{},
	}
	for _, t := range r.List() {
		resp.Tiles = append(resp.Tiles, [3]uint32{t.X, t.Y, uint32(t.Z)})
	}
	resp.Count = len(resp.Tiles)
	return resp, nil
}

// PurgeCache drops every cached provider response
func (s *RouteService) PurgeCache() int {
	n := s.cache.Len()
	s.cache.Purge()
	s.metrics.SetCacheEntries(0)
	slog.Info("route cache purged", "entries", n)
	return n
}

// CacheEntries returns the number of live cache entries
func (s *RouteService) CacheEntries() int {
	return s.cache.Len()
}

// CacheHitRate returns the fraction of lookups served from the cache
func (s *RouteService) CacheHitRate() float64 {
	return s.cache.HitRate()
}

func (s *RouteService) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
