package main

import (
	"github.com/paulmach/orb"

	"github.com/mumuon/drivefinder/route-service/directions"
	"github.com/mumuon/drivefinder/route-service/geometry"
	"github.com/mumuon/drivefinder/route-service/isochrone"
)

// DirectionsRequest represents a directions normalization request.
// Response may be omitted when the provider response for these parameters
// is already cached.
type DirectionsRequest struct {
	Profile      string               `json:"profile" validate:"required,oneof=driving driving-traffic walking cycling"`
	Coordinates  []orb.Point          `json:"coordinates" validate:"min=2,max=25,dive,lonlat"`
	Alternatives bool                 `json:"alternatives"`
	Avoid        map[string]bool      `json:"avoid,omitempty"`
	DayIndex     int                  `json:"dayIndex" validate:"gte=0"`
	RouteID      string               `json:"routeId,omitempty" validate:"omitempty,max=128"`
	Response     *directions.Response `json:"response,omitempty"`
}

// IsochroneRequest represents an isochrone normalization request
type IsochroneRequest struct {
	Center   orb.Point           `json:"center" validate:"lonlat"`
	Response *isochrone.Response `json:"response" validate:"required"`
}

// EstimateRequest represents an offline region estimate request. Unset
// fields fall back to the configured offline defaults.
type EstimateRequest struct {
	BBox     *geometry.BBox `json:"bbox" validate:"required,bbox"`
	MinZoom  *int           `json:"minZoom,omitempty" validate:"omitempty,gte=0,lte=22"`
	MaxZoom  *int           `json:"maxZoom,omitempty" validate:"omitempty,gte=0,lte=22"`
	BufferKm *float64       `json:"bufferKm,omitempty" validate:"omitempty,gte=0,lte=500"`
}

// TilesRequest represents a request to enumerate the tiles of one zoom level
type TilesRequest struct {
	BBox     *geometry.BBox `json:"bbox" validate:"required,bbox"`
	Zoom     int            `json:"zoom" validate:"gte=0,lte=22"`
	BufferKm *float64       `json:"bufferKm,omitempty" validate:"omitempty,gte=0,lte=500"`
}

// TilesResponse lists tiles as [x, y, z] triples ordered by x then y,
// and the edge-to-edge extent of the block
type TilesResponse struct {
	Zoom   int           `json:"zoom"`
	Count  int           `json:"count"`
	Bounds geometry.BBox `json:"bounds"`
	Tiles  [][3]uint32   `json:"tiles"`
}

// HealthResponse represents the response to a health check
type HealthResponse struct {
	Status       string  `json:"status"`
	Time         string  `json:"time"`
	CacheEntries int     `json:"cacheEntries"`
	CacheHitRate float64 `json:"cacheHitRate"`
}
