// Package offline estimates the tile footprint and disk size of an offline
// map region and suggests a lower maximum zoom when a pack would not fit.
package offline

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/mumuon/drivefinder/route-service/geometry"
)

const (
	DefaultMinZoom  = 6
	DefaultMaxZoom  = 16
	DefaultBufferKm = 5.0

	// KmPerDegree is the length of one degree of latitude, used everywhere.
	KmPerDegree = 111.0

	// AverageTileKB is the assumed mean size of a stored tile.
	AverageTileKB = 20.0

	// MaxPackSizeMB is the hard cap for a single offline pack.
	MaxPackSizeMB = 200.0
)

// EstimateOptions controls the zoom range and buffer of an estimate.
type EstimateOptions struct {
	MinZoom  int
	MaxZoom  int
	BufferKm float64
}

// DefaultEstimateOptions returns zoom 6 to 16 with a 5 km buffer.
func DefaultEstimateOptions() *EstimateOptions {
	return &EstimateOptions{
		MinZoom:  DefaultMinZoom,
		MaxZoom:  DefaultMaxZoom,
		BufferKm: DefaultBufferKm,
	}
}

// Bounds is the buffered region as [sw, ne].
type Bounds [2]orb.Point

// SouthWest returns the first corner.
func (b Bounds) SouthWest() orb.Point { return b[0] }

// NorthEast returns the second corner.
func (b Bounds) NorthEast() orb.Point { return b[1] }

// ZoomStats holds the tile block and cost of one zoom level.
type ZoomStats struct {
	Zoom      int     `json:"zoom"`
	TileCount int     `json:"tileCount"`
	MinX      int     `json:"minX"`
	MaxX      int     `json:"maxX"`
	MinY      int     `json:"minY"`
	MaxY      int     `json:"maxY"`
	SizeMB    float64 `json:"sizeMB"`
}

// Estimate is the advisory result for one region. SuggestedMaxZoom is set
// only when ExceedsLimit is true.
type Estimate struct {
	Bounds           Bounds      `json:"bounds"`
	MinZoom          int         `json:"minZoom"`
	MaxZoom          int         `json:"maxZoom"`
	TileCount        int         `json:"tileCount"`
	EstimatedSizeMB  float64     `json:"estimatedSizeMB"`
	ExceedsLimit     bool        `json:"exceedsLimit"`
	SuggestedMaxZoom *int        `json:"suggestedMaxZoom,omitempty"`
	Zooms            []ZoomStats `json:"zooms"`
	AreaKm2          float64     `json:"areaKm2"`
}

// LatBufferDegrees converts a buffer distance to degrees of latitude.
func LatBufferDegrees(bufferKm float64) float64 {
	return bufferKm / KmPerDegree
}

// LonBufferDegrees converts a buffer distance to degrees of longitude at the
// given latitude. The result widens toward the poles.
func LonBufferDegrees(bufferKm, lat float64) float64 {
	return bufferKm / (KmPerDegree * math.Cos(lat*math.Pi/180))
}

// BufferBBox expands b by bufferKm on every side, using the box's center
// latitude for the longitude buffer.
func BufferBBox(b geometry.BBox, bufferKm float64) Bounds {
	latBuf := LatBufferDegrees(bufferKm)
	lonBuf := LonBufferDegrees(bufferKm, b.Center().Lat())

	return Bounds{
		{b[0] - lonBuf, b[1] - latBuf},
		{b[2] + lonBuf, b[3] + latBuf},
	}
}

// EstimateSizeMB converts a tile count to megabytes, rounded to 2 decimals.
func EstimateSizeMB(tiles int) float64 {
	return math.Round(float64(tiles)*AverageTileKB/1024*100) / 100
}

// EstimateRegion estimates b with the default options.
func EstimateRegion(b geometry.BBox) *Estimate {
	return EstimateRegionWithOptions(b, nil)
}

// EstimateRegionWithOptions buffers b, sums tile counts over the zoom range
// and, when the size is over MaxPackSizeMB, searches downward from
// MaxZoom-1 for the largest zoom that fits. When even MinZoom alone is over
// the cap the suggestion is MinZoom and ExceedsLimit stays true. A nil opts
// means DefaultEstimateOptions. An empty or non-finite bbox yields a
// zero-tile estimate.
func EstimateRegionWithOptions(b geometry.BBox, opts *EstimateOptions) *Estimate {
	if opts == nil {
		opts = DefaultEstimateOptions()
	}

	est := &Estimate{
		MinZoom: opts.MinZoom,
		MaxZoom: opts.MaxZoom,
		Zooms:   []ZoomStats{},
	}
	if b.IsEmpty() || !b.IsFinite() {
		return est
	}

	est.Bounds = BufferBBox(b, opts.BufferKm)
	sw, ne := est.Bounds.SouthWest(), est.Bounds.NorthEast()

	for z := opts.MinZoom; z <= opts.MaxZoom; z++ {
		r := RangeAt(sw, ne, z)
		count := r.Count()
		est.TileCount += count
		est.Zooms = append(est.Zooms, ZoomStats{
			Zoom:      z,
			TileCount: count,
			MinX:      r.MinX,
			MaxX:      r.MaxX,
			MinY:      r.MinY,
			MaxY:      r.MaxY,
			SizeMB:    EstimateSizeMB(count),
		})
	}

	est.EstimatedSizeMB = EstimateSizeMB(est.TileCount)
	est.ExceedsLimit = est.EstimatedSizeMB > MaxPackSizeMB
	est.AreaKm2 = RegionAreaKm2(est.Bounds)

	if est.ExceedsLimit {
		suggested := SuggestMaxZoom(sw, ne, opts.MinZoom, opts.MaxZoom)
		est.SuggestedMaxZoom = &suggested
	}

	return est
}

// SuggestMaxZoom scans z from maxZoom-1 down to minZoom, recomputing the
// size of [minZoom, z] each step, and returns the first z that fits under
// MaxPackSizeMB. When none fits it returns minZoom.
func SuggestMaxZoom(sw, ne orb.Point, minZoom, maxZoom int) int {
	for z := maxZoom - 1; z >= minZoom; z-- {
		if EstimateSizeMB(TotalTiles(sw, ne, minZoom, z)) <= MaxPackSizeMB {
			return z
		}
	}
	return minZoom
}
