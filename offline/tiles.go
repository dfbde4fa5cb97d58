package offline

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// MaxMercatorLat is the latitude where the Web-Mercator square ends.
const MaxMercatorLat = 85.05112877980659

// TileX returns the slippy-map column containing lon at zoom z.
func TileX(lon float64, z int) int {
	n := math.Exp2(float64(z))
	lon = clamp(lon, -180, 180)
	x := math.Floor((lon + 180) / 360 * n)
	return clampIndex(x, n)
}

// TileY returns the slippy-map row containing lat at zoom z.
// Higher latitudes map to lower rows.
func TileY(lat float64, z int) int {
	n := math.Exp2(float64(z))
	rad := clamp(lat, -MaxMercatorLat, MaxMercatorLat) * math.Pi / 180
	y := math.Floor((1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) / 2 * n)
	return clampIndex(y, n)
}

// TileRange is the block of tiles covering a region at one zoom level.
type TileRange struct {
	Zoom int
	MinX int
	MaxX int
	MinY int
	MaxY int
}

// RangeAt computes the tile block for the sw/ne corners at zoom z. The row
// range comes from the north-east latitude (MinY) and the south-west
// latitude (MaxY).
func RangeAt(sw, ne orb.Point, z int) TileRange {
	return TileRange{
		Zoom: z,
		MinX: TileX(sw.Lon(), z),
		MaxX: TileX(ne.Lon(), z),
		MinY: TileY(ne.Lat(), z),
		MaxY: TileY(sw.Lat(), z),
	}
}

// Count returns the number of tiles in the block.
func (r TileRange) Count() int {
	return (abs(r.MaxX-r.MinX) + 1) * (abs(r.MaxY-r.MinY) + 1)
}

// List returns the tiles of the block ordered by x, then y.
func (r TileRange) List() []maptile.Tile {
	x0, x1 := order(r.MinX, r.MaxX)
	y0, y1 := order(r.MinY, r.MaxY)
	z := maptile.Zoom(r.Zoom)

	tiles := make([]maptile.Tile, 0, r.Count())
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			tiles = append(tiles, maptile.New(uint32(x), uint32(y), z))
		}
	}
	return tiles
}

// Bound returns the geographic extent of the block, edge to edge.
func (r TileRange) Bound() orb.Bound {
	x0, x1 := order(r.MinX, r.MaxX)
	y0, y1 := order(r.MinY, r.MaxY)
	z := maptile.Zoom(r.Zoom)

	nw := maptile.New(uint32(x0), uint32(y0), z).Bound()
	se := maptile.New(uint32(x1), uint32(y1), z).Bound()
	return nw.Union(se)
}

// TileCountAtZoom returns the number of tiles covering sw/ne at zoom z.
func TileCountAtZoom(sw, ne orb.Point, z int) int {
	return RangeAt(sw, ne, z).Count()
}

// TotalTiles sums tile counts for every zoom in [minZoom, maxZoom]. Each
// level is stored separately, so the counts add.
func TotalTiles(sw, ne orb.Point, minZoom, maxZoom int) int {
	total := 0
	for z := minZoom; z <= maxZoom; z++ {
		total += TileCountAtZoom(sw, ne, z)
	}
	return total
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampIndex(v, n float64) int {
	return int(clamp(v, 0, n-1))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func order(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}
