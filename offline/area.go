package offline

import (
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius.
const EarthRadiusKm = 6371.0088

// RegionAreaKm2 returns the geodesic surface area of the buffered region.
// The rect is built from its intervals directly because s2.Rect.AddPoint
// would take the short way round for spans over 180 degrees.
func RegionAreaKm2(b Bounds) float64 {
	sw, ne := b.SouthWest(), b.NorthEast()
	lo := s2.LatLngFromDegrees(clamp(sw.Lat(), -90, 90), clamp(sw.Lon(), -180, 180))
	hi := s2.LatLngFromDegrees(clamp(ne.Lat(), -90, 90), clamp(ne.Lon(), -180, 180))

	rect := s2.Rect{
		Lat: r1.Interval{Lo: lo.Lat.Radians(), Hi: hi.Lat.Radians()},
		Lng: s1.Interval{Lo: lo.Lng.Radians(), Hi: hi.Lng.Radians()},
	}
	if rect.IsEmpty() {
		return 0
	}

	area := rect.Area() * EarthRadiusKm * EarthRadiusKm
	return math.Round(area*100) / 100
}
