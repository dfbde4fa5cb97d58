// Package isochrone turns a provider's travel-time contour response into
// canonical polygons keyed by the rounded request center.
package isochrone

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mumuon/drivefinder/route-service/geometry"
)

// Polygon is one kept contour.
type Polygon struct {
	ID       string
	Minutes  float64
	Color    string
	Metric   string
	Geometry orb.Polygon
}

// Contour is the metadata renderers use to build a legend.
type Contour struct {
	Minutes float64 `json:"minutes"`
	Color   string  `json:"color"`
}

// Result is the normalized form of an isochrone response.
type Result struct {
	Polygons []Polygon
	Center   orb.Point
	Contours []Contour
	BBox     geometry.BBox
}

// FeatureID keys a contour by the center rounded to 5 decimals, so requests
// differing only below 1e-5 degrees share an identity.
func FeatureID(center orb.Point, minutes float64) string {
	return fmt.Sprintf("iso:%s,%s:%s",
		geometry.Fixed5(center.Lon()),
		geometry.Fixed5(center.Lat()),
		strconv.FormatFloat(minutes, 'f', -1, 64),
	)
}

// Normalize keeps every Polygon feature of resp, in input order, and returns
// the contour metadata sorted ascending by minutes.
func Normalize(resp *Response, center orb.Point) *Result {
	result := &Result{
		Polygons: []Polygon{},
		Center:   center,
		Contours: []Contour{},
		BBox:     geometry.Empty(),
	}
	if resp == nil {
		return result
	}

	for _, f := range resp.Features {
		if f.Geometry == nil {
			continue
		}
		poly, ok := f.Geometry.Geometry().(orb.Polygon)
		if !ok {
			continue
		}

		minutes := f.Properties.Contour
		result.Polygons = append(result.Polygons, Polygon{
			ID:       FeatureID(center, minutes),
			Minutes:  minutes,
			Color:    f.Properties.Color,
			Metric:   f.Properties.Metric,
			Geometry: poly.Clone(),
		})
		result.Contours = append(result.Contours, Contour{Minutes: minutes, Color: f.Properties.Color})
		result.BBox = geometry.Merge(result.BBox, geometry.Polygon(poly))
	}

	sort.SliceStable(result.Contours, func(i, j int) bool {
		return result.Contours[i].Minutes < result.Contours[j].Minutes
	})

	return result
}

// Output is the wire shape of a normalized isochrone.
type Output struct {
	Contours []Contour                  `json:"contours"`
	GeoJSON  *geojson.FeatureCollection `json:"geojson"`
	Center   orb.Point                  `json:"center"`
	BBox     geometry.BBox              `json:"bbox"`
}

// Feature converts the polygon into a GeoJSON Polygon feature.
func (p Polygon) Feature() *geojson.Feature {
	f := geojson.NewFeature(p.Geometry)
	f.ID = p.ID
	f.Properties["minutes"] = p.Minutes
	f.Properties["color"] = p.Color
	f.Properties["metric"] = p.Metric
	return f
}

// Output builds the wire shape.
func (r *Result) Output() *Output {
	fc := geojson.NewFeatureCollection()
	for _, p := range r.Polygons {
		fc.Append(p.Feature())
	}

	contours := r.Contours
	if contours == nil {
		contours = []Contour{}
	}

	return &Output{
		Contours: contours,
		GeoJSON:  fc,
		Center:   r.Center,
		BBox:     r.BBox,
	}
}
