package isochrone

import "github.com/paulmach/orb/geojson"

// Response is a provider's contour FeatureCollection.
type Response struct {
	Type     string    `json:"type,omitempty"`
	Features []Feature `json:"features" validate:"dive"`
}

// Feature is one contour ring set. Geometry decodes any GeoJSON type so that
// non-Polygon features can be dropped during normalization.
type Feature struct {
	Type       string            `json:"type,omitempty"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties Properties        `json:"properties"`
}

// Properties carries the contour tag as the provider sends it.
type Properties struct {
	Contour float64 `json:"contour" validate:"gte=0"` // minutes
	Color   string  `json:"color"`
	Metric  string  `json:"metric,omitempty"`
}
