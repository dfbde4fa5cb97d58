package directions

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mumuon/drivefinder/route-service/geometry"
)

// Output is the wire shape consumed by map renderers and the route cache.
type Output struct {
	Summary []Summary   `json:"summary"`
	GeoJSON Collections `json:"geojson"`
}

// Collections holds the two feature collections and their combined bbox.
type Collections struct {
	RouteLines *geojson.FeatureCollection `json:"routeLines"`
	Segments   *geojson.FeatureCollection `json:"segments"`
	BBox       geometry.BBox              `json:"bbox"`
}

// Feature converts the line into a GeoJSON LineString feature.
func (l Line) Feature() *geojson.Feature {
	f := geojson.NewFeature(nonNil(l.Geometry))
	f.ID = l.ID
	f.Properties["dayIndex"] = l.DayIndex
	f.Properties["altId"] = l.AltID
	f.Properties["distance"] = l.Distance
	f.Properties["duration"] = l.Duration
	return f
}

// Feature converts the segment into a GeoJSON LineString feature.
func (s Segment) Feature() *geojson.Feature {
	f := geojson.NewFeature(nonNil(s.Geometry))
	f.ID = s.ID
	f.Properties["dayIndex"] = s.DayIndex
	f.Properties["altId"] = s.AltID
	f.Properties["legIndex"] = s.LegIndex
	f.Properties["stepIndex"] = s.StepIndex
	f.Properties["name"] = s.Name
	f.Properties["distance"] = s.Distance
	f.Properties["duration"] = s.Duration
	f.Properties["cumulativeDistance"] = s.CumulativeDistance
	f.Properties["cumulativeDuration"] = s.CumulativeDuration
	f.Properties["altTotalDistance"] = s.AltTotalDistance
	f.Properties["altTotalDuration"] = s.AltTotalDuration
	if s.ManeuverType != "" {
		f.Properties["maneuver"] = s.ManeuverType
	}
	if s.Instruction != "" {
		f.Properties["instruction"] = s.Instruction
	}
	return f
}

// Output builds the wire shape. Feature order matches the Result slices.
func (r *Result) Output() *Output {
	lines := geojson.NewFeatureCollection()
	for _, l := range r.Lines {
		lines.Append(l.Feature())
	}

	segments := geojson.NewFeatureCollection()
	for _, s := range r.Segments {
		segments.Append(s.Feature())
	}

	summary := r.Summaries
	if summary == nil {
		summary = []Summary{}
	}

	return &Output{
		Summary: summary,
		GeoJSON: Collections{
			RouteLines: lines,
			Segments:   segments,
			BBox:       r.BBox,
		},
	}
}

func nonNil(ls orb.LineString) orb.LineString {
	if ls == nil {
		return orb.LineString{}
	}
	return ls
}
