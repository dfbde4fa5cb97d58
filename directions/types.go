package directions

import "github.com/paulmach/orb"

// Response is a provider's multi-alternative directions payload.
// Coordinates are [lon, lat] throughout.
type Response struct {
	Code   string  `json:"code,omitempty"`
	Routes []Route `json:"routes" validate:"dive"`
}

// Route is one candidate route. Its position in Response.Routes is its altId.
type Route struct {
	Geometry   LineGeometry `json:"geometry"`
	Distance   float64      `json:"distance" validate:"gte=0"` // meters
	Duration   float64      `json:"duration" validate:"gte=0"` // seconds
	WeightName string       `json:"weight_name,omitempty"`
	Legs       []Leg        `json:"legs" validate:"dive"`
}

// Leg is the sequence of steps between two waypoints. Its distance and
// duration are informational and are not re-validated against its steps.
type Leg struct {
	Summary  string  `json:"summary,omitempty"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Steps    []Step  `json:"steps" validate:"dive"`
}

// Step is the atomic unit of a route. A step whose geometry has fewer than
// two points is degenerate.
type Step struct {
	Geometry LineGeometry `json:"geometry"`
	Distance float64      `json:"distance" validate:"gte=0"`
	Duration float64      `json:"duration" validate:"gte=0"`
	Name     string       `json:"name"`
	Mode     string       `json:"mode,omitempty"`
	Maneuver Maneuver     `json:"maneuver"`
}

// Maneuver describes the turn instruction at the start of a step.
type Maneuver struct {
	Type        string    `json:"type,omitempty"`
	Modifier    string    `json:"modifier,omitempty"`
	Instruction string    `json:"instruction,omitempty"`
	Location    orb.Point `json:"location"`
}

// LineGeometry is a GeoJSON LineString as the provider sends it.
type LineGeometry struct {
	Type        string         `json:"type" validate:"omitempty,eq=LineString"`
	Coordinates orb.LineString `json:"coordinates"`
}

// Degenerate reports whether the line cannot be drawn.
func (g LineGeometry) Degenerate() bool {
	return len(g.Coordinates) < 2
}
