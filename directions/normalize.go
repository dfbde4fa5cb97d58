// Package directions turns a provider's directions response into canonical
// route line and step segment collections with stable feature identities.
package directions

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/mumuon/drivefinder/route-service/geometry"
)

// DefaultRouteID prefixes feature IDs when the caller gives none.
const DefaultRouteID = "route"

// Line is the full geometry of one alternative.
type Line struct {
	ID       string
	DayIndex int
	AltID    int
	Distance float64
	Duration float64
	Geometry orb.LineString
}

// Segment is one non-degenerate step with running totals for its alternative.
type Segment struct {
	ID        string
	DayIndex  int
	AltID     int
	LegIndex  int
	StepIndex int

	Name         string
	ManeuverType string
	Instruction  string

	Distance           float64
	Duration           float64
	CumulativeDistance float64
	CumulativeDuration float64
	AltTotalDistance   float64
	AltTotalDuration   float64

	Geometry orb.LineString
}

// RemainingDistance is the distance left in the alternative after this segment.
func (s Segment) RemainingDistance() float64 {
	return s.AltTotalDistance - s.CumulativeDistance
}

// RemainingDuration is the time left in the alternative after this segment.
func (s Segment) RemainingDuration() float64 {
	return s.AltTotalDuration - s.CumulativeDuration
}

// Summary describes one alternative. StepCount counts kept steps only.
type Summary struct {
	TotalDistance float64 `json:"totalDistance"`
	TotalDuration float64 `json:"totalDuration"`
	LegCount      int     `json:"legCount"`
	StepCount     int     `json:"stepCount"`
}

// Result is the normalized form of a directions response.
type Result struct {
	Lines     []Line
	Segments  []Segment
	Summaries []Summary
	BBox      geometry.BBox
}

// LineID returns the identity of an alternative's route line.
func LineID(routeID string, altID int) string {
	return fmt.Sprintf("%s:%d", routeID, altID)
}

// SegmentID returns the identity of a step segment. Indices are positions in
// the provider response, so dropped steps leave gaps.
func SegmentID(routeID string, altID, legIndex, stepIndex int) string {
	return fmt.Sprintf("%s:%d:%d:%d", routeID, altID, legIndex, stepIndex)
}

// Normalize converts resp into line and segment collections for the given
// itinerary day. Alternatives keep their response order. An empty routeID
// means DefaultRouteID. A nil or empty response yields empty collections
// and an empty bbox.
func Normalize(resp *Response, dayIndex int, routeID string) *Result {
	if routeID == "" {
		routeID = DefaultRouteID
	}

	result := &Result{
		Lines:     []Line{},
		Segments:  []Segment{},
		Summaries: []Summary{},
		BBox:      geometry.Empty(),
	}
	if resp == nil {
		return result
	}

	for altID, route := range resp.Routes {
		result.Lines = append(result.Lines, Line{
			ID:       LineID(routeID, altID),
			DayIndex: dayIndex,
			AltID:    altID,
			Distance: route.Distance,
			Duration: route.Duration,
			Geometry: route.Geometry.Coordinates.Clone(),
		})

		// Step geometries lie on the route geometry, so only the route is folded.
		result.BBox = geometry.Merge(result.BBox, geometry.Compute(route.Geometry.Coordinates))

		var cumDistance, cumDuration float64
		kept := 0
		for legIndex, leg := range route.Legs {
			for stepIndex, step := range leg.Steps {
				if step.Geometry.Degenerate() {
					continue
				}
				cumDistance += step.Distance
				cumDuration += step.Duration
				kept++

				result.Segments = append(result.Segments, Segment{
					ID:                 SegmentID(routeID, altID, legIndex, stepIndex),
					DayIndex:           dayIndex,
					AltID:              altID,
					LegIndex:           legIndex,
					StepIndex:          stepIndex,
					Name:               step.Name,
					ManeuverType:       step.Maneuver.Type,
					Instruction:        step.Maneuver.Instruction,
					Distance:           step.Distance,
					Duration:           step.Duration,
					CumulativeDistance: cumDistance,
					CumulativeDuration: cumDuration,
					AltTotalDistance:   route.Distance,
					AltTotalDuration:   route.Duration,
					Geometry:           step.Geometry.Coordinates.Clone(),
				})
			}
		}

		result.Summaries = append(result.Summaries, Summary{
			TotalDistance: route.Distance,
			TotalDuration: route.Duration,
			LegCount:      len(route.Legs),
			StepCount:     kept,
		})
	}

	return result
}
