// Package geometry holds the bounding box arithmetic shared by the route and
// isochrone normalizers and the offline region estimator.
package geometry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
)

// BBox is [minLon, minLat, maxLon, maxLat].
type BBox [4]float64

// Empty returns the identity element for Merge: [+Inf, +Inf, -Inf, -Inf].
func Empty() BBox {
	return BBox{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
}

// Merge returns the component-wise min/max of two boxes.
func Merge(a, b BBox) BBox {
	return BBox{
		math.Min(a[0], b[0]),
		math.Min(a[1], b[1]),
		math.Max(a[2], b[2]),
		math.Max(a[3], b[3]),
	}
}

// Compute folds a coordinate sequence into a box. An empty sequence yields Empty().
func Compute(points []orb.Point) BBox {
	b := Empty()
	for _, p := range points {
		b = b.Extend(p)
	}
	return b
}

// Polygon folds every ring of a polygon, exterior and interior.
func Polygon(p orb.Polygon) BBox {
	b := Empty()
	for _, ring := range p {
		b = Merge(b, Compute(ring))
	}
	return b
}

// FromBound converts an orb.Bound.
func FromBound(b orb.Bound) BBox {
	return BBox{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
}

// Extend grows the box to include p.
func (b BBox) Extend(p orb.Point) BBox {
	return BBox{
		math.Min(b[0], p.Lon()),
		math.Min(b[1], p.Lat()),
		math.Max(b[2], p.Lon()),
		math.Max(b[3], p.Lat()),
	}
}

// IsEmpty reports whether the box contains no point.
func (b BBox) IsEmpty() bool {
	return b[0] > b[2] || b[1] > b[3]
}

// IsFinite reports whether every component is a finite number.
func (b BBox) IsFinite() bool {
	for _, v := range b {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}

// SouthWest returns the [minLon, minLat] corner.
func (b BBox) SouthWest() orb.Point {
	return orb.Point{b[0], b[1]}
}

// NorthEast returns the [maxLon, maxLat] corner.
func (b BBox) NorthEast() orb.Point {
	return orb.Point{b[2], b[3]}
}

// Center returns the midpoint of the box.
func (b BBox) Center() orb.Point {
	return orb.Point{(b[0] + b[2]) / 2, (b[1] + b[3]) / 2}
}

// Bound converts to an orb.Bound.
func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: b.SouthWest(), Max: b.NorthEast()}
}

// MarshalJSON writes non-finite components as null since JSON has no Infinity.
func (b BBox) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsInf(v, 0) || math.IsNaN(v) {
			buf.WriteString("null")
			continue
		}
		buf.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads four numbers. A null component in the min slots decodes
// as +Inf and in the max slots as -Inf, so an encoded Empty() round trips.
func (b *BBox) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid bbox: %w", err)
	}
	if len(raw) != 4 {
		return fmt.Errorf("invalid bbox: expected 4 values, got %d", len(raw))
	}
	empty := Empty()
	for i, v := range raw {
		if v == nil {
			b[i] = empty[i]
			continue
		}
		b[i] = *v
	}
	return nil
}
