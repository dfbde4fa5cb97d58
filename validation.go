package main

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"

	"github.com/mumuon/drivefinder/route-service/geometry"
)

// newValidator returns a validator with the geographic rules registered.
func newValidator() (*validator.Validate, error) {
	v := validator.New()
	if err := v.RegisterValidation("lonlat", validateLonLat); err != nil {
		return nil, fmt.Errorf("failed to register lonlat validation: %w", err)
	}
	if err := v.RegisterValidation("bbox", validateBBox); err != nil {
		return nil, fmt.Errorf("failed to register bbox validation: %w", err)
	}
	return v, nil
}

// validateLonLat accepts a finite [lon, lat] in the WGS84 range.
func validateLonLat(fl validator.FieldLevel) bool {
	p, ok := fl.Field().Interface().(orb.Point)
	if !ok {
		return false
	}
	return inRange(p.Lon(), -180, 180) && inRange(p.Lat(), -90, 90)
}

// validateBBox accepts a finite, non-empty box within WGS84 bounds.
func validateBBox(fl validator.FieldLevel) bool {
	b, ok := fl.Field().Interface().(geometry.BBox)
	if !ok {
		return false
	}
	if !b.IsFinite() || b.IsEmpty() {
		return false
	}
	return inRange(b[0], -180, 180) && inRange(b[2], -180, 180) &&
		inRange(b[1], -90, 90) && inRange(b[3], -90, 90)
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}
