package main

import (
	"fmt"
	"log/slog"

	"github.com/mumuon/drivefinder/route-service/geometry"
	"github.com/mumuon/drivefinder/route-service/offline"
)

// EstimateReport pairs an offline estimate with the region it was run for
type EstimateReport struct {
	Name     string
	BBox     geometry.BBox
	Estimate *offline.Estimate
}

// OK reports whether the pack fits under the size cap
func (r *EstimateReport) OK() bool {
	return r.Estimate != nil && !r.Estimate.ExceedsLimit
}

// ExitCode is 2 when the pack is over budget, 0 otherwise
func (r *EstimateReport) ExitCode() int {
	if r.OK() {
		return 0
	}
	return 2
}

// Print logs the report details
func (r *EstimateReport) Print() {
	est := r.Estimate
	logger := slog.With("region", r.Name, "min_zoom", est.MinZoom, "max_zoom", est.MaxZoom)

	if r.OK() {
		logger.Info("offline estimate within budget",
			"tiles", est.TileCount,
			"size_mb", est.EstimatedSizeMB,
			"area_km2", est.AreaKm2,
		)
	} else {
		logger.Warn("offline estimate OVER BUDGET",
			"tiles", est.TileCount,
			"size_mb", est.EstimatedSizeMB,
			"limit_mb", offline.MaxPackSizeMB,
			"suggested_max_zoom", suggested(est),
		)
	}

	for _, z := range est.Zooms {
		slog.Info("zoom level stats",
			"zoom", z.Zoom,
			"tiles", z.TileCount,
			"size_mb", z.SizeMB,
			"x_range", fmt.Sprintf("%d-%d", z.MinX, z.MaxX),
			"y_range", fmt.Sprintf("%d-%d", z.MinY, z.MaxY),
		)
	}
}

func suggested(est *offline.Estimate) any {
	if est.SuggestedMaxZoom == nil {
		return nil
	}
	return *est.SuggestedMaxZoom
}
