package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mumuon/drivefinder/route-service/directions"
	"github.com/mumuon/drivefinder/route-service/geometry"
	"github.com/mumuon/drivefinder/route-service/isochrone"
	"github.com/mumuon/drivefinder/route-service/offline"
	"github.com/mumuon/drivefinder/route-service/routecache"
)

func main() {
	// Parse flags
	configPath := flag.String("config", ".env", "Path to config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	help := flag.Bool("help", false, "Show help message")
	flag.Parse()

	// Show help if requested or no arguments provided
	args := flag.Args()
	if *help || len(args) == 0 {
		showHelp()
		os.Exit(0)
	}

	command := args[0]

	// Setup logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	// Commands that print JSON to stdout log to stderr so output stays pipeable
	logOut := io.Writer(os.Stdout)
	if strings.HasPrefix(command, "normalize-") {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	switch command {
	case "serve":
		cmdServe(args[1:], configPath)
	case "estimate":
		cmdEstimate(args[1:], configPath)
	case "normalize-directions":
		cmdNormalizeDirections(args[1:])
	case "normalize-isochrone":
		cmdNormalizeIsochrone(args[1:])
	default:
		slog.Error("unknown command", "command", command)
		showHelp()
		os.Exit(1)
	}
}

// cmdServe starts the REST API server
func cmdServe(args []string, configPath *string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", 0, "Port to listen on (overrides PORT)")
	fs.Parse(args)

	// Load configuration
	cfg, err := LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	cache, err := routecache.New(&routecache.Options{Size: cfg.Cache.Size, TTL: cfg.Cache.TTL})
	if err != nil {
		slog.Error("failed to create route cache", "error", err)
		os.Exit(1)
	}
	slog.Info("route cache ready", "size", cfg.Cache.Size, "ttl", cache.TTL())

	metrics, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	service, err := NewRouteService(cfg, cache, metrics)
	if err != nil {
		slog.Error("failed to create route service", "error", err)
		os.Exit(1)
	}

	apiServer := NewAPIServer(service, metrics, cfg)
	slog.Info("starting route service API server",
		"port", cfg.Server.Port,
		"cache_size", cfg.Cache.Size,
		"cache_ttl", cfg.Cache.TTL,
	)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- apiServer.Start(cfg.Server.Port)
	}()

	// Wait for signal or error
	select {
	case err := <-errChan:
		if err != nil {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-sigChan:
		slog.Info("received shutdown signal, stopping server", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			os.Exit(1)
		}
	}
}

// cmdEstimate prints the offline tile budget for a bounding box
func cmdEstimate(args []string, configPath *string) {
	fs := flag.NewFlagSet("estimate", flag.ExitOnError)
	bboxFlag := fs.String("bbox", "", "Bounding box as minLon,minLat,maxLon,maxLat")
	minZoom := fs.Int("min-zoom", -1, "Minimum zoom level (-1 = config default)")
	maxZoom := fs.Int("max-zoom", -1, "Maximum zoom level (-1 = config default)")
	bufferKm := fs.Float64("buffer-km", -1, "Buffer around the box in km (-1 = config default)")
	jsonOutput := fs.Bool("json", false, "Output the estimate as JSON")
	fs.Parse(args)

	bbox, err := parseBBox(*bboxFlag)
	if err != nil {
		slog.Error("invalid bbox", "error", err)
		slog.Info("Usage: route-service estimate -bbox minLon,minLat,maxLon,maxLat")
		os.Exit(1)
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	opts, err := overrideOffline(cfg.Offline, *minZoom, *maxZoom, *bufferKm)
	if err != nil {
		slog.Error("invalid estimate options", "error", err)
		os.Exit(1)
	}

	report := &EstimateReport{
		Name:     *bboxFlag,
		BBox:     bbox,
		Estimate: offline.EstimateRegionWithOptions(bbox, opts),
	}

	if *jsonOutput {
		if err := printJSON(report.Estimate); err != nil {
			slog.Error("failed to write estimate", "error", err)
			os.Exit(1)
		}
	} else {
		report.Print()
	}
	if code := report.ExitCode(); code != 0 {
		os.Exit(code)
	}
}

// overrideOffline applies the non-negative flag values over the configured
// defaults and validates the result with the same rules as the config.
func overrideOffline(defaults OfflineConfig, minZoom, maxZoom int, bufferKm float64) (*offline.EstimateOptions, error) {
	cfg := defaults
	if minZoom >= 0 {
		cfg.MinZoom = minZoom
	}
	if maxZoom >= 0 {
		cfg.MaxZoom = maxZoom
	}
	if bufferKm >= 0 {
		cfg.BufferKm = bufferKm
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("zoom %d-%d, buffer %v km: %w", cfg.MinZoom, cfg.MaxZoom, cfg.BufferKm, err)
	}
	return cfg.EstimateOptions(), nil
}

// cmdNormalizeDirections normalizes a saved provider directions response
func cmdNormalizeDirections(args []string) {
	fs := flag.NewFlagSet("normalize-directions", flag.ExitOnError)
	dayIndex := fs.Int("day", 0, "Trip day index stamped on every feature")
	routeID := fs.String("route-id", directions.DefaultRouteID, "Prefix for feature identities")
	fs.Parse(reorderFlagsFirst(args))

	parsedArgs := fs.Args()
	if len(parsedArgs) == 0 {
		slog.Error("provider response file required")
		slog.Info("Usage: route-service normalize-directions [-day N] [-route-id ID] <file>")
		os.Exit(1)
	}

	var resp directions.Response
	if err := readJSONFile(parsedArgs[0], &resp); err != nil {
		slog.Error("failed to read directions response", "error", err)
		os.Exit(1)
	}

	out := directions.Normalize(&resp, *dayIndex, *routeID).Output()
	slog.Info("directions normalized",
		"file", parsedArgs[0],
		"alternatives", len(out.Summary),
		"segments", len(out.GeoJSON.Segments.Features),
	)

	if err := printJSON(out); err != nil {
		slog.Error("failed to write output", "error", err)
		os.Exit(1)
	}
}

// cmdNormalizeIsochrone normalizes a saved provider isochrone response
func cmdNormalizeIsochrone(args []string) {
	fs := flag.NewFlagSet("normalize-isochrone", flag.ExitOnError)
	centerFlag := fs.String("center", "", "Isochrone origin as lon,lat")
	fs.Parse(reorderFlagsFirst(args))

	parsedArgs := fs.Args()
	if len(parsedArgs) == 0 {
		slog.Error("provider response file required")
		slog.Info("Usage: route-service normalize-isochrone -center lon,lat <file>")
		os.Exit(1)
	}

	center, err := parsePoint(*centerFlag)
	if err != nil {
		slog.Error("invalid center", "error", err)
		os.Exit(1)
	}

	var resp isochrone.Response
	if err := readJSONFile(parsedArgs[0], &resp); err != nil {
		slog.Error("failed to read isochrone response", "error", err)
		os.Exit(1)
	}

	out := isochrone.Normalize(&resp, center).Output()
	slog.Info("isochrone normalized", "file", parsedArgs[0], "contours", len(out.Contours))

	if err := printJSON(out); err != nil {
		slog.Error("failed to write output", "error", err)
		os.Exit(1)
	}
}

// reorderFlagsFirst moves flag arguments before positional arguments so Go's
// flag package parses them correctly. Go's flag stops at the first non-flag arg.
// This allows "normalize-directions trip.json -day 2" to work like "-day 2 trip.json".
func reorderFlagsFirst(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "-") {
			flags = append(flags, args[i])
			// If flag uses "--key value" form (not "--key=value"), grab the next arg as the value
			if !strings.Contains(args[i], "=") && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}

// parseBBox parses "minLon,minLat,maxLon,maxLat"
func parseBBox(s string) (geometry.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geometry.BBox{}, fmt.Errorf("expected 4 comma-separated values, got %q", s)
	}
	var b geometry.BBox
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geometry.BBox{}, fmt.Errorf("bad bbox value %q: %w", p, err)
		}
		b[i] = v
	}
	if b.IsEmpty() {
		return geometry.BBox{}, errors.New("bbox min must not exceed max")
	}
	return b, nil
}

// parsePoint parses "lon,lat"
func parsePoint(s string) (orb.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return orb.Point{}, fmt.Errorf("expected lon,lat, got %q", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("bad longitude %q: %w", parts[0], err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("bad latitude %q: %w", parts[1], err)
	}
	return orb.Point{lon, lat}, nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func showHelp() {
	help := `Route Service - Normalize routing provider responses and budget offline regions

Usage:
  route-service [global options] <command> [command options] [arguments]

Global Options:
  -config string        Path to .env configuration file (default ".env")
  -debug                Enable debug logging
  -help                 Show this help message

Commands:
  serve                 Start the REST API server
  estimate              Estimate the tile count and size of an offline region
  normalize-directions  Normalize a saved directions response to GeoJSON
  normalize-isochrone   Normalize a saved isochrone response to GeoJSON

Serve Command:
  Usage: route-service serve [options]

  Options:
    -port int             Port to listen on (default from PORT, 8080)

  API Endpoints:
    POST   /api/directions/normalize  - Normalize directions (cached by request parameters)
    POST   /api/isochrone/normalize   - Normalize isochrone contours
    POST   /api/offline/estimate      - Estimate an offline region pack
    POST   /api/offline/tiles         - List the tiles of one zoom level
    DELETE /api/cache                 - Purge the route cache
    GET    /health                    - Health check endpoint
    GET    /metrics                   - Prometheus metrics

Estimate Command:
  Usage: route-service estimate -bbox minLon,minLat,maxLon,maxLat [options]

  Options:
    -min-zoom int         Minimum zoom level, 0-22 (default 6)
    -max-zoom int         Maximum zoom level, 0-22 (default 16)
    -buffer-km float      Buffer around the box in km (default 5)
    -json                 Print the estimate as JSON

  Description:
    Exits 0 if the pack fits under 200 MB, 2 if it is over budget,
    with or without -json.

Normalize Directions Command:
  Usage: route-service normalize-directions [-day N] [-route-id ID] <file>

Normalize Isochrone Command:
  Usage: route-service normalize-isochrone -center lon,lat <file>

Environment:
  PORT, READ_TIMEOUT_SECONDS, WRITE_TIMEOUT_SECONDS, MAX_BODY_BYTES
  ROUTE_CACHE_SIZE (default 500), ROUTE_CACHE_TTL_SECONDS (default 900)
  OFFLINE_MIN_ZOOM, OFFLINE_MAX_ZOOM, OFFLINE_BUFFER_KM

Examples:
  # Start the REST API server on a custom port
  ./route-service serve -port 3000

  # Budget a pack for San Francisco
  ./route-service estimate -bbox -122.52,37.70,-122.35,37.83

  # Same region, capped at zoom 14, as JSON
  ./route-service estimate -bbox -122.52,37.70,-122.35,37.83 -max-zoom 14 -json

  # Normalize day 2 of a trip
  ./route-service normalize-directions -day 2 -route-id trip42 day2.json > day2.geojson.json

  # Normalize an isochrone
  ./route-service normalize-isochrone -center -122.4194,37.7749 iso.json

  # Debug mode
  ./route-service -debug serve
`
	fmt.Print(help)
}
