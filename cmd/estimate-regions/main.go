package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mumuon/drivefinder/route-service/geometry"
	"github.com/mumuon/drivefinder/route-service/offline"
)

// RegionsFile is the YAML document listing regions to budget
type RegionsFile struct {
	Defaults Options  `yaml:"defaults"`
	Regions  []Region `yaml:"regions" validate:"required,min=1,dive"`
}

// Options overrides the estimator defaults. Nil fields inherit.
type Options struct {
	MinZoom  *int     `yaml:"minZoom" validate:"omitempty,gte=0,lte=22"`
	MaxZoom  *int     `yaml:"maxZoom" validate:"omitempty,gte=0,lte=22"`
	BufferKm *float64 `yaml:"bufferKm" validate:"omitempty,gte=0"`
}

// Region is one named bounding box
type Region struct {
	Name    string    `yaml:"name" validate:"required"`
	BBox    []float64 `yaml:"bbox" validate:"len=4"`
	Options `yaml:",inline"`
}

// Result is the estimate for one region
type Result struct {
	Name     string            `json:"name"`
	BBox     geometry.BBox     `json:"bbox"`
	Estimate *offline.Estimate `json:"estimate,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func main() {
	jsonOutput := flag.Bool("json", false, "Output results in JSON format")
	workers := flag.Int("workers", 4, "Number of parallel workers")
	strict := flag.Bool("strict", false, "Exit 2 if any region is over budget")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: estimate-regions [options] <regions.yaml>\n\n")
		fmt.Fprintf(os.Stderr, "Regions file:\n")
		fmt.Fprintf(os.Stderr, "  defaults: {minZoom: 6, maxZoom: 16, bufferKm: 5}\n")
		fmt.Fprintf(os.Stderr, "  regions:\n")
		fmt.Fprintf(os.Stderr, "    - name: san-francisco\n")
		fmt.Fprintf(os.Stderr, "      bbox: [-122.52, 37.70, -122.35, 37.83]\n")
		fmt.Fprintf(os.Stderr, "      maxZoom: 15\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  estimate-regions regions.yaml\n")
		fmt.Fprintf(os.Stderr, "  estimate-regions --json --workers 8 regions.yaml\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	rf, err := loadRegions(args[0])
	if err != nil {
		fmt.Printf("Error loading regions: %v\n", err)
		os.Exit(1)
	}

	results := estimateAll(rf, *workers)

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			fmt.Printf("Error writing JSON: %v\n", err)
			os.Exit(1)
		}
	} else {
		printResults(results)
	}

	failed, over := 0, 0
	for _, r := range results {
		switch {
		case r.Error != "":
			failed++
		case r.Estimate.ExceedsLimit:
			over++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
	if *strict && over > 0 {
		os.Exit(2)
	}
}

// loadRegions reads and validates a regions file
func loadRegions(path string) (*RegionsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseRegions(data)
}

func parseRegions(data []byte) (*RegionsFile, error) {
	var rf RegionsFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validator.New().Struct(&rf); err != nil {
		return nil, fmt.Errorf("invalid regions file: %w", err)
	}
	return &rf, nil
}

// resolve layers region options over file defaults over estimator defaults
func resolve(defaults, region Options) *offline.EstimateOptions {
	opts := offline.DefaultEstimateOptions()
	for _, o := range []Options{defaults, region} {
		if o.MinZoom != nil {
			opts.MinZoom = *o.MinZoom
		}
		if o.MaxZoom != nil {
			opts.MaxZoom = *o.MaxZoom
		}
		if o.BufferKm != nil {
			opts.BufferKm = *o.BufferKm
		}
	}
	return opts
}

// estimateAll runs every region through a worker pool. Results keep the
// order of the regions file.
func estimateAll(rf *RegionsFile, numWorkers int) []Result {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > len(rf.Regions) {
		numWorkers = len(rf.Regions)
	}

	results := make([]Result, len(rf.Regions))
	work := make(chan int, len(rf.Regions))
	for i := range rf.Regions {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				results[i] = estimateOne(rf.Regions[i], rf.Defaults)
			}
		}()
	}
	wg.Wait()

	return results
}

func estimateOne(region Region, defaults Options) Result {
	var b geometry.BBox
	copy(b[:], region.BBox)
	res := Result{Name: region.Name, BBox: b}

	if b.IsEmpty() || !b.IsFinite() {
		res.Error = "bbox min must not exceed max"
		return res
	}
	opts := resolve(defaults, region.Options)
	if opts.MaxZoom < opts.MinZoom {
		res.Error = fmt.Sprintf("maxZoom %d is below minZoom %d", opts.MaxZoom, opts.MinZoom)
		return res
	}

	res.Estimate = offline.EstimateRegionWithOptions(b, opts)
	return res
}

func printResults(results []Result) {
	fmt.Println("=" + strings.Repeat("=", 70))
	fmt.Println("Offline Region Estimates")
	fmt.Println("=" + strings.Repeat("=", 70))
	fmt.Printf("%-24s %6s %12s %10s %10s\n", "REGION", "ZOOMS", "TILES", "SIZE MB", "SUGGEST")

	for _, r := range results {
		if r.Error != "" {
			fmt.Printf("%-24s ⚠️  %s\n", r.Name, r.Error)
			continue
		}
		est := r.Estimate
		suggest := "-"
		if est.SuggestedMaxZoom != nil {
			suggest = fmt.Sprintf("z%d", *est.SuggestedMaxZoom)
		}
		marker := "✓"
		if est.ExceedsLimit {
			marker = "⚠️"
		}
		fmt.Printf("%-24s %2d-%-3d %12d %10.2f %10s %s\n",
			r.Name, est.MinZoom, est.MaxZoom, est.TileCount, est.EstimatedSizeMB, suggest, marker)
	}

	fmt.Println("=" + strings.Repeat("=", 70))
	fmt.Printf("Limit: %.0f MB per pack, %.0f KB per tile\n", offline.MaxPackSizeMB, offline.AverageTileKB)
}
