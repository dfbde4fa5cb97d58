package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Layer is one named feature collection of a normalized output
type Layer struct {
	Name     string
	Features map[string]*geojson.Feature
	Order    []string
}

// Diff summarizes the differences of one layer
type Diff struct {
	Layer     string
	Missing   []string // in OLD, not in NEW
	Extra     []string // in NEW, not in OLD
	Geometry  []string // same ID, different coordinate count or position
	Property  []string // same ID, different property value
	Reordered bool
}

// Empty reports whether the layer is identical in both outputs
func (d *Diff) Empty() bool {
	return len(d.Missing) == 0 && len(d.Extra) == 0 && len(d.Geometry) == 0 && len(d.Property) == 0 && !d.Reordered
}

func main() {
	tolerance := flag.Float64("tolerance", 1e-9, "Absolute tolerance for numeric properties and coordinates")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: compare-geojson [options] <old-output> <new-output>\n\n")
		fmt.Fprintf(os.Stderr, "Compares two normalized directions or isochrone outputs by feature id.\n")
		fmt.Fprintf(os.Stderr, "Exits 1 when any layer differs.\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  compare-geojson old/day1.json new/day1.json\n")
		fmt.Fprintf(os.Stderr, "  compare-geojson -tolerance 0.01 old/iso.json new/iso.json\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		flag.Usage()
		os.Exit(1)
	}
	oldPath, newPath := args[0], args[1]

	oldLayers, err := loadLayers(oldPath)
	if err != nil {
		fmt.Printf("Error loading old output: %v\n", err)
		os.Exit(1)
	}
	newLayers, err := loadLayers(newPath)
	if err != nil {
		fmt.Printf("Error loading new output: %v\n", err)
		os.Exit(1)
	}

	diffs := compareLayers(oldLayers, newLayers, *tolerance)
	printReport(diffs, oldLayers, newLayers, oldPath, newPath)

	for _, d := range diffs {
		if !d.Empty() {
			os.Exit(1)
		}
	}
}

// loadLayers reads a normalized output and returns its feature collections.
// Directions outputs carry geojson.routeLines and geojson.segments; isochrone
// outputs carry a single collection under geojson.
func loadLayers(path string) (map[string]*Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		GeoJSON json.RawMessage `json:"geojson"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(doc.GeoJSON) == 0 {
		return nil, fmt.Errorf("%s has no geojson member", path)
	}

	var shape struct {
		Type       string          `json:"type"`
		RouteLines json.RawMessage `json:"routeLines"`
		Segments   json.RawMessage `json:"segments"`
	}
	if err := json.Unmarshal(doc.GeoJSON, &shape); err != nil {
		return nil, fmt.Errorf("failed to parse geojson member: %w", err)
	}

	raw := map[string]json.RawMessage{}
	if shape.Type == "FeatureCollection" {
		raw["polygons"] = doc.GeoJSON
	} else {
		raw["routeLines"] = shape.RouteLines
		raw["segments"] = shape.Segments
	}

	layers := make(map[string]*Layer, len(raw))
	for name, msg := range raw {
		if len(msg) == 0 {
			return nil, fmt.Errorf("%s: missing %s collection", path, name)
		}
		fc, err := geojson.UnmarshalFeatureCollection(msg)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to decode %s: %w", path, name, err)
		}

		layer := &Layer{Name: name, Features: make(map[string]*geojson.Feature, len(fc.Features))}
		for i, f := range fc.Features {
			id := featureID(f, i)
			layer.Features[id] = f
			layer.Order = append(layer.Order, id)
		}
		layers[name] = layer
	}
	return layers, nil
}

func featureID(f *geojson.Feature, index int) string {
	if f.ID != nil {
		return fmt.Sprint(f.ID)
	}
	return fmt.Sprintf("#%d", index)
}

func compareLayers(old, new map[string]*Layer, tolerance float64) []*Diff {
	names := make([]string, 0, len(old))
	for name := range old {
		names = append(names, name)
	}
	for name := range new {
		if _, ok := old[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	diffs := make([]*Diff, 0, len(names))
	for _, name := range names {
		o, n := old[name], new[name]
		if o == nil {
			o = &Layer{Name: name}
		}
		if n == nil {
			n = &Layer{Name: name}
		}
		diffs = append(diffs, compareLayer(o, n, tolerance))
	}
	return diffs
}

func compareLayer(old, new *Layer, tolerance float64) *Diff {
	d := &Diff{Layer: old.Name}

	for _, id := range old.Order {
		nf, ok := new.Features[id]
		if !ok {
			d.Missing = append(d.Missing, id)
			continue
		}
		of := old.Features[id]
		if !sameGeometry(of.Geometry, nf.Geometry, tolerance) {
			d.Geometry = append(d.Geometry, id)
		}
		if keys := changedProperties(of.Properties, nf.Properties, tolerance); len(keys) > 0 {
			d.Property = append(d.Property, fmt.Sprintf("%s (%s)", id, strings.Join(keys, ", ")))
		}
	}
	for _, id := range new.Order {
		if _, ok := old.Features[id]; !ok {
			d.Extra = append(d.Extra, id)
		}
	}

	if len(d.Missing) == 0 && len(d.Extra) == 0 && len(old.Order) == len(new.Order) {
		for i := range old.Order {
			if old.Order[i] != new.Order[i] {
				d.Reordered = true
				break
			}
		}
	}
	return d
}

func sameGeometry(a, b orb.Geometry, tolerance float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.GeoJSONType() != b.GeoJSONType() {
		return false
	}
	pa, pb := points(a), points(b)
	if len(pa) != len(pb) {
		return false
	}
	for i := range pa {
		if math.Abs(pa[i].Lon()-pb[i].Lon()) > tolerance || math.Abs(pa[i].Lat()-pb[i].Lat()) > tolerance {
			return false
		}
	}
	return true
}

// points flattens the line and polygon geometries normalized outputs contain
func points(g orb.Geometry) []orb.Point {
	switch v := g.(type) {
	case orb.Point:
		return []orb.Point{v}
	case orb.LineString:
		return v
	case orb.Ring:
		return v
	case orb.Polygon:
		var out []orb.Point
		for _, r := range v {
			out = append(out, r...)
		}
		return out
	case orb.MultiPolygon:
		var out []orb.Point
		for _, p := range v {
			out = append(out, points(p)...)
		}
		return out
	default:
		return nil
	}
}

func changedProperties(a, b geojson.Properties, tolerance float64) []string {
	keys := map[string]bool{}
	for k := range a {
		keys[k] = true
	}
	for k := range b {
		keys[k] = true
	}

	var changed []string
	for k := range keys {
		av, aok := a[k]
		bv, bok := b[k]
		if aok != bok {
			changed = append(changed, k)
			continue
		}
		af, afok := av.(float64)
		bf, bfok := bv.(float64)
		if afok && bfok {
			if math.Abs(af-bf) > tolerance {
				changed = append(changed, k)
			}
			continue
		}
		if fmt.Sprint(av) != fmt.Sprint(bv) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

func printReport(diffs []*Diff, old, new map[string]*Layer, oldPath, newPath string) {
	fmt.Println("=" + strings.Repeat("=", 70))
	fmt.Println("Normalized Output Comparison")
	fmt.Println("=" + strings.Repeat("=", 70))
	fmt.Printf("OLD: %s\n", oldPath)
	fmt.Printf("NEW: %s\n", newPath)
	fmt.Println()

	identical := true
	for _, d := range diffs {
		oldCount, newCount := 0, 0
		if l := old[d.Layer]; l != nil {
			oldCount = len(l.Order)
		}
		if l := new[d.Layer]; l != nil {
			newCount = len(l.Order)
		}

		fmt.Printf("📊 %s: OLD %d features, NEW %d features\n", d.Layer, oldCount, newCount)
		if d.Empty() {
			fmt.Println("  ✓ identical")
			fmt.Println()
			continue
		}
		identical = false

		printIDs("⚠️  In OLD but not NEW", d.Missing)
		printIDs("In NEW but not OLD", d.Extra)
		printIDs("Geometry changed", d.Geometry)
		printIDs("Properties changed", d.Property)
		if d.Reordered {
			fmt.Println("  ⚠️  Same features in a different order")
		}
		fmt.Println()
	}

	fmt.Println("=" + strings.Repeat("=", 70))
	if identical {
		fmt.Println("Assessment: ✓ outputs are identical by feature id")
	} else {
		fmt.Println("Assessment: ⚠️  outputs differ")
	}
	fmt.Println("=" + strings.Repeat("=", 70))
}

func printIDs(label string, ids []string) {
	if len(ids) == 0 {
		return
	}
	fmt.Printf("  %s: %d\n", label, len(ids))
	for i, id := range ids {
		if i == 10 {
			fmt.Printf("    ... and %d more\n", len(ids)-10)
			break
		}
		fmt.Printf("    - %s\n", id)
	}
}
