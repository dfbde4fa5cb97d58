package routecache

import (
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/mumuon/drivefinder/route-service/geometry"
)

// KeyParams are the request parameters that identify a directions result.
type KeyParams struct {
	Profile      string
	Coordinates  []orb.Point
	Alternatives bool
	Avoid        map[string]bool
}

// Key builds the cache key
//
//	profile:{p}|coords:{lon},{lat};...|alt:{bool}[|avoid:{flags}]
//
// Coordinates are fixed to 5 decimals, ties rounding away from zero, so requests that differ only by
// provider noise below 1e-5 degrees share a key. Avoid flags that are true
// are sorted and comma-joined; the segment is omitted when none are set.
func Key(p KeyParams) string {
	var b strings.Builder
	b.WriteString("profile:")
	b.WriteString(p.Profile)

	b.WriteString("|coords:")
	for i, c := range p.Coordinates {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(geometry.Fixed5(c.Lon()))
		b.WriteByte(',')
		b.WriteString(geometry.Fixed5(c.Lat()))
	}

	b.WriteString("|alt:")
	b.WriteString(strconv.FormatBool(p.Alternatives))

	if flags := AvoidFlags(p.Avoid); len(flags) > 0 {
		b.WriteString("|avoid:")
		b.WriteString(strings.Join(flags, ","))
	}

	return b.String()
}

// AvoidFlags returns the names of the true flags in ascending order.
func AvoidFlags(avoid map[string]bool) []string {
	flags := make([]string, 0, len(avoid))
	for name, on := range avoid {
		if on {
			flags = append(flags, name)
		}
	}
	sort.Strings(flags)
	return flags
}
