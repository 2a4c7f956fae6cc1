package parser

import (
	"slices"
	"sort"
	"strings"
)

// ZoneLookup records every zone an address name was defined in. Names are
// compared case-insensitively.
type ZoneLookup struct {
	zones map[string][]string
}

func NewZoneLookup() *ZoneLookup {
	return &ZoneLookup{zones: make(map[string][]string)}
}

func (z *ZoneLookup) Record(name, zone string) {
	key := strings.ToLower(name)
	if slices.Contains(z.zones[key], zone) {
		return
	}
	z.zones[key] = append(z.zones[key], zone)
}

// Zones returns the zones name was recorded under, in recording order.
func (z *ZoneLookup) Zones(name string) []string {
	return z.zones[strings.ToLower(name)]
}

func (z *ZoneLookup) Known(name string) bool {
	return len(z.Zones(name)) > 0
}

// IsAmbiguous reports whether name was defined in more than one zone.
func (z *ZoneLookup) IsAmbiguous(name string) bool {
	return len(z.Zones(name)) > 1
}

// Ambiguous lists every ambiguous name, sorted.
func (z *ZoneLookup) Ambiguous() []string {
	var out []string
	for name, zones := range z.zones {
		if len(zones) > 1 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
