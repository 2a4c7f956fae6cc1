// Package netrange implements interval arithmetic over the IPv4 address space.
package netrange

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"srx-config-parser/internal/utils"
)

var ErrInvalidRange = errors.New("range minimum exceeds maximum")

// IPRange is the closed interval [Min, Max]. The zero value is the single
// address 0.0.0.0; an empty range is not representable.
type IPRange struct {
	Min uint32
	Max uint32
}

// All covers the whole IPv4 address space.
var All = IPRange{Min: 0, Max: math.MaxUint32}

func New(min, max uint32) (IPRange, error) {
	if min > max {
		return IPRange{}, fmt.Errorf("%w: %s > %s", ErrInvalidRange, utils.FormatIPv4(min), utils.FormatIPv4(max))
	}
	return IPRange{Min: min, Max: max}, nil
}

// FromPrefix returns the range covered by ip/length.
func FromPrefix(ip uint32, length int) IPRange {
	return IPRange{Min: utils.Network(ip, length), Max: utils.Broadcast(ip, length)}
}

// FromSubnet builds a range from a dotted network and netmask pair.
func FromSubnet(network, netmask string) (IPRange, error) {
	ip, ok := utils.ParseIPv4(network)
	if !ok {
		return IPRange{}, fmt.Errorf("%w: %q", utils.ErrInvalidAddress, network)
	}
	length, err := utils.MaskLengthFromNetmask(netmask)
	if err != nil {
		return IPRange{}, err
	}
	return FromPrefix(ip, length), nil
}

// ParseCIDR accepts the same forms as utils.ParsePrefix.
func ParseCIDR(s string) (IPRange, error) {
	ip, length, err := utils.ParsePrefix(s)
	if err != nil {
		return IPRange{}, err
	}
	return FromPrefix(ip, length), nil
}

func (r IPRange) Valid() bool {
	return r.Min <= r.Max
}

func (r IPRange) Size() uint64 {
	return uint64(r.Max) - uint64(r.Min) + 1
}

func (r IPRange) Contains(ip uint32) bool {
	return ip >= r.Min && ip <= r.Max
}

func (r IPRange) Overlaps(o IPRange) bool {
	return r.Min <= o.Max && o.Min <= r.Max
}

func (r IPRange) String() string {
	return utils.FormatIPv4(r.Min) + "-" + utils.FormatIPv4(r.Max)
}

// Merge returns the minimal sorted cover of the union of ranges. Overlapping
// and adjacent intervals are coalesced; invalid intervals are dropped.
func Merge(ranges []IPRange) []IPRange {
	sorted := make([]IPRange, 0, len(ranges))
	for _, r := range ranges {
		if r.Valid() {
			sorted = append(sorted, r)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Min != sorted[j].Min {
			return sorted[i].Min < sorted[j].Min
		}
		return sorted[i].Max < sorted[j].Max
	})

	merged := make([]IPRange, 0, len(sorted))
	current := sorted[0]
	for _, next := range sorted[1:] {
		if uint64(next.Min) <= uint64(current.Max)+1 {
			if next.Max > current.Max {
				current.Max = next.Max
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}

// Negate returns the parts of r not covered by excluded, ascending and
// non-overlapping. An empty exclusion set returns r unchanged.
func Negate(r IPRange, excluded []IPRange) []IPRange {
	merged := Merge(excluded)
	if len(merged) == 0 || merged[len(merged)-1].Max < r.Min || merged[0].Min > r.Max {
		return []IPRange{r}
	}

	var kept []IPRange
	lower := uint64(r.Min)
	for _, ex := range merged {
		if uint64(ex.Max) < lower {
			continue
		}
		if ex.Min > r.Max {
			break
		}
		if uint64(ex.Min) > lower {
			kept = append(kept, IPRange{Min: uint32(lower), Max: ex.Min - 1})
		}
		lower = uint64(ex.Max) + 1
		if lower > uint64(r.Max) {
			return kept
		}
	}
	return append(kept, IPRange{Min: uint32(lower), Max: r.Max})
}

// Intersect returns the parts of r covered by ranges.
func Intersect(r IPRange, ranges []IPRange) []IPRange {
	var out []IPRange
	for _, m := range Merge(ranges) {
		if !m.Overlaps(r) {
			continue
		}
		out = append(out, IPRange{Min: max(m.Min, r.Min), Max: min(m.Max, r.Max)})
	}
	return out
}

// Overlaps reports whether any interval of a intersects any interval of b.
func Overlaps(a, b []IPRange) bool {
	for _, x := range a {
		for _, y := range b {
			if x.Overlaps(y) {
				return true
			}
		}
	}
	return false
}
