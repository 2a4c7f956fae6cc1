package parser

import (
	"errors"
	"fmt"
	"strings"

	"srx-config-parser/internal/model"
	"srx-config-parser/internal/netrange"
	"srx-config-parser/internal/utils"
)

var (
	ErrUnknownObject     = errors.New("unknown object")
	ErrCircularReference = errors.New("circular group reference")
)

// AddressRanges flattens an address or address-set name, as seen from
// zone, into merged IPv4 ranges. Names are looked up in zone first and then
// in the global address book. "any" covers everything; fqdn addresses
// contribute nothing.
func (p *JunosParser) AddressRanges(zone, name string) ([]netrange.IPRange, error) {
	ranges, err := p.flattenAddress(zone, name, make(map[string]bool))
	if err != nil {
		return nil, err
	}
	return netrange.Merge(ranges), nil
}

// MatchRanges resolves the address list of a policy match. When negate is
// set the result is everything the listed addresses do not cover.
func (p *JunosParser) MatchRanges(zone string, names []string, negate bool) ([]netrange.IPRange, error) {
	var all []netrange.IPRange
	for _, name := range names {
		ranges, err := p.flattenAddress(zone, name, make(map[string]bool))
		if err != nil {
			return nil, err
		}
		all = append(all, ranges...)
	}
	if negate {
		return netrange.Negate(netrange.All, all), nil
	}
	return netrange.Merge(all), nil
}

func (p *JunosParser) findAddress(zone, name string) (model.Object, bool) {
	if obj, ok := p.Objects.Find(model.KindHost, zone, name); ok {
		return obj, true
	}
	if zone != model.GlobalZone {
		return p.Objects.Find(model.KindHost, model.GlobalZone, name)
	}
	return nil, false
}

func (p *JunosParser) flattenAddress(zone, name string, visited map[string]bool) ([]netrange.IPRange, error) {
	if strings.EqualFold(name, model.Any) {
		return []netrange.IPRange{netrange.All}, nil
	}
	obj, ok := p.findAddress(zone, name)
	if !ok {
		return nil, fmt.Errorf("%w: address %q in zone %q", ErrUnknownObject, name, zone)
	}

	key := obj.Meta().Zone + "/" + strings.ToLower(name)
	if visited[key] {
		return nil, fmt.Errorf("%w: address-set %q", ErrCircularReference, name)
	}
	visited[key] = true
	defer delete(visited, key)

	switch v := obj.(type) {
	case *model.Host:
		ip, ok := utils.ParseIPv4(v.IPAddress)
		if !ok {
			return nil, fmt.Errorf("%w: host %q", utils.ErrInvalidAddress, v.Name)
		}
		return []netrange.IPRange{netrange.FromPrefix(ip, 32)}, nil
	case *model.Network:
		r, err := netrange.FromSubnet(v.Network, v.Netmask)
		if err != nil {
			return nil, err
		}
		return []netrange.IPRange{r}, nil
	case *model.Range:
		from, okFrom := utils.ParseIPv4(v.From)
		to, okTo := utils.ParseIPv4(v.To)
		if !okFrom || !okTo {
			return nil, fmt.Errorf("%w: range %q", utils.ErrInvalidAddress, v.Name)
		}
		r, err := netrange.New(from, to)
		if err != nil {
			return nil, err
		}
		return []netrange.IPRange{r}, nil
	case *model.Fqdn:
		p.logger.Debug("DNS address has no static range", "name", v.Name, "dns_name", v.DNSName)
		return nil, nil
	case *model.AddressGroup:
		var results []netrange.IPRange
		for _, member := range append(append([]string{}, v.Members...), v.NestedGroups...) {
			ranges, err := p.flattenAddress(v.Zone, member, visited)
			if err != nil {
				return nil, fmt.Errorf("address-set %q: %w", v.Name, err)
			}
			results = append(results, ranges...)
		}
		return results, nil
	default:
		return nil, fmt.Errorf("%w: %s %q is not an address", ErrUnknownObject, obj.Kind(), name)
	}
}

// ResolvedRule carries the address ranges a zone-pair rule matches.
type ResolvedRule struct {
	Policy       string   `json:"policy"`
	Rule         string   `json:"rule"`
	Sources      []string `json:"sources"`
	Destinations []string `json:"destinations"`
	Error        string   `json:"error,omitempty"`
}

// ResolveZonePolicies resolves every zone-pair rule. Sources are looked up
// from the source zone and destinations from the destination zone. A rule
// referencing an unknown name keeps the error text instead of ranges.
func (p *JunosParser) ResolveZonePolicies() []ResolvedRule {
	var out []ResolvedRule
	for _, zp := range Select[*model.ZonePolicy](p.Objects) {
		for _, rule := range zp.Rules {
			rr := ResolvedRule{Policy: zp.Name, Rule: rule.Name}
			src, err := p.MatchRanges(zp.SourceZone, rule.Sources, rule.NegateSource)
			if err == nil {
				var dst []netrange.IPRange
				dst, err = p.MatchRanges(zp.DestinationZone, rule.Destinations, rule.NegateDestination)
				rr.Sources, rr.Destinations = rangeStrings(src), rangeStrings(dst)
			}
			if err != nil {
				rr.Sources, rr.Destinations = nil, nil
				rr.Error = err.Error()
				p.logger.Warn("Cannot resolve policy addresses", "policy", zp.Name, "rule", rule.Name, "error", err)
			}
			out = append(out, rr)
		}
	}
	return out
}

func rangeStrings(ranges []netrange.IPRange) []string {
	out := make([]string, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, r.String())
	}
	return out
}
