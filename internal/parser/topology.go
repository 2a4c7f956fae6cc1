package parser

import (
	"srx-config-parser/internal/model"
	"srx-config-parser/internal/netrange"
	"srx-config-parser/internal/utils"
)

type attachment struct {
	route *model.Route
	iface *model.Interface
}

// inferTopology attaches every static route to the interface its next hop
// is reachable through. A next hop inside a directly connected network wins;
// otherwise the destination networks of routes attached in the first pass
// are tried, skipping default routes. Interfaces are scanned in repository
// order and the first match wins.
func (p *JunosParser) inferTopology() {
	interfaces := Select[*model.Interface](p.Objects)
	connected := make([][]netrange.IPRange, len(interfaces))
	for i, iface := range interfaces {
		for _, subnet := range iface.Topology {
			r, err := subnet.Range()
			if err != nil {
				p.logger.Debug("Skipping unusable topology entry", "interface", iface.Name, "subnet", subnet.String(), "error", err)
				continue
			}
			connected[i] = append(connected[i], r)
		}
	}

	var (
		matched   []attachment
		unmatched []*model.Route
	)
	for _, route := range Select[*model.Route](p.Objects) {
		hop, ok := utils.ParseIPv4(route.NextHop)
		if !ok {
			continue
		}
		found := false
		for i, iface := range interfaces {
			if containsAddress(connected[i], hop) {
				p.attachRoute(route, iface)
				matched = append(matched, attachment{route: route, iface: iface})
				found = true
				break
			}
		}
		if !found {
			unmatched = append(unmatched, route)
		}
	}

	for _, route := range unmatched {
		hop, _ := utils.ParseIPv4(route.NextHop)
		attached := false
		for _, m := range matched {
			if m.route.IsDefault {
				continue
			}
			dest, err := m.route.Destination.Range()
			if err != nil || !dest.Contains(hop) {
				continue
			}
			p.attachRoute(route, m.iface)
			attached = true
			break
		}
		if !attached {
			p.logger.Debug("Route next hop is not reachable through any interface",
				"route", route.Name, "next_hop", route.NextHop, "line", route.Line)
		}
	}

	for _, iface := range interfaces {
		iface.Topology = append(iface.Topology, iface.Routes...)
	}
	p.logger.Debug("Topology inferred", "interfaces", len(interfaces), "routes_direct", len(matched), "routes_unmatched", len(unmatched))
}

func (p *JunosParser) attachRoute(route *model.Route, iface *model.Interface) {
	route.Interface = iface.Name
	iface.Routes = append(iface.Routes, route.Destination)
	if route.IsDefault {
		iface.LeadsToInternet = true
	}
	if route.Incident != nil {
		p.ctx.Flag(&iface.Base, route.Incident)
	}
}

func containsAddress(ranges []netrange.IPRange, ip uint32) bool {
	for _, r := range ranges {
		if r.Contains(ip) {
			return true
		}
	}
	return false
}

// markInternetZones flags a zone once any of its interfaces leads to the
// internet.
func (p *JunosParser) markInternetZones() {
	internet := make(map[string]bool)
	for _, iface := range Select[*model.Interface](p.Objects) {
		if iface.LeadsToInternet {
			internet[iface.Name] = true
		}
	}
	for _, zone := range Select[*model.Zone](p.Objects) {
		for _, name := range zone.Interfaces {
			if internet[name] {
				zone.LeadsToInternet = true
				break
			}
		}
	}
}
