package model

import (
	"srx-config-parser/internal/incident"
	"srx-config-parser/internal/netrange"
	"srx-config-parser/internal/utils"
	"srx-config-parser/internal/xmldoc"
)

// Subnet is a network/netmask pair in dotted notation.
type Subnet struct {
	Network string `json:"network"`
	Netmask string `json:"netmask"`
}

func (s Subnet) Range() (netrange.IPRange, error) {
	return netrange.FromSubnet(s.Network, s.Netmask)
}

func (s Subnet) String() string {
	return s.Network + "/" + s.Netmask
}

type Interface struct {
	Base
	IPAddress       string   `json:"ip_address"`
	Topology        []Subnet `json:"topology"`
	Routes          []Subnet `json:"routes,omitempty"`
	LeadsToInternet bool     `json:"leads_to_internet"`
}

func (*Interface) Kind() Kind { return KindInterface }

// ParseInterfaceUnit builds "<physical>.<unit>" from a logical unit. It
// returns nil when the unit carries no IPv4 address. zoneOf maps interface
// names to their security zone.
func ParseInterfaceUnit(ctx *Context, physical, unit *xmldoc.Node, zoneOf func(string) string) (*Interface, error) {
	physicalName := physical.NameValue()
	if physicalName == "" {
		return nil, incident.Structural(physical.Line, "interface", "required <name> element is missing")
	}
	unitName := unit.NameValue()
	if unitName == "" {
		return nil, incident.Structural(unit.Line, "unit", "unit of %q has no <name>", physicalName)
	}
	addresses := unit.FindAll("family/inet/address")
	if len(addresses) == 0 {
		return nil, nil
	}

	name := physicalName + "." + unitName
	zone := GlobalZone
	if zoneOf != nil {
		if z := zoneOf(name); z != "" {
			zone = z
		}
	}
	description := unit.Value("description")
	if description == "" {
		description = physical.Value("description")
	}
	iface := &Interface{
		Base: Base{Name: name, Zone: zone, Description: description, Line: unit.Line},
	}

	var (
		first, primary, preferred string
		valid                     int
		lastProblem               *incident.Incident
	)
	for _, addr := range addresses {
		text := addr.NameValue()
		ip, length, err := utils.ParsePrefix(text)
		if err != nil {
			lastProblem = incident.ManualAction(addr.Line, "Invalid interface address",
				"interface %q address %q is not a valid IPv4 prefix and was skipped", name, text)
			continue
		}
		valid++
		host := utils.FormatIPv4(ip)
		iface.Topology = append(iface.Topology, Subnet{
			Network: utils.FormatIPv4(utils.Network(ip, length)),
			Netmask: utils.NetmaskFromLength(length),
		})
		if first == "" {
			first = host
		}
		if addr.Has("primary") && primary == "" {
			primary = host
		}
		if addr.Has("preferred") && preferred == "" {
			preferred = host
		}
	}
	if lastProblem != nil {
		ctx.Flag(&iface.Base, lastProblem)
	}

	switch {
	case valid == 0:
		iface.IPAddress = PlaceholderIP
		ctx.manual(&iface.Base, unit.Line, "No valid interface address",
			"interface %q has no valid IPv4 address; using %s", name, PlaceholderIP)
	case primary != "":
		iface.IPAddress = primary
	case preferred != "":
		iface.IPAddress = preferred
	default:
		iface.IPAddress = first
		if valid > 1 {
			ctx.informative(&iface.Base, unit.Line, "Main address guessed",
				"interface %q has no primary or preferred address; using the first one %s", name, first)
		}
	}
	return iface, nil
}
