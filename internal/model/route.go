package model

import (
	"srx-config-parser/internal/utils"
	"srx-config-parser/internal/xmldoc"
)

type Route struct {
	Base
	Destination Subnet `json:"destination"`
	NextHop     string `json:"next_hop,omitempty"`
	// Interface is filled by topology inference.
	Interface string `json:"interface,omitempty"`
	IsDefault bool   `json:"is_default"`
}

func (*Route) Kind() Kind { return KindRoute }

// ParseRoute reads a routing-options static <route>. A route without a
// usable IPv4 next hop is kept but cannot be attached to an interface.
func ParseRoute(ctx *Context, node *xmldoc.Node) (*Route, error) {
	base, err := newBase(node, "")
	if err != nil {
		return nil, err
	}
	r := &Route{Base: base}

	ip, length, err := utils.ParsePrefix(base.Name)
	if err != nil {
		r.Destination = Subnet{Network: PlaceholderNetwork, Netmask: PlaceholderNetmask}
		ctx.manual(&r.Base, node.Line, "Invalid route destination",
			"route destination %q is invalid; replaced by %s", base.Name, r.Destination)
	} else {
		r.Destination = Subnet{
			Network: utils.FormatIPv4(utils.Network(ip, length)),
			Netmask: utils.NetmaskFromLength(length),
		}
		r.IsDefault = length == 0
	}

	hops := node.Values("next-hop")
	if len(hops) == 0 {
		hops = node.Values("qualified-next-hop/name")
	}
	switch {
	case len(hops) == 0 && (node.Has("discard") || node.Has("reject")):
		ctx.informative(&r.Base, node.Line, "Route drops traffic",
			"route %q discards traffic and has no next hop", base.Name)
	case len(hops) == 0:
		ctx.manual(&r.Base, node.Line, "Missing next hop", "route %q has no next hop", base.Name)
	default:
		if _, ok := utils.ParseIPv4(hops[0]); !ok {
			ctx.informative(&r.Base, node.Line, "Next hop is not an address",
				"route %q forwards to %q which is not an IPv4 address", base.Name, hops[0])
			break
		}
		r.NextHop = hops[0]
		if len(hops) > 1 {
			ctx.informative(&r.Base, node.Line, "Multiple next hops",
				"route %q has %d next hops; only %s is used", base.Name, len(hops), hops[0])
		}
	}
	return r, nil
}
