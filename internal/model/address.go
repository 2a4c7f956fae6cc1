package model

import (
	"errors"

	"srx-config-parser/internal/incident"
	"srx-config-parser/internal/utils"
	"srx-config-parser/internal/xmldoc"
)

type Fqdn struct {
	Base
	DNSName string `json:"dns_name"`
}

func (*Fqdn) Kind() Kind { return KindFqdn }

type Host struct {
	Base
	IPAddress string `json:"ip_address"`
}

func (*Host) Kind() Kind { return KindHost }

type Network struct {
	Base
	Network string `json:"network"`
	Netmask string `json:"netmask"`
}

func (*Network) Kind() Kind { return KindNetwork }

type Range struct {
	Base
	From string `json:"from"`
	To   string `json:"to"`
}

func (*Range) Kind() Kind { return KindRange }

type AddressGroup struct {
	Base
	Members      []string `json:"members"`
	NestedGroups []string `json:"nested_groups,omitempty"`
}

func (*AddressGroup) Kind() Kind { return KindAddressGroup }

// ParseAddress builds a Fqdn, Host, Network or Range from an address-book
// <address> element, selected by which value child is present.
func ParseAddress(ctx *Context, node *xmldoc.Node, zone string) (Object, error) {
	base, err := newBase(node, zone)
	if err != nil {
		return nil, err
	}
	switch {
	case node.Has("ip-prefix"):
		prefix := node.Child("ip-prefix")
		return parseIPPrefix(ctx, base, prefix.Text, prefix.Line), nil
	case node.Has("dns-name"):
		return parseDNSName(ctx, base, node.Child("dns-name")), nil
	case node.Has("range-address"):
		return parseRangeAddress(ctx, base, node.Child("range-address")), nil
	case node.Has("wildcard-address"):
		w := node.Child("wildcard-address")
		n := &Network{Base: base, Network: PlaceholderNetwork, Netmask: PlaceholderNetmask}
		ctx.manual(&n.Base, w.Line, "Wildcard address is not supported",
			"address %q uses wildcard %q; replaced by %s/%s", base.Name, w.NameValue(), PlaceholderNetwork, PlaceholderNetmask)
		return n, nil
	default:
		return nil, incident.Structural(node.Line, "address", "address %q has none of ip-prefix, dns-name, range-address", base.Name)
	}
}

func parseIPPrefix(ctx *Context, base Base, text string, line int) Object {
	ip, length, err := utils.ParsePrefix(text)
	switch {
	case errors.Is(err, utils.ErrWildcardMask):
		n := &Network{Base: base, Network: PlaceholderNetwork, Netmask: PlaceholderNetmask}
		ctx.manual(&n.Base, line, "Wildcard netmask is not supported",
			"prefix %q of %q is a wildcard mask; replaced by %s/%s", text, base.Name, PlaceholderNetwork, PlaceholderNetmask)
		return n
	case err != nil:
		h := &Host{Base: base, IPAddress: PlaceholderIP}
		ctx.manual(&h.Base, line, "Invalid IP address",
			"address %q has invalid prefix %q; replaced by %s", base.Name, text, PlaceholderIP)
		return h
	case length == 32:
		return &Host{Base: base, IPAddress: utils.FormatIPv4(ip)}
	}

	n := &Network{
		Base:    base,
		Network: utils.FormatIPv4(utils.Network(ip, length)),
		Netmask: utils.NetmaskFromLength(length),
	}
	if utils.Network(ip, length) != ip {
		ctx.informative(&n.Base, line, "Host bits cleared",
			"prefix %q of %q has host bits set; using network %s", text, base.Name, n.Network)
	}
	return n
}

func parseDNSName(ctx *Context, base Base, node *xmldoc.Node) Object {
	name := node.NameValue()
	if name == "" {
		name = node.Text
	}
	f := &Fqdn{Base: base, DNSName: name}
	if name == "" {
		f.DNSName = "invalid.fqdn"
		ctx.manual(&f.Base, node.Line, "Missing DNS name", "address %q has an empty dns-name", base.Name)
	}
	return f
}

func parseRangeAddress(ctx *Context, base Base, node *xmldoc.Node) Object {
	fromText := node.NameValue()
	toText := node.Value("to/range-high")
	from, okFrom := utils.ParseIPv4(fromText)
	to, okTo := utils.ParseIPv4(toText)

	r := &Range{Base: base}
	switch {
	case !okFrom || !okTo:
		r.From, r.To = PlaceholderIP, PlaceholderIP
		ctx.manual(&r.Base, node.Line, "Invalid IP range",
			"range %q has invalid bounds %q-%q; replaced by %s-%s", base.Name, fromText, toText, PlaceholderIP, PlaceholderIP)
	case from > to:
		r.From, r.To = utils.FormatIPv4(to), utils.FormatIPv4(from)
		ctx.manual(&r.Base, node.Line, "Reversed IP range",
			"range %q lower bound %s exceeds upper bound %s; bounds swapped", base.Name, fromText, toText)
	default:
		r.From, r.To = utils.FormatIPv4(from), utils.FormatIPv4(to)
	}
	return r
}

// ParseAddressGroup builds an AddressGroup from an <address-set> element.
func ParseAddressGroup(ctx *Context, node *xmldoc.Node, zone string) (*AddressGroup, error) {
	base, err := newBase(node, zone)
	if err != nil {
		return nil, err
	}
	g := &AddressGroup{
		Base:         base,
		Members:      node.Values("address/name"),
		NestedGroups: node.Values("address-set/name"),
	}
	if len(g.Members) == 0 && len(g.NestedGroups) == 0 {
		ctx.informative(&g.Base, node.Line, "Empty address group", "address-set %q has no members", base.Name)
	}
	return g, nil
}
