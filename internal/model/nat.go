package model

import (
	"strconv"

	"srx-config-parser/internal/utils"
	"srx-config-parser/internal/xmldoc"
)

type PoolAddressKind string

const (
	PoolAddressNone   PoolAddressKind = "none"
	PoolAddressHost   PoolAddressKind = "host"
	PoolAddressSubnet PoolAddressKind = "subnet"
	PoolAddressRange  PoolAddressKind = "range"
)

// PoolAddress uses Address for hosts, Address+Netmask for subnets and
// From+To for ranges.
type PoolAddress struct {
	Kind    PoolAddressKind `json:"kind"`
	Address string          `json:"address,omitempty"`
	Netmask string          `json:"netmask,omitempty"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Port    string          `json:"port,omitempty"`
}

type NatPool struct {
	Base
	Addresses       []PoolAddress `json:"addresses"`
	RoutingInstance string        `json:"routing_instance,omitempty"`
}

type SourceNatPool struct {
	NatPool
	NoPortTranslation bool   `json:"no_port_translation"`
	PortRange         string `json:"port_range,omitempty"`
	OverflowPool      string `json:"overflow_pool,omitempty"`
}

func (*SourceNatPool) Kind() Kind { return KindSourceNatPool }

type DestinationNatPool struct {
	NatPool
}

func (*DestinationNatPool) Kind() Kind { return KindDestinationNatPool }

func parseNatPool(ctx *Context, node *xmldoc.Node) (NatPool, error) {
	base, err := newBase(node, "")
	if err != nil {
		return NatPool{}, err
	}
	p := NatPool{Base: base, RoutingInstance: node.Value("routing-instance/ri-name")}
	for _, addr := range node.ChildrenNamed("address") {
		p.Addresses = append(p.Addresses, parsePoolAddress(ctx, &p.Base, addr))
	}
	if len(p.Addresses) == 0 {
		p.Addresses = []PoolAddress{{Kind: PoolAddressNone}}
		ctx.manual(&p.Base, node.Line, "Empty NAT pool", "pool %q defines no address", p.Name)
	}
	return p, nil
}

// parsePoolAddress classifies a pool <address>: /32 is a host, a shorter
// mask is a subnet, and any address with a <to> bound is a range.
func parsePoolAddress(ctx *Context, owner *Base, node *xmldoc.Node) PoolAddress {
	text := node.NameValue()
	if text == "" {
		text = node.Value("ipaddr")
	}
	port := node.Value("port")
	ip, length, err := utils.ParsePrefix(text)
	if err != nil {
		ctx.manual(owner, node.Line, "Invalid pool address", "pool %q address %q is invalid", owner.Name, text)
		return PoolAddress{Kind: PoolAddressNone, Port: port}
	}

	if to := node.Child("to"); to != nil {
		upperText := to.Value("ipaddr")
		if upperText == "" {
			upperText = to.Text
		}
		upper, _, err := utils.ParsePrefix(upperText)
		if err != nil || upper < ip {
			upper = utils.Broadcast(ip, length)
			ctx.manual(owner, to.Line, "Invalid pool range",
				"pool %q range upper bound %q is invalid; using %s", owner.Name, upperText, utils.FormatIPv4(upper))
		}
		return PoolAddress{Kind: PoolAddressRange, From: utils.FormatIPv4(ip), To: utils.FormatIPv4(upper), Port: port}
	}
	if length == 32 {
		return PoolAddress{Kind: PoolAddressHost, Address: utils.FormatIPv4(ip), Port: port}
	}
	return PoolAddress{
		Kind:    PoolAddressSubnet,
		Address: utils.FormatIPv4(utils.Network(ip, length)),
		Netmask: utils.NetmaskFromLength(length),
		Port:    port,
	}
}

func ParseSourceNatPool(ctx *Context, node *xmldoc.Node) (*SourceNatPool, error) {
	pool, err := parseNatPool(ctx, node)
	if err != nil {
		return nil, err
	}
	return &SourceNatPool{
		NatPool:           pool,
		NoPortTranslation: node.Find("port/no-translation") != nil,
		PortRange:         FormatStaticPort(node.Value("port/range/low"), node.Value("port/range/high")),
		OverflowPool:      node.Value("overflow-pool"),
	}, nil
}

func ParseDestinationNatPool(ctx *Context, node *xmldoc.Node) (*DestinationNatPool, error) {
	pool, err := parseNatPool(ctx, node)
	if err != nil {
		return nil, err
	}
	return &DestinationNatPool{NatPool: pool}, nil
}

// FormatStaticPort renders a low/high port pair: "low", "low-high", or
// "1-high" when only the upper bound is given.
func FormatStaticPort(low, high string) string {
	switch {
	case low != "" && high != "":
		return low + "-" + high
	case low != "":
		return low
	case high != "":
		return "1-" + high
	default:
		return ""
	}
}

type TranslationMode string

const (
	TranslateOff        TranslationMode = "off"
	TranslateInterface  TranslationMode = "interface"
	TranslatePool       TranslationMode = "pool"
	TranslatePrefix     TranslationMode = "prefix"
	TranslatePrefixName TranslationMode = "prefix-name"
)

// Translation is the then-clause of a NAT rule. Target is a pool name, a
// prefix or an address name depending on Mode.
type Translation struct {
	Mode            TranslationMode `json:"mode"`
	Target          string          `json:"target,omitempty"`
	MappedPort      string          `json:"mapped_port,omitempty"`
	RoutingInstance string          `json:"routing_instance,omitempty"`
}

// NatMatch holds both literal subnets and address-book names.
type NatMatch struct {
	SourceAddresses         []string `json:"source_addresses,omitempty"`
	SourceAddressNames      []string `json:"source_address_names,omitempty"`
	DestinationAddresses    []string `json:"destination_addresses,omitempty"`
	DestinationAddressNames []string `json:"destination_address_names,omitempty"`
	SourcePorts             []string `json:"source_ports,omitempty"`
	DestinationPorts        []string `json:"destination_ports,omitempty"`
	Applications            []string `json:"applications,omitempty"`
	Protocols               []string `json:"protocols,omitempty"`
}

type NatRule struct {
	Base
	Match       NatMatch    `json:"match"`
	Translation Translation `json:"translation"`
	Inactive    bool        `json:"inactive"`
}

type SourceNatRule struct{ NatRule }

type DestinationNatRule struct{ NatRule }

type StaticNatRule struct{ NatRule }

// NatPolicy is a Junos NAT rule-set. When either side is scoped by a
// routing instance the rule-set is not converted: only the flag is set.
type NatPolicy struct {
	Base
	FromZones                 []string `json:"from_zones,omitempty"`
	FromInterfaces            []string `json:"from_interfaces,omitempty"`
	ToZones                   []string `json:"to_zones,omitempty"`
	ToInterfaces              []string `json:"to_interfaces,omitempty"`
	RoutingInstanceReferenced bool     `json:"routing_instance_referenced"`
}

type SourceNatPolicy struct {
	NatPolicy
	Rules []*SourceNatRule `json:"rules"`
}

func (*SourceNatPolicy) Kind() Kind { return KindSourceNatPolicy }

type DestinationNatPolicy struct {
	NatPolicy
	Rules []*DestinationNatRule `json:"rules"`
}

func (*DestinationNatPolicy) Kind() Kind { return KindDestinationNatPolicy }

type StaticNatPolicy struct {
	NatPolicy
	Rules []*StaticNatRule `json:"rules"`
}

func (*StaticNatPolicy) Kind() Kind { return KindStaticNatPolicy }

// parseNatPolicy reads the rule-set scope. It reports false when the
// scope names a routing instance and the rules must be skipped.
func parseNatPolicy(ctx *Context, node *xmldoc.Node) (NatPolicy, bool, error) {
	base, err := newBase(node, "")
	if err != nil {
		return NatPolicy{}, false, err
	}
	p := NatPolicy{Base: base}
	from, to := node.Child("from"), node.Child("to")
	if from.Has("routing-instance") || to.Has("routing-instance") {
		p.RoutingInstanceReferenced = true
		ctx.manual(&p.Base, node.Line, "Routing instance NAT",
			"rule-set %q is scoped by a routing instance and was not converted", p.Name)
		return p, false, nil
	}
	p.FromZones = from.Values("zone")
	p.FromInterfaces = from.Values("interface")
	p.ToZones = to.Values("zone")
	p.ToInterfaces = to.Values("interface")
	return p, true, nil
}

func newNatRule(ctx *Context, node *xmldoc.Node, policy *NatPolicy) (NatRule, error) {
	base, err := newBase(node, "")
	if err != nil {
		return NatRule{}, err
	}
	r := NatRule{Base: base, Inactive: node.Inactive()}
	if r.Inactive {
		ctx.informative(&r.Base, node.Line, "Inactive rule", "NAT rule %q in rule-set %q is inactive", r.Name, policy.Name)
	}
	return r, nil
}

// literalSubnets normalizes address literals to network/length form.
func literalSubnets(ctx *Context, owner *Base, nodes []*xmldoc.Node) []string {
	var out []string
	for _, n := range nodes {
		text := n.NameValue()
		if text == "" {
			text = n.Text
		}
		if text == "" {
			continue
		}
		ip, length, err := utils.ParsePrefix(text)
		if err != nil {
			ctx.manual(owner, n.Line, "Invalid NAT address", "rule %q address %q is invalid; using %s/32", owner.Name, text, PlaceholderIP)
			out = append(out, PlaceholderIP+"/32")
			continue
		}
		out = append(out, utils.FormatIPv4(utils.Network(ip, length))+"/"+strconv.Itoa(length))
	}
	return out
}

// portValues reads port elements that are either plain text or a
// <name>/<to> pair.
func portValues(nodes []*xmldoc.Node) []string {
	var out []string
	for _, n := range nodes {
		low := n.NameValue()
		if low == "" {
			low = n.Value("dst-port")
		}
		if low == "" {
			low = n.Text
		}
		if low == "" {
			continue
		}
		if high := n.Value("to"); high != "" && high != low {
			low += "-" + high
		}
		out = append(out, low)
	}
	return out
}

func parseSourceMatch(ctx *Context, owner *Base, m *xmldoc.Node) NatMatch {
	return NatMatch{
		SourceAddresses:         literalSubnets(ctx, owner, m.ChildrenNamed("source-address")),
		SourceAddressNames:      m.Values("source-address-name"),
		DestinationAddresses:    literalSubnets(ctx, owner, m.ChildrenNamed("destination-address")),
		DestinationAddressNames: m.Values("destination-address-name"),
		SourcePorts:             portValues(m.ChildrenNamed("source-port")),
		DestinationPorts:        portValues(m.ChildrenNamed("destination-port")),
		Applications:            m.Values("application"),
		Protocols:               m.Values("protocol"),
	}
}

func ParseSourceNatPolicy(ctx *Context, node *xmldoc.Node) (*SourceNatPolicy, error) {
	base, convertible, err := parseNatPolicy(ctx, node)
	if err != nil {
		return nil, err
	}
	p := &SourceNatPolicy{NatPolicy: base}
	if !convertible {
		return p, nil
	}
	for _, rn := range node.ChildrenNamed("rule") {
		r, err := newNatRule(ctx, rn, &p.NatPolicy)
		if err != nil {
			return nil, err
		}
		r.Match = parseSourceMatch(ctx, &r.Base, rn.Child("src-nat-rule-match"))
		sn := rn.Find("then/source-nat")
		switch {
		case sn.Has("off"):
			r.Translation = Translation{Mode: TranslateOff}
		case sn.Has("interface"):
			r.Translation = Translation{Mode: TranslateInterface}
		case sn.Has("pool"):
			r.Translation = Translation{Mode: TranslatePool, Target: poolName(sn.Child("pool"))}
		default:
			r.Translation = Translation{Mode: TranslateOff}
			ctx.manual(&r.Base, rn.Line, "Missing translation", "source NAT rule %q has no translation; treated as off", r.Name)
		}
		p.Rules = append(p.Rules, &SourceNatRule{r})
	}
	return p, nil
}

func ParseDestinationNatPolicy(ctx *Context, node *xmldoc.Node) (*DestinationNatPolicy, error) {
	base, convertible, err := parseNatPolicy(ctx, node)
	if err != nil {
		return nil, err
	}
	p := &DestinationNatPolicy{NatPolicy: base}
	if !convertible {
		return p, nil
	}
	for _, rn := range node.ChildrenNamed("rule") {
		r, err := newNatRule(ctx, rn, &p.NatPolicy)
		if err != nil {
			return nil, err
		}
		m := rn.Child("dest-nat-rule-match")
		r.Match = parseSourceMatch(ctx, &r.Base, m)
		var dst []*xmldoc.Node
		for _, d := range m.ChildrenNamed("destination-address") {
			if addr := d.Child("dst-addr"); addr != nil {
				dst = append(dst, addr)
			} else {
				dst = append(dst, d)
			}
		}
		r.Match.DestinationAddresses = literalSubnets(ctx, &r.Base, dst)
		if names := m.Values("destination-address-name/dst-addr-name"); len(names) > 0 {
			r.Match.DestinationAddressNames = names
		}
		dn := rn.Find("then/destination-nat")
		switch {
		case dn.Has("off"):
			r.Translation = Translation{Mode: TranslateOff}
		case dn.Has("pool"):
			r.Translation = Translation{Mode: TranslatePool, Target: poolName(dn.Child("pool"))}
		default:
			r.Translation = Translation{Mode: TranslateOff}
			ctx.manual(&r.Base, rn.Line, "Missing translation", "destination NAT rule %q has no translation; treated as off", r.Name)
		}
		p.Rules = append(p.Rules, &DestinationNatRule{r})
	}
	return p, nil
}

func ParseStaticNatPolicy(ctx *Context, node *xmldoc.Node) (*StaticNatPolicy, error) {
	base, convertible, err := parseNatPolicy(ctx, node)
	if err != nil {
		return nil, err
	}
	p := &StaticNatPolicy{NatPolicy: base}
	if !convertible {
		return p, nil
	}
	for _, rn := range node.ChildrenNamed("rule") {
		r, err := newNatRule(ctx, rn, &p.NatPolicy)
		if err != nil {
			return nil, err
		}
		m := rn.Child("static-nat-rule-match")
		r.Match = NatMatch{
			SourceAddresses:         literalSubnets(ctx, &r.Base, m.ChildrenNamed("source-address")),
			SourceAddressNames:      m.Values("source-address-name"),
			DestinationAddresses:    literalSubnets(ctx, &r.Base, m.FindAll("destination-address/dst-addr")),
			DestinationAddressNames: m.Values("destination-address-name/dst-addr-name"),
			DestinationPorts:        staticPorts(m.ChildrenNamed("destination-port")),
		}
		sn := rn.Find("then/static-nat")
		switch {
		case sn.Has("prefix"):
			pre := sn.Child("prefix")
			r.Translation = Translation{
				Mode:            TranslatePrefix,
				Target:          pre.Value("addr-prefix"),
				MappedPort:      FormatStaticPort(pre.Value("mapped-port/low"), pre.Value("mapped-port/high")),
				RoutingInstance: pre.Value("routing-instance"),
			}
		case sn.Has("prefix-name"):
			pre := sn.Child("prefix-name")
			r.Translation = Translation{
				Mode:            TranslatePrefixName,
				Target:          pre.Value("addr-prefix-name"),
				MappedPort:      FormatStaticPort(pre.Value("mapped-port/low"), pre.Value("mapped-port/high")),
				RoutingInstance: pre.Value("routing-instance"),
			}
		default:
			r.Translation = Translation{Mode: TranslateOff}
			ctx.manual(&r.Base, rn.Line, "Missing translation", "static NAT rule %q has no prefix; treated as off", r.Name)
		}
		if r.Translation.RoutingInstance != "" {
			ctx.manual(&r.Base, rn.Line, "Routing instance NAT",
				"static NAT rule %q translates into routing instance %q", r.Name, r.Translation.RoutingInstance)
		}
		p.Rules = append(p.Rules, &StaticNatRule{r})
	}
	return p, nil
}

// staticPorts reads <destination-port><low/><high/></destination-port>.
func staticPorts(nodes []*xmldoc.Node) []string {
	var out []string
	for _, n := range nodes {
		if port := FormatStaticPort(n.Value("low"), n.Value("high")); port != "" {
			out = append(out, port)
		}
	}
	return out
}

func poolName(pool *xmldoc.Node) string {
	if name := pool.Value("pool-name"); name != "" {
		return name
	}
	return pool.TextOrEmpty()
}
