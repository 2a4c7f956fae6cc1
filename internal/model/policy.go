package model

import (
	"fmt"

	"srx-config-parser/internal/incident"
	"srx-config-parser/internal/xmldoc"
)

type Action string

const (
	ActionPermit Action = "permit"
	ActionDeny   Action = "deny"
	ActionReject Action = "reject"
	ActionUnset  Action = "unset"
)

// ManagementZone is the Junos pseudo-zone for traffic addressed to the device.
const ManagementZone = "junos-host"

// DefaultActionRuleName names the synthesized last global rule.
const DefaultActionRuleName = "default-policy"

type PolicyRule struct {
	Base
	Sources           []string `json:"sources"`
	Destinations      []string `json:"destinations"`
	Applications      []string `json:"applications"`
	NegateSource      bool     `json:"negate_source"`
	NegateDestination bool     `json:"negate_destination"`
	Log               bool     `json:"log"`
	Count             bool     `json:"count"`
	Inactive          bool     `json:"inactive"`
	Action            Action   `json:"action"`
	Scheduler         string   `json:"scheduler,omitempty"`
}

type GlobalPolicyRule struct {
	PolicyRule
	SourceZones      []string `json:"source_zones"`
	DestinationZones []string `json:"destination_zones"`
	IsDefaultAction  bool     `json:"is_default_action"`
}

type ZonePolicy struct {
	Base
	SourceZone      string        `json:"source_zone"`
	DestinationZone string        `json:"destination_zone"`
	IsManagement    bool          `json:"is_management"`
	Rules           []*PolicyRule `json:"rules"`
}

func (*ZonePolicy) Kind() Kind { return KindZonePolicy }

// ParsePolicyRule reads a single <policy> rule. zone is the source zone of
// the owning zone pair, or the global zone.
func ParsePolicyRule(ctx *Context, node *xmldoc.Node, zone string) (*PolicyRule, error) {
	base, err := newBase(node, zone)
	if err != nil {
		return nil, err
	}
	r := &PolicyRule{Base: base, Scheduler: node.Value("scheduler-name")}
	match := node.Child("match")

	var missing []string
	r.Sources, missing = matchList(match, "source-address", missing)
	r.Destinations, missing = matchList(match, "destination-address", missing)
	r.Applications, missing = matchList(match, "application", missing)
	r.NegateSource = match.Has("source-address-excluded")
	r.NegateDestination = match.Has("destination-address-excluded")

	then := node.Child("then")
	r.Log = then.Has("log")
	r.Count = then.Has("count")
	switch {
	case then.Has("permit"):
		r.Action = ActionPermit
	case then.Has("deny"):
		r.Action = ActionDeny
	case then.Has("reject"):
		r.Action = ActionReject
	default:
		r.Action = ActionUnset
	}

	// Reported in increasing order of importance; the last one is retained.
	if node.Inactive() {
		r.Inactive = true
		ctx.informative(&r.Base, node.Line, "Inactive policy", "policy %q is deactivated", r.Name)
	}
	if len(missing) > 0 {
		ctx.manual(&r.Base, node.Line, "Incomplete match",
			"policy %q does not define %v; %q is used", r.Name, missing, Any)
	}
	if r.Action == ActionUnset {
		ctx.manual(&r.Base, then.LineOr(node.Line), "Missing action", "policy %q has no permit, deny or reject action", r.Name)
	}
	return r, nil
}

func matchList(match *xmldoc.Node, field string, missing []string) ([]string, []string) {
	values := match.Values(field)
	if len(values) == 0 {
		return []string{Any}, append(missing, field)
	}
	return values, missing
}

// ParseGlobalPolicyRule reads a rule of the global policy section. Zone
// constraints left unset default to any.
func ParseGlobalPolicyRule(ctx *Context, node *xmldoc.Node) (*GlobalPolicyRule, error) {
	rule, err := ParsePolicyRule(ctx, node, GlobalZone)
	if err != nil {
		return nil, err
	}
	g := &GlobalPolicyRule{
		PolicyRule:       *rule,
		SourceZones:      node.Values("match/from-zone"),
		DestinationZones: node.Values("match/to-zone"),
	}
	if len(g.SourceZones) == 0 {
		g.SourceZones = []string{Any}
	}
	if len(g.DestinationZones) == 0 {
		g.DestinationZones = []string{Any}
	}
	return g, nil
}

// NewDefaultActionRule synthesizes the trailing global rule that mirrors the
// security default-policy.
func NewDefaultActionRule(permitAll bool, line int) *GlobalPolicyRule {
	action := ActionDeny
	if permitAll {
		action = ActionPermit
	}
	return &GlobalPolicyRule{
		PolicyRule: PolicyRule{
			Base:         Base{Name: DefaultActionRuleName, Zone: GlobalZone, Line: line},
			Sources:      []string{Any},
			Destinations: []string{Any},
			Applications: []string{Any},
			Action:       action,
		},
		SourceZones:      []string{Any},
		DestinationZones: []string{Any},
		IsDefaultAction:  true,
	}
}

// ParseZonePolicy reads a from-zone/to-zone <policy> container with its rules.
func ParseZonePolicy(ctx *Context, node *xmldoc.Node) (*ZonePolicy, error) {
	from := node.Value("from-zone-name")
	to := node.Value("to-zone-name")
	if from == "" || to == "" {
		return nil, incident.Structural(node.Line, "policy", "zone pair is missing from-zone-name or to-zone-name")
	}
	zp := &ZonePolicy{
		Base:            Base{Name: fmt.Sprintf("%s_to_%s", from, to), Zone: from, Line: node.Line},
		SourceZone:      from,
		DestinationZone: to,
		IsManagement:    to == ManagementZone,
	}
	for _, child := range node.ChildrenNamed("policy") {
		rule, err := ParsePolicyRule(ctx, child, from)
		if err != nil {
			return nil, fmt.Errorf("zone policy %s: %w", zp.Name, err)
		}
		zp.Rules = append(zp.Rules, rule)
	}
	return zp, nil
}
