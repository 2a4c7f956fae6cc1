package parser

import (
	"srx-config-parser/internal/incident"
	"srx-config-parser/internal/model"
)

// Finding is an incident together with the object it is attached to.
// Owned rules are reported with their own kind label.
type Finding struct {
	Kind     string             `json:"kind"`
	Name     string             `json:"name"`
	Zone     string             `json:"zone"`
	Owner    string             `json:"owner,omitempty"`
	Incident *incident.Incident `json:"incident"`
}

const (
	findingPolicyRule = "policy-rule"
	findingGlobalRule = "global-policy-rule"
	findingNatRule    = "nat-rule"
)

// Findings walks the repository, owned rules and global rules in order.
func (p *JunosParser) Findings() []Finding {
	var out []Finding
	add := func(kind string, b *model.Base, owner string) {
		if b.Incident == nil {
			return
		}
		out = append(out, Finding{Kind: kind, Name: b.Name, Zone: b.Zone, Owner: owner, Incident: b.Incident})
	}

	for _, obj := range p.Objects.Objects() {
		meta := obj.Meta()
		add(string(obj.Kind()), meta, "")
		switch v := obj.(type) {
		case *model.ZonePolicy:
			for _, r := range v.Rules {
				add(findingPolicyRule, &r.Base, v.Name)
			}
		case *model.SourceNatPolicy:
			for _, r := range v.Rules {
				add(findingNatRule, &r.Base, v.Name)
			}
		case *model.DestinationNatPolicy:
			for _, r := range v.Rules {
				add(findingNatRule, &r.Base, v.Name)
			}
		case *model.StaticNatPolicy:
			for _, r := range v.Rules {
				add(findingNatRule, &r.Base, v.Name)
			}
		}
	}
	for _, r := range p.GlobalRules {
		add(findingGlobalRule, &r.Base, "")
	}
	return out
}

// SeverityCounts tallies Findings by severity.
func SeverityCounts(findings []Finding) map[incident.Severity]int {
	counts := make(map[incident.Severity]int)
	for _, f := range findings {
		counts[f.Incident.Severity]++
	}
	return counts
}
