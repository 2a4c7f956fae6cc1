package model

import "srx-config-parser/internal/xmldoc"

type Zone struct {
	Base
	Interfaces      []string `json:"interfaces"`
	LeadsToInternet bool     `json:"leads_to_internet"`
}

func (*Zone) Kind() Kind { return KindZone }

// ParseZone reads a <security-zone>. Its address book is handled by the
// parser, which owns the address namespace.
func ParseZone(ctx *Context, node *xmldoc.Node) (*Zone, error) {
	base, err := newBase(node, "")
	if err != nil {
		return nil, err
	}
	base.Zone = base.Name
	z := &Zone{
		Base:       base,
		Interfaces: node.Values("interfaces/name"),
	}
	if node.Inactive() {
		ctx.informative(&z.Base, node.Line, "Inactive zone", "zone %q is deactivated in the configuration", z.Name)
	}
	return z, nil
}
