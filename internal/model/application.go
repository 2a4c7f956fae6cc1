package model

import (
	"slices"
	"strconv"
	"strings"

	"srx-config-parser/internal/xmldoc"
	"srx-config-parser/pkg/wellknown"
)

const (
	// PortAny is the wildcard destination port.
	PortAny = "any"
	// MaxInactivityTimeout is the largest supported timeout, in seconds.
	MaxInactivityTimeout = 86400
)

type Application struct {
	Base
	Protocol   string `json:"protocol"`
	Port       string `json:"port,omitempty"`
	RPCProgram string `json:"rpc_program,omitempty"`
	UUID       string `json:"uuid,omitempty"`
	ICMPType   *int   `json:"icmp_type,omitempty"`
	ICMPCode   *int   `json:"icmp_code,omitempty"`
	Timeout    int    `json:"timeout,omitempty"`
	IsDefault  bool   `json:"is_default"`
}

func (*Application) Kind() Kind { return KindApplication }

type ApplicationGroup struct {
	Base
	Members      []string `json:"members"`
	NestedGroups []string `json:"nested_groups,omitempty"`
	IsDefault    bool     `json:"is_default"`
}

func (*ApplicationGroup) Kind() Kind { return KindApplicationGroup }

// SameMatch reports whether a and o match the same traffic. Timeouts and
// descriptions are not compared.
func (a *Application) SameMatch(o *Application) bool {
	return a.Protocol == o.Protocol &&
		a.Port == o.Port &&
		a.RPCProgram == o.RPCProgram &&
		a.UUID == o.UUID &&
		equalInt(a.ICMPType, o.ICMPType) &&
		equalInt(a.ICMPCode, o.ICMPCode)
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ParseApplication reads an <application>. A definition with several
// <term> children yields one application per term, auto-named
// <protocol>_<port-or-icmp[_code]>, followed by a group carrying the
// parent's name. Terms sharing a synthesized name are listed once in the
// group. Otherwise a single application with the parent's name is
// returned.
func ParseApplication(ctx *Context, node *xmldoc.Node, isDefault bool) ([]Object, error) {
	base, err := newBase(node, "")
	if err != nil {
		return nil, err
	}
	parentTimeout := node.Child("inactivity-timeout")
	terms := node.ChildrenNamed("term")

	if len(terms) <= 1 {
		body := node
		if len(terms) == 1 {
			body = terms[0]
		}
		app := &Application{Base: base, IsDefault: isDefault}
		parseApplicationBody(ctx, app, body, parentTimeout)
		return []Object{app}, nil
	}

	group := &ApplicationGroup{Base: base, IsDefault: isDefault}
	objects := make([]Object, 0, len(terms)+1)
	for _, term := range terms {
		app := &Application{
			Base:      Base{Name: base.Name + "/" + term.NameValue(), Zone: GlobalZone, Description: base.Description, Line: term.Line},
			IsDefault: isDefault,
		}
		parseApplicationBody(ctx, app, term, parentTimeout)
		app.Name = TermName(app)
		if !slices.Contains(group.Members, app.Name) {
			group.Members = append(group.Members, app.Name)
		}
		objects = append(objects, app)
	}
	return append(objects, group), nil
}

// TermName builds the synthesized name of a term-derived application.
func TermName(app *Application) string {
	parts := []string{app.Protocol}
	switch {
	case app.ICMPType != nil:
		parts = append(parts, strconv.Itoa(*app.ICMPType))
		if app.ICMPCode != nil {
			parts = append(parts, strconv.Itoa(*app.ICMPCode))
		}
	case app.RPCProgram != "":
		parts = append(parts, app.RPCProgram)
	case app.UUID != "":
		parts = append(parts, app.UUID)
	case app.Port != "":
		parts = append(parts, app.Port)
	}
	return strings.Join(parts, "_")
}

func parseApplicationBody(ctx *Context, app *Application, body *xmldoc.Node, parentTimeout *xmldoc.Node) {
	protoToken := body.Value("protocol")
	if protoToken == "" {
		ctx.manual(&app.Base, body.Line, "Missing protocol", "application %q defines no protocol", app.Name)
	} else {
		proto, known := ctx.Lookup.NormalizeProtocol(protoToken)
		app.Protocol = proto
		if !known {
			ctx.manual(&app.Base, body.Line, "Unknown protocol",
				"application %q uses unknown protocol %q", app.Name, protoToken)
		}
	}

	switch app.Protocol {
	case "tcp", "udp":
		parseTransportMatch(ctx, app, body)
	case "sctp":
		port := body.Value("destination-port")
		if port == "" || port == "0" {
			app.Port = PortAny
			break
		}
		resolved, ok := ctx.Lookup.ResolvePort(port)
		if !ok {
			ctx.manual(&app.Base, body.Line, "Invalid destination port",
				"application %q has invalid destination port %q", app.Name, port)
			break
		}
		app.Port = resolved
	case "icmp":
		parseICMPMatch(ctx, app, body)
	}

	timeout := body.Child("inactivity-timeout")
	if timeout == nil {
		timeout = parentTimeout
	}
	if timeout != nil {
		parseTimeout(ctx, app, timeout)
	}
}

// parseTransportMatch sets exactly one of RPC program, UUID or destination
// port, tried in that order.
func parseTransportMatch(ctx *Context, app *Application, body *xmldoc.Node) {
	if rpc := body.Value("rpc-program-number"); rpc != "" {
		app.RPCProgram = rpc
		return
	}
	if uuid := body.Value("uuid"); uuid != "" {
		app.UUID = uuid
		return
	}
	port := body.Value("destination-port")
	if port == "" {
		if body.Has("source-port") {
			app.Port = PortAny
			ctx.informative(&app.Base, body.Line, "Source port ignored",
				"application %q only defines source port %q; it matches any destination port", app.Name, body.Value("source-port"))
			return
		}
		ctx.manual(&app.Base, body.Line, "Missing destination port",
			"application %q (%s) has no destination port", app.Name, app.Protocol)
		return
	}
	resolved, ok := ctx.Lookup.ResolvePort(port)
	if !ok {
		ctx.manual(&app.Base, body.Line, "Invalid destination port",
			"application %q has invalid destination port %q", app.Name, port)
		return
	}
	app.Port = resolved
	if body.Has("source-port") {
		ctx.informative(&app.Base, body.Line, "Source port ignored",
			"application %q source port %q is not converted", app.Name, body.Value("source-port"))
	}
}

func parseICMPMatch(ctx *Context, app *Application, body *xmldoc.Node) {
	icmpType := wellknown.ICMPAnyType
	if token := body.Value("icmp-type"); token != "" {
		if n, ok := ctx.Lookup.ICMPType(token); ok {
			icmpType = n
		} else {
			ctx.manual(&app.Base, body.Line, "Unknown ICMP type",
				"application %q uses unknown icmp-type %q; any type is used", app.Name, token)
		}
	}
	app.ICMPType = &icmpType

	if token := body.Value("icmp-code"); token != "" {
		if n, ok := ctx.Lookup.ICMPCode(token); ok {
			app.ICMPCode = &n
		} else {
			ctx.manual(&app.Base, body.Line, "Unknown ICMP code",
				"application %q uses unknown icmp-code %q; code ignored", app.Name, token)
		}
	}
}

func parseTimeout(ctx *Context, app *Application, node *xmldoc.Node) {
	if strings.EqualFold(node.Text, "never") {
		app.Timeout = MaxInactivityTimeout
		ctx.informative(&app.Base, node.Line, "Timeout never",
			"application %q never times out; using the maximum of %d seconds", app.Name, MaxInactivityTimeout)
		return
	}
	seconds, err := strconv.Atoi(node.Text)
	if err != nil || seconds < 0 {
		ctx.informative(&app.Base, node.Line, "Invalid timeout",
			"application %q has invalid inactivity-timeout %q; default is used", app.Name, node.Text)
		return
	}
	if seconds > MaxInactivityTimeout {
		app.Timeout = MaxInactivityTimeout
		ctx.informative(&app.Base, node.Line, "Timeout capped",
			"application %q inactivity-timeout %d exceeds %d seconds", app.Name, seconds, MaxInactivityTimeout)
		return
	}
	app.Timeout = seconds
}

// ParseApplicationGroup reads an <application-set>.
func ParseApplicationGroup(ctx *Context, node *xmldoc.Node, isDefault bool) (*ApplicationGroup, error) {
	base, err := newBase(node, "")
	if err != nil {
		return nil, err
	}
	g := &ApplicationGroup{
		Base:         base,
		Members:      node.Values("application/name"),
		NestedGroups: node.Values("application-set/name"),
		IsDefault:    isDefault,
	}
	if len(g.Members) == 0 && len(g.NestedGroups) == 0 {
		ctx.informative(&g.Base, node.Line, "Empty application group", "application-set %q has no members", g.Name)
	}
	return g, nil
}
