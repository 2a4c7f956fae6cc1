// Package model holds the typed objects extracted from a JunosOS SRX
// configuration. Every variant is built by its Parse function from one XML
// element; the parser package is the only writer afterwards.
package model

import (
	"log/slog"

	"srx-config-parser/internal/incident"
	"srx-config-parser/internal/xmldoc"
	"srx-config-parser/pkg/wellknown"
)

// Kind tags a variant for type-filtered retrieval.
type Kind string

const (
	KindFqdn                 Kind = "fqdn"
	KindHost                 Kind = "host"
	KindNetwork              Kind = "network"
	KindRange                Kind = "range"
	KindAddressGroup         Kind = "address-group"
	KindZone                 Kind = "zone"
	KindInterface            Kind = "interface"
	KindRoute                Kind = "route"
	KindApplication          Kind = "application"
	KindApplicationGroup     Kind = "application-group"
	KindScheduler            Kind = "scheduler"
	KindZonePolicy           Kind = "zone-policy"
	KindSourceNatPool        Kind = "source-nat-pool"
	KindDestinationNatPool   Kind = "destination-nat-pool"
	KindSourceNatPolicy      Kind = "source-nat-policy"
	KindDestinationNatPolicy Kind = "destination-nat-policy"
	KindStaticNatPolicy      Kind = "static-nat-policy"
)

// Namespace groups kinds whose names must be unique together.
func (k Kind) Namespace() string {
	switch k {
	case KindFqdn, KindHost, KindNetwork, KindRange, KindAddressGroup:
		return "address"
	case KindApplication, KindApplicationGroup:
		return "application"
	default:
		return string(k)
	}
}

const (
	// GlobalZone is the zone of objects defined outside any security zone.
	GlobalZone = "global"
	// Any is the Junos wildcard for addresses, applications and zones.
	Any = "any"
	// PlaceholderIP replaces addresses that cannot be parsed.
	PlaceholderIP      = "1.1.1.1"
	PlaceholderNetwork = "1.1.1.0"
	PlaceholderNetmask = "255.255.255.0"
)

type Object interface {
	Meta() *Base
	Kind() Kind
}

// Base carries the fields shared by every variant.
type Base struct {
	Name        string             `json:"name"`
	Zone        string             `json:"zone"`
	Description string             `json:"description,omitempty"`
	Line        int                `json:"line"`
	Incident    *incident.Incident `json:"incident,omitempty"`
}

func (b *Base) Meta() *Base {
	return b
}

// SetIncident replaces any incident already attached.
func (b *Base) SetIncident(inc *incident.Incident) {
	b.Incident = inc
}

// Context is passed to every Parse function.
type Context struct {
	Lookup *wellknown.Lookup
	Logger *slog.Logger
}

func (c *Context) logger() *slog.Logger {
	if c == nil || c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Flag attaches inc to b and records it in the log, so an incident replaced
// later on the same object still leaves an audit entry.
func (c *Context) Flag(b *Base, inc *incident.Incident) {
	b.SetIncident(inc)
	attrs := []any{"object", b.Name, "zone", b.Zone, "line", inc.Line, "title", inc.Title, "message", inc.Message}
	if inc.Severity == incident.ManualActionRequired {
		c.logger().Warn("Manual action required", attrs...)
		return
	}
	c.logger().Info("Conversion incident", attrs...)
}

func (c *Context) informative(b *Base, line int, title, format string, args ...any) {
	c.Flag(b, incident.Informational(line, title, format, args...))
}

func (c *Context) manual(b *Base, line int, title, format string, args ...any) {
	c.Flag(b, incident.ManualAction(line, title, format, args...))
}

// newBase reads name and description; a missing name is structural.
func newBase(node *xmldoc.Node, zone string) (Base, error) {
	name := node.NameValue()
	if name == "" {
		return Base{}, incident.Structural(node.LineOr(0), node.Name, "required <name> element is missing")
	}
	if zone == "" {
		zone = GlobalZone
	}
	return Base{
		Name:        name,
		Zone:        zone,
		Description: node.Value("description"),
		Line:        node.Line,
	}, nil
}
