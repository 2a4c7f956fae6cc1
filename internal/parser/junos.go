package parser

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"slices"

	"srx-config-parser/internal/incident"
	"srx-config-parser/internal/model"
	"srx-config-parser/internal/xmldoc"
	"srx-config-parser/pkg/wellknown"
)

var versionPattern = regexp.MustCompile(`\d+\.\d+`)

// JunosParser turns one SRX XML configuration into a Repository. The
// stages run strictly in order since later ones resolve names against what
// earlier ones stored. A parser is not safe for concurrent use.
type JunosParser struct {
	lookup *wellknown.Lookup
	logger *slog.Logger
	ctx    *model.Context

	interfaceZones map[string]string

	Version     string
	Objects     *Repository
	GlobalRules []*model.GlobalPolicyRule
	Zones       *ZoneLookup
}

func NewJunosParser(lookup *wellknown.Lookup, logger *slog.Logger) *JunosParser {
	if logger == nil {
		logger = slog.Default()
	}
	p := &JunosParser{
		lookup: lookup,
		logger: logger,
		ctx:    &model.Context{Lookup: lookup, Logger: logger},
	}
	p.reset()
	return p
}

func (p *JunosParser) reset() {
	p.interfaceZones = make(map[string]string)
	p.Version = ""
	p.Objects = NewRepository(p.logger)
	p.GlobalRules = nil
	p.Zones = NewZoneLookup()
}

// Parse reads an XML document from r and runs every extraction stage.
func (p *JunosParser) Parse(r io.Reader) error {
	doc, err := xmldoc.Parse(r)
	if err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}
	return p.ParseDocument(doc)
}

func (p *JunosParser) ParseDocument(doc *xmldoc.Node) error {
	if p.lookup == nil {
		return fmt.Errorf("%w: lookup was not loaded", wellknown.ErrReferenceData)
	}
	p.reset()

	config, err := configurationRoot(doc)
	if err != nil {
		return err
	}
	raw := config.Value("version")
	p.Version = parseVersion(raw)
	p.logger.Debug("Configuration version", "raw", raw, "version", p.Version)

	security := config.Child("security")
	hasAddressBook, err := p.parseAddressBooks(security)
	if err != nil {
		return fmt.Errorf("failed to parse address book: %w", err)
	}
	p.logStage("address-book", p.Objects.Len())

	if err := p.parseZones(security, !hasAddressBook); err != nil {
		return fmt.Errorf("failed to parse security zones: %w", err)
	}
	if err := p.parseInterfaces(config); err != nil {
		return fmt.Errorf("failed to parse interfaces: %w", err)
	}
	if err := p.parseRoutes(config); err != nil {
		return fmt.Errorf("failed to parse static routes: %w", err)
	}
	if err := p.parseApplications(config); err != nil {
		return fmt.Errorf("failed to parse applications: %w", err)
	}
	if err := p.parseSchedulers(config); err != nil {
		return fmt.Errorf("failed to parse schedulers: %w", err)
	}
	if err := p.parsePolicies(security.Child("policies")); err != nil {
		return fmt.Errorf("failed to parse security policies: %w", err)
	}
	if err := p.parseNat(security.Child("nat")); err != nil {
		return fmt.Errorf("failed to parse nat: %w", err)
	}

	p.inferTopology()
	p.markInternetZones()

	p.logger.Info("Configuration parsed",
		"version", p.Version, "objects", p.Objects.Len(), "global_rules", len(p.GlobalRules))
	return nil
}

func (p *JunosParser) logStage(stage string, total int) {
	p.logger.Debug("Stage complete", "stage", stage, "objects", total)
}

// configurationRoot accepts <configuration> as the document root or as a
// direct child of it, e.g. inside <rpc-reply>.
func configurationRoot(doc *xmldoc.Node) (*xmldoc.Node, error) {
	if doc == nil {
		return nil, incident.Structural(0, "configuration", "document has no root element")
	}
	if doc.Name == "configuration" {
		return doc, nil
	}
	if config := doc.Child("configuration"); config != nil {
		return config, nil
	}
	return nil, incident.Structural(doc.Line, doc.Name, "no <configuration> element under the document root")
}

// parseVersion keeps the first dotted number, e.g. 12.1X46-D10 becomes 12.1.
func parseVersion(raw string) string {
	return versionPattern.FindString(raw)
}

// parseAddressBooks reads security/address-book. A book attached to
// several zones is stored once per zone. It reports whether any book
// exists; if not, zone-nested address books are read instead.
func (p *JunosParser) parseAddressBooks(security *xmldoc.Node) (bool, error) {
	books := security.ChildrenNamed("address-book")
	for _, book := range books {
		zones := book.Values("attach/zone/name")
		if len(zones) == 0 {
			zones = []string{model.GlobalZone}
		}
		for _, zone := range zones {
			if err := p.parseAddressContainer(book, zone); err != nil {
				return true, fmt.Errorf("address book %q: %w", book.NameValue(), err)
			}
		}
	}
	return len(books) > 0, nil
}

func (p *JunosParser) parseAddressContainer(container *xmldoc.Node, zone string) error {
	for _, node := range container.ChildrenNamed("address") {
		obj, err := model.ParseAddress(p.ctx, node, zone)
		if err != nil {
			return err
		}
		p.addAddress(obj)
	}
	for _, node := range container.ChildrenNamed("address-set") {
		group, err := model.ParseAddressGroup(p.ctx, node, zone)
		if err != nil {
			return err
		}
		p.addAddress(group)
	}
	return nil
}

func (p *JunosParser) addAddress(obj model.Object) {
	if p.Objects.Add(obj) {
		p.Zones.Record(obj.Meta().Name, obj.Meta().Zone)
	}
}

func (p *JunosParser) parseZones(security *xmldoc.Node, nestedAddresses bool) error {
	for _, node := range security.FindAll("zones/security-zone") {
		zone, err := model.ParseZone(p.ctx, node)
		if err != nil {
			return err
		}
		p.Objects.Add(zone)
		for _, name := range zone.Interfaces {
			if _, ok := p.interfaceZones[name]; !ok {
				p.interfaceZones[name] = zone.Name
			}
		}
		if nestedAddresses {
			if err := p.parseAddressContainer(node.Child("address-book"), zone.Name); err != nil {
				return fmt.Errorf("zone %q address book: %w", zone.Name, err)
			}
		}
	}
	p.logStage("zones", p.Objects.Len())
	return nil
}

func (p *JunosParser) zoneOfInterface(name string) string {
	return p.interfaceZones[name]
}

func (p *JunosParser) parseInterfaces(config *xmldoc.Node) error {
	for _, physical := range config.FindAll("interfaces/interface") {
		for _, unit := range physical.ChildrenNamed("unit") {
			iface, err := model.ParseInterfaceUnit(p.ctx, physical, unit, p.zoneOfInterface)
			if err != nil {
				return err
			}
			if iface == nil {
				continue
			}
			p.Objects.Add(iface)
		}
	}
	p.logStage("interfaces", p.Objects.Len())
	return nil
}

func (p *JunosParser) parseRoutes(config *xmldoc.Node) error {
	for _, node := range config.FindAll("routing-options/static/route") {
		route, err := model.ParseRoute(p.ctx, node)
		if err != nil {
			return err
		}
		p.Objects.Add(route)
	}
	p.logStage("routes", p.Objects.Len())
	return nil
}

// parseApplications reads user definitions first, then the predefined
// junos-* definitions of the configuration's junos-defaults group, then the
// built-in ones. A predefined name already taken is skipped.
func (p *JunosParser) parseApplications(config *xmldoc.Node) error {
	if err := p.parseApplicationSection(config.Child("applications"), false); err != nil {
		return err
	}
	if err := p.parseApplicationSection(junosDefaultsGroup(config), true); err != nil {
		return fmt.Errorf("junos-defaults group: %w", err)
	}
	if err := p.parseApplicationSection(p.lookup.Defaults().Child("applications"), true); err != nil {
		return fmt.Errorf("predefined applications: %w", err)
	}
	p.logStage("applications", p.Objects.Len())
	return nil
}

func junosDefaultsGroup(config *xmldoc.Node) *xmldoc.Node {
	for _, group := range config.ChildrenNamed("groups") {
		if group.NameValue() == "junos-defaults" {
			return group.Child("applications")
		}
	}
	return nil
}

func (p *JunosParser) parseApplicationSection(section *xmldoc.Node, isDefault bool) error {
	for _, node := range section.ChildrenNamed("application") {
		if isDefault && p.Objects.Has(model.KindApplication, "", node.NameValue()) {
			continue
		}
		objects, err := model.ParseApplication(p.ctx, node, isDefault)
		if err != nil {
			return err
		}
		p.addApplication(objects)
	}
	for _, node := range section.ChildrenNamed("application-set") {
		if isDefault && p.Objects.Has(model.KindApplicationGroup, "", node.NameValue()) {
			continue
		}
		group, err := model.ParseApplicationGroup(p.ctx, node, isDefault)
		if err != nil {
			return err
		}
		p.Objects.Add(group)
	}
	return nil
}

// addApplication stores the result of one <application>. A term
// application whose synthesized name is taken reuses the existing object
// when both match the same traffic, and is renamed <name>_<n> otherwise.
// The wrapping group lists the names actually stored.
func (p *JunosParser) addApplication(objects []model.Object) {
	group, ok := objects[len(objects)-1].(*model.ApplicationGroup)
	if !ok {
		for _, obj := range objects {
			p.Objects.Add(obj)
		}
		return
	}

	placed := make(map[string]string)
	for _, obj := range objects[:len(objects)-1] {
		app := obj.(*model.Application)
		synthesized := app.Name
		name, existing := p.termApplicationName(app)
		placed[synthesized] = name
		if existing {
			p.logger.Debug("Term application reuses an identical definition", "name", name, "parent", group.Name)
			continue
		}
		if name != synthesized {
			p.logger.Debug("Term application renamed", "name", synthesized, "renamed", name, "parent", group.Name)
		}
		app.Name = name
		p.Objects.Add(app)
	}

	members := make([]string, 0, len(group.Members))
	for _, m := range group.Members {
		if name, ok := placed[m]; ok {
			m = name
		}
		if !slices.Contains(members, m) {
			members = append(members, m)
		}
	}
	group.Members = members
	p.Objects.Add(group)
}

// termApplicationName returns the first free name among app.Name,
// app.Name_2, app.Name_3... or the name of an application already stored
// that matches the same traffic, in which case existing is true.
func (p *JunosParser) termApplicationName(app *model.Application) (name string, existing bool) {
	for n := 1; ; n++ {
		name = app.Name
		if n > 1 {
			name = fmt.Sprintf("%s_%d", app.Name, n)
		}
		obj, ok := p.Objects.Find(model.KindApplication, "", name)
		if !ok {
			return name, false
		}
		if stored, isApp := obj.(*model.Application); isApp && stored.SameMatch(app) {
			return name, true
		}
	}
}

func (p *JunosParser) parseSchedulers(config *xmldoc.Node) error {
	for _, node := range config.FindAll("schedulers/scheduler") {
		scheduler, err := model.ParseScheduler(p.ctx, node)
		if err != nil {
			return err
		}
		p.Objects.Add(scheduler)
	}
	p.logStage("schedulers", p.Objects.Len())
	return nil
}

// parsePolicies reads zone-pair policies, then global ones, and appends
// the rule mirroring default-policy as the last global rule.
func (p *JunosParser) parsePolicies(policies *xmldoc.Node) error {
	for _, node := range policies.ChildrenNamed("policy") {
		zp, err := model.ParseZonePolicy(p.ctx, node)
		if err != nil {
			return err
		}
		p.Objects.Add(zp)
	}
	for _, node := range policies.FindAll("global/policy") {
		rule, err := model.ParseGlobalPolicyRule(p.ctx, node)
		if err != nil {
			return fmt.Errorf("global policy: %w", err)
		}
		p.GlobalRules = append(p.GlobalRules, rule)
	}

	defaultPolicy := policies.Child("default-policy")
	p.GlobalRules = append(p.GlobalRules,
		model.NewDefaultActionRule(defaultPolicy.Has("permit-all"), defaultPolicy.LineOr(0)))
	p.logStage("policies", p.Objects.Len())
	return nil
}

func (p *JunosParser) parseNat(nat *xmldoc.Node) error {
	source := nat.Child("source")
	for _, node := range source.ChildrenNamed("pool") {
		pool, err := model.ParseSourceNatPool(p.ctx, node)
		if err != nil {
			return fmt.Errorf("source pool: %w", err)
		}
		p.Objects.Add(pool)
	}
	for _, node := range source.ChildrenNamed("rule-set") {
		policy, err := model.ParseSourceNatPolicy(p.ctx, node)
		if err != nil {
			return fmt.Errorf("source rule-set: %w", err)
		}
		for _, rule := range policy.Rules {
			p.checkPoolReference(model.KindSourceNatPool, &rule.NatRule)
		}
		p.Objects.Add(policy)
	}

	destination := nat.Child("destination")
	for _, node := range destination.ChildrenNamed("pool") {
		pool, err := model.ParseDestinationNatPool(p.ctx, node)
		if err != nil {
			return fmt.Errorf("destination pool: %w", err)
		}
		p.Objects.Add(pool)
	}
	for _, node := range destination.ChildrenNamed("rule-set") {
		policy, err := model.ParseDestinationNatPolicy(p.ctx, node)
		if err != nil {
			return fmt.Errorf("destination rule-set: %w", err)
		}
		for _, rule := range policy.Rules {
			p.checkPoolReference(model.KindDestinationNatPool, &rule.NatRule)
		}
		p.Objects.Add(policy)
	}

	for _, node := range nat.FindAll("static/rule-set") {
		policy, err := model.ParseStaticNatPolicy(p.ctx, node)
		if err != nil {
			return fmt.Errorf("static rule-set: %w", err)
		}
		for _, rule := range policy.Rules {
			p.checkPrefixName(&rule.NatRule)
		}
		p.Objects.Add(policy)
	}
	p.logStage("nat", p.Objects.Len())
	return nil
}

func (p *JunosParser) checkPoolReference(kind model.Kind, rule *model.NatRule) {
	if rule.Translation.Mode != model.TranslatePool || p.Objects.Has(kind, "", rule.Translation.Target) {
		return
	}
	p.ctx.Flag(&rule.Base, incident.ManualAction(rule.Line, "Unknown NAT pool",
		"NAT rule %q references undefined %s %q", rule.Name, kind, rule.Translation.Target))
}

func (p *JunosParser) checkPrefixName(rule *model.NatRule) {
	if rule.Translation.Mode != model.TranslatePrefixName || p.Zones.Known(rule.Translation.Target) {
		return
	}
	p.ctx.Flag(&rule.Base, incident.ManualAction(rule.Line, "Unknown address",
		"static NAT rule %q translates to undefined address %q", rule.Name, rule.Translation.Target))
}
