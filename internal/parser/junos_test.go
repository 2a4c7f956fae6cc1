package parser

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"srx-config-parser/internal/incident"
	"srx-config-parser/internal/model"
	"srx-config-parser/pkg/wellknown"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestParser(t *testing.T) *JunosParser {
	t.Helper()
	lookup, err := wellknown.Load()
	require.NoError(t, err)
	return NewJunosParser(lookup, quietLogger())
}

func parseFixture(t *testing.T) *JunosParser {
	t.Helper()
	f, err := os.Open("testdata/branch.xml")
	require.NoError(t, err)
	defer f.Close()

	p := newTestParser(t)
	require.NoError(t, p.Parse(f))
	return p
}

func parseString(t *testing.T, doc string) (*JunosParser, error) {
	t.Helper()
	p := newTestParser(t)
	return p, p.Parse(strings.NewReader(doc))
}

func findObject[T model.Object](t *testing.T, p *JunosParser, kind model.Kind, zone, name string) T {
	t.Helper()
	obj, ok := p.Objects.Find(kind, zone, name)
	require.True(t, ok, "%s %q not found", kind, name)
	v, ok := obj.(T)
	require.True(t, ok, "%s %q has type %T", kind, name, obj)
	return v
}

func TestParseVersion(t *testing.T) {
	assert.Equal(t, "12.1", parseVersion("12.1X46-D10.2"))
	assert.Equal(t, "15.1", parseVersion("JUNOS 15.1X49-D150"))
	assert.Equal(t, "", parseVersion("unknown"))
}

func TestParseFixtureVersionAndAddresses(t *testing.T) {
	p := parseFixture(t)
	assert.Equal(t, "12.1", p.Version)

	web := findObject[*model.Host](t, p, model.KindHost, model.GlobalZone, "web")
	assert.Equal(t, "10.0.0.10", web.IPAddress)
	trustWeb := findObject[*model.Host](t, p, model.KindHost, "trust", "WEB")
	assert.Equal(t, "10.0.0.11", trustWeb.IPAddress)
	lan := findObject[*model.Network](t, p, model.KindNetwork, model.GlobalZone, "lan")
	assert.Equal(t, "255.255.255.0", lan.Netmask)
	findObject[*model.AddressGroup](t, p, model.KindAddressGroup, model.GlobalZone, "servers")

	// Zone-nested address books are only read when no security address book exists.
	assert.False(t, p.Objects.Has(model.KindHost, "trust", "ignored"))

	assert.True(t, p.Zones.IsAmbiguous("web"))
	assert.False(t, p.Zones.IsAmbiguous("lan"))
	assert.Equal(t, []string{"web"}, p.Zones.Ambiguous())
}

func TestParseFixtureInterfacesAndZones(t *testing.T) {
	p := parseFixture(t)
	interfaces := Select[*model.Interface](p.Objects)
	require.Len(t, interfaces, 2)

	uplink := interfaces[0]
	assert.Equal(t, "ge-0/0/0.0", uplink.Name)
	assert.Equal(t, "untrust", uplink.Zone)
	assert.Equal(t, "internet uplink", uplink.Description)
	assert.True(t, uplink.LeadsToInternet)

	lan := interfaces[1]
	assert.Equal(t, "trust", lan.Zone)
	assert.False(t, lan.LeadsToInternet)
	assert.Equal(t, []model.Subnet{
		{Network: "10.0.0.0", Netmask: "255.255.255.0"},
		{Network: "10.20.0.0", Netmask: "255.255.0.0"},
		{Network: "10.30.0.0", Netmask: "255.255.0.0"},
	}, lan.Topology)

	untrust := findObject[*model.Zone](t, p, model.KindZone, "", "untrust")
	assert.True(t, untrust.LeadsToInternet)
	trust := findObject[*model.Zone](t, p, model.KindZone, "", "trust")
	assert.False(t, trust.LeadsToInternet)
}

func TestParseFixtureRoutesAttached(t *testing.T) {
	p := parseFixture(t)
	owners := make(map[string]string)
	for _, r := range Select[*model.Route](p.Objects) {
		owners[r.Name] = r.Interface
	}
	assert.Equal(t, map[string]string{
		"0.0.0.0/0":    "ge-0/0/0.0",
		"10.20.0.0/16": "ge-0/0/1.0",
		"10.30.0.0/16": "ge-0/0/1.0",
		"10.40.0.0/16": "",
		"10.50.0.0/16": "",
	}, owners)
}

func TestParseFixtureApplications(t *testing.T) {
	p := parseFixture(t)

	userHTTP := findObject[*model.Application](t, p, model.KindApplication, "", "junos-http")
	assert.Equal(t, "8080", userHTTP.Port)
	assert.False(t, userHTTP.IsDefault)

	https := findObject[*model.Application](t, p, model.KindApplication, "", "junos-https")
	assert.True(t, https.IsDefault)
	assert.Equal(t, "443", https.Port)

	custom := findObject[*model.Application](t, p, model.KindApplication, "", "junos-custom-default")
	assert.True(t, custom.IsDefault)

	epm := findObject[*model.ApplicationGroup](t, p, model.KindApplicationGroup, "", "junos-ms-rpc-epm")
	assert.Equal(t, []string{"tcp_135", "udp_135"}, epm.Members)
	findObject[*model.Application](t, p, model.KindApplication, "", "tcp_135")

	webApps := findObject[*model.ApplicationGroup](t, p, model.KindApplicationGroup, "", "web-apps")
	assert.False(t, webApps.IsDefault)
	assert.Equal(t, []string{"my-app", "junos-https"}, webApps.Members)

	findObject[*model.Scheduler](t, p, model.KindScheduler, "", "office")
}

func TestAddressBookAttachedToSeveralZones(t *testing.T) {
	p, err := parseString(t, `<configuration>
  <security>
    <address-book>
      <name>shared</name>
      <address><name>h1</name><ip-prefix>192.0.2.10/32</ip-prefix></address>
      <address-set><name>hs</name><address><name>h1</name></address></address-set>
      <attach>
        <zone><name>trust</name></zone>
        <zone><name>untrust</name></zone>
      </attach>
    </address-book>
    <policies>
      <policy>
        <from-zone-name>trust</from-zone-name>
        <to-zone-name>untrust</to-zone-name>
        <policy>
          <name>r1</name>
          <match>
            <source-address>h1</source-address>
            <destination-address>hs</destination-address>
            <application>any</application>
          </match>
          <then><permit/></then>
        </policy>
      </policy>
    </policies>
  </security>
</configuration>`)
	require.NoError(t, err)

	findObject[*model.Host](t, p, model.KindHost, "trust", "h1")
	findObject[*model.Host](t, p, model.KindHost, "untrust", "h1")
	findObject[*model.AddressGroup](t, p, model.KindAddressGroup, "untrust", "hs")
	assert.False(t, p.Objects.Has(model.KindHost, model.GlobalZone, "h1"))
	assert.Equal(t, []string{"trust", "untrust"}, p.Zones.Zones("H1"))
	assert.True(t, p.Zones.IsAmbiguous("h1"))

	ranges, err := p.AddressRanges("untrust", "h1")
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.10-192.0.2.10"}, rangeStrings(ranges))

	resolved := p.ResolveZonePolicies()
	require.Len(t, resolved, 1)
	assert.Empty(t, resolved[0].Error)
	assert.Equal(t, []string{"192.0.2.10-192.0.2.10"}, resolved[0].Destinations)
}

func TestTermApplicationNameClash(t *testing.T) {
	p, err := parseString(t, `<configuration>
  <applications>
    <application><name>tcp_80</name><protocol>udp</protocol><destination-port>53</destination-port></application>
    <application>
      <name>web</name>
      <term><name>t1</name><protocol>tcp</protocol><destination-port>80</destination-port></term>
      <term><name>t2</name><protocol>tcp</protocol><destination-port>443</destination-port></term>
      <term><name>t3</name><protocol>tcp</protocol><destination-port>80</destination-port><source-port>1024-65535</source-port></term>
    </application>
    <application>
      <name>https-alt</name>
      <term><name>a</name><protocol>tcp</protocol><destination-port>443</destination-port></term>
      <term><name>b</name><protocol>tcp</protocol><destination-port>8443</destination-port></term>
    </application>
  </applications>
</configuration>`)
	require.NoError(t, err)

	user := findObject[*model.Application](t, p, model.KindApplication, "", "tcp_80")
	assert.Equal(t, "udp", user.Protocol)
	assert.Equal(t, "53", user.Port)

	web := findObject[*model.ApplicationGroup](t, p, model.KindApplicationGroup, "", "web")
	assert.Equal(t, []string{"tcp_80_2", "tcp_443"}, web.Members)
	renamed := findObject[*model.Application](t, p, model.KindApplication, "", "tcp_80_2")
	assert.Equal(t, "tcp", renamed.Protocol)
	assert.Equal(t, "80", renamed.Port)
	assert.False(t, p.Objects.Has(model.KindApplication, "", "tcp_80_3"))

	// An identical definition is shared, not duplicated.
	alt := findObject[*model.ApplicationGroup](t, p, model.KindApplicationGroup, "", "https-alt")
	assert.Equal(t, []string{"tcp_443", "tcp_8443"}, alt.Members)
	assert.False(t, p.Objects.Has(model.KindApplication, "", "tcp_443_2"))

	var userApps []string
	for _, app := range Select[*model.Application](p.Objects) {
		if !app.IsDefault {
			userApps = append(userApps, app.Name)
		}
	}
	assert.Equal(t, []string{"tcp_80", "tcp_80_2", "tcp_443", "tcp_8443"}, userApps)
}

func TestParseFixturePolicies(t *testing.T) {
	p := parseFixture(t)
	zp := findObject[*model.ZonePolicy](t, p, model.KindZonePolicy, "", "trust_to_untrust")
	require.Len(t, zp.Rules, 1)
	assert.Equal(t, []string{"lan"}, zp.Rules[0].Sources)

	require.Len(t, p.GlobalRules, 2)
	assert.Equal(t, "block-web", p.GlobalRules[0].Name)
	assert.Equal(t, []string{model.Any}, p.GlobalRules[0].SourceZones)
	last := p.GlobalRules[1]
	assert.True(t, last.IsDefaultAction)
	assert.Equal(t, model.ActionPermit, last.Action)
}

func TestParseFixtureNat(t *testing.T) {
	p := parseFixture(t)

	snat := findObject[*model.SourceNatPolicy](t, p, model.KindSourceNatPolicy, "", "snat")
	require.Len(t, snat.Rules, 2)
	assert.Nil(t, snat.Rules[0].Incident)
	require.NotNil(t, snat.Rules[1].Incident)
	assert.Equal(t, "Unknown NAT pool", snat.Rules[1].Incident.Title)

	dnat := findObject[*model.DestinationNatPolicy](t, p, model.KindDestinationNatPolicy, "", "dnat")
	require.Len(t, dnat.Rules, 1)
	assert.Nil(t, dnat.Rules[0].Incident)

	static := findObject[*model.StaticNatPolicy](t, p, model.KindStaticNatPolicy, "", "st")
	require.Len(t, static.Rules, 1)
	assert.Nil(t, static.Rules[0].Incident)

	pools := p.Objects.ByKind(model.KindSourceNatPool, model.KindDestinationNatPool)
	assert.Len(t, pools, 2)
}

func TestFindingsIncludeOwnedRules(t *testing.T) {
	p := parseFixture(t)
	findings := p.Findings()

	var natRule *Finding
	for i := range findings {
		if findings[i].Kind == findingNatRule {
			natRule = &findings[i]
		}
	}
	require.NotNil(t, natRule)
	assert.Equal(t, "r2", natRule.Name)
	assert.Equal(t, "snat", natRule.Owner)
	assert.GreaterOrEqual(t, SeverityCounts(findings)[incident.ManualActionRequired], 1)
}

func TestZoneNestedAddressesWhenNoAddressBook(t *testing.T) {
	p, err := parseString(t, `<configuration>
  <security>
    <zones>
      <security-zone>
        <name>dmz</name>
        <address-book>
          <address><name>mail</name><ip-prefix>192.0.2.25/32</ip-prefix></address>
          <address-set><name>mail-servers</name><address><name>mail</name></address></address-set>
        </address-book>
      </security-zone>
    </zones>
  </security>
</configuration>`)
	require.NoError(t, err)
	mail := findObject[*model.Host](t, p, model.KindHost, "dmz", "mail")
	assert.Equal(t, "192.0.2.25", mail.IPAddress)
	findObject[*model.AddressGroup](t, p, model.KindAddressGroup, "dmz", "mail-servers")
	assert.Equal(t, []string{"dmz"}, p.Zones.Zones("MAIL"))
}

func TestDefaultPolicyDeniesWhenNotPermitAll(t *testing.T) {
	p, err := parseString(t, `<configuration><security><policies><default-policy><deny-all/></default-policy></policies></security></configuration>`)
	require.NoError(t, err)
	require.Len(t, p.GlobalRules, 1)
	assert.Equal(t, model.ActionDeny, p.GlobalRules[0].Action)

	p, err = parseString(t, `<configuration/>`)
	require.NoError(t, err)
	require.Len(t, p.GlobalRules, 1)
	assert.Equal(t, model.ActionDeny, p.GlobalRules[0].Action)
}

func TestParseStructuralFailures(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no configuration", "<rpc-reply><other/></rpc-reply>"},
		{"address without value", "<configuration><security><address-book><name>global</name><address><name>x</name></address></address-book></security></configuration>"},
		{"zone without name", "<configuration><security><zones><security-zone/></zones></security></configuration>"},
		{"zone pair without to-zone", "<configuration><security><policies><policy><from-zone-name>a</from-zone-name></policy></policies></security></configuration>"},
		{"nat pool without name", "<configuration><security><nat><source><pool/></source></nat></security></configuration>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseString(t, tt.doc)
			require.Error(t, err)
			assert.ErrorIs(t, err, incident.ErrStructural)
		})
	}
}

func TestParseRejectsMalformedXML(t *testing.T) {
	_, err := parseString(t, "<configuration><security></configuration>")
	require.Error(t, err)
	assert.NotErrorIs(t, err, incident.ErrStructural)
}

func TestParseRequiresLookup(t *testing.T) {
	p := NewJunosParser(nil, quietLogger())
	err := p.Parse(strings.NewReader("<configuration/>"))
	assert.ErrorIs(t, err, wellknown.ErrReferenceData)
}

func TestParseResetsState(t *testing.T) {
	p := parseFixture(t)
	require.NoError(t, p.Parse(strings.NewReader("<configuration/>")))
	assert.Equal(t, "", p.Version)
	assert.Nil(t, p.Objects.ByKind(model.KindHost))
	assert.Empty(t, p.Zones.Ambiguous())
}
