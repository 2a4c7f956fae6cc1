package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"srx-config-parser/internal/incident"
)

func TestParseZone(t *testing.T) {
	z, err := ParseZone(testContext(t), mustNode(t, `<security-zone>
  <name>trust</name>
  <interfaces><name>ge-0/0/1.0</name></interfaces>
  <interfaces><name>ge-0/0/2.0</name><host-inbound-traffic/></interfaces>
</security-zone>`))
	require.NoError(t, err)
	assert.Equal(t, "trust", z.Name)
	assert.Equal(t, "trust", z.Zone)
	assert.Equal(t, []string{"ge-0/0/1.0", "ge-0/0/2.0"}, z.Interfaces)
	assert.False(t, z.LeadsToInternet)
	assert.Nil(t, z.Incident)
}

func TestParseZoneInactive(t *testing.T) {
	z, err := ParseZone(testContext(t), mustNode(t, `<security-zone inactive="inactive"><name>old</name></security-zone>`))
	require.NoError(t, err)
	requireSeverity(t, incident.Informative, &z.Base)
}
