package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"srx-config-parser/internal/model"
)

func TestRepositoryKeepsInsertionOrder(t *testing.T) {
	repo := NewRepository(quietLogger())
	require.True(t, repo.Add(&model.Zone{Base: model.Base{Name: "trust", Zone: "trust"}}))
	require.True(t, repo.Add(&model.Host{Base: model.Base{Name: "a", Zone: "trust"}, IPAddress: "10.0.0.1"}))
	require.True(t, repo.Add(&model.Network{Base: model.Base{Name: "b", Zone: "trust"}, Network: "10.0.0.0", Netmask: "255.0.0.0"}))
	require.True(t, repo.Add(&model.Host{Base: model.Base{Name: "c", Zone: "trust"}, IPAddress: "10.0.0.3"}))

	var names []string
	for _, obj := range repo.Objects() {
		names = append(names, obj.Meta().Name)
	}
	assert.Equal(t, []string{"trust", "a", "b", "c"}, names)
	assert.Equal(t, 4, repo.Len())

	hosts := Select[*model.Host](repo)
	require.Len(t, hosts, 2)
	assert.Equal(t, "c", hosts[1].Name)

	assert.Len(t, repo.ByKind(model.KindHost, model.KindNetwork), 3)
	assert.Equal(t, map[model.Kind]int{model.KindZone: 1, model.KindHost: 2, model.KindNetwork: 1}, repo.Counts())
}

func TestRepositoryNamespaces(t *testing.T) {
	repo := NewRepository(quietLogger())
	require.True(t, repo.Add(&model.Host{Base: model.Base{Name: "srv", Zone: "trust"}}))
	// Same address name in another zone is allowed.
	require.True(t, repo.Add(&model.Host{Base: model.Base{Name: "srv", Zone: "dmz"}}))
	// A group shares the address namespace.
	assert.False(t, repo.Add(&model.AddressGroup{Base: model.Base{Name: "SRV", Zone: "trust"}}))
	// Applications live in their own namespace regardless of zone.
	require.True(t, repo.Add(&model.Application{Base: model.Base{Name: "srv", Zone: "trust"}}))
	assert.False(t, repo.Add(&model.ApplicationGroup{Base: model.Base{Name: "srv", Zone: "dmz"}}))

	assert.True(t, repo.Has(model.KindNetwork, "dmz", "srv"))
	assert.False(t, repo.Has(model.KindNetwork, "untrust", "srv"))
	assert.True(t, repo.Has(model.KindApplicationGroup, "", "srv"))

	obj, ok := repo.Find(model.KindHost, "trust", "srv")
	require.True(t, ok)
	assert.Equal(t, model.KindHost, obj.Kind())
	assert.Equal(t, 3, repo.Len())
}

func TestZoneLookup(t *testing.T) {
	z := NewZoneLookup()
	z.Record("web", "trust")
	z.Record("WEB", "trust")
	z.Record("db", "trust")
	assert.False(t, z.IsAmbiguous("web"))

	z.Record("Web", "dmz")
	assert.True(t, z.IsAmbiguous("wEb"))
	assert.Equal(t, []string{"trust", "dmz"}, z.Zones("web"))
	assert.True(t, z.Known("DB"))
	assert.False(t, z.Known("mail"))
	assert.Equal(t, []string{"web"}, z.Ambiguous())
}
