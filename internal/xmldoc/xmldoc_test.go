package xmldoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<rpc-reply xmlns:junos="http://xml.juniper.net/junos/12.1X46/junos">
<configuration junos:changed-seconds="1">
  <security>
    <zones>
      <security-zone>
        <name>trust</name>
        <interfaces><name>ge-0/0/0.0</name></interfaces>
        <interfaces><name>ge-0/0/1.0</name></interfaces>
      </security-zone>
      <security-zone inactive="inactive">
        <name>dmz</name>
      </security-zone>
    </zones>
  </security>
</configuration>
</rpc-reply>`

func TestParseKeepsLinesAndText(t *testing.T) {
	root, err := ParseString(sample)
	require.NoError(t, err)
	assert.Equal(t, "rpc-reply", root.Name)

	cfg := root.Child("configuration")
	require.NotNil(t, cfg)
	assert.Equal(t, 2, cfg.Line)
	assert.Equal(t, "1", cfg.Attr("changed-seconds"))

	zones := cfg.FindAll("security/zones/security-zone")
	require.Len(t, zones, 2)
	assert.Equal(t, "trust", zones[0].NameValue())
	assert.Equal(t, 5, zones[0].Line)
	assert.Equal(t, []string{"ge-0/0/0.0", "ge-0/0/1.0"}, zones[0].Values("interfaces/name"))
	assert.True(t, zones[1].Inactive())
	assert.False(t, zones[0].Inactive())
	assert.Same(t, cfg, zones[0].Parent.Parent.Parent)
}

func TestNilSafeAccessors(t *testing.T) {
	var n *Node
	assert.Nil(t, n.Child("x"))
	assert.Nil(t, n.FindAll("a/b"))
	assert.Equal(t, "", n.Value("a"))
	assert.Equal(t, "", n.NameValue())
	assert.False(t, n.Has("x"))
	assert.Equal(t, 9, n.LineOr(9))
}

func TestParseErrors(t *testing.T) {
	_, err := ParseString("")
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = ParseString("<a><b></a>")
	assert.Error(t, err)
}
