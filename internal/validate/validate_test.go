// SPDX-License-Identifier: LGPL-2.1-only

package validate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yconfd/yconfd/internal/schema"
	"github.com/yconfd/yconfd/internal/tree"
)

func testSchema() *schema.Node {
	mtu := &schema.Node{Name: "mtu", Kind: schema.KindLeaf, Type: &schema.Type{Name: "int32"}}
	name := &schema.Node{Name: "name", Kind: schema.KindLeaf, Type: &schema.Type{Name: "string"}, Mandatory: true}
	iface := &schema.Node{
		Name: "interface", Kind: schema.KindList, Keys: []string{"name"},
		Children: []*schema.Node{name, mtu},
	}
	interfaces := &schema.Node{Name: "interfaces", Kind: schema.KindContainer, Children: []*schema.Node{iface}}
	return &schema.Node{Name: "config", Kind: schema.KindContainer, Children: []*schema.Node{interfaces}}
}

func TestValidateOK(t *testing.T) {
	doc := tree.BuildEdit(map[string]string{
		"interfaces/interface[name='eth0']/name": "eth0",
		"interfaces/interface[name='eth0']/mtu":  "1500",
	})
	v := New(nil)
	errs := v.Validate(doc, testSchema())
	require.Empty(t, errs)
}

func TestValidateRejectsBadType(t *testing.T) {
	doc := tree.BuildEdit(map[string]string{
		"interfaces/interface[name='eth0']/name": "eth0",
		"interfaces/interface[name='eth0']/mtu":  "not-a-number",
	})
	v := New(nil)
	errs := v.Validate(doc, testSchema())
	require.NotEmpty(t, errs)
	require.Equal(t, "invalid-value", string(errs[0].Tag))
}

func TestValidateRejectsMissingMandatory(t *testing.T) {
	// No key predicate: a keyed path would make BuildEdit insert the name
	// leaf itself.
	doc := tree.BuildEdit(map[string]string{
		"interfaces/interface/mtu": "1500",
	})
	v := New(nil)
	errs := v.Validate(doc, testSchema())
	require.NotEmpty(t, errs)
	require.Equal(t, "missing-element", string(errs[0].Tag))
}

func TestValidateIsPureAndSideEffectFree(t *testing.T) {
	doc := tree.BuildEdit(map[string]string{
		"interfaces/interface[name='eth0']/name": "eth0",
	})
	before := doc.Children[0].Children[0].Body
	v := New(nil)
	v.Validate(doc, testSchema())
	require.Equal(t, before, doc.Children[0].Children[0].Body)
}

func TestValidationCacheSkipsUnchangedSubtree(t *testing.T) {
	cache, err := NewInMemoryCache()
	require.NoError(t, err)
	defer cache.Close()

	doc := tree.BuildEdit(map[string]string{
		"interfaces/interface[name='eth0']/name": "eth0",
		"interfaces/interface[name='eth0']/mtu":  "1500",
	})
	v := New(cache)
	errs1 := v.Validate(doc, testSchema())
	require.Empty(t, errs1)
	errs2 := v.Validate(doc, testSchema())
	require.Empty(t, errs2)
}
