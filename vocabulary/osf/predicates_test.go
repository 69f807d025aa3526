package osf_test

import (
	"strings"
	"testing"

	"github.com/c360studio/semstreams/vocabulary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/osfipm/mapping"
	"github.com/c360studio/osfipm/vocabulary/osf"
)

func TestPredicatesRegistered(t *testing.T) {
	for _, name := range osf.Names() {
		t.Run(name, func(t *testing.T) {
			meta := vocabulary.GetPredicateMetadata(name)
			require.NotNil(t, meta, "predicate %q not registered", name)
			assert.NotEmpty(t, meta.Description)
			assert.NotEmpty(t, meta.DataType)
			assert.True(t, strings.HasPrefix(meta.StandardIRI, osf.Namespace), "IRI %q outside namespace", meta.StandardIRI)
			assert.True(t, vocabulary.IsValidPredicate(name), "predicate %q is not domain.category.property", name)
		})
	}
}

func TestPredicateIRIs(t *testing.T) {
	tests := []struct {
		prop mapping.Property
		iri  string
		kind mapping.PropertyKind
	}{
		{osf.NodeTitle, "https://osf.io/ontology/title", mapping.DatatypeProperty},
		{osf.NodeIsPublic, "https://osf.io/ontology/isPublic", mapping.DatatypeProperty},
		{osf.NodeHasChild, "https://osf.io/ontology/hasChild", mapping.ObjectProperty},
		{osf.ContributorUser, "https://osf.io/ontology/contributorUser", mapping.ObjectProperty},
		{osf.FileChecksum, "https://osf.io/ontology/checksum", mapping.ObjectProperty},
	}
	for _, tt := range tests {
		t.Run(tt.prop.Name, func(t *testing.T) {
			assert.Equal(t, tt.iri, tt.prop.IRI())
			assert.Equal(t, tt.kind, tt.prop.Kind)
		})
	}
}

func TestIRIsAreUnique(t *testing.T) {
	seen := make(map[string]string)
	for _, name := range osf.Names() {
		p, ok := osf.Properties().Lookup(name)
		require.True(t, ok)
		if other, dup := seen[p.IRI()]; dup {
			t.Errorf("%s and %s share IRI %s", name, other, p.IRI())
		}
		seen[p.IRI()] = name
	}
}

func TestPropertiesIncludesRDFType(t *testing.T) {
	p, ok := osf.Properties().Lookup(mapping.RDFType.Name)
	require.True(t, ok)
	assert.Equal(t, mapping.RDFType, p)

	_, ok = osf.Properties().Lookup("osf.node.unknown")
	assert.False(t, ok)
}

func TestClassesInNamespace(t *testing.T) {
	for _, c := range osf.Classes() {
		assert.True(t, strings.HasPrefix(c, osf.Namespace), c)
	}
}
