package graph

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/c360studio/semstreams/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/osfipm/export"
	"github.com/c360studio/osfipm/mapping"
	vocab "github.com/c360studio/osfipm/vocabulary/osf"
)

var fixed = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleTriples(t *testing.T, profile export.Profile) []export.Triple {
	t.Helper()
	g := export.NewGraph(export.WithProfile(profile))
	for _, s := range []mapping.Statement{
		{Subject: mapping.Resource("y6cx7"), Predicate: mapping.RDFType, Object: mapping.Resource(vocab.ClassRegistration)},
		{Subject: mapping.Resource("y6cx7"), Predicate: vocab.NodeTitle, Object: mapping.Literal("Pre-registration", "")},
		{Subject: mapping.Resource("y6cx7"), Predicate: vocab.NodeIsPublic, Object: mapping.Literal("true", mapping.XSDBoolean)},
		{Subject: mapping.Resource("y6cx7"), Predicate: vocab.NodeHasChild, Object: mapping.Resource("zgbd5")},
		{Subject: mapping.Resource("y6cx7"), Predicate: vocab.NodeLicense, Object: mapping.Blank("b1")},
		{Subject: mapping.Blank("b1"), Predicate: mapping.RDFType, Object: mapping.Resource(vocab.ClassLicense)},
		{Subject: mapping.Blank("b1"), Predicate: vocab.LicenseName, Object: mapping.Literal("CC0 1.0 Universal", "")},
		{Subject: mapping.Resource("f1"), Predicate: mapping.RDFType, Object: mapping.Resource(vocab.ClassFile)},
		{Subject: mapping.Resource("f1"), Predicate: vocab.FileSize, Object: mapping.Literal("11", mapping.XSDInteger)},
		{Subject: mapping.Resource("f1"), Predicate: vocab.FileSize, Object: mapping.Literal("eleven", mapping.XSDInteger)},
	} {
		require.NoError(t, g.Add(s))
	}
	return g.Triples()
}

func newTestConverter() *Converter {
	c := NewConverter("")
	c.Now = func() time.Time { return fixed }
	return c
}

func byID(payloads []*EntityPayload) map[string]*EntityPayload {
	m := make(map[string]*EntityPayload, len(payloads))
	for _, p := range payloads {
		m[p.EntityID()] = p
	}
	return m
}

func TestEntityID(t *testing.T) {
	assert.Equal(t, "osf.io.registry.ipm.registration.y6cx7", EntityID("registration", "y6cx7"))
	assert.Equal(t, "osf.io.registry.ipm.entity.a-b-c", EntityID("", "a.b/c"))
}

func TestConvert(t *testing.T) {
	payloads := newTestConverter().Convert(sampleTriples(t, export.ProfileMinimal))
	require.Len(t, payloads, 3)

	ids := make([]string, len(payloads))
	for i, p := range payloads {
		ids[i] = p.EntityID()
	}
	assert.IsIncreasing(t, ids)

	m := byID(payloads)
	reg := m["osf.io.registry.ipm.registration.y6cx7"]
	require.NotNil(t, reg)
	assert.Equal(t, fixed, reg.UpdatedAt)

	want := map[string]any{
		mapping.RDFType.Name:    vocab.ClassRegistration,
		vocab.NodeTitle.Name:    "Pre-registration",
		vocab.NodeIsPublic.Name: true,
		vocab.NodeHasChild.Name: "osf.io.registry.ipm.entity.zgbd5",
		vocab.NodeLicense.Name:  "osf.io.registry.ipm.license.b-b1",
	}
	got := make(map[string]any)
	for _, tr := range reg.Triples() {
		assert.Equal(t, reg.EntityID(), tr.Subject)
		assert.Equal(t, DefaultSource, tr.Source)
		assert.Equal(t, 1.0, tr.Confidence)
		got[tr.Predicate] = tr.Object
	}
	assert.Equal(t, want, got)

	license := m["osf.io.registry.ipm.license.b-b1"]
	require.NotNil(t, license)
	assert.Equal(t, vocab.LicenseName.Name, license.Triples()[1].Predicate)
}

func TestConvert_TypedLiterals(t *testing.T) {
	file := byID(newTestConverter().Convert(sampleTriples(t, export.ProfileMinimal)))["osf.io.registry.ipm.file.f1"]
	require.NotNil(t, file)

	var sizes []message.Triple
	for _, tr := range file.Triples() {
		if tr.Predicate == vocab.FileSize.Name {
			sizes = append(sizes, tr)
		}
	}
	require.Len(t, sizes, 2)
	assert.Equal(t, int64(11), sizes[0].Object)
	assert.Equal(t, "xsd:integer", sizes[0].Datatype)
	assert.Equal(t, "eleven", sizes[1].Object, "unparseable values stay strings")
}

func TestConvert_OWLDeclarationsDropped(t *testing.T) {
	minimal := newTestConverter().Convert(sampleTriples(t, export.ProfileMinimal))
	owl := newTestConverter().Convert(sampleTriples(t, export.ProfileOWL))
	require.Len(t, owl, len(minimal))

	// Named individual types survive as extra rdf:type triples.
	reg := byID(owl)["osf.io.registry.ipm.registration.y6cx7"]
	var types []any
	for _, tr := range reg.Triples() {
		if tr.Predicate == mapping.RDFType.Name {
			types = append(types, tr.Object)
		}
	}
	assert.Equal(t, []any{vocab.ClassRegistration, mapping.OWLNamespace + "NamedIndividual"}, types)
}

func TestEncode(t *testing.T) {
	p := newTestConverter().Convert(sampleTriples(t, export.ProfileMinimal))[0]
	data, err := Encode(p, "osfipm-test")
	require.NoError(t, err)

	var envelope struct {
		Type    message.Type    `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &envelope))
	assert.Equal(t, EntityType, envelope.Type)

	var decoded EntityPayload
	require.NoError(t, json.Unmarshal(envelope.Payload, &decoded))
	assert.Equal(t, p.EntityID(), decoded.EntityID())
	assert.Len(t, decoded.Triples(), len(p.Triples()))

	_, err = Encode(&EntityPayload{}, "osfipm-test")
	assert.Error(t, err)
	_, err = Encode(&EntityPayload{EntityID_: "x"}, "osfipm-test")
	assert.Error(t, err)
}
