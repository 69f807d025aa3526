package mapping_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/osfipm/mapping"
)

// e2eRegistration returns registration y6cx7 with public flag set and child
// zgbd5 pointing back to it.
func e2eRegistration() *Registration {
	root := &Registration{Base: Base{ID: "y6cx7", Title: "Pre-registration"}, Public: true}
	child := &Registration{Base: Base{ID: "zgbd5"}, Parent: root}
	root.Children = []*Registration{child}
	return root
}

func project(t *testing.T, cfg mapping.Config, instance any, subject string) []mapping.Statement {
	t.Helper()
	idx := walked(t, cfg, instance)
	var sink mapping.Collector
	require.NoError(t, mapping.NewProjector(cfg).Project(instance, subject, idx, &sink))
	return sink.Statements()
}

func withPredicate(stmts []mapping.Statement, p mapping.Property) []mapping.Statement {
	var out []mapping.Statement
	for _, s := range stmts {
		if s.Predicate == p {
			out = append(out, s)
		}
	}
	return out
}

func TestProjectEndToEnd(t *testing.T) {
	cfg := newConfig(t)
	stmts := project(t, cfg, e2eRegistration(), "y6cx7")

	assert.Contains(t, stmts, mapping.Statement{
		Subject:   mapping.Resource("y6cx7"),
		Predicate: propHasChild,
		Object:    mapping.Resource("zgbd5"),
	})
	assert.Contains(t, stmts, mapping.Statement{
		Subject:   mapping.Resource("y6cx7"),
		Predicate: propIsPublic,
		Object:    mapping.Literal("true", mapping.XSDBoolean),
	})
	assert.Contains(t, stmts, mapping.Statement{
		Subject:   mapping.Resource("y6cx7"),
		Predicate: propTitle,
		Object:    mapping.Literal("Pre-registration", ""),
	})
	assert.Empty(t, withPredicate(stmts, propHasParent), "null parent must be skipped")
}

func TestProjectCollectionElementWise(t *testing.T) {
	cfg := newConfig(t)
	r := &Registration{Base: baseOf("r"), Tags: []string{"psychology", "replication", "open-data"}}

	got := withPredicate(project(t, cfg, r, "r"), propTag)
	want := []mapping.Statement{
		{Subject: mapping.Resource("r"), Predicate: propTag, Object: mapping.Literal("psychology", "")},
		{Subject: mapping.Resource("r"), Predicate: propTag, Object: mapping.Literal("replication", "")},
		{Subject: mapping.Resource("r"), Predicate: propTag, Object: mapping.Literal("open-data", "")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tag statements mismatch (-want +got):\n%s", diff)
	}
}

func TestProjectCollectionOfIndividuals(t *testing.T) {
	cfg := newConfig(t)
	r := &Registration{Base: baseOf("r")}
	for _, id := range []string{"c1", "c2", "c3"} {
		r.Children = append(r.Children, &Registration{Base: baseOf(id)})
	}

	got := withPredicate(project(t, cfg, r, "r"), propHasChild)
	require.Len(t, got, 3)
	for i, id := range []string{"c1", "c2", "c3"} {
		assert.Equal(t, mapping.Resource(id), got[i].Object)
	}
}

func TestProjectTypedLiterals(t *testing.T) {
	cfg := newConfig(t)
	r := &Registration{
		Base:    baseOf("r"),
		Created: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Count:   42,
		Score:   1.5,
	}
	stmts := project(t, cfg, r, "r")

	tests := []struct {
		prop mapping.Property
		want mapping.Term
	}{
		{propIsPublic, mapping.Literal("false", mapping.XSDBoolean)},
		{propCreated, mapping.Literal("2024-01-02T03:04:05Z", mapping.XSDDateTime)},
		{propCount, mapping.Literal("42", mapping.XSDInteger)},
		{propScore, mapping.Literal("1.5", mapping.XSDDouble)},
	}
	for _, tt := range tests {
		t.Run(tt.prop.LocalName, func(t *testing.T) {
			got := withPredicate(stmts, tt.prop)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Object)
		})
	}
}

func TestProjectEnumAsPlainLiteral(t *testing.T) {
	cfg := newConfig(t)
	r := &Registration{Base: baseOf("r"), Category: CategoryProject}

	got := withPredicate(project(t, cfg, r, "r"), propCategory)
	require.Len(t, got, 1)
	assert.Equal(t, mapping.Literal("project", ""), got[0].Object)
}

func TestProjectEnumProperties(t *testing.T) {
	cfg := newConfig(t)
	r := &Registration{Base: baseOf("r"), Category: CategoryProject}
	stmts := project(t, cfg, r, "r")

	assert.Equal(t, []mapping.Statement{
		{Subject: mapping.Resource("r"), Predicate: propLabel, Object: mapping.Literal("project", "")},
	}, withPredicate(stmts, propLabel))
	assert.Equal(t, []mapping.Statement{
		{Subject: mapping.Resource("r"), Predicate: propCode, Object: mapping.Literal("project", "")},
	}, withPredicate(stmts, propCode))
}

func TestProjectFailureLeavesSinkUntouched(t *testing.T) {
	cfg := newConfig(t)
	foo := &Foo{ID: "f", Bar: &Bar{}}
	idx := walked(t, cfg, foo)

	var sink mapping.Collector
	err := mapping.NewProjector(cfg).Project(foo, "f", idx, &sink)
	assert.ErrorIs(t, err, mapping.ErrConfiguration)
	assert.Zero(t, sink.Len())
}

func TestProjectAnonymousIndividual(t *testing.T) {
	cfg := newConfig(t)
	r := &Registration{Base: baseOf("r"), License: &License{Name: "CC0 1.0 Universal"}}

	stmts := project(t, cfg, r, "r")
	b1 := mapping.Blank("b1")
	assert.Contains(t, stmts, mapping.Statement{Subject: mapping.Resource("r"), Predicate: propLicense, Object: b1})
	assert.Contains(t, stmts, mapping.Statement{Subject: b1, Predicate: mapping.RDFType, Object: mapping.Resource(classLicense)})
	assert.Contains(t, stmts, mapping.Statement{Subject: b1, Predicate: propLicName, Object: mapping.Literal("CC0 1.0 Universal", "")})
}

func TestProjectAnonymousCycleStops(t *testing.T) {
	cfg := newConfig(t)
	lic := &License{Name: "MIT"}
	lic.Self = lic
	r := &Registration{Base: baseOf("r"), License: lic}

	got := withPredicate(project(t, cfg, r, "r"), propLicense)
	want := []mapping.Statement{
		{Subject: mapping.Resource("r"), Predicate: propLicense, Object: mapping.Blank("b1")},
		{Subject: mapping.Blank("b1"), Predicate: propLicense, Object: mapping.Blank("b2")},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("license statements mismatch (-want +got):\n%s", diff)
	}
}

func TestProjectReferenceWithNullIdentifier(t *testing.T) {
	cfg := newConfig(t)
	f := &Foo{ID: "f", Bar: &Bar{}}
	idx := walked(t, cfg, f)
	// Bar.ID is only indexed once some Bar with an identifier has been seen.
	require.NoError(t, mapping.NewWalker(cfg).Walk(&Bar{ID: "other"}, idx))

	var sink mapping.Collector
	err := mapping.NewProjector(cfg).Project(f, "f", idx, &sink)
	assert.ErrorIs(t, err, mapping.ErrConfiguration)
}

func TestProjectSinkError(t *testing.T) {
	cfg := newConfig(t)
	r := e2eRegistration()
	idx := walked(t, cfg, r)
	boom := errors.New("boom")

	err := mapping.NewProjector(cfg).Project(r, "y6cx7", idx, mapping.SinkFunc(func(mapping.Statement) error {
		return boom
	}))
	assert.ErrorIs(t, err, boom)
}

func TestProjectArguments(t *testing.T) {
	cfg := newConfig(t)
	p := mapping.NewProjector(cfg)
	var sink mapping.Collector

	assert.ErrorIs(t, p.Project(nil, "x", mapping.NewIndex(), &sink), mapping.ErrNilInstance)
	assert.Error(t, p.Project(&Node{ID: "a"}, "", mapping.NewIndex(), &sink))
	assert.Error(t, p.Project(&Node{ID: "a"}, "a", nil, &sink))
}

func TestLiteralFor(t *testing.T) {
	ts := time.Date(2020, 5, 6, 7, 8, 9, 0, time.FixedZone("CEST", 2*3600))
	tests := []struct {
		name string
		in   any
		want mapping.Term
	}{
		{"bool", true, mapping.Literal("true", mapping.XSDBoolean)},
		{"int64", int64(-7), mapping.Literal("-7", mapping.XSDInteger)},
		{"uint", uint(7), mapping.Literal("7", mapping.XSDInteger)},
		{"float32", float32(0.5), mapping.Literal("0.5", mapping.XSDDouble)},
		{"time in utc", ts, mapping.Literal("2020-05-06T05:08:09Z", mapping.XSDDateTime)},
		{"time pointer", &ts, mapping.Literal("2020-05-06T05:08:09Z", mapping.XSDDateTime)},
		{"string", "hello", mapping.Literal("hello", "")},
		{"enum", CategoryData, mapping.Literal("data", "")},
		{"int pointer", ptr(3), mapping.Literal("3", mapping.XSDInteger)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapping.LiteralFor(tt.in))
		})
	}
}

func ptr[T any](v T) *T { return &v }
