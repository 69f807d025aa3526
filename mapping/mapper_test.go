package mapping_test

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/osfipm/mapping"
)

type propertySet map[string]mapping.Property

func (s propertySet) Lookup(name string) (mapping.Property, bool) {
	p, ok := s[name]
	return p, ok
}

func newMapper(t *testing.T, cfg mapping.Config) *mapping.Mapper {
	t.Helper()
	m, err := mapping.NewMapper(cfg)
	require.NoError(t, err)
	return m
}

func TestMapAllEndToEnd(t *testing.T) {
	m := newMapper(t, newConfig(t))
	var sink mapping.Collector

	idx, err := m.MapAll(context.Background(), []any{e2eRegistration()}, &sink)
	require.NoError(t, err)
	require.NotNil(t, idx)

	stmts := sink.Statements()
	for _, want := range []mapping.Statement{
		{Subject: mapping.Resource("y6cx7"), Predicate: mapping.RDFType, Object: mapping.Resource(classRegistration)},
		{Subject: mapping.Resource("zgbd5"), Predicate: mapping.RDFType, Object: mapping.Resource(classRegistration)},
		{Subject: mapping.Resource("y6cx7"), Predicate: propHasChild, Object: mapping.Resource("zgbd5")},
		{Subject: mapping.Resource("y6cx7"), Predicate: propIsPublic, Object: mapping.Literal("true", mapping.XSDBoolean)},
		{Subject: mapping.Resource("zgbd5"), Predicate: propHasParent, Object: mapping.Resource("y6cx7")},
	} {
		assert.Contains(t, stmts, want)
	}
}

func TestMapAllClassifiesReferencesIndependentOfOrder(t *testing.T) {
	m := newMapper(t, newConfig(t))
	bar := &Bar{ID: "b1"}
	// The Foo root comes first, before Bar has been seen on its own.
	roots := []any{&Foo{ID: "f1", Bar: bar}, bar}

	var sink mapping.Collector
	_, err := m.MapAll(context.Background(), roots, &sink)
	require.NoError(t, err)

	assert.Contains(t, sink.Statements(), mapping.Statement{
		Subject: mapping.Resource("f1"), Predicate: propBar, Object: mapping.Resource("b1"),
	})
	assert.Len(t, withPredicate(sink.Statements(), mapping.RDFType), 2)
}

func TestMapAllConfigurationError(t *testing.T) {
	roots := []any{&Node{ID: "a"}, &Node{}}

	t.Run("abort", func(t *testing.T) {
		m := newMapper(t, newConfig(t))
		var sink mapping.Collector
		_, err := m.MapAll(context.Background(), roots, &sink)
		assert.ErrorIs(t, err, mapping.ErrConfiguration)
	})

	t.Run("continue", func(t *testing.T) {
		cfg := newConfig(t)
		cfg.ContinueOnError = true
		m := newMapper(t, cfg)
		var sink mapping.Collector
		idx, err := m.MapAll(context.Background(), roots, &sink)
		require.NoError(t, err)
		assert.NotNil(t, idx)
		assert.Equal(t, []mapping.Statement{
			{Subject: mapping.Resource("a"), Predicate: mapping.RDFType, Object: mapping.Resource(classNode)},
		}, sink.Statements())
	})
}

func TestMapAllSkippedIndividualLeavesNothing(t *testing.T) {
	cfg := newConfig(t)
	cfg.ContinueOnError = true
	m := newMapper(t, cfg)

	// f fails on its Bar reference after its type statement was produced.
	roots := []any{&Foo{ID: "f", Bar: &Bar{}}, &Node{ID: "a"}}
	var sink mapping.Collector
	_, err := m.MapAll(context.Background(), roots, &sink)
	require.NoError(t, err)

	for _, s := range sink.Statements() {
		assert.NotEqual(t, mapping.Resource("f"), s.Subject, "partial statement %v", s)
	}
	assert.Contains(t, sink.Statements(), mapping.Statement{
		Subject: mapping.Resource("a"), Predicate: mapping.RDFType, Object: mapping.Resource(classNode),
	})
}

func TestIndividualFailureLeavesSinkUntouched(t *testing.T) {
	cfg := newConfig(t)
	m := newMapper(t, cfg)
	foo := &Foo{ID: "f", Bar: &Bar{}}
	idx := walked(t, cfg, foo)

	var sink mapping.Collector
	err := m.Individual(foo, idx, &sink)
	assert.ErrorIs(t, err, mapping.ErrConfiguration)
	assert.Zero(t, sink.Len())
}

func TestWalkAllParallel(t *testing.T) {
	cfg := newConfig(t)
	cfg.Workers = 4
	m := newMapper(t, cfg)

	shared := &Node{ID: "shared"}
	roots := make([]any, 50)
	for i := range roots {
		roots[i] = &Node{ID: fmt.Sprintf("n%d", i), Next: shared}
	}

	idx := mapping.NewIndex()
	individuals, err := m.WalkAll(context.Background(), roots, idx)
	require.NoError(t, err)
	assert.Len(t, individuals, 51)
	assert.Equal(t, 3, idx.Len())
	assert.Same(t, roots[0], individuals[0])
}

func TestWalkAllCancelled(t *testing.T) {
	m := newMapper(t, newConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.WalkAll(ctx, []any{&Node{ID: "a"}}, mapping.NewIndex())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWalkAllNilRoot(t *testing.T) {
	m := newMapper(t, newConfig(t))
	_, err := m.WalkAll(context.Background(), []any{&Node{ID: "a"}, nil}, mapping.NewIndex())
	assert.ErrorIs(t, err, mapping.ErrNilInstance)
}

func TestIndividualRejectsNonIndividuals(t *testing.T) {
	m := newMapper(t, newConfig(t))
	var sink mapping.Collector

	err := m.Individual(&License{Name: "MIT"}, mapping.NewIndex(), &sink)
	assert.ErrorIs(t, err, mapping.ErrConfiguration)
}

func TestNewMapperValidatesRegistry(t *testing.T) {
	t.Run("unknown transform", func(t *testing.T) {
		reg := mapping.NewRegistry()
		require.NoError(t, reg.Register(
			mapping.Individual[Bar](classBar).
				Identifier("ID", func(b *Bar) any { return b.ID }, mapping.WithTransform("missing")),
		))
		_, err := mapping.NewMapper(mapping.Config{Registry: reg})
		assert.ErrorIs(t, err, mapping.ErrConfiguration)
	})

	t.Run("property outside the set", func(t *testing.T) {
		cfg := newConfig(t)
		cfg.Properties = propertySet{propNext.Name: propNext}
		_, err := mapping.NewMapper(cfg)
		assert.ErrorIs(t, err, mapping.ErrConfiguration)
	})

	t.Run("unregistered base", func(t *testing.T) {
		reg := mapping.NewRegistry()
		require.NoError(t, reg.Register(
			mapping.Individual[Registration](classRegistration).
				Extends(reflect.TypeFor[Base](), func(r *Registration) any { return &r.Base }),
		))
		_, err := mapping.NewMapper(mapping.Config{Registry: reg})
		assert.ErrorIs(t, err, mapping.ErrConfiguration)
	})
}

func TestMapperMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := mapping.NewMetrics(reg)
	require.NoError(t, err)

	cfg := newConfig(t)
	cfg.Metrics = metrics
	m := newMapper(t, cfg)

	var sink mapping.Collector
	_, err = m.MapAll(context.Background(), []any{e2eRegistration()}, &sink)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				values[mf.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, values["osfipm_mapping_walks_total"])
	assert.Equal(t, 2.0, values["osfipm_mapping_individuals_total"])
	assert.Equal(t, float64(sink.Len()), values["osfipm_mapping_statements_total"])
}

func TestNewMetricsNilRegisterer(t *testing.T) {
	m, err := mapping.NewMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)
}
