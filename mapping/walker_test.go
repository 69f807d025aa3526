package mapping_test

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/osfipm/mapping"
)

func field(owner any, name string) mapping.Element {
	return mapping.FieldElement(reflect.TypeOf(owner), name)
}

func class(owner any) mapping.Element {
	return mapping.ClassElement(reflect.TypeOf(owner))
}

func TestWalkNilInstance(t *testing.T) {
	w := mapping.NewWalker(newConfig(t))

	err := w.Walk(nil, mapping.NewIndex())
	assert.ErrorIs(t, err, mapping.ErrNilInstance)

	var n *Node
	err = w.Walk(n, mapping.NewIndex())
	assert.ErrorIs(t, err, mapping.ErrNilInstance)
}

func TestWalkRecordsEntries(t *testing.T) {
	w := mapping.NewWalker(newConfig(t))
	idx := mapping.NewIndex()

	root := &Foo{ID: "f1", Bar: &Bar{ID: "b1"}}
	require.NoError(t, w.Walk(root, idx))

	assert.Equal(t, 5, idx.Len())

	attrs, ok := idx.Get(mapping.Pair{Element: class(Foo{}), Annotation: mapping.OwlIndividual})
	require.True(t, ok)
	assert.Equal(t, classFoo, attrs.Class)

	attrs, ok = idx.Get(mapping.Pair{Element: field(Foo{}, "Bar"), Annotation: mapping.OwlProperty})
	require.True(t, ok)
	assert.Equal(t, propBar, attrs.Property)

	assert.True(t, idx.Has(mapping.Pair{Element: class(Bar{}), Annotation: mapping.OwlIndividual}))
}

func TestWalkSameFieldNameOnDifferentTypes(t *testing.T) {
	w := mapping.NewWalker(newConfig(t))
	idx := mapping.NewIndex()

	require.NoError(t, w.Walk(&Foo{ID: "f1", Bar: &Bar{ID: "b1"}}, idx))

	fooID := mapping.Pair{Element: field(Foo{}, "ID"), Annotation: mapping.IndividualURI}
	barID := mapping.Pair{Element: field(Bar{}, "ID"), Annotation: mapping.IndividualURI}
	assert.NotEqual(t, fooID, barID)
	assert.True(t, idx.Has(fooID))
	assert.True(t, idx.Has(barID))
}

func TestWalkTerminatesOnCycles(t *testing.T) {
	tests := []struct {
		name string
		root func() *Node
	}{
		{
			name: "self reference",
			root: func() *Node {
				a := &Node{ID: "a"}
				a.Next = a
				return a
			},
		},
		{
			name: "two nodes",
			root: func() *Node {
				a, b := &Node{ID: "a"}, &Node{ID: "b"}
				a.Next, b.Next = b, a
				return a
			},
		},
		{
			name: "three nodes",
			root: func() *Node {
				a, b, c := &Node{ID: "a"}, &Node{ID: "b"}, &Node{ID: "c"}
				a.Next, b.Next, c.Next = b, c, a
				return a
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := mapping.NewWalker(newConfig(t))
			idx := mapping.NewIndex()

			require.NoError(t, w.Walk(tt.root(), idx))
			// Node class, Node.ID identifier and Node.Next property.
			assert.Equal(t, 3, idx.Len())
		})
	}
}

func TestWalkReportsEachIndividualOnce(t *testing.T) {
	w := mapping.NewWalker(newConfig(t))
	a, b, c := &Node{ID: "a"}, &Node{ID: "b"}, &Node{ID: "c"}
	a.Next, b.Next, c.Next = b, c, a

	var seen []string
	err := w.WalkFunc(a, mapping.NewIndex(), func(ind any) {
		seen = append(seen, ind.(*Node).ID)
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, seen)
}

func TestWalkDistinctEqualInstances(t *testing.T) {
	w := mapping.NewWalker(newConfig(t))
	root := &Registration{
		Base: baseOf("root"),
		Children: []*Registration{
			{Base: baseOf("same")},
			{Base: baseOf("same")},
		},
	}

	count := 0
	require.NoError(t, w.WalkFunc(root, mapping.NewIndex(), func(any) { count++ }))
	assert.Equal(t, 3, count)
}

func TestWalkIsIdempotent(t *testing.T) {
	w := mapping.NewWalker(newConfig(t))
	idx := mapping.NewIndex()
	root := e2eRegistration()

	require.NoError(t, w.Walk(root, idx))
	first := idx.Pairs()

	require.NoError(t, w.Walk(root, idx))
	if diff := cmp.Diff(first, idx.Pairs(), cmp.Comparer(func(a, b reflect.Type) bool { return a == b })); diff != "" {
		t.Errorf("second walk changed the index (-first +second):\n%s", diff)
	}
}

func TestWalkNullFieldDoesNotBlockLaterValue(t *testing.T) {
	w := mapping.NewWalker(newConfig(t))
	idx := mapping.NewIndex()
	barProp := mapping.Pair{Element: field(Foo{}, "Bar"), Annotation: mapping.OwlProperty}
	barClass := mapping.Pair{Element: class(Bar{}), Annotation: mapping.OwlIndividual}
	barID := mapping.Pair{Element: field(Bar{}, "ID"), Annotation: mapping.IndividualURI}

	require.NoError(t, w.Walk(&Foo{ID: "f"}, idx))
	assert.False(t, idx.Has(barProp), "null field must not be recorded")
	assert.False(t, idx.Has(barClass))
	assert.False(t, idx.Has(barID))
	assert.Equal(t, 2, idx.Len())

	// Bar's class is first reached through the field that was null before.
	require.NoError(t, w.Walk(&Foo{ID: "g", Bar: &Bar{ID: "b"}}, idx))
	assert.True(t, idx.Has(barProp))
	assert.True(t, idx.Has(barClass))
	assert.True(t, idx.Has(barID))
	assert.Equal(t, 5, idx.Len())
}

func TestWalkNullIdentifierNotRecorded(t *testing.T) {
	w := mapping.NewWalker(newConfig(t))
	idx := mapping.NewIndex()

	require.NoError(t, w.Walk(&Node{}, idx))
	assert.False(t, idx.Has(mapping.Pair{Element: field(Node{}, "ID"), Annotation: mapping.IndividualURI}))
	assert.True(t, idx.Has(mapping.Pair{Element: class(Node{}), Annotation: mapping.OwlIndividual}))
}

func TestWalkEnumFieldsOnly(t *testing.T) {
	w := mapping.NewWalker(newConfig(t))
	idx := mapping.NewIndex()

	root := &Registration{Base: baseOf("r"), Category: CategoryProject}
	require.NoError(t, w.Walk(root, idx))

	assert.True(t, idx.Has(mapping.Pair{Element: field(CategoryProject, "Label"), Annotation: mapping.OwlProperty}))
	assert.True(t, idx.Has(mapping.Pair{Element: field(CategoryProject, "Self"), Annotation: mapping.OwlProperty}))
	assert.False(t, idx.Has(mapping.Pair{Element: class(CategoryProject), Annotation: mapping.OwlIndividual}))
}

func TestWalkEnumRoot(t *testing.T) {
	w := mapping.NewWalker(newConfig(t))
	idx := mapping.NewIndex()

	require.NoError(t, w.Walk(CategoryData, idx))
	assert.Equal(t, 2, idx.Len())
}

func TestWalkAnonymousValues(t *testing.T) {
	w := mapping.NewWalker(newConfig(t))
	idx := mapping.NewIndex()

	lic := &License{Name: "CC-By Attribution 4.0 International"}
	lic.Self = lic
	root := &Registration{Base: baseOf("r"), License: lic}
	require.NoError(t, w.Walk(root, idx))

	attrs, ok := idx.Get(mapping.Pair{Element: field(Registration{}, "License"), Annotation: mapping.AnonIndividual})
	require.True(t, ok)
	assert.Equal(t, classLicense, attrs.Class)
	assert.True(t, idx.Has(mapping.Pair{Element: field(License{}, "Name"), Annotation: mapping.OwlProperty}))
	assert.True(t, idx.Has(mapping.Pair{Element: field(License{}, "Self"), Annotation: mapping.AnonIndividual}))
}

func TestWalkIgnoredPackages(t *testing.T) {
	cfg := newConfig(t)
	cfg.IgnoredPrefixes = []string{reflect.TypeFor[Node]().PkgPath()}
	w := mapping.NewWalker(cfg)
	idx := mapping.NewIndex()

	require.NoError(t, w.Walk(&Node{ID: "a", Next: &Node{ID: "b"}}, idx))
	assert.Equal(t, 0, idx.Len())
}

func TestWalkSkipsUnmappedTypes(t *testing.T) {
	w := mapping.NewWalker(newConfig(t))
	idx := mapping.NewIndex()

	require.NoError(t, w.Walk(&Unmapped{Node: &Node{ID: "a"}}, idx))
	assert.Equal(t, 0, idx.Len())
}

func TestWalkStructValueRoot(t *testing.T) {
	w := mapping.NewWalker(newConfig(t))
	idx := mapping.NewIndex()

	require.NoError(t, w.Walk(Foo{ID: "f", Bar: &Bar{ID: "b"}}, idx))
	assert.Equal(t, 5, idx.Len())
}

func TestWalkDeepChain(t *testing.T) {
	w := mapping.NewWalker(newConfig(t))
	idx := mapping.NewIndex()

	root := &Node{ID: "0"}
	cur := root
	for i := 0; i < 100000; i++ {
		cur.Next = &Node{ID: "n"}
		cur = cur.Next
	}

	count := 0
	require.NoError(t, w.WalkFunc(root, idx, func(any) { count++ }))
	assert.Equal(t, 100001, count)
	assert.Equal(t, 3, idx.Len())
}

func baseOf(id string) Base {
	return Base{ID: id}
}
