package mapping

import (
	"errors"
	"log/slog"
	"reflect"
)

// Walker discovers mapping entries reachable from an instance.
type Walker struct {
	registry *Registry
	ignored  []string
	logger   *slog.Logger
	metrics  *Metrics
}

// NewWalker creates a walker from cfg.
func NewWalker(cfg Config) *Walker {
	cfg = cfg.withDefaults()
	return &Walker{
		registry: cfg.Registry,
		ignored:  cfg.IgnoredPrefixes,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

// Walk records every mapping entry reachable from instance into idx.
func (w *Walker) Walk(instance any, idx *Index) error {
	return w.WalkFunc(instance, idx, nil)
}

// WalkFunc is Walk that also calls fn once for every distinct individual it
// visits. The instance passed to fn is a pointer to the individual.
func (w *Walker) WalkFunc(instance any, idx *Index, fn func(individual any)) error {
	if IsNull(instance) {
		return ErrNilInstance
	}
	if idx == nil {
		return errors.New("walk: nil index")
	}

	wk := &walk{
		Walker:       w,
		idx:          idx,
		visited:      make(map[identity]struct{}),
		enums:        make(map[enumKey]struct{}),
		onIndividual: fn,
	}
	wk.run(reflect.ValueOf(instance))

	w.metrics.walked(wk.added)
	w.logger.Debug("Walk complete",
		"root", reflect.TypeOf(instance).String(),
		"visited", len(wk.visited)+len(wk.enums),
		"new_entries", wk.added,
		"index_size", idx.Len())
	return nil
}

// identity is the visited-set key for reference values. n distinguishes
// slices sharing a backing array but differing in length.
type identity struct {
	typ reflect.Type
	ptr uintptr
	n   int
}

type enumKey struct {
	typ reflect.Type
	val any
}

// walk is the state of one Walk call. It is not shared between goroutines.
type walk struct {
	*Walker
	idx          *Index
	visited      map[identity]struct{}
	enums        map[enumKey]struct{}
	stack        []reflect.Value
	onIndividual func(any)
	added        int
}

// run drains an explicit work stack so that graph depth never grows the
// goroutine stack.
func (wk *walk) run(root reflect.Value) {
	wk.stack = append(wk.stack, root)
	for len(wk.stack) > 0 {
		v := wk.stack[len(wk.stack)-1]
		wk.stack = wk.stack[:len(wk.stack)-1]
		wk.visit(v)
	}
}

func (wk *walk) visit(v reflect.Value) {
	for v.Kind() == reflect.Interface {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() || wk.ignoredBy(v.Type().Elem()) {
			return
		}
		if !wk.mark(identity{typ: v.Type(), ptr: v.Pointer()}) {
			return
		}
		if v.Type().Elem().Kind() == reflect.Struct {
			wk.visitStruct(v)
			return
		}
		wk.stack = append(wk.stack, v.Elem())

	case reflect.Struct:
		if wk.ignoredBy(v.Type()) {
			return
		}
		if v.CanAddr() {
			// Same identity as a pointer to this value found elsewhere.
			p := v.Addr()
			if !wk.mark(identity{typ: p.Type(), ptr: p.Pointer()}) {
				return
			}
			wk.visitStruct(p)
			return
		}
		// A non-addressable struct is a copy and cannot be part of a cycle.
		wk.visitStruct(addressable(v))

	case reflect.Slice:
		if v.IsNil() || v.Len() == 0 {
			return
		}
		if !wk.mark(identity{typ: v.Type(), ptr: v.Pointer(), n: v.Len()}) {
			return
		}
		wk.pushElements(v)

	case reflect.Array:
		wk.pushElements(v)

	case reflect.Map:
		if v.IsNil() || !wk.mark(identity{typ: v.Type(), ptr: v.Pointer()}) {
			return
		}
		iter := v.MapRange()
		for iter.Next() {
			wk.stack = append(wk.stack, iter.Value())
		}

	default:
		wk.visitEnum(v)
	}
}

func (wk *walk) pushElements(v reflect.Value) {
	// Reverse order so elements are visited first to last.
	for i := v.Len() - 1; i >= 0; i-- {
		wk.stack = append(wk.stack, v.Index(i))
	}
}

// visitStruct handles a pointer to a struct that has just been marked visited.
func (wk *walk) visitStruct(p reflect.Value) {
	t := p.Type().Elem()
	cm, ok := wk.registry.Lookup(t)
	if !ok || cm.Enum {
		return
	}

	owner := p.Interface()
	if cm.IsIndividual() {
		wk.put(Pair{Element: ClassElement(t), Annotation: OwlIndividual}, Attributes{Class: cm.Class})
		if wk.onIndividual != nil {
			wk.onIndividual(owner)
		}
	}
	wk.recordFields(cm, owner, true)
}

// visitEnum records field entries of an enum value. Enum field values are
// never descended into.
func (wk *walk) visitEnum(v reflect.Value) {
	t := v.Type()
	cm, ok := wk.registry.Lookup(t)
	if !ok || !cm.Enum || wk.ignoredBy(t) || !v.CanInterface() {
		return
	}

	key := enumKey{typ: t, val: v.Interface()}
	if _, seen := wk.enums[key]; seen {
		return
	}
	wk.enums[key] = struct{}{}

	wk.recordFields(cm, addressable(v).Interface(), false)
}

// recordFields records the non-null fields of owner declared by cm and its
// bases and, when descend is set, schedules property values for visiting.
func (wk *walk) recordFields(cm *ClassMapping, owner any, descend bool) {
	for _, base := range cm.Bases {
		if wk.ignoredBy(base.Type) {
			continue
		}
		bcm, ok := wk.registry.Lookup(base.Type)
		if !ok {
			continue
		}
		embedded := base.Get(owner)
		if IsNull(embedded) {
			continue
		}
		wk.recordFields(bcm, embedded, descend)
	}

	for _, f := range cm.Fields {
		val := f.Get(owner)
		if IsNull(val) {
			continue
		}

		el := FieldElement(cm.Type, f.Name)
		if f.Identifier {
			wk.put(Pair{Element: el, Annotation: IndividualURI},
				Attributes{Transform: f.Transform, Mode: f.Mode})
		}
		if f.HasProperty() {
			wk.put(Pair{Element: el, Annotation: OwlProperty},
				Attributes{Property: f.Property, Transform: f.Transform, Mode: f.Mode})
		}
		if f.AnonClass != "" {
			wk.put(Pair{Element: el, Annotation: AnonIndividual},
				Attributes{Class: f.AnonClass, Transform: f.Transform, Mode: f.Mode})
		}

		if descend && (f.HasProperty() || f.AnonClass != "") {
			wk.stack = append(wk.stack, reflect.ValueOf(val))
		}
	}
}

func (wk *walk) mark(id identity) bool {
	if _, seen := wk.visited[id]; seen {
		return false
	}
	wk.visited[id] = struct{}{}
	return true
}

func (wk *walk) put(p Pair, attrs Attributes) {
	if wk.idx.Put(p, attrs) {
		wk.added++
	}
}

func (wk *walk) ignoredBy(t reflect.Type) bool {
	return ignoredBy(t, wk.ignored)
}
