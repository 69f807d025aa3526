package mapping

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/c360studio/osfipm/transform"
)

// Getter reads a mapped value from an owner. The owner is always a pointer to
// the mapped type.
type Getter func(owner any) any

// FieldMapping is the mapping table row for one field.
type FieldMapping struct {
	Name       string
	Get        Getter
	Identifier bool
	Property   Property
	AnonClass  string
	Transform  transform.ID
	Mode       transform.Mode
}

// HasProperty reports whether the field maps to an RDF property.
func (f FieldMapping) HasProperty() bool {
	return !f.Property.IsZero()
}

// Base links a type to an embedded base type whose fields it inherits.
type Base struct {
	Type reflect.Type
	// Get returns a pointer to the embedded value.
	Get Getter
}

// ClassMapping is the mapping table for one Go type.
type ClassMapping struct {
	Type reflect.Type
	// Class is the OWL class IRI; empty for Struct and Enum mappings.
	Class  string
	Enum   bool
	Bases  []Base
	Fields []FieldMapping
}

// IsIndividual reports whether instances of the type are OWL individuals.
func (c *ClassMapping) IsIndividual() bool {
	return c.Class != "" && !c.Enum
}

// Field returns the field mapping declared directly on this type.
func (c *ClassMapping) Field(name string) (FieldMapping, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldMapping{}, false
}

// Definition produces a ClassMapping. Builders returned by Individual, Struct
// and Enum implement it.
type Definition interface {
	Build() (*ClassMapping, error)
}

// Registry holds the mapping tables. Build it once at startup; lookups are
// safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	classes map[reflect.Type]*ClassMapping
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[reflect.Type]*ClassMapping)}
}

// Register adds the given definitions. A type may only be registered once.
func (r *Registry) Register(defs ...Definition) error {
	var errs []error
	for _, def := range defs {
		cm, err := def.Build()
		if err != nil {
			errs = append(errs, err)
			continue
		}

		r.mu.Lock()
		if _, exists := r.classes[cm.Type]; exists {
			errs = append(errs, configError(cm.Type, "", "type registered twice"))
		} else {
			r.classes[cm.Type] = cm
		}
		r.mu.Unlock()
	}
	return errors.Join(errs...)
}

// MustRegister is Register that panics on error. Use it from init code.
func (r *Registry) MustRegister(defs ...Definition) {
	if err := r.Register(defs...); err != nil {
		panic(err)
	}
}

// Lookup returns the mapping for t. Pointer types resolve to their element.
func (r *Registry) Lookup(t reflect.Type) (*ClassMapping, bool) {
	if t == nil {
		return nil, false
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	cm, ok := r.classes[t]
	return cm, ok
}

// Types returns the registered types sorted by name.
func (r *Registry) Types() []reflect.Type {
	r.mu.RLock()
	types := make([]reflect.Type, 0, len(r.classes))
	for t := range r.classes {
		types = append(types, t)
	}
	r.mu.RUnlock()

	sort.Slice(types, func(i, j int) bool { return types[i].String() < types[j].String() })
	return types
}

// Validate checks every declared transform against transforms and every
// declared property against props (when props is non-nil).
func (r *Registry) Validate(transforms *transform.Registry, props PropertySet) error {
	var errs []error
	for _, t := range r.Types() {
		cm, _ := r.Lookup(t)
		for _, b := range cm.Bases {
			if _, ok := r.Lookup(b.Type); !ok {
				errs = append(errs, configError(t, "", "base type %s is not registered", b.Type))
			}
		}
		for _, f := range cm.Fields {
			if transforms != nil && !transforms.Has(f.Transform) {
				errs = append(errs, &ConfigurationError{
					Type: t, Field: f.Name, Reason: "transform cannot be resolved",
					Err: fmt.Errorf("%w: %q", transform.ErrUnknownTransform, f.Transform),
				})
			}
			if props != nil && f.HasProperty() {
				if _, ok := props.Lookup(f.Property.Name); !ok {
					errs = append(errs, configError(t, f.Name, "property %q is not in the property set", f.Property.Name))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// FieldOption configures a field mapping.
type FieldOption func(*FieldMapping)

// WithTransform sets the field's transform.
func WithTransform(id transform.ID) FieldOption {
	return func(f *FieldMapping) { f.Transform = id }
}

// WithMode sets the transform mode.
func WithMode(m transform.Mode) FieldOption {
	return func(f *FieldMapping) { f.Mode = m }
}

// Builder declares the mapping table for T.
type Builder[T any] struct {
	cm   *ClassMapping
	errs []error
}

// Individual declares T as an individual of the OWL class with IRI class.
// T must be a struct type.
func Individual[T any](class string) *Builder[T] {
	b := newBuilder[T]()
	if class == "" {
		b.errs = append(b.errs, configError(b.cm.Type, "", "individual class IRI is empty"))
	}
	if b.cm.Type.Kind() != reflect.Struct {
		b.errs = append(b.errs, configError(b.cm.Type, "", "individuals must be struct types"))
	}
	b.cm.Class = class
	return b
}

// Struct declares a struct type that carries mapped fields but is not an
// individual, such as a base type embedded in individuals.
func Struct[T any]() *Builder[T] {
	b := newBuilder[T]()
	if b.cm.Type.Kind() != reflect.Struct {
		b.errs = append(b.errs, configError(b.cm.Type, "", "Struct requires a struct type"))
	}
	return b
}

// Enum declares an enum type. Enum values carry field mappings only and are
// never walked into.
func Enum[T any]() *Builder[T] {
	b := newBuilder[T]()
	switch b.cm.Type.Kind() {
	case reflect.Struct, reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map,
		reflect.Array, reflect.Func, reflect.Chan:
		b.errs = append(b.errs, configError(b.cm.Type, "", "enums must be scalar named types"))
	}
	b.cm.Enum = true
	return b
}

func newBuilder[T any]() *Builder[T] {
	t := reflect.TypeFor[T]()
	b := &Builder[T]{cm: &ClassMapping{Type: t}}
	if t.Kind() == reflect.Pointer {
		b.errs = append(b.errs, configError(t, "", "register the element type, not a pointer"))
	}
	return b
}

// Identifier declares the field supplying the subject identifier.
func (b *Builder[T]) Identifier(name string, get func(*T) any, opts ...FieldOption) *Builder[T] {
	f := b.field(name, get)
	if f == nil {
		return b
	}
	f.Identifier = true
	b.apply(f, opts)
	return b
}

// Property maps the field to prop.
func (b *Builder[T]) Property(name string, prop Property, get func(*T) any, opts ...FieldOption) *Builder[T] {
	f := b.field(name, get)
	if f == nil {
		return b
	}
	if prop.IsZero() {
		b.errs = append(b.errs, configError(b.cm.Type, name, "property descriptor is empty"))
		return b
	}
	if f.HasProperty() && f.Property != prop {
		b.errs = append(b.errs, configError(b.cm.Type, name, "field mapped to two properties"))
		return b
	}
	f.Property = prop
	b.apply(f, opts)
	return b
}

// Anonymous maps the field to prop with anonymous individuals of class as
// objects.
func (b *Builder[T]) Anonymous(name string, prop Property, class string, get func(*T) any, opts ...FieldOption) *Builder[T] {
	b.Property(name, prop, get, opts...)
	if class == "" {
		b.errs = append(b.errs, configError(b.cm.Type, name, "anonymous individual class IRI is empty"))
		return b
	}
	if f := b.find(name); f != nil {
		f.AnonClass = class
	}
	return b
}

// Extends declares that T embeds base and inherits its mapped fields. get
// returns a pointer to the embedded value.
func (b *Builder[T]) Extends(base reflect.Type, get func(*T) any) *Builder[T] {
	if base == nil || get == nil {
		b.errs = append(b.errs, configError(b.cm.Type, "", "Extends needs a base type and a getter"))
		return b
	}
	b.cm.Bases = append(b.cm.Bases, Base{
		Type: base,
		Get:  func(owner any) any { return get(owner.(*T)) },
	})
	return b
}

// Build implements Definition.
func (b *Builder[T]) Build() (*ClassMapping, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	return b.cm, nil
}

func (b *Builder[T]) field(name string, get func(*T) any) *FieldMapping {
	if name == "" || get == nil {
		b.errs = append(b.errs, configError(b.cm.Type, name, "field needs a name and a getter"))
		return nil
	}
	if f := b.find(name); f != nil {
		return f
	}
	b.cm.Fields = append(b.cm.Fields, FieldMapping{
		Name:      name,
		Get:       func(owner any) any { return get(owner.(*T)) },
		Transform: transform.Identity,
	})
	return &b.cm.Fields[len(b.cm.Fields)-1]
}

func (b *Builder[T]) find(name string) *FieldMapping {
	for i := range b.cm.Fields {
		if b.cm.Fields[i].Name == name {
			return &b.cm.Fields[i]
		}
	}
	return nil
}

func (b *Builder[T]) apply(f *FieldMapping, opts []FieldOption) {
	for _, opt := range opts {
		opt(f)
	}
}
