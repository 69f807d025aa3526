package mapping

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/c360studio/osfipm/transform"
)

// Resolver computes subject identifiers from a populated index.
type Resolver struct {
	registry   *Registry
	transforms *transform.Registry
}

// NewResolver creates a resolver from cfg.
func NewResolver(cfg Config) *Resolver {
	cfg = cfg.withDefaults()
	return &Resolver{registry: cfg.Registry, transforms: cfg.Transforms}
}

// boundField is a field mapping together with the owner it is read from.
// Inherited fields are bound to the embedded base value.
type boundField struct {
	cm    *ClassMapping
	field FieldMapping
	owner any
}

func (b boundField) element() Element {
	return FieldElement(b.cm.Type, b.field.Name)
}

// fieldsOf returns the fields of cm, bases first, bound to their owners.
func (r *Resolver) fieldsOf(cm *ClassMapping, owner any) []boundField {
	var out []boundField
	for _, base := range cm.Bases {
		bcm, ok := r.registry.Lookup(base.Type)
		if !ok {
			continue
		}
		embedded := base.Get(owner)
		if IsNull(embedded) {
			continue
		}
		out = append(out, r.fieldsOf(bcm, embedded)...)
	}
	for _, f := range cm.Fields {
		out = append(out, boundField{cm: cm, field: f, owner: owner})
	}
	return out
}

// Resolve returns the subject identifier of instance. Exactly one of the
// instance's fields, inherited ones included, must be recorded in idx as its
// identifier, and that field must not be null.
func (r *Resolver) Resolve(instance any, idx *Index) (string, error) {
	if IsNull(instance) {
		return "", ErrNilInstance
	}
	p, t := pointerOf(instance)
	cm, ok := r.registry.Lookup(t)
	if !ok {
		return "", configError(t, "", "type is not mapped")
	}
	if cm.Enum {
		return "", configError(t, "", "enum values have no identifier")
	}

	owner := p.Interface()
	fields := r.fieldsOf(cm, owner)

	var matches []boundField
	for _, bf := range fields {
		if idx.Has(Pair{Element: bf.element(), Annotation: IndividualURI}) {
			matches = append(matches, bf)
		}
	}

	switch len(matches) {
	case 0:
		return "", r.missingIdentifier(t, fields)
	case 1:
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.field.Name
		}
		return "", configError(t, "", "ambiguous identifier fields: %s", strings.Join(names, ", "))
	}

	id := matches[0]
	attrs, _ := idx.Get(Pair{Element: id.element(), Annotation: IndividualURI})
	raw := id.field.Get(id.owner)
	if IsNull(raw) {
		return "", configError(t, id.field.Name, "identifier is null")
	}

	out, err := r.apply(t, id.field.Name, attrs, raw, owner)
	if err != nil {
		return "", err
	}
	if IsNull(out) {
		return "", configError(t, id.field.Name, "identifier transform produced an empty value")
	}
	s := stringify(out)
	if s == "" {
		return "", configError(t, id.field.Name, "identifier transform produced an empty value")
	}
	return s, nil
}

// missingIdentifier explains why no identifier entry was found.
func (r *Resolver) missingIdentifier(t reflect.Type, fields []boundField) error {
	for _, bf := range fields {
		if !bf.field.Identifier {
			continue
		}
		if IsNull(bf.field.Get(bf.owner)) {
			return configError(t, bf.field.Name, "identifier is null")
		}
		return configError(t, bf.field.Name, "identifier not present in index; walk the instance first")
	}
	return configError(t, "", "no identifier field declared")
}

// apply runs the transform described by attrs. Mode CLASS passes the
// enclosing instance instead of the field value.
func (r *Resolver) apply(t reflect.Type, field string, attrs Attributes, value, owner any) (any, error) {
	tr, err := r.transforms.Lookup(attrs.Transform)
	if err != nil {
		return nil, &ConfigurationError{Type: t, Field: field, Reason: "transform cannot be resolved", Err: err}
	}
	in := value
	if attrs.Mode == transform.ModeClass {
		in = owner
	}
	out, err := tr.Apply(in)
	if err != nil {
		return nil, fmt.Errorf("apply transform %q to %s.%s: %w", attrs.Transform, t, field, err)
	}
	return out, nil
}
