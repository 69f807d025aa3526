package mapping

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
)

// Projector turns the mapped properties of an instance into statements.
type Projector struct {
	resolver *Resolver
	blank    func() string
	logger   *slog.Logger
	metrics  *Metrics
}

// NewProjector creates a projector from cfg.
func NewProjector(cfg Config) *Projector {
	cfg = cfg.withDefaults()
	return &Projector{
		resolver: NewResolver(cfg),
		blank:    cfg.BlankNodeID,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

// Project emits one statement per non-null mapped property value of
// instance, with subject as the statement subject. Collections are expanded
// and each element is classified on its own: anonymous individuals become
// blank nodes, values whose type is a mapped individual become resource
// references, and everything else becomes a typed literal. Registered enum
// values also emit their own mapped properties on subject.
//
// Statements reach sink only when the whole projection succeeds.
func (p *Projector) Project(instance any, subject string, idx *Index, sink Sink) error {
	if IsNull(instance) {
		return ErrNilInstance
	}
	if subject == "" {
		return errors.New("project: empty subject")
	}
	if idx == nil || sink == nil {
		return errors.New("project: nil index or sink")
	}
	var staged Collector
	if err := p.project(instance, Resource(subject), idx, &staged, make(map[identity]struct{})); err != nil {
		return err
	}
	return p.flush(sink, staged.Statements())
}

func (p *Projector) project(instance any, subject Term, idx *Index, sink Sink, active map[identity]struct{}) error {
	ptr, t := pointerOf(instance)
	cm, ok := p.resolver.registry.Lookup(t)
	if !ok {
		return configError(t, "", "type is not mapped")
	}
	owner := ptr.Interface()

	for _, bf := range p.resolver.fieldsOf(cm, owner) {
		el := bf.element()
		attrs, ok := idx.Get(Pair{Element: el, Annotation: OwlProperty})
		if !ok {
			continue
		}
		raw := bf.field.Get(bf.owner)
		if IsNull(raw) {
			continue
		}
		anon, isAnon := idx.Get(Pair{Element: el, Annotation: AnonIndividual})

		for _, elem := range expand(raw) {
			if IsNull(elem) {
				continue
			}
			val, err := p.resolver.apply(bf.cm.Type, bf.field.Name, attrs, elem, owner)
			if err != nil {
				return err
			}
			if IsNull(val) {
				continue
			}

			if isAnon {
				if err := p.anonymous(subject, attrs.Property, anon.Class, val, idx, sink, active); err != nil {
					return err
				}
				continue
			}

			obj, err := p.object(val, idx)
			if err != nil {
				return err
			}
			if err := p.emit(sink, Statement{Subject: subject, Predicate: attrs.Property, Object: obj}); err != nil {
				return err
			}
			// Enum properties are emitted one level deep only.
			if cm.Enum {
				continue
			}
			if vcm, ok := p.resolver.registry.Lookup(reflect.TypeOf(val)); ok && vcm.Enum {
				if err := p.project(val, subject, idx, sink, active); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// object classifies a transformed value as a resource reference or literal.
// Classification uses the registered type of the value, so it never depends
// on the order in which individuals were discovered.
func (p *Projector) object(val any, idx *Index) (Term, error) {
	if vcm, ok := p.resolver.registry.Lookup(reflect.TypeOf(val)); ok && vcm.IsIndividual() {
		id, err := p.resolver.Resolve(val, idx)
		if err != nil {
			return Term{}, err
		}
		return Resource(id), nil
	}
	return LiteralFor(val), nil
}

// anonymous emits a blank node for val typed with class and projects val's
// own properties under it.
func (p *Projector) anonymous(subject Term, prop Property, class string, val any, idx *Index, sink Sink, active map[identity]struct{}) error {
	node := Blank(p.blank())
	if err := p.emit(sink, Statement{Subject: subject, Predicate: prop, Object: node}); err != nil {
		return err
	}
	if err := p.emit(sink, Statement{Subject: node, Predicate: RDFType, Object: Resource(class)}); err != nil {
		return err
	}

	vcm, ok := p.resolver.registry.Lookup(reflect.TypeOf(val))
	if !ok || vcm.Enum {
		return nil
	}

	rv := reflect.ValueOf(val)
	if rv.Kind() == reflect.Pointer {
		id := identity{typ: rv.Type(), ptr: rv.Pointer()}
		if _, open := active[id]; open {
			p.logger.Warn("Anonymous individual refers back to itself, not expanding",
				"type", rv.Type().String(), "property", prop.Name)
			return nil
		}
		active[id] = struct{}{}
		defer delete(active, id)
	}
	return p.project(val, node, idx, sink, active)
}

// emit checks s against its predicate kind and stages it in sink.
func (p *Projector) emit(sink Sink, s Statement) error {
	switch {
	case s.Predicate.Kind == ObjectProperty && s.Object.Kind == TermLiteral:
		p.logger.Warn("Literal value for object property",
			"property", s.Predicate.Name, "value", s.Object.Value)
	case s.Predicate.Kind == DatatypeProperty && s.Object.Kind != TermLiteral:
		p.logger.Warn("Resource value for datatype property",
			"property", s.Predicate.Name, "value", s.Object.Value)
	}
	if err := sink.Add(s); err != nil {
		p.metrics.failed("sink")
		return fmt.Errorf("emit %s: %w", s.Predicate.Name, err)
	}
	return nil
}

// flush hands staged statements to sink.
func (p *Projector) flush(sink Sink, staged []Statement) error {
	for _, s := range staged {
		if err := sink.Add(s); err != nil {
			p.metrics.failed("sink")
			return fmt.Errorf("emit %s: %w", s.Predicate.Name, err)
		}
		p.metrics.emitted(s.Object)
	}
	return nil
}
