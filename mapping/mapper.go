package mapping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"golang.org/x/sync/errgroup"
)

// Mapper runs the full pipeline: walk every root, then resolve and project
// every individual found.
type Mapper struct {
	cfg       Config
	walker    *Walker
	resolver  *Resolver
	projector *Projector
	logger    *slog.Logger
	metrics   *Metrics
}

// NewMapper validates cfg.Registry and returns a mapper.
func NewMapper(cfg Config) (*Mapper, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Registry.Validate(cfg.Transforms, cfg.Properties); err != nil {
		return nil, fmt.Errorf("validate mapping registry: %w", err)
	}
	return &Mapper{
		cfg:       cfg,
		walker:    NewWalker(cfg),
		resolver:  NewResolver(cfg),
		projector: NewProjector(cfg),
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}, nil
}

// Walk records the entries reachable from instance into idx.
func (m *Mapper) Walk(instance any, idx *Index) error {
	return m.walker.Walk(instance, idx)
}

// Resolve returns the subject identifier of instance.
func (m *Mapper) Resolve(instance any, idx *Index) (string, error) {
	return m.resolver.Resolve(instance, idx)
}

// Project emits the property statements of instance under subject.
func (m *Mapper) Project(instance any, subject string, idx *Index, sink Sink) error {
	return m.projector.Project(instance, subject, idx, sink)
}

// WalkAll walks every root into idx and returns the distinct individuals
// found, in root order. Roots are walked concurrently, at most cfg.Workers at
// a time, each with its own visited set.
func (m *Mapper) WalkAll(ctx context.Context, roots []any, idx *Index) ([]any, error) {
	if idx == nil {
		return nil, errors.New("walk all: nil index")
	}
	found := make([][]any, len(roots))

	g, ctx := errgroup.WithContext(ctx)
	if m.cfg.Workers > 0 {
		g.SetLimit(m.cfg.Workers)
	}
	for i, root := range roots {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return m.walker.WalkFunc(root, idx, func(ind any) {
				found[i] = append(found[i], ind)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("walk roots: %w", err)
	}

	seen := make(map[identity]struct{})
	var individuals []any
	for _, list := range found {
		for _, ind := range list {
			v := reflect.ValueOf(ind)
			id := identity{typ: v.Type(), ptr: v.Pointer()}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			individuals = append(individuals, ind)
		}
	}
	return individuals, nil
}

// MapAll walks every root to completion before projecting, so that
// classification never depends on discovery order, then emits the statements
// of every individual to sink. It returns the populated index.
func (m *Mapper) MapAll(ctx context.Context, roots []any, sink Sink) (*Index, error) {
	start := time.Now()
	defer m.metrics.observe(start)

	idx := NewIndex()
	individuals, err := m.WalkAll(ctx, roots, idx)
	if err != nil {
		return nil, err
	}

	skipped := 0
	for _, ind := range individuals {
		if err := ctx.Err(); err != nil {
			return idx, err
		}
		err := m.Individual(ind, idx, sink)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrConfiguration) {
			m.metrics.failed("configuration")
			if m.cfg.ContinueOnError {
				skipped++
				m.logger.Warn("Skipping individual", "type", reflect.TypeOf(ind).String(), "error", err)
				continue
			}
		}
		return idx, err
	}

	m.logger.Info("Mapping complete",
		"roots", len(roots),
		"individuals", len(individuals),
		"skipped", skipped,
		"index_size", idx.Len(),
		"duration", time.Since(start))
	return idx, nil
}

// Individual emits the rdf:type statement of instance followed by its
// projected properties. Either all of them reach sink or, on error, none.
func (m *Mapper) Individual(instance any, idx *Index, sink Sink) error {
	if IsNull(instance) {
		return ErrNilInstance
	}
	_, t := pointerOf(instance)
	cm, ok := m.cfg.Registry.Lookup(t)
	if !ok || !cm.IsIndividual() {
		return configError(t, "", "type is not a mapped individual")
	}

	id, err := m.resolver.Resolve(instance, idx)
	if err != nil {
		return err
	}
	// Stage the individual so a failure leaves nothing of it in sink.
	var staged Collector
	if err := m.projector.emit(&staged, Statement{Subject: Resource(id), Predicate: RDFType, Object: Resource(cm.Class)}); err != nil {
		return err
	}
	if err := m.projector.project(instance, Resource(id), idx, &staged, make(map[identity]struct{})); err != nil {
		return err
	}
	if err := m.projector.flush(sink, staged.Statements()); err != nil {
		return err
	}
	m.metrics.projected()
	return nil
}
