// Package export collects mapped RDF statements into a graph and serializes
// it as Turtle, N-Triples or JSON-LD.
package export

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/c360studio/osfipm/mapping"
	vocab "github.com/c360studio/osfipm/vocabulary/osf"
)

// Format specifies the output serialization format.
type Format string

const (
	// FormatTurtle produces Turtle (.ttl) output.
	FormatTurtle Format = "turtle"

	// FormatNTriples produces N-Triples (.nt) output.
	FormatNTriples Format = "ntriples"

	// FormatJSONLD produces JSON-LD (.jsonld) output.
	FormatJSONLD Format = "jsonld"
)

const (
	rdfType          = mapping.RDFNamespace + "type"
	owlNamedIndiv    = mapping.OWLNamespace + "NamedIndividual"
	owlObjectProp    = mapping.OWLNamespace + "ObjectProperty"
	owlDatatypeProp  = mapping.OWLNamespace + "DatatypeProperty"
	defaultEntityIRI = vocab.EntityNamespace
)

// Triple is a statement with subject and object resolved to full IRIs.
type Triple struct {
	Subject   mapping.Term
	Predicate string
	Object    mapping.Term
}

// Graph is a set of RDF statements. It implements mapping.Sink and is safe
// for concurrent use. Duplicate statements are stored once; insertion order
// is kept for serialization.
type Graph struct {
	mu       sync.Mutex
	profile  ProfileConfig
	base     string
	prefixes map[string]string

	triples []Triple
	seen    map[Triple]struct{}
	// props remembers the kind of every predicate used.
	props map[string]mapping.PropertyKind
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithProfile sets the export profile.
func WithProfile(p Profile) GraphOption {
	return func(g *Graph) {
		g.profile = GetProfileConfig(p)
	}
}

// WithBase sets the IRI prefix for relative resource identifiers.
func WithBase(base string) GraphOption {
	return func(g *Graph) {
		g.base = base
	}
}

// WithPrefix adds a namespace prefix used by Turtle and JSON-LD.
func WithPrefix(prefix, iri string) GraphOption {
	return func(g *Graph) {
		g.prefixes[prefix] = iri
	}
}

// NewGraph creates an empty graph with the minimal profile and the OSF
// entity namespace as base.
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		profile:  GetProfileConfig(ProfileMinimal),
		base:     defaultEntityIRI,
		prefixes: defaultPrefixes(),
		seen:     make(map[Triple]struct{}),
		props:    make(map[string]mapping.PropertyKind),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// defaultPrefixes returns the standard namespace prefixes for RDF export.
func defaultPrefixes() map[string]string {
	return map[string]string{
		"rdf":  mapping.RDFNamespace,
		"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
		"owl":  mapping.OWLNamespace,
		"xsd":  mapping.XSDNamespace,
		"osf":  vocab.Namespace,
	}
}

// Add implements mapping.Sink.
func (g *Graph) Add(s mapping.Statement) error {
	if s.Subject.Kind == mapping.TermLiteral {
		return fmt.Errorf("literal subject %s", s.Subject)
	}
	if s.Predicate.IsZero() {
		return fmt.Errorf("statement about %s has no predicate", s.Subject)
	}

	t := Triple{
		Subject:   g.resolve(s.Subject),
		Predicate: s.Predicate.IRI(),
		Object:    g.resolve(s.Object),
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if t.Predicate != rdfType {
		g.props[t.Predicate] = s.Predicate.Kind
	}
	g.insert(t)
	if g.profile.NamedIndividuals && t.Predicate == rdfType && t.Subject.Kind == mapping.TermResource {
		g.insert(Triple{Subject: t.Subject, Predicate: rdfType, Object: mapping.Resource(owlNamedIndiv)})
	}
	return nil
}

func (g *Graph) insert(t Triple) {
	if _, dup := g.seen[t]; dup {
		return
	}
	g.seen[t] = struct{}{}
	g.triples = append(g.triples, t)
}

// resolve expands relative resource identifiers against the base.
func (g *Graph) resolve(t mapping.Term) mapping.Term {
	if t.Kind == mapping.TermResource && !isAbsolute(t.Value) {
		t.Value = g.base + t.Value
	}
	return t
}

func isAbsolute(id string) bool {
	u, err := url.Parse(id)
	return err == nil && u.IsAbs()
}

// Len returns the number of distinct triples, profile additions included.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.triples)
}

// Triples returns a snapshot of the graph including the profile's property
// declarations.
func (g *Graph) Triples() []Triple {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Triple, len(g.triples), len(g.triples)+len(g.props))
	copy(out, g.triples)
	if g.profile.PropertyDeclarations {
		for _, p := range sortedKeys(g.props) {
			class := owlDatatypeProp
			if g.props[p] == mapping.ObjectProperty {
				class = owlObjectProp
			}
			out = append(out, Triple{Subject: mapping.Resource(p), Predicate: rdfType, Object: mapping.Resource(class)})
		}
	}
	return out
}

// Has reports whether the graph contains the statement after identifier
// resolution.
func (g *Graph) Has(s mapping.Statement) bool {
	t := Triple{Subject: g.resolve(s.Subject), Predicate: s.Predicate.IRI(), Object: g.resolve(s.Object)}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.seen[t]
	return ok
}

// IRI returns the full IRI the graph uses for the identifier id.
func (g *Graph) IRI(id string) string {
	return g.resolve(mapping.Resource(id)).Value
}

// Write serializes the graph to w.
func (g *Graph) Write(w io.Writer, format Format) error {
	triples := g.Triples()
	prefixes := g.prefixSnapshot()

	var err error
	switch format {
	case FormatTurtle:
		tw := NewTurtleWriter(w)
		for p, iri := range prefixes {
			tw.SetPrefix(p, iri)
		}
		err = tw.Write(triples)
	case FormatNTriples:
		err = NewNTriplesWriter(w).Write(triples)
	case FormatJSONLD:
		jw := NewJSONLDWriter(w)
		jw.SetContext(prefixes)
		err = jw.Write(triples)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", format, err)
	}
	return nil
}

// Export serializes the graph to a string.
func (g *Graph) Export(format Format) (string, error) {
	var sb strings.Builder
	if err := g.Write(&sb, format); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (g *Graph) prefixSnapshot() map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]string, len(g.prefixes)+1)
	for k, v := range g.prefixes {
		out[k] = v
	}
	if _, ok := out["entity"]; !ok && g.base != "" {
		out["entity"] = g.base
	}
	return out
}

var _ mapping.Sink = (*Graph)(nil)
