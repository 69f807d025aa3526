// Package graph converts mapped OSF graphs into semstreams entity ingest
// messages so a registration can be loaded into a knowledge graph.
package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/c360studio/semstreams/message"

	"github.com/c360studio/osfipm/export"
	"github.com/c360studio/osfipm/mapping"
	vocab "github.com/c360studio/osfipm/vocabulary/osf"
)

// GraphIngestSubject is the JetStream subject graph ingestion consumes.
const GraphIngestSubject = "graph.ingest.entity"

// DefaultSource is the triple source recorded when none is configured.
const DefaultSource = "osfipm.ipm"

// EntityID generates a consistent entity ID for an OSF individual.
// Format: osf.io.registry.ipm.<kind>.<id>
func EntityID(kind, id string) string {
	if kind == "" {
		kind = "entity"
	}
	return fmt.Sprintf("osf.io.registry.ipm.%s.%s", sanitize(kind), sanitize(id))
}

// Converter turns export triples into entity payloads, one per
// subject. Predicates are translated back to their dotted vocabulary names;
// statements whose predicate has no name, such as OWL declarations about
// the ontology itself, are dropped.
type Converter struct {
	Source string
	Now    func() time.Time

	names map[string]string
}

// NewConverter creates a converter over the OSF vocabulary.
func NewConverter(source string) *Converter {
	if source == "" {
		source = DefaultSource
	}
	names := make(map[string]string)
	for name, p := range vocab.Properties() {
		names[p.IRI()] = name
	}
	return &Converter{Source: source, Now: time.Now, names: names}
}

// Convert groups triples by subject. Payloads are ordered by entity ID and
// keep the input order of their triples.
func (c *Converter) Convert(triples []export.Triple) []*EntityPayload {
	now := c.Now()
	kinds := classify(triples)

	byID := make(map[string]*EntityPayload)
	for _, t := range triples {
		subject, ok := entityOf(t.Subject, kinds)
		if !ok {
			continue
		}
		predicate, ok := c.names[t.Predicate]
		if !ok {
			continue
		}

		tr := message.Triple{
			Subject:    subject,
			Predicate:  predicate,
			Source:     c.Source,
			Timestamp:  now,
			Confidence: 1.0,
		}
		if t.Predicate == mapping.RDFType.IRI() {
			tr.Object = t.Object.Value
		} else if ref, ok := entityOf(t.Object, kinds); ok {
			tr.Object = ref
		} else {
			tr.Object, tr.Datatype = literal(t.Object)
		}

		p, ok := byID[subject]
		if !ok {
			p = &EntityPayload{EntityID_: subject, UpdatedAt: now}
			byID[subject] = p
		}
		p.TripleData = append(p.TripleData, tr)
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*EntityPayload, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}

// classify maps every typed subject to the local name of its first OSF class.
func classify(triples []export.Triple) map[mapping.Term]string {
	kinds := make(map[mapping.Term]string)
	for _, t := range triples {
		if t.Predicate != mapping.RDFType.IRI() || !strings.HasPrefix(t.Object.Value, vocab.Namespace) {
			continue
		}
		if _, ok := kinds[t.Subject]; !ok {
			kinds[t.Subject] = strings.ToLower(strings.TrimPrefix(t.Object.Value, vocab.Namespace))
		}
	}
	return kinds
}

// entityOf returns the entity ID for OSF entity IRIs and blank nodes.
func entityOf(t mapping.Term, kinds map[mapping.Term]string) (string, bool) {
	switch t.Kind {
	case mapping.TermBlank:
		return EntityID(kinds[t], "b-"+t.Value), true
	case mapping.TermResource:
		if !strings.HasPrefix(t.Value, vocab.EntityNamespace) || strings.HasPrefix(t.Value, vocab.Namespace) {
			return "", false
		}
		id := strings.Trim(strings.TrimPrefix(t.Value, vocab.EntityNamespace), "/")
		if id == "" {
			return "", false
		}
		return EntityID(kinds[t], id), true
	}
	return "", false
}

// literal converts a literal term to a typed Go value plus an xsd datatype
// hint. Values that do not parse stay strings.
func literal(t mapping.Term) (any, string) {
	if t.Kind == mapping.TermResource {
		return t.Value, "xsd:anyURI"
	}
	hint := ""
	if strings.HasPrefix(t.Datatype, mapping.XSDNamespace) {
		hint = "xsd:" + strings.TrimPrefix(t.Datatype, mapping.XSDNamespace)
	}
	switch t.Datatype {
	case mapping.XSDBoolean:
		if b, err := strconv.ParseBool(t.Value); err == nil {
			return b, hint
		}
	case mapping.XSDInteger:
		if n, err := strconv.ParseInt(t.Value, 10, 64); err == nil {
			return n, hint
		}
	case mapping.XSDDouble:
		if f, err := strconv.ParseFloat(t.Value, 64); err == nil {
			return f, hint
		}
	}
	return t.Value, hint
}

// sanitize keeps entity ID parts free of separators.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, s)
}
