package mapping

import (
	"fmt"
	"sync"
)

// TermKind is the kind of an RDF term.
type TermKind int

const (
	// TermResource is a resource identified by an identifier or IRI.
	TermResource TermKind = iota
	// TermBlank is a blank node.
	TermBlank
	// TermLiteral is a literal value.
	TermLiteral
)

// Term is a statement subject or object.
type Term struct {
	Kind  TermKind
	Value string
	// Datatype is the literal datatype IRI; empty for plain literals.
	Datatype string
}

// Resource returns a resource term.
func Resource(id string) Term {
	return Term{Kind: TermResource, Value: id}
}

// Blank returns a blank node term.
func Blank(id string) Term {
	return Term{Kind: TermBlank, Value: id}
}

// Literal returns a literal term with the given datatype IRI.
func Literal(lexical, datatype string) Term {
	return Term{Kind: TermLiteral, Value: lexical, Datatype: datatype}
}

// String renders the term in N-Triples-like notation for logs and tests.
func (t Term) String() string {
	switch t.Kind {
	case TermBlank:
		return "_:" + t.Value
	case TermLiteral:
		if t.Datatype != "" {
			return fmt.Sprintf("%q^^<%s>", t.Value, t.Datatype)
		}
		return fmt.Sprintf("%q", t.Value)
	default:
		return "<" + t.Value + ">"
	}
}

// Statement is one emitted triple.
type Statement struct {
	Subject   Term
	Predicate Property
	Object    Term
}

// String renders the statement for logs and tests.
func (s Statement) String() string {
	return s.Subject.String() + " <" + s.Predicate.IRI() + "> " + s.Object.String() + " ."
}

// Sink receives emitted statements.
type Sink interface {
	Add(Statement) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Statement) error

// Add calls f(s).
func (f SinkFunc) Add(s Statement) error {
	return f(s)
}

// Collector is a Sink that keeps statements in emission order. It is safe for
// concurrent use.
type Collector struct {
	mu         sync.Mutex
	statements []Statement
}

// Add implements Sink.
func (c *Collector) Add(s Statement) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statements = append(c.statements, s)
	return nil
}

// Statements returns a copy of the collected statements.
func (c *Collector) Statements() []Statement {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Statement, len(c.statements))
	copy(out, c.statements)
	return out
}

// Len returns the number of collected statements.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.statements)
}
