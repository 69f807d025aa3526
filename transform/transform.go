// Package transform provides the value transforms applied to mapped fields
// before they are serialized into RDF.
//
// A transform is a pure function from a raw value to its serialized form.
// Transforms are selected by ID from a Registry rather than constructed from
// type references, so a mapping table only names the transform it wants.
package transform

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ID names a registered transform.
type ID string

// Built-in transform IDs.
const (
	// Identity returns the value unchanged.
	Identity ID = "identity"
	// DashSuffix returns the part of a string after its last dash.
	// "abcde-fghij" becomes "fghij".
	DashSuffix ID = "dash-suffix"
	// LocalName returns the segment after the last '/' or '#'.
	LocalName ID = "local-name"
	// Lowercase lowercases a string value.
	Lowercase ID = "lowercase"
	// Text converts any value to its fmt string form.
	Text ID = "string"
	// RFC3339 parses an RFC 3339 timestamp string into a time.Time.
	RFC3339 ID = "rfc3339"
)

// Mode selects what a transform is applied to.
type Mode int

const (
	// ModeField applies the transform to the field's raw value.
	ModeField Mode = iota
	// ModeClass applies the transform to the enclosing instance.
	ModeClass
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeField:
		return "field"
	case ModeClass:
		return "class"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ErrUnknownTransform is returned by Lookup for an unregistered ID.
var ErrUnknownTransform = errors.New("unknown transform")

// Transform converts a raw value into the value that gets serialized.
type Transform interface {
	Apply(in any) (any, error)
}

// Func adapts an ordinary function to the Transform interface.
type Func func(in any) (any, error)

// Apply calls f(in).
func (f Func) Apply(in any) (any, error) {
	return f(in)
}

// Registry maps transform IDs to implementations. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	transforms map[ID]Transform
}

// NewRegistry returns a registry pre-loaded with the built-in transforms.
func NewRegistry() *Registry {
	r := &Registry{transforms: make(map[ID]Transform)}
	r.Register(Identity, Func(identity))
	r.Register(DashSuffix, Func(dashSuffix))
	r.Register(LocalName, Func(localName))
	r.Register(Lowercase, Func(lowercase))
	r.Register(Text, Func(text))
	r.Register(RFC3339, Func(rfc3339))
	return r
}

// Register adds or replaces the transform for id.
func (r *Registry) Register(id ID, t Transform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transforms[id] = t
}

// Lookup returns the transform for id. The empty ID resolves to Identity.
func (r *Registry) Lookup(id ID) (Transform, error) {
	if id == "" {
		id = Identity
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.transforms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransform, id)
	}
	return t, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id ID) bool {
	_, err := r.Lookup(id)
	return err == nil
}

// IDs returns the registered transform IDs in sorted order.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ID, 0, len(r.transforms))
	for id := range r.transforms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func identity(in any) (any, error) {
	return in, nil
}

func dashSuffix(in any) (any, error) {
	s, err := asString(in)
	if err != nil {
		return nil, err
	}
	if i := strings.LastIndex(s, "-"); i >= 0 {
		return s[i+1:], nil
	}
	return s, nil
}

func localName(in any) (any, error) {
	s, err := asString(in)
	if err != nil {
		return nil, err
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndexAny(s, "/#"); i >= 0 {
		return s[i+1:], nil
	}
	return s, nil
}

func lowercase(in any) (any, error) {
	s, err := asString(in)
	if err != nil {
		return nil, err
	}
	return strings.ToLower(s), nil
}

func text(in any) (any, error) {
	if s, ok := in.(fmt.Stringer); ok {
		return s.String(), nil
	}
	return fmt.Sprint(in), nil
}

func rfc3339(in any) (any, error) {
	switch v := in.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	}
	s, err := asString(in)
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// asString accepts strings, named string types and fmt.Stringers.
func asString(in any) (string, error) {
	switch v := in.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case nil:
		return "", fmt.Errorf("expected string, got nil")
	}
	// Named string types (enums) are accepted by their underlying kind.
	if s, ok := stringKind(in); ok {
		return s, nil
	}
	return "", fmt.Errorf("expected string, got %T", in)
}
