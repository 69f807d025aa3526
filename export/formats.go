package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/c360studio/osfipm/mapping"
)

// FormatInfo provides metadata about an export format.
type FormatInfo struct {
	// Name is the format identifier.
	Name Format

	// MIMEType is the standard MIME type.
	MIMEType string

	// Extension is the file extension (with dot).
	Extension string

	// Description describes the format.
	Description string
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatTurtle: {
		Name:        FormatTurtle,
		MIMEType:    "text/turtle",
		Extension:   ".ttl",
		Description: "Turtle - Terse RDF Triple Language",
	},
	FormatNTriples: {
		Name:        FormatNTriples,
		MIMEType:    "application/n-triples",
		Extension:   ".nt",
		Description: "N-Triples - Line-based RDF format",
	},
	FormatJSONLD: {
		Name:        FormatJSONLD,
		MIMEType:    "application/ld+json",
		Extension:   ".jsonld",
		Description: "JSON-LD - JSON for Linked Data",
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

// ParseFormat resolves a format name, MIME type or file extension.
func ParseFormat(s string) (Format, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "ttl":
		return FormatTurtle, nil
	case "nt", "n-triples":
		return FormatNTriples, nil
	case "json-ld":
		return FormatJSONLD, nil
	}
	for name, info := range FormatRegistry {
		if key == string(name) || key == info.MIMEType || key == info.Extension {
			return name, nil
		}
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// pnLocal matches local names that Turtle can write as prefix:local.
var pnLocal = regexp.MustCompile(`^[A-Za-z0-9_]([A-Za-z0-9_-]*)$`)

// TurtleWriter writes RDF in Turtle format, grouping triples by subject.
type TurtleWriter struct {
	w        *bufio.Writer
	prefixes map[string]string
	// order holds prefixes longest namespace first, for compaction.
	order []string
}

// NewTurtleWriter creates a new Turtle writer with default prefixes.
func NewTurtleWriter(w io.Writer) *TurtleWriter {
	return &TurtleWriter{
		w:        bufio.NewWriter(w),
		prefixes: defaultPrefixes(),
	}
}

// SetPrefix sets a namespace prefix.
func (w *TurtleWriter) SetPrefix(prefix, iri string) {
	w.prefixes[prefix] = iri
}

// Write writes the prefix declarations followed by one block per subject.
func (w *TurtleWriter) Write(triples []Triple) error {
	w.order = sortedKeys(w.prefixes)
	sort.SliceStable(w.order, func(i, j int) bool {
		return len(w.prefixes[w.order[i]]) > len(w.prefixes[w.order[j]])
	})

	// Sort prefixes for consistent output
	for _, prefix := range sortedKeys(w.prefixes) {
		fmt.Fprintf(w.w, "@prefix %s: <%s> .\n", prefix, escapeIRI(w.prefixes[prefix]))
	}

	for _, group := range groupBySubject(triples) {
		w.w.WriteString("\n")
		fmt.Fprintf(w.w, "%s\n", w.term(group[0].Subject))
		for i, t := range group {
			terminator := " ;"
			if i == len(group)-1 {
				terminator = " ."
			}
			pred := "a"
			if t.Predicate != rdfType {
				pred = w.iri(t.Predicate)
			}
			fmt.Fprintf(w.w, "    %s %s%s\n", pred, w.term(t.Object), terminator)
		}
	}
	return w.w.Flush()
}

func (w *TurtleWriter) term(t mapping.Term) string {
	switch t.Kind {
	case mapping.TermBlank:
		return "_:" + t.Value
	case mapping.TermLiteral:
		lit := `"` + escapeString(t.Value) + `"`
		if t.Datatype != "" {
			lit += "^^" + w.iri(t.Datatype)
		}
		return lit
	default:
		return w.iri(t.Value)
	}
}

// iri compacts iri against the longest matching prefix.
func (w *TurtleWriter) iri(iri string) string {
	iri = escapeIRI(iri)
	for _, prefix := range w.order {
		ns := w.prefixes[prefix]
		if local, ok := strings.CutPrefix(iri, ns); ok && pnLocal.MatchString(local) {
			return prefix + ":" + local
		}
	}
	return "<" + iri + ">"
}

// NTriplesWriter writes RDF in N-Triples format.
type NTriplesWriter struct {
	w *bufio.Writer
}

// NewNTriplesWriter creates a new N-Triples writer.
func NewNTriplesWriter(w io.Writer) *NTriplesWriter {
	return &NTriplesWriter{w: bufio.NewWriter(w)}
}

// Write writes one line per triple.
func (w *NTriplesWriter) Write(triples []Triple) error {
	for _, t := range triples {
		w.WriteTriple(t)
	}
	return w.w.Flush()
}

// WriteTriple writes a single triple.
func (w *NTriplesWriter) WriteTriple(t Triple) {
	fmt.Fprintf(w.w, "%s <%s> %s .\n", ntTerm(t.Subject), escapeIRI(t.Predicate), ntTerm(t.Object))
}

func ntTerm(t mapping.Term) string {
	switch t.Kind {
	case mapping.TermBlank:
		return "_:" + t.Value
	case mapping.TermLiteral:
		lit := `"` + escapeString(t.Value) + `"`
		if t.Datatype != "" {
			lit += "^^<" + escapeIRI(t.Datatype) + ">"
		}
		return lit
	default:
		return "<" + escapeIRI(t.Value) + ">"
	}
}

// JSONLDDocument represents a JSON-LD document structure.
type JSONLDDocument struct {
	Context map[string]any `json:"@context"`
	Graph   []JSONLDNode   `json:"@graph"`
}

// JSONLDNode represents a node in a JSON-LD graph.
type JSONLDNode struct {
	ID         string         `json:"@id"`
	Type       []string       `json:"@type,omitempty"`
	Properties map[string]any `json:"-"`
}

// MarshalJSON implements custom JSON marshaling for JSONLDNode.
func (n JSONLDNode) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(n.Properties)+2)
	m["@id"] = n.ID
	if len(n.Type) > 0 {
		m["@type"] = n.Type
	}
	for k, v := range n.Properties {
		m[k] = v
	}
	return json.Marshal(m)
}

// UnmarshalJSON splits @id and @type from the remaining properties.
func (n *JSONLDNode) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*n = JSONLDNode{Properties: make(map[string]any)}
	for k, raw := range m {
		var err error
		switch k {
		case "@id":
			err = json.Unmarshal(raw, &n.ID)
		case "@type":
			err = json.Unmarshal(raw, &n.Type)
		default:
			var v any
			err = json.Unmarshal(raw, &v)
			n.Properties[k] = v
		}
		if err != nil {
			return fmt.Errorf("json-ld node key %s: %w", k, err)
		}
	}
	return nil
}

// JSONLDWriter writes RDF in JSON-LD format as a flattened @graph.
type JSONLDWriter struct {
	w   io.Writer
	doc JSONLDDocument
}

// NewJSONLDWriter creates a new JSON-LD writer.
func NewJSONLDWriter(w io.Writer) *JSONLDWriter {
	return &JSONLDWriter{
		w: w,
		doc: JSONLDDocument{
			Context: make(map[string]any),
			Graph:   make([]JSONLDNode, 0),
		},
	}
}

// SetContext sets the @context with prefixes.
func (w *JSONLDWriter) SetContext(prefixes map[string]string) {
	for k, v := range prefixes {
		w.doc.Context[k] = v
	}
}

// Write builds one node per subject and writes the document.
func (w *JSONLDWriter) Write(triples []Triple) error {
	for _, group := range groupBySubject(triples) {
		node := JSONLDNode{ID: jsonldID(group[0].Subject), Properties: make(map[string]any)}
		for _, t := range group {
			if t.Predicate == rdfType && t.Object.Kind == mapping.TermResource {
				node.Type = append(node.Type, t.Object.Value)
				continue
			}
			values, _ := node.Properties[t.Predicate].([]any)
			node.Properties[t.Predicate] = append(values, jsonldValue(t.Object))
		}
		w.doc.Graph = append(w.doc.Graph, node)
	}

	enc := json.NewEncoder(w.w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(w.doc)
}

func jsonldID(t mapping.Term) string {
	if t.Kind == mapping.TermBlank {
		return "_:" + t.Value
	}
	return escapeIRI(t.Value)
}

func jsonldValue(t mapping.Term) any {
	switch t.Kind {
	case mapping.TermLiteral:
		if t.Datatype == "" {
			return t.Value
		}
		return map[string]string{"@value": t.Value, "@type": t.Datatype}
	default:
		return map[string]string{"@id": jsonldID(t)}
	}
}

// groupBySubject groups triples by subject, keeping first-appearance order
// of subjects and insertion order within a subject.
func groupBySubject(triples []Triple) [][]Triple {
	index := make(map[mapping.Term]int)
	var groups [][]Triple
	for _, t := range triples {
		i, ok := index[t.Subject]
		if !ok {
			i = len(groups)
			index[t.Subject] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], t)
	}
	return groups
}

// escapeString escapes special characters in strings for RDF serialization.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}

// escapeIRI percent-encodes the characters IRIREF does not allow: controls,
// space and <>"{}|^`\.
func escapeIRI(iri string) string {
	if !strings.ContainsFunc(iri, illegalIRIRune) {
		return iri
	}
	var b strings.Builder
	for i := 0; i < len(iri); i++ {
		c := iri[i]
		if c < utf8.RuneSelf && illegalIRIRune(rune(c)) {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func illegalIRIRune(r rune) bool {
	if r <= 0x20 || r == 0x7f {
		return true
	}
	return strings.ContainsRune("<>\"{}|^`\\", r)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
