package mapping

import (
	"fmt"
	"reflect"

	"github.com/c360studio/osfipm/transform"
)

// ElementKind distinguishes type elements from field elements.
type ElementKind int

const (
	// KindClass identifies a mapped type.
	KindClass ElementKind = iota
	// KindField identifies a mapped field of a type.
	KindField
)

// String returns the kind name.
func (k ElementKind) String() string {
	if k == KindClass {
		return "class"
	}
	return "field"
}

// Element identifies a mapped type or a field declared on a mapped type.
// Fields with the same name on different owners are different elements.
type Element struct {
	Owner reflect.Type
	Name  string
	Kind  ElementKind
}

// ClassElement returns the element for type t.
func ClassElement(t reflect.Type) Element {
	return Element{Owner: t, Name: t.Name(), Kind: KindClass}
}

// FieldElement returns the element for field name declared on owner.
func FieldElement(owner reflect.Type, name string) Element {
	return Element{Owner: owner, Name: name, Kind: KindField}
}

// String returns "Owner" for classes and "Owner.Name" for fields.
func (e Element) String() string {
	owner := "<nil>"
	if e.Owner != nil {
		owner = e.Owner.String()
	}
	if e.Kind == KindClass {
		return owner
	}
	return owner + "." + e.Name
}

// AnnotationKind is the kind of mapping declared on an element.
type AnnotationKind int

const (
	// OwlIndividual marks a type whose instances are OWL individuals.
	OwlIndividual AnnotationKind = iota
	// IndividualURI marks the field that supplies the subject identifier.
	IndividualURI
	// OwlProperty marks a field mapped to an RDF property.
	OwlProperty
	// AnonIndividual marks a field whose value is an anonymous individual.
	AnonIndividual
)

// String returns the annotation kind name.
func (a AnnotationKind) String() string {
	switch a {
	case OwlIndividual:
		return "OwlIndividual"
	case IndividualURI:
		return "IndividualUri"
	case OwlProperty:
		return "OwlProperty"
	case AnonIndividual:
		return "AnonIndividual"
	default:
		return fmt.Sprintf("AnnotationKind(%d)", int(a))
	}
}

// Pair is the Index key. Equality is structural over the element and the
// annotation kind.
type Pair struct {
	Element    Element
	Annotation AnnotationKind
}

// String returns "element@annotation".
func (p Pair) String() string {
	return p.Element.String() + "@" + p.Annotation.String()
}

// Attributes holds the resolved mapping attributes for a Pair.
type Attributes struct {
	// Class is the OWL class IRI for OwlIndividual and AnonIndividual entries.
	Class string
	// Property is set for OwlProperty entries.
	Property Property
	// Transform names the transform applied to the value.
	Transform transform.ID
	// Mode selects whether the transform sees the field value or the instance.
	Mode transform.Mode
}

// PropertyKind tells object properties from datatype properties.
type PropertyKind int

const (
	// DatatypeProperty objects are literals.
	DatatypeProperty PropertyKind = iota
	// ObjectProperty objects are resources.
	ObjectProperty
)

// String returns the OWL term for the kind.
func (k PropertyKind) String() string {
	if k == ObjectProperty {
		return "ObjectProperty"
	}
	return "DatatypeProperty"
}

// Property describes an RDF property.
type Property struct {
	// Name is the dotted predicate name used in the vocabulary registry.
	Name      string
	Namespace string
	LocalName string
	Kind      PropertyKind
}

// IRI returns the full property IRI.
func (p Property) IRI() string {
	return p.Namespace + p.LocalName
}

// IsZero reports whether p is the zero Property.
func (p Property) IsZero() bool {
	return p == Property{}
}

// String returns the property IRI.
func (p Property) String() string {
	return p.IRI()
}

// PropertySet looks up property descriptors by dotted name.
type PropertySet interface {
	Lookup(name string) (Property, bool)
}

// RDF and XSD namespaces used by the projector.
const (
	RDFNamespace = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	XSDNamespace = "http://www.w3.org/2001/XMLSchema#"
	OWLNamespace = "http://www.w3.org/2002/07/owl#"
)

// Literal datatypes.
const (
	XSDBoolean  = XSDNamespace + "boolean"
	XSDInteger  = XSDNamespace + "integer"
	XSDDouble   = XSDNamespace + "double"
	XSDDateTime = XSDNamespace + "dateTime"
	XSDString   = XSDNamespace + "string"
)

// RDFType is rdf:type.
var RDFType = Property{
	Name:      "rdf.syntax.type",
	Namespace: RDFNamespace,
	LocalName: "type",
	Kind:      ObjectProperty,
}
