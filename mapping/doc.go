// Package mapping maps arbitrary Go object graphs onto RDF/OWL statements
// using declarative, per-type mapping tables.
//
// # Overview
//
// A Registry holds one mapping table per Go type. A table says which OWL class
// the type is an individual of, which field supplies the subject identifier,
// which fields become RDF properties, and which transform is applied to a
// field's value before serialization:
//
//	reg := mapping.NewRegistry()
//	reg.MustRegister(
//	    mapping.Individual[Registration](osf.ClassRegistration).
//	        Identifier("ID", func(r *Registration) any { return r.ID }).
//	        Property("Public", osf.IsPublic, func(r *Registration) any { return r.Public }).
//	        Property("Children", osf.HasChild, func(r *Registration) any { return r.Children }),
//	)
//
// Mapping a graph happens in two phases:
//
//  1. The Walker visits the object graph and records every mapping entry it
//     discovers in an Index, keyed by (element, annotation kind) pairs. The
//     walk tracks object identity, so cyclic and self-referential graphs
//     terminate and shared sub-objects are visited once.
//  2. The Resolver computes subject identifiers and the Projector emits
//     statements for each mapped field into a caller-supplied Sink.
//
// The Mapper type combines both phases and can walk independent roots in
// parallel into one shared Index.
//
// # Null values
//
// A nil pointer, map, slice or interface, and the empty string, count as null.
// Null fields are never recorded in the Index and never emit statements.
//
// # Errors
//
// Misconfigured mappings (no identifier field, more than one identifier field,
// a null identifier, an unknown transform) are reported as *ConfigurationError,
// which matches ErrConfiguration with errors.Is.
package mapping
