// Package osf provides the OSF ontology vocabulary used by the IPM mapper.
//
// Every property is a mapping.Property descriptor carrying its dotted
// semstreams predicate name, its IRI and whether it is an object or datatype
// property. All descriptors are registered with the semstreams vocabulary
// registry in init(), so predicate metadata lookups work for OSF predicates
// the same way they do for the framework's own:
//
//	meta := vocabulary.GetPredicateMetadata(osf.NodeTitle.Name)
//	meta.StandardIRI // https://osf.io/ontology/title
//
// # Naming
//
// Predicate names follow the three-level domain.category.property notation:
//
//	osf.node.*          projects, components and registrations
//	osf.registration.*  registration-only metadata
//	osf.user.*          users and their affiliations
//	osf.contributor.*   contributor records linking users to nodes
//	osf.file.*          files, folders and checksums
//	osf.wiki.*          wiki pages
//	osf.comment.*       comments and replies
//	osf.license.*       node licenses
//
// Properties() exposes the closed descriptor set for mapping registry
// validation.
package osf
