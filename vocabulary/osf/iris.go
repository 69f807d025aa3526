package osf

// Namespace is the base IRI prefix for all OSF ontology terms.
const Namespace = "https://osf.io/ontology/"

// EntityNamespace is the base IRI for OSF entity instances. OSF GUIDs resolve
// directly under it.
const EntityNamespace = "https://osf.io/"

// Class IRIs for OSF individuals and anonymous individuals.
const (
	// ClassNode is a project or component.
	ClassNode = Namespace + "Node"

	// ClassRegistration is a frozen, timestamped copy of a node.
	ClassRegistration = Namespace + "Registration"

	ClassUser        = Namespace + "User"
	ClassContributor = Namespace + "Contributor"
	ClassInstitution = Namespace + "Institution"

	// ClassFile covers both files and folders; osf.file.kind tells them apart.
	ClassFile = Namespace + "File"

	ClassWiki    = Namespace + "Wiki"
	ClassComment = Namespace + "Comment"

	// ClassIdentifier is an external identifier such as a DOI or ARK.
	ClassIdentifier = Namespace + "Identifier"

	// Anonymous individual classes. These never carry an identifier of their
	// own and are serialized as blank nodes.
	ClassLicense    = Namespace + "License"
	ClassChecksum   = Namespace + "Checksum"
	ClassEmployment = Namespace + "Employment"
	ClassEducation  = Namespace + "Education"
)

// Classes returns every class IRI defined by the vocabulary.
func Classes() []string {
	return []string{
		ClassNode,
		ClassRegistration,
		ClassUser,
		ClassContributor,
		ClassInstitution,
		ClassFile,
		ClassWiki,
		ClassComment,
		ClassIdentifier,
		ClassLicense,
		ClassChecksum,
		ClassEmployment,
		ClassEducation,
	}
}
