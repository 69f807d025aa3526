package osf

import (
	"sort"

	"github.com/c360studio/semstreams/vocabulary"

	"github.com/c360studio/osfipm/mapping"
)

// descriptor is a property together with its registry metadata.
type descriptor struct {
	prop        mapping.Property
	dataType    string
	description string
}

var descriptors []descriptor

func datatype(name, local, dataType, description string) mapping.Property {
	return define(name, local, mapping.DatatypeProperty, dataType, description)
}

func object(name, local, description string) mapping.Property {
	return define(name, local, mapping.ObjectProperty, "entity_id", description)
}

func define(name, local string, kind mapping.PropertyKind, dataType, description string) mapping.Property {
	p := mapping.Property{Name: name, Namespace: Namespace, LocalName: local, Kind: kind}
	descriptors = append(descriptors, descriptor{prop: p, dataType: dataType, description: description})
	return p
}

// Node predicates apply to projects, components and registrations.
var (
	NodeTitle        = datatype("osf.node.title", "title", "string", "Node title")
	NodeDescription  = datatype("osf.node.description", "description", "string", "Node description")
	NodeCategory     = datatype("osf.node.category", "category", "string", "Node category such as project, data or hypothesis")
	NodeDateCreated  = datatype("osf.node.date_created", "dateCreated", "datetime", "Creation timestamp")
	NodeDateModified = datatype("osf.node.date_modified", "dateModified", "datetime", "Last modification timestamp")
	NodeIsPublic     = datatype("osf.node.is_public", "isPublic", "bool", "Whether the node is publicly visible")
	NodeIsFork       = datatype("osf.node.is_fork", "isFork", "bool", "Whether the node is a fork")
	NodeTag          = datatype("osf.node.tag", "tag", "string", "Free-text tag")
	NodeHasChild     = object("osf.node.has_child", "hasChild", "Child component")
	NodeHasParent    = object("osf.node.has_parent", "hasParent", "Parent node")
	NodeContributor  = object("osf.node.contributor", "hasContributor", "Contributor record")
	NodeFile         = object("osf.node.file", "hasFile", "Top-level file or folder in node storage")
	NodeWiki         = object("osf.node.wiki", "hasWiki", "Wiki page")
	NodeComment      = object("osf.node.comment", "hasComment", "Comment on the node")
	NodeLicense      = object("osf.node.license", "hasLicense", "License the node is released under")
	NodeInstitution  = object("osf.node.institution", "affiliatedInstitution", "Affiliated institution")
	NodeIdentifier   = object("osf.node.identifier", "hasIdentifier", "External identifier (DOI, ARK)")
)

// Registration predicates.
var (
	RegistrationRegisteredFrom   = object("osf.registration.registered_from", "registeredFrom", "Node the registration was created from")
	RegistrationRegisteredBy     = object("osf.registration.registered_by", "registeredBy", "User who created the registration")
	RegistrationDateRegistered   = datatype("osf.registration.date_registered", "dateRegistered", "datetime", "Registration timestamp")
	RegistrationWithdrawn        = datatype("osf.registration.withdrawn", "withdrawn", "bool", "Whether the registration was withdrawn")
	RegistrationWithdrawalReason = datatype("osf.registration.withdrawal_justification", "withdrawalJustification", "string", "Reason given for withdrawal")
	RegistrationEmbargoEnd       = datatype("osf.registration.embargo_end_date", "embargoEndDate", "datetime", "Date the embargo lifts")
	RegistrationSupplement       = datatype("osf.registration.supplement", "registrationSupplement", "string", "Registration schema name")
)

// User predicates.
var (
	UserFullName       = datatype("osf.user.full_name", "fullName", "string", "Display name")
	UserGivenName      = datatype("osf.user.given_name", "givenName", "string", "Given name")
	UserFamilyName     = datatype("osf.user.family_name", "familyName", "string", "Family name")
	UserDateRegistered = datatype("osf.user.date_registered", "userDateRegistered", "datetime", "Account creation timestamp")
	UserTimezone       = datatype("osf.user.timezone", "timezone", "string", "IANA time zone")
	UserLocale         = datatype("osf.user.locale", "locale", "string", "Preferred locale")
	UserEmployment     = object("osf.user.employment", "employment", "Employment history entry")
	UserEducation      = object("osf.user.education", "education", "Education history entry")
)

// Affiliation predicates describe employment and education entries.
var (
	AffiliationInstitution = datatype("osf.affiliation.institution", "institutionName", "string", "Institution name")
	AffiliationDepartment  = datatype("osf.affiliation.department", "department", "string", "Department or degree")
	AffiliationStartYear   = datatype("osf.affiliation.start_year", "startYear", "int", "First year")
	AffiliationEndYear     = datatype("osf.affiliation.end_year", "endYear", "int", "Last year")
	AffiliationOngoing     = datatype("osf.affiliation.ongoing", "ongoing", "bool", "Whether the affiliation is current")
)

// Contributor predicates.
var (
	ContributorUser          = object("osf.contributor.user", "contributorUser", "User behind the contributor record")
	ContributorBibliographic = datatype("osf.contributor.bibliographic", "bibliographic", "bool", "Whether the contributor is listed in citations")
	ContributorPermission    = datatype("osf.contributor.permission", "permission", "string", "Permission level: read, write or admin")
	ContributorIndex         = datatype("osf.contributor.index", "contributorIndex", "int", "Position in the contributor list")
	ContributorUserID        = datatype("osf.contributor.user_id", "userGUID", "string", "GUID of the contributing user")
)

// File predicates.
var (
	FileName             = datatype("osf.file.name", "fileName", "string", "File or folder name")
	FilePath             = datatype("osf.file.path", "path", "string", "Provider path")
	FileMaterializedPath = datatype("osf.file.materialized_path", "materializedPath", "string", "Human-readable path")
	FileKind             = datatype("osf.file.kind", "kind", "string", "file or folder")
	FileProvider         = datatype("osf.file.provider", "provider", "string", "Storage provider")
	FileSize             = datatype("osf.file.size", "size", "int", "Size in bytes")
	FileDateCreated      = datatype("osf.file.date_created", "fileDateCreated", "datetime", "Upload timestamp")
	FileDateModified     = datatype("osf.file.date_modified", "fileDateModified", "datetime", "Last modification timestamp")
	FileHasChild         = object("osf.file.has_child", "containsFile", "File contained in a folder")
	FileChecksum         = object("osf.file.checksum", "checksum", "Content checksum")
	ChecksumAlgorithm    = datatype("osf.checksum.algorithm", "algorithm", "string", "Hash algorithm name")
	ChecksumValue        = datatype("osf.checksum.value", "checksumValue", "string", "Hex-encoded digest")
)

// Wiki predicates.
var (
	WikiName         = datatype("osf.wiki.name", "wikiName", "string", "Wiki page name")
	WikiContent      = datatype("osf.wiki.content", "wikiContent", "string", "Wiki page markdown")
	WikiDateModified = datatype("osf.wiki.date_modified", "wikiDateModified", "datetime", "Last edit timestamp")
	WikiVersion      = datatype("osf.wiki.version", "wikiVersion", "int", "Current page version")
)

// Comment predicates.
var (
	CommentContent     = datatype("osf.comment.content", "commentContent", "string", "Comment text")
	CommentDateCreated = datatype("osf.comment.date_created", "commentDateCreated", "datetime", "Creation timestamp")
	CommentAuthor      = object("osf.comment.author", "commentAuthor", "User who wrote the comment")
	CommentReply       = object("osf.comment.reply", "hasReply", "Reply to the comment")
	CommentDeleted     = datatype("osf.comment.deleted", "deleted", "bool", "Whether the comment was deleted")
)

// License, institution and identifier predicates.
var (
	LicenseName             = datatype("osf.license.name", "licenseName", "string", "License name")
	LicenseURL              = datatype("osf.license.url", "licenseURL", "string", "License text URL")
	LicenseYear             = datatype("osf.license.year", "copyrightYear", "string", "Copyright year")
	LicenseCopyrightHolders = datatype("osf.license.copyright_holder", "copyrightHolder", "string", "Copyright holder")
	InstitutionName         = datatype("osf.institution.name", "name", "string", "Institution name")
	InstitutionDescription  = datatype("osf.institution.description", "institutionDescription", "string", "Institution description")
	IdentifierCategory      = datatype("osf.identifier.category", "identifierCategory", "string", "Identifier scheme (doi, ark)")
	IdentifierValue         = datatype("osf.identifier.value", "identifierValue", "string", "Identifier value")
)

// Enum label predicates.
var (
	CategoryLabel   = datatype("osf.category.label", "categoryLabel", "string", "Human-readable node category")
	PermissionLabel = datatype("osf.permission.label", "permissionLabel", "string", "Human-readable permission level")
)

func init() {
	for _, d := range descriptors {
		vocabulary.Register(d.prop.Name,
			vocabulary.WithDescription(d.description),
			vocabulary.WithDataType(d.dataType),
			vocabulary.WithIRI(d.prop.IRI()))
	}
}

// Set is a closed set of property descriptors keyed by predicate name.
type Set map[string]mapping.Property

// Lookup implements mapping.PropertySet.
func (s Set) Lookup(name string) (mapping.Property, bool) {
	p, ok := s[name]
	return p, ok
}

// Properties returns every OSF property descriptor.
func Properties() Set {
	s := make(Set, len(descriptors)+1)
	for _, d := range descriptors {
		s[d.prop.Name] = d.prop
	}
	s[mapping.RDFType.Name] = mapping.RDFType
	return s
}

// Names returns every OSF predicate name in sorted order.
func Names() []string {
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.prop.Name)
	}
	sort.Strings(names)
	return names
}
