// Package ipm maps OSF registrations onto the OSF ontology and builds the
// IPM (intellectual property metadata) graph and payload list for a package.
package ipm

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/c360studio/osfipm/mapping"
	"github.com/c360studio/osfipm/osf"
	"github.com/c360studio/osfipm/transform"
	vocab "github.com/c360studio/osfipm/vocabulary/osf"
)

// IdentifierIRI is the class-mode transform turning an external identifier
// into its resolver IRI.
const IdentifierIRI transform.ID = "identifier-iri"

// identifierResolvers maps identifier categories to resolver prefixes.
var identifierResolvers = map[string]string{
	"doi": "https://doi.org/",
	"ark": "https://n2t.net/",
}

// identifierIRI resolves DOIs and ARKs. Other categories keep the OSF
// identifier resource ID.
func identifierIRI(in any) (any, error) {
	id, ok := in.(*osf.Identifier)
	if !ok {
		return nil, fmt.Errorf("identifier-iri: unexpected %T", in)
	}
	if prefix, ok := identifierResolvers[strings.ToLower(id.Category)]; ok && id.Value != "" {
		return prefix + strings.TrimPrefix(id.Value, prefix), nil
	}
	return id.ID, nil
}

// Transforms returns the built-in transforms plus the OSF ones.
func Transforms() *transform.Registry {
	tr := transform.NewRegistry()
	tr.Register(IdentifierIRI, transform.Func(identifierIRI))
	return tr
}

// Registry returns the mapping tables for the osf domain model.
func Registry() (*mapping.Registry, error) {
	reg := mapping.NewRegistry()
	err := reg.Register(
		mapping.Struct[osf.NodeBase]().
			Identifier("ID", func(n *osf.NodeBase) any { return n.ID }).
			Property("Title", vocab.NodeTitle, func(n *osf.NodeBase) any { return n.Title }).
			Property("Description", vocab.NodeDescription, func(n *osf.NodeBase) any { return n.Description }).
			Property("Category", vocab.NodeCategory, func(n *osf.NodeBase) any { return n.Category }).
			Property("DateCreated", vocab.NodeDateCreated, func(n *osf.NodeBase) any { return n.DateCreated }).
			Property("DateModified", vocab.NodeDateModified, func(n *osf.NodeBase) any { return n.DateModified }).
			Property("Public", vocab.NodeIsPublic, func(n *osf.NodeBase) any { return n.Public }).
			Property("Fork", vocab.NodeIsFork, func(n *osf.NodeBase) any { return n.Fork }).
			Property("Tags", vocab.NodeTag, func(n *osf.NodeBase) any { return n.Tags }).
			Property("Contributors", vocab.NodeContributor, func(n *osf.NodeBase) any { return n.Contributors }).
			Property("Files", vocab.NodeFile, func(n *osf.NodeBase) any { return n.Files }).
			Property("Wikis", vocab.NodeWiki, func(n *osf.NodeBase) any { return n.Wikis }).
			Property("Comments", vocab.NodeComment, func(n *osf.NodeBase) any { return n.Comments }).
			Anonymous("License", vocab.NodeLicense, vocab.ClassLicense, func(n *osf.NodeBase) any { return n.License }).
			Property("Institutions", vocab.NodeInstitution, func(n *osf.NodeBase) any { return n.Institutions }).
			Property("Identifiers", vocab.NodeIdentifier, func(n *osf.NodeBase) any { return n.Identifiers }),

		mapping.Individual[osf.Node](vocab.ClassNode).
			Extends(reflect.TypeFor[osf.NodeBase](), func(n *osf.Node) any { return &n.NodeBase }).
			Property("Parent", vocab.NodeHasParent, func(n *osf.Node) any { return n.Parent }).
			Property("Children", vocab.NodeHasChild, func(n *osf.Node) any { return n.Children }),

		mapping.Individual[osf.Registration](vocab.ClassRegistration).
			Extends(reflect.TypeFor[osf.NodeBase](), func(r *osf.Registration) any { return &r.NodeBase }).
			Property("Parent", vocab.NodeHasParent, func(r *osf.Registration) any { return r.Parent }).
			Property("Children", vocab.NodeHasChild, func(r *osf.Registration) any { return r.Children }).
			Property("RegisteredFrom", vocab.RegistrationRegisteredFrom, func(r *osf.Registration) any { return r.RegisteredFrom }).
			Property("RegisteredBy", vocab.RegistrationRegisteredBy, func(r *osf.Registration) any { return r.RegisteredBy }).
			Property("DateRegistered", vocab.RegistrationDateRegistered, func(r *osf.Registration) any { return r.DateRegistered }).
			Property("EmbargoEndDate", vocab.RegistrationEmbargoEnd, func(r *osf.Registration) any { return r.EmbargoEndDate }).
			Property("Withdrawn", vocab.RegistrationWithdrawn, func(r *osf.Registration) any { return r.Withdrawn }).
			Property("WithdrawalJustification", vocab.RegistrationWithdrawalReason, func(r *osf.Registration) any { return r.WithdrawalJustification }).
			Property("Supplement", vocab.RegistrationSupplement, func(r *osf.Registration) any { return r.Supplement }),

		mapping.Individual[osf.User](vocab.ClassUser).
			Identifier("ID", func(u *osf.User) any { return u.ID }).
			Property("FullName", vocab.UserFullName, func(u *osf.User) any { return u.FullName }).
			Property("GivenName", vocab.UserGivenName, func(u *osf.User) any { return u.GivenName }).
			Property("FamilyName", vocab.UserFamilyName, func(u *osf.User) any { return u.FamilyName }).
			Property("DateRegistered", vocab.UserDateRegistered, func(u *osf.User) any { return u.DateRegistered }).
			Property("Timezone", vocab.UserTimezone, func(u *osf.User) any { return u.Timezone }).
			Property("Locale", vocab.UserLocale, func(u *osf.User) any { return u.Locale }).
			Anonymous("Employment", vocab.UserEmployment, vocab.ClassEmployment, func(u *osf.User) any { return u.Employment }).
			Anonymous("Education", vocab.UserEducation, vocab.ClassEducation, func(u *osf.User) any { return u.Education }),

		mapping.Struct[osf.Affiliation]().
			Property("Institution", vocab.AffiliationInstitution, func(a *osf.Affiliation) any { return a.Institution }).
			Property("Department", vocab.AffiliationDepartment, func(a *osf.Affiliation) any { return a.Department }).
			Property("StartYear", vocab.AffiliationStartYear, func(a *osf.Affiliation) any { return a.StartYear }).
			Property("EndYear", vocab.AffiliationEndYear, func(a *osf.Affiliation) any { return a.EndYear }).
			Property("Ongoing", vocab.AffiliationOngoing, func(a *osf.Affiliation) any { return a.Ongoing }),

		// The contributor ID is "<node>-<user>"; the user GUID is its suffix.
		mapping.Individual[osf.Contributor](vocab.ClassContributor).
			Identifier("ID", func(c *osf.Contributor) any { return c.ID }).
			Property("UserGUID", vocab.ContributorUserID, func(c *osf.Contributor) any { return c.ID }, mapping.WithTransform(transform.DashSuffix)).
			Property("Bibliographic", vocab.ContributorBibliographic, func(c *osf.Contributor) any { return c.Bibliographic }).
			Property("Permission", vocab.ContributorPermission, func(c *osf.Contributor) any { return c.Permission }).
			Property("Index", vocab.ContributorIndex, func(c *osf.Contributor) any { return c.Index }).
			Property("User", vocab.ContributorUser, func(c *osf.Contributor) any { return c.User }),

		mapping.Individual[osf.File](vocab.ClassFile).
			Identifier("ID", func(f *osf.File) any { return f.ID }).
			Property("Name", vocab.FileName, func(f *osf.File) any { return f.Name }).
			Property("Kind", vocab.FileKind, func(f *osf.File) any { return f.Kind }).
			Property("Path", vocab.FilePath, func(f *osf.File) any { return f.Path }).
			Property("MaterializedPath", vocab.FileMaterializedPath, func(f *osf.File) any { return f.MaterializedPath }).
			Property("Provider", vocab.FileProvider, func(f *osf.File) any { return f.Provider }).
			Property("Size", vocab.FileSize, func(f *osf.File) any { return f.Size }).
			Property("DateCreated", vocab.FileDateCreated, func(f *osf.File) any { return f.DateCreated }).
			Property("DateModified", vocab.FileDateModified, func(f *osf.File) any { return f.DateModified }).
			Anonymous("Checksums", vocab.FileChecksum, vocab.ClassChecksum, func(f *osf.File) any { return f.Checksums }).
			Property("Files", vocab.FileHasChild, func(f *osf.File) any { return f.Files }),

		mapping.Struct[osf.Checksum]().
			Property("Algorithm", vocab.ChecksumAlgorithm, func(c *osf.Checksum) any { return c.Algorithm }).
			Property("Value", vocab.ChecksumValue, func(c *osf.Checksum) any { return c.Value }),

		mapping.Individual[osf.Wiki](vocab.ClassWiki).
			Identifier("ID", func(w *osf.Wiki) any { return w.ID }).
			Property("Name", vocab.WikiName, func(w *osf.Wiki) any { return w.Name }).
			Property("Content", vocab.WikiContent, func(w *osf.Wiki) any { return w.Content }).
			Property("DateModified", vocab.WikiDateModified, func(w *osf.Wiki) any { return w.DateModified }).
			Property("Version", vocab.WikiVersion, func(w *osf.Wiki) any { return w.Version }),

		mapping.Individual[osf.Comment](vocab.ClassComment).
			Identifier("ID", func(c *osf.Comment) any { return c.ID }).
			Property("Content", vocab.CommentContent, func(c *osf.Comment) any { return c.Content }).
			Property("DateCreated", vocab.CommentDateCreated, func(c *osf.Comment) any { return c.DateCreated }).
			Property("Deleted", vocab.CommentDeleted, func(c *osf.Comment) any { return c.Deleted }).
			Property("Author", vocab.CommentAuthor, func(c *osf.Comment) any { return c.Author }).
			Property("Replies", vocab.CommentReply, func(c *osf.Comment) any { return c.Replies }),

		mapping.Struct[osf.License]().
			Property("Name", vocab.LicenseName, func(l *osf.License) any { return l.Name }).
			Property("URL", vocab.LicenseURL, func(l *osf.License) any { return l.URL }).
			Property("Year", vocab.LicenseYear, func(l *osf.License) any { return l.Year }).
			Property("CopyrightHolders", vocab.LicenseCopyrightHolders, func(l *osf.License) any { return l.CopyrightHolders }),

		mapping.Individual[osf.Institution](vocab.ClassInstitution).
			Identifier("ID", func(i *osf.Institution) any { return i.ID }).
			Property("Name", vocab.InstitutionName, func(i *osf.Institution) any { return i.Name }).
			Property("Description", vocab.InstitutionDescription, func(i *osf.Institution) any { return i.Description }),

		mapping.Individual[osf.Identifier](vocab.ClassIdentifier).
			Identifier("ID", func(i *osf.Identifier) any { return i.ID }, mapping.WithTransform(IdentifierIRI), mapping.WithMode(transform.ModeClass)).
			Property("Category", vocab.IdentifierCategory, func(i *osf.Identifier) any { return i.Category }).
			Property("Value", vocab.IdentifierValue, func(i *osf.Identifier) any { return i.Value }),

		mapping.Enum[osf.Category]().
			Property("Label", vocab.CategoryLabel, func(c *osf.Category) any { return c.Label() }),

		mapping.Enum[osf.Permission]().
			Property("Label", vocab.PermissionLabel, func(p *osf.Permission) any { return p.Label() }),
	)
	if err != nil {
		return nil, fmt.Errorf("register osf mappings: %w", err)
	}
	return reg, nil
}
