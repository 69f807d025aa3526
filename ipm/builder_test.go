package ipm_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/osfipm/export"
	"github.com/c360studio/osfipm/ipm"
	"github.com/c360studio/osfipm/mapping"
	"github.com/c360studio/osfipm/osf"
	vocab "github.com/c360studio/osfipm/vocabulary/osf"
)

func sequentialBlanks() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("b%d", n)
	}
}

func newBuilder(t *testing.T, profile export.Profile) *ipm.Builder {
	t.Helper()
	b, err := ipm.NewBuilder(ipm.Options{Profile: profile, BlankNodeID: sequentialBlanks()})
	require.NoError(t, err)
	return b
}

// registrationGraph returns y6cx7 with one child component zgbd5 whose
// Parent points back at the root, and a contributor shared by both.
func registrationGraph() *osf.Registration {
	created := time.Date(2021, 3, 4, 10, 11, 12, 0, time.UTC)
	size := int64(8)
	ada := &osf.User{
		ID:         "u1abc",
		FullName:   "Ada Lovelace",
		Employment: []*osf.Affiliation{{Institution: "Analytical Engines", Ongoing: true}},
	}
	root := &osf.Registration{
		NodeBase: osf.NodeBase{
			ID:          "y6cx7",
			Title:       "Pre-registration",
			Category:    osf.CategoryProject,
			DateCreated: &created,
			Public:      true,
			Tags:        []string{"replication", "psychology", "prereg"},
			Contributors: []*osf.Contributor{
				{ID: "y6cx7-u1abc", Bibliographic: true, Permission: osf.PermissionAdmin, User: ada},
			},
			License: &osf.License{ID: "lic1", Name: "CC0 1.0 Universal", Year: "2021"},
			Identifiers: []*osf.Identifier{
				{ID: "i1", Category: "doi", Value: "10.17605/OSF.IO/Y6CX7"},
			},
			Files: []*osf.File{
				{ID: "d1", Kind: "folder", Name: "raw", MaterializedPath: "/raw/", Files: []*osf.File{
					{
						ID: "f1", Kind: "file", Name: "a.csv", MaterializedPath: "/raw/a.csv",
						Size: &size, DownloadURL: "https://osf.io/download/f1/",
						Checksums: []*osf.Checksum{{Algorithm: "sha256", Value: "abc123"}},
					},
				}},
			},
		},
		RegisteredBy: ada,
	}
	child := &osf.Registration{
		NodeBase: osf.NodeBase{
			ID:       "zgbd5",
			Title:    "Data component",
			Category: osf.CategoryData,
			Contributors: []*osf.Contributor{
				{ID: "zgbd5-u1abc", Permission: osf.PermissionRead, User: ada},
			},
			Files: []*osf.File{
				{ID: "f2", Kind: "file", Name: "b.csv", MaterializedPath: "/b.csv", DownloadURL: "https://osf.io/download/f2/"},
			},
		},
		Parent: root,
	}
	root.Children = []*osf.Registration{child}
	return root
}

func stmt(subject string, p mapping.Property, object mapping.Term) mapping.Statement {
	return mapping.Statement{Subject: mapping.Resource(subject), Predicate: p, Object: object}
}

func TestNewBuilder_MappingsValidate(t *testing.T) {
	_, err := ipm.NewBuilder(ipm.Options{})
	require.NoError(t, err)
}

func TestBuild_RegistrationEndToEnd(t *testing.T) {
	pkg, err := newBuilder(t, export.ProfileMinimal).Build(context.Background(), registrationGraph())
	require.NoError(t, err)
	g := pkg.Graph

	want := []mapping.Statement{
		stmt("y6cx7", mapping.RDFType, mapping.Resource(vocab.ClassRegistration)),
		stmt("y6cx7", vocab.NodeHasChild, mapping.Resource("zgbd5")),
		stmt("y6cx7", vocab.NodeIsPublic, mapping.Literal("true", mapping.XSDBoolean)),
		stmt("y6cx7", vocab.NodeTitle, mapping.Literal("Pre-registration", "")),
		stmt("y6cx7", vocab.NodeCategory, mapping.Literal("project", "")),
		stmt("y6cx7", vocab.NodeDateCreated, mapping.Literal("2021-03-04T10:11:12Z", mapping.XSDDateTime)),
		stmt("y6cx7", vocab.RegistrationRegisteredBy, mapping.Resource("u1abc")),
		stmt("zgbd5", mapping.RDFType, mapping.Resource(vocab.ClassRegistration)),
		stmt("zgbd5", vocab.NodeHasParent, mapping.Resource("y6cx7")),
		stmt("y6cx7", vocab.NodeContributor, mapping.Resource("y6cx7-u1abc")),
		stmt("y6cx7-u1abc", vocab.ContributorUserID, mapping.Literal("u1abc", "")),
		stmt("y6cx7-u1abc", vocab.ContributorUser, mapping.Resource("u1abc")),
		stmt("y6cx7-u1abc", vocab.ContributorPermission, mapping.Literal("admin", "")),
		stmt("zgbd5-u1abc", vocab.ContributorUser, mapping.Resource("u1abc")),
		stmt("u1abc", mapping.RDFType, mapping.Resource(vocab.ClassUser)),
		stmt("u1abc", vocab.UserFullName, mapping.Literal("Ada Lovelace", "")),
		stmt("y6cx7", vocab.NodeIdentifier, mapping.Resource("https://doi.org/10.17605/OSF.IO/Y6CX7")),
		stmt("https://doi.org/10.17605/OSF.IO/Y6CX7", vocab.IdentifierCategory, mapping.Literal("doi", "")),
		stmt("f1", vocab.FileSize, mapping.Literal("8", mapping.XSDInteger)),
		stmt("d1", vocab.FileHasChild, mapping.Resource("f1")),
	}
	for _, s := range want {
		assert.True(t, g.Has(s), "missing %s", s)
	}

	t.Run("tags expand into one statement each", func(t *testing.T) {
		for _, tag := range []string{"replication", "psychology", "prereg"} {
			assert.True(t, g.Has(stmt("y6cx7", vocab.NodeTag, mapping.Literal(tag, ""))), "tag %s", tag)
		}
	})

	t.Run("shared user is one individual", func(t *testing.T) {
		types := 0
		for _, tr := range g.Triples() {
			if tr.Subject.Value == g.IRI("u1abc") && tr.Object.Value == vocab.ClassUser {
				types++
			}
		}
		assert.Equal(t, 1, types)
	})

	t.Run("anonymous individuals are blank nodes", func(t *testing.T) {
		var licenses, employments, checksums int
		for _, tr := range g.Triples() {
			if tr.Subject.Kind != mapping.TermBlank || tr.Predicate != mapping.RDFType.IRI() {
				continue
			}
			switch tr.Object.Value {
			case vocab.ClassLicense:
				licenses++
			case vocab.ClassEmployment:
				employments++
			case vocab.ClassChecksum:
				checksums++
			}
		}
		assert.Equal(t, 1, licenses)
		assert.Equal(t, 1, employments, "employment is projected once for the single user individual")
		assert.Equal(t, 1, checksums)
	})

	t.Run("payload", func(t *testing.T) {
		require.Len(t, pkg.Payload, 2)
		assert.Equal(t, "y6cx7/raw/a.csv", pkg.Payload[0].Path)
		assert.Equal(t, map[string]string{"sha256": "abc123"}, pkg.Payload[0].Checksums)
		assert.Equal(t, "zgbd5/b.csv", pkg.Payload[1].Path)
	})

	assert.Same(t, pkg.Root.Children[0].Parent, pkg.Root)
	assert.Positive(t, pkg.Index.Len())
}

func TestBuild_EnumLabels(t *testing.T) {
	pkg, err := newBuilder(t, export.ProfileMinimal).Build(context.Background(), registrationGraph())
	require.NoError(t, err)
	g := pkg.Graph

	assert.True(t, g.Has(stmt("y6cx7", vocab.CategoryLabel, mapping.Literal("Project", ""))))
	assert.True(t, g.Has(stmt("zgbd5", vocab.CategoryLabel, mapping.Literal("Data", ""))))
	assert.True(t, g.Has(stmt("y6cx7-u1abc", vocab.PermissionLabel, mapping.Literal("Administrator", ""))))
	assert.True(t, g.Has(stmt("zgbd5-u1abc", vocab.PermissionLabel, mapping.Literal("Read", ""))))
}

func TestBuild_OWLProfile(t *testing.T) {
	pkg, err := newBuilder(t, export.ProfileOWL).Build(context.Background(), registrationGraph())
	require.NoError(t, err)

	named := mapping.Resource(mapping.OWLNamespace + "NamedIndividual")
	assert.True(t, pkg.Graph.Has(stmt("y6cx7", mapping.RDFType, named)))
	assert.True(t, pkg.Graph.Has(stmt("u1abc", mapping.RDFType, named)))
}

func TestBuild_Serializes(t *testing.T) {
	pkg, err := newBuilder(t, export.ProfileMinimal).Build(context.Background(), registrationGraph())
	require.NoError(t, err)

	ttl, err := pkg.Graph.Export(export.FormatTurtle)
	require.NoError(t, err)
	assert.Contains(t, ttl, "entity:y6cx7\n    a osf:Registration ;")
	assert.Contains(t, ttl, `osf:isPublic "true"^^xsd:boolean`)
	assert.Contains(t, ttl, "osf:hasChild entity:zgbd5")
}

func TestBuild_InvalidIdentifier(t *testing.T) {
	reg := registrationGraph()
	reg.Contributors[0].User = &osf.User{FullName: "No GUID"}

	_, err := newBuilder(t, export.ProfileMinimal).Build(context.Background(), reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, mapping.ErrConfiguration)

	lenient, err := ipm.NewBuilder(ipm.Options{ContinueOnError: true})
	require.NoError(t, err)
	pkg, err := lenient.Build(context.Background(), registrationGraph(), reg)
	require.NoError(t, err)
	assert.True(t, pkg.Graph.Has(stmt("y6cx7", mapping.RDFType, mapping.Resource(vocab.ClassRegistration))))
}

func TestBuild_SkippedIndividualLeavesNoTriples(t *testing.T) {
	reg := registrationGraph()
	reg.Contributors[0].User = &osf.User{FullName: "No GUID"}

	lenient, err := ipm.NewBuilder(ipm.Options{ContinueOnError: true})
	require.NoError(t, err)
	pkg, err := lenient.Build(context.Background(), reg)
	require.NoError(t, err)

	contributor := pkg.Graph.IRI("y6cx7-u1abc")
	for _, tr := range pkg.Graph.Triples() {
		assert.NotEqual(t, contributor, tr.Subject.Value, "partial contributor triple %v", tr)
	}
	assert.True(t, pkg.Graph.Has(stmt("zgbd5-u1abc", mapping.RDFType, mapping.Resource(vocab.ClassContributor))))
}

func TestBuild_Arguments(t *testing.T) {
	b := newBuilder(t, export.ProfileMinimal)
	_, err := b.Build(context.Background())
	assert.Error(t, err)
	_, err = b.Build(context.Background(), nil)
	assert.ErrorIs(t, err, mapping.ErrNilInstance)
}

func TestBuild_DecodedDocument(t *testing.T) {
	reg, err := osf.DecodeRegistrationFile(filepath.Join("..", "osf", "testdata", "registration.json"))
	require.NoError(t, err)

	pkg, err := newBuilder(t, export.ProfileMinimal).Build(context.Background(), reg)
	require.NoError(t, err)

	g := pkg.Graph
	assert.True(t, g.Has(stmt("y6cx7", vocab.NodeHasChild, mapping.Resource("zgbd5"))))
	assert.True(t, g.Has(stmt("zgbd5", vocab.NodeHasParent, mapping.Resource("y6cx7"))))
	assert.True(t, g.Has(stmt("c1", vocab.CommentReply, mapping.Resource("c2"))))
	assert.True(t, g.Has(stmt("c2", vocab.CommentAuthor, mapping.Resource("u1abc"))))
	assert.True(t, g.Has(stmt("y6cx7", vocab.NodeIdentifier, mapping.Resource("https://doi.org/10.17605/OSF.IO/Y6CX7"))))
}
