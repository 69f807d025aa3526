package osf

import "time"

// Category is the OSF node category.
type Category string

// Node categories accepted by the OSF API.
const (
	CategoryProject         Category = "project"
	CategoryAnalysis        Category = "analysis"
	CategoryCommunication   Category = "communication"
	CategoryData            Category = "data"
	CategoryHypothesis      Category = "hypothesis"
	CategoryInstrumentation Category = "instrumentation"
	CategoryMethodsAndMeas  Category = "methods and measures"
	CategoryProcedure       Category = "procedure"
	CategorySoftware        Category = "software"
	CategoryOther           Category = "other"
	CategoryUncategorized   Category = "uncategorized"
)

var categoryLabels = map[Category]string{
	CategoryProject:         "Project",
	CategoryAnalysis:        "Analysis",
	CategoryCommunication:   "Communication",
	CategoryData:            "Data",
	CategoryHypothesis:      "Hypothesis",
	CategoryInstrumentation: "Instrumentation",
	CategoryMethodsAndMeas:  "Methods and Measures",
	CategoryProcedure:       "Procedure",
	CategorySoftware:        "Software",
	CategoryOther:           "Other",
	CategoryUncategorized:   "Uncategorized",
}

// Label returns the display label, or the raw value for unknown categories.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Permission is a contributor permission level.
type Permission string

// Contributor permission levels.
const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
	PermissionAdmin Permission = "admin"
)

// Label returns the display label.
func (p Permission) Label() string {
	switch p {
	case PermissionRead:
		return "Read"
	case PermissionWrite:
		return "Read + Write"
	case PermissionAdmin:
		return "Administrator"
	}
	return string(p)
}

// Kind is the JSON-API type of a node-like resource, which is also its
// collection path segment.
type Kind string

// Node-like resource kinds.
const (
	KindNode         Kind = "nodes"
	KindRegistration Kind = "registrations"
)

// NodeBase carries the fields shared by nodes and registrations.
type NodeBase struct {
	ID           string
	Title        string
	Description  string
	Category     Category
	DateCreated  *time.Time
	DateModified *time.Time
	Public       bool
	Fork         bool
	Tags         []string

	Contributors []*Contributor
	Files        []*File
	Wikis        []*Wiki
	Comments     []*Comment
	License      *License
	Institutions []*Institution
	Identifiers  []*Identifier

	// LicenseID references the license resource; License is filled in by
	// the fetcher or the document assembler.
	LicenseID string
}

// Node is an OSF project or component.
type Node struct {
	NodeBase
	Parent   *Node
	Children []*Node
}

// Registration is a frozen copy of a node.
type Registration struct {
	NodeBase
	Parent         *Registration
	Children       []*Registration
	RegisteredFrom *Node
	RegisteredBy   *User

	DateRegistered          *time.Time
	EmbargoEndDate          *time.Time
	Withdrawn               bool
	WithdrawalJustification string
	Supplement              string

	RegisteredFromID string
	RegisteredByID   string
}

// User is an OSF account.
type User struct {
	ID             string
	FullName       string
	GivenName      string
	FamilyName     string
	DateRegistered *time.Time
	Timezone       string
	Locale         string
	Employment     []*Affiliation
	Education      []*Affiliation
}

// Affiliation is one employment or education entry of a user profile.
type Affiliation struct {
	Institution string
	// Department holds the degree for education entries.
	Department string
	StartYear  *int
	EndYear    *int
	Ongoing    bool
}

// Contributor links a user to a node. Its ID is "<node>-<user>".
type Contributor struct {
	ID            string
	Bibliographic bool
	Permission    Permission
	Index         int
	User          *User

	UserID string
}

// File is a file or folder in node storage.
type File struct {
	ID               string
	Name             string
	Kind             string
	Path             string
	MaterializedPath string
	Provider         string
	Size             *int64
	DateCreated      *time.Time
	DateModified     *time.Time
	Checksums        []*Checksum
	Files            []*File

	// FilesURL lists folder contents; DownloadURL serves file content.
	FilesURL    string
	DownloadURL string
}

// IsFolder reports whether f is a folder.
func (f *File) IsFolder() bool {
	return f.Kind == "folder"
}

// Checksum is a content digest reported by the storage provider.
type Checksum struct {
	Algorithm string
	Value     string
}

// Wiki is a wiki page.
type Wiki struct {
	ID           string
	Name         string
	Content      string
	DateModified *time.Time
	Version      *int

	DownloadURL string
}

// Comment is a comment on a node or a reply to another comment.
type Comment struct {
	ID          string
	Content     string
	DateCreated *time.Time
	Deleted     bool
	Author      *User
	Replies     []*Comment

	AuthorID   string
	TargetID   string
	TargetType string
}

// License is a node license together with the node-specific year and
// copyright holders.
type License struct {
	ID               string
	Name             string
	URL              string
	Text             string
	Year             string
	CopyrightHolders []string
}

// Institution is an affiliated institution.
type Institution struct {
	ID          string
	Name        string
	Description string
}

// Identifier is an external identifier minted for a node.
type Identifier struct {
	ID       string
	Category string
	Value    string
}
