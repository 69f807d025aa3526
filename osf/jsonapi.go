package osf

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Document is a JSON-API top-level document as served by the OSF API.
type Document struct {
	Data     json.RawMessage `json:"data"`
	Included []Resource      `json:"included,omitempty"`
	Links    Links           `json:"links,omitempty"`
	Meta     map[string]any  `json:"meta,omitempty"`
	Errors   []ErrorObject   `json:"errors,omitempty"`
}

// Resource is a JSON-API resource object.
type Resource struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Attributes    json.RawMessage         `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
	Links         Links                   `json:"links,omitempty"`
	Embeds        map[string]Embed        `json:"embeds,omitempty"`
}

// Ref is a resource identifier object.
type Ref struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Relationship is a JSON-API relationship object. Data is null, a single
// identifier or a list of identifiers.
type Relationship struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Links Links           `json:"links,omitempty"`
}

// Embed holds a resource embedded with the ?embed= query parameter.
type Embed struct {
	Data   json.RawMessage `json:"data"`
	Errors []ErrorObject   `json:"errors,omitempty"`
}

// ErrorObject is a JSON-API error.
type ErrorObject struct {
	Status string `json:"status,omitempty"`
	Code   string `json:"code,omitempty"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Links maps link names to links.
type Links map[string]Link

// Link is a JSON-API link: either a URL string or an object with href.
type Link struct {
	Href string         `json:"href"`
	Meta map[string]any `json:"meta,omitempty"`
}

// UnmarshalJSON accepts null, a string or a link object.
func (l *Link) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*l = Link{}
		return nil
	case len(b) > 0 && b[0] == '"':
		return json.Unmarshal(b, &l.Href)
	}
	type plain Link
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*l = Link(p)
	return nil
}

// Get returns the href of the named link.
func (ls Links) Get(name string) string {
	return ls[name].Href
}

// DecodeDocument reads a JSON-API document.
func DecodeDocument(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json-api document: %w", err)
	}
	return &doc, nil
}

// Resources returns the primary data as a list. A single resource yields a
// one-element list; null yields none.
func (d *Document) Resources() ([]Resource, error) {
	data := bytes.TrimSpace(d.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] == '[' {
		var rs []Resource
		if err := json.Unmarshal(data, &rs); err != nil {
			return nil, fmt.Errorf("decode primary data: %w", err)
		}
		return rs, nil
	}
	var r Resource
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode primary data: %w", err)
	}
	return []Resource{r}, nil
}

// Resource returns the single primary resource.
func (d *Document) Resource() (Resource, error) {
	rs, err := d.Resources()
	if err != nil {
		return Resource{}, err
	}
	if len(rs) != 1 {
		return Resource{}, fmt.Errorf("expected one primary resource, got %d", len(rs))
	}
	return rs[0], nil
}

// Refs returns the identifiers in the relationship data.
func (r Relationship) Refs() []Ref {
	data := bytes.TrimSpace(r.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '[' {
		var refs []Ref
		if json.Unmarshal(data, &refs) != nil {
			return nil
		}
		return refs
	}
	var ref Ref
	if json.Unmarshal(data, &ref) != nil || ref.ID == "" {
		return nil
	}
	return []Ref{ref}
}

// Related returns the related link of the relationship.
func (r Relationship) Related() string {
	return r.Links.Get("related")
}

// ref returns the first identifier of the named relationship, falling back to
// the last path segment of its related link.
func (r Resource) ref(name string) string {
	rel, ok := r.Relationships[name]
	if !ok {
		return ""
	}
	if refs := rel.Refs(); len(refs) > 0 {
		return refs[0].ID
	}
	return lastSegment(rel.Related())
}

// embedded returns the resource embedded under name.
func (r Resource) embedded(name string) (Resource, bool) {
	e, ok := r.Embeds[name]
	if !ok || len(e.Errors) > 0 {
		return Resource{}, false
	}
	data := bytes.TrimSpace(e.Data)
	if len(data) == 0 || data[0] != '{' {
		return Resource{}, false
	}
	var res Resource
	if json.Unmarshal(data, &res) != nil || res.ID == "" {
		return Resource{}, false
	}
	return res, true
}

func (r Resource) decode(v any) error {
	if len(r.Attributes) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Attributes, v); err != nil {
		return fmt.Errorf("decode %s %s attributes: %w", r.Type, r.ID, err)
	}
	return nil
}

func (r Resource) expect(types ...string) error {
	for _, t := range types {
		if r.Type == t {
			return nil
		}
	}
	return fmt.Errorf("%w: %q is not one of %s", ErrUnexpectedType, r.Type, strings.Join(types, ", "))
}

func lastSegment(url string) string {
	url = strings.TrimSuffix(url, "/")
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return ""
}

// apiTime decodes the OSF timestamp formats, which may lack a zone.
type apiTime struct {
	t *time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (a *apiTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		a.t = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		a.t = nil
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			a.t = &t
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// flexInt decodes integers that OSF sometimes serializes as strings.
type flexInt struct {
	v *int
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		f.v = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			f.v = nil
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("integer %q: %w", s, err)
		}
		f.v = &n
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	f.v = &n
	return nil
}

type nodeAttributes struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Category     Category `json:"category"`
	DateCreated  apiTime  `json:"date_created"`
	DateModified apiTime  `json:"date_modified"`
	Public       bool     `json:"public"`
	Fork         bool     `json:"fork"`
	Tags         []string `json:"tags"`
	NodeLicense  *struct {
		Year             string   `json:"year"`
		CopyrightHolders []string `json:"copyright_holders"`
	} `json:"node_license"`

	DateRegistered          apiTime `json:"date_registered"`
	EmbargoEndDate          apiTime `json:"embargo_end_date"`
	Withdrawn               bool    `json:"withdrawn"`
	WithdrawalJustification string  `json:"withdrawal_justification"`
	Supplement              string  `json:"registration_supplement"`
}

func nodeBaseFrom(r Resource, attrs *nodeAttributes) (NodeBase, error) {
	if err := r.decode(attrs); err != nil {
		return NodeBase{}, err
	}
	nb := NodeBase{
		ID:           r.ID,
		Title:        attrs.Title,
		Description:  attrs.Description,
		Category:     attrs.Category,
		DateCreated:  attrs.DateCreated.t,
		DateModified: attrs.DateModified.t,
		Public:       attrs.Public,
		Fork:         attrs.Fork,
		Tags:         attrs.Tags,
		LicenseID:    r.ref("license"),
	}
	if attrs.NodeLicense != nil {
		nb.License = &License{
			ID:               nb.LicenseID,
			Year:             attrs.NodeLicense.Year,
			CopyrightHolders: attrs.NodeLicense.CopyrightHolders,
		}
	}
	return nb, nil
}

// NodeFromResource converts a nodes resource.
func NodeFromResource(r Resource) (*Node, error) {
	if err := r.expect(string(KindNode)); err != nil {
		return nil, err
	}
	var attrs nodeAttributes
	nb, err := nodeBaseFrom(r, &attrs)
	if err != nil {
		return nil, err
	}
	return &Node{NodeBase: nb}, nil
}

// RegistrationFromResource converts a registrations resource.
func RegistrationFromResource(r Resource) (*Registration, error) {
	if err := r.expect(string(KindRegistration)); err != nil {
		return nil, err
	}
	var attrs nodeAttributes
	nb, err := nodeBaseFrom(r, &attrs)
	if err != nil {
		return nil, err
	}
	return &Registration{
		NodeBase:                nb,
		DateRegistered:          attrs.DateRegistered.t,
		EmbargoEndDate:          attrs.EmbargoEndDate.t,
		Withdrawn:               attrs.Withdrawn,
		WithdrawalJustification: attrs.WithdrawalJustification,
		Supplement:              attrs.Supplement,
		RegisteredFromID:        r.ref("registered_from"),
		RegisteredByID:          r.ref("registered_by"),
	}, nil
}

type affiliationAttributes struct {
	Institution string  `json:"institution"`
	Department  string  `json:"department"`
	Degree      string  `json:"degree"`
	StartYear   flexInt `json:"startYear"`
	EndYear     flexInt `json:"endYear"`
	Ongoing     bool    `json:"ongoing"`
}

func (a affiliationAttributes) affiliation() *Affiliation {
	dept := a.Department
	if dept == "" {
		dept = a.Degree
	}
	return &Affiliation{
		Institution: a.Institution,
		Department:  dept,
		StartYear:   a.StartYear.v,
		EndYear:     a.EndYear.v,
		Ongoing:     a.Ongoing,
	}
}

// UserFromResource converts a users resource.
func UserFromResource(r Resource) (*User, error) {
	if err := r.expect("users"); err != nil {
		return nil, err
	}
	var attrs struct {
		FullName       string                  `json:"full_name"`
		GivenName      string                  `json:"given_name"`
		FamilyName     string                  `json:"family_name"`
		DateRegistered apiTime                 `json:"date_registered"`
		Timezone       string                  `json:"timezone"`
		Locale         string                  `json:"locale"`
		Employment     []affiliationAttributes `json:"employment"`
		Education      []affiliationAttributes `json:"education"`
	}
	if err := r.decode(&attrs); err != nil {
		return nil, err
	}
	u := &User{
		ID:             r.ID,
		FullName:       attrs.FullName,
		GivenName:      attrs.GivenName,
		FamilyName:     attrs.FamilyName,
		DateRegistered: attrs.DateRegistered.t,
		Timezone:       attrs.Timezone,
		Locale:         attrs.Locale,
	}
	for _, a := range attrs.Employment {
		u.Employment = append(u.Employment, a.affiliation())
	}
	for _, a := range attrs.Education {
		u.Education = append(u.Education, a.affiliation())
	}
	return u, nil
}

// ContributorFromResource converts a contributors resource. An embedded
// user (?embed=users) is converted too.
func ContributorFromResource(r Resource) (*Contributor, error) {
	if err := r.expect("contributors"); err != nil {
		return nil, err
	}
	var attrs struct {
		Bibliographic bool       `json:"bibliographic"`
		Permission    Permission `json:"permission"`
		Index         int        `json:"index"`
	}
	if err := r.decode(&attrs); err != nil {
		return nil, err
	}
	c := &Contributor{
		ID:            r.ID,
		Bibliographic: attrs.Bibliographic,
		Permission:    attrs.Permission,
		Index:         attrs.Index,
		UserID:        r.ref("users"),
	}
	if ur, ok := r.embedded("users"); ok {
		u, err := UserFromResource(ur)
		if err != nil {
			return nil, err
		}
		c.User = u
		c.UserID = u.ID
	}
	if c.UserID == "" {
		if i := strings.LastIndex(c.ID, "-"); i >= 0 {
			c.UserID = c.ID[i+1:]
		}
	}
	return c, nil
}

// FileFromResource converts a files resource.
func FileFromResource(r Resource) (*File, error) {
	if err := r.expect("files"); err != nil {
		return nil, err
	}
	var attrs struct {
		Name             string  `json:"name"`
		Kind             string  `json:"kind"`
		Path             string  `json:"path"`
		MaterializedPath string  `json:"materialized_path"`
		Provider         string  `json:"provider"`
		Size             *int64  `json:"size"`
		DateCreated      apiTime `json:"date_created"`
		DateModified     apiTime `json:"date_modified"`
		Extra            struct {
			Hashes map[string]string `json:"hashes"`
		} `json:"extra"`
	}
	if err := r.decode(&attrs); err != nil {
		return nil, err
	}
	f := &File{
		ID:               r.ID,
		Name:             attrs.Name,
		Kind:             attrs.Kind,
		Path:             attrs.Path,
		MaterializedPath: attrs.MaterializedPath,
		Provider:         attrs.Provider,
		Size:             attrs.Size,
		DateCreated:      attrs.DateCreated.t,
		DateModified:     attrs.DateModified.t,
		DownloadURL:      r.Links.Get("download"),
	}
	if rel, ok := r.Relationships["files"]; ok {
		f.FilesURL = rel.Related()
	}
	for _, alg := range sortedKeys(attrs.Extra.Hashes) {
		if v := attrs.Extra.Hashes[alg]; v != "" {
			f.Checksums = append(f.Checksums, &Checksum{Algorithm: alg, Value: v})
		}
	}
	return f, nil
}

// WikiFromResource converts a wikis resource.
func WikiFromResource(r Resource) (*Wiki, error) {
	if err := r.expect("wikis"); err != nil {
		return nil, err
	}
	var attrs struct {
		Name         string  `json:"name"`
		Content      string  `json:"content"`
		DateModified apiTime `json:"date_modified"`
		Extra        struct {
			Version flexInt `json:"version"`
		} `json:"extra"`
	}
	if err := r.decode(&attrs); err != nil {
		return nil, err
	}
	return &Wiki{
		ID:           r.ID,
		Name:         attrs.Name,
		Content:      attrs.Content,
		DateModified: attrs.DateModified.t,
		Version:      attrs.Extra.Version.v,
		DownloadURL:  r.Links.Get("download"),
	}, nil
}

// CommentFromResource converts a comments resource.
func CommentFromResource(r Resource) (*Comment, error) {
	if err := r.expect("comments"); err != nil {
		return nil, err
	}
	var attrs struct {
		Content     string  `json:"content"`
		DateCreated apiTime `json:"date_created"`
		Deleted     bool    `json:"deleted"`
	}
	if err := r.decode(&attrs); err != nil {
		return nil, err
	}
	c := &Comment{
		ID:          r.ID,
		Content:     attrs.Content,
		DateCreated: attrs.DateCreated.t,
		Deleted:     attrs.Deleted,
		AuthorID:    r.ref("user"),
	}
	if rel, ok := r.Relationships["target"]; ok {
		if refs := rel.Refs(); len(refs) > 0 {
			c.TargetID, c.TargetType = refs[0].ID, refs[0].Type
		} else if meta, ok := rel.Links["related"].Meta["type"].(string); ok {
			c.TargetID, c.TargetType = lastSegment(rel.Related()), meta
		}
	}
	return c, nil
}

// LicenseFromResource converts a licenses resource.
func LicenseFromResource(r Resource) (*License, error) {
	if err := r.expect("licenses"); err != nil {
		return nil, err
	}
	var attrs struct {
		Name string `json:"name"`
		URL  string `json:"url"`
		Text string `json:"text"`
	}
	if err := r.decode(&attrs); err != nil {
		return nil, err
	}
	return &License{ID: r.ID, Name: attrs.Name, URL: attrs.URL, Text: attrs.Text}, nil
}

// InstitutionFromResource converts an institutions resource.
func InstitutionFromResource(r Resource) (*Institution, error) {
	if err := r.expect("institutions"); err != nil {
		return nil, err
	}
	var attrs struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := r.decode(&attrs); err != nil {
		return nil, err
	}
	return &Institution{ID: r.ID, Name: attrs.Name, Description: attrs.Description}, nil
}

// IdentifierFromResource converts an identifiers resource.
func IdentifierFromResource(r Resource) (*Identifier, error) {
	if err := r.expect("identifiers"); err != nil {
		return nil, err
	}
	var attrs struct {
		Category string `json:"category"`
		Value    string `json:"value"`
	}
	if err := r.decode(&attrs); err != nil {
		return nil, err
	}
	return &Identifier{ID: r.ID, Category: attrs.Category, Value: attrs.Value}, nil
}

// mergeLicense copies the shared license fields into the node-specific one.
func mergeLicense(node, shared *License) *License {
	if shared == nil {
		return node
	}
	if node == nil {
		cp := *shared
		return &cp
	}
	node.ID = shared.ID
	node.Name = shared.Name
	node.URL = shared.URL
	node.Text = shared.Text
	return node
}

var errNoPrimary = errors.New("document has no primary data")
