package osf

import (
	"fmt"
	"os"
	"sort"
)

// DecodeRegistrationFile reads a JSON-API document from path and assembles
// its registration graph. See AssembleRegistration.
func DecodeRegistrationFile(path string) (*Registration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registration document: %w", err)
	}
	defer f.Close()

	doc, err := DecodeDocument(f)
	if err != nil {
		return nil, err
	}
	return AssembleRegistration(doc)
}

// AssembleRegistration builds the registration graph of a document whose
// primary data is a registration. Relationships are resolved against the
// primary resource and the included resources; references to resources that
// are not included are left empty. Shared resources, such as a user who is
// both a contributor and a comment author, become shared pointers, and
// parent/child links form real cycles.
func AssembleRegistration(doc *Document) (*Registration, error) {
	primary, err := doc.Resource()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNoPrimary, err)
	}
	if err := primary.expect(string(KindRegistration)); err != nil {
		return nil, err
	}

	a := newAssembler(append([]Resource{primary}, doc.Included...))
	return a.registration(primary)
}

type assembler struct {
	resources map[Ref]Resource

	registrations map[string]*Registration
	nodes         map[string]*Node
	users         map[string]*User
	files         map[string]*File
	comments      map[string]*Comment
}

func newAssembler(resources []Resource) *assembler {
	a := &assembler{
		resources:     make(map[Ref]Resource, len(resources)),
		registrations: make(map[string]*Registration),
		nodes:         make(map[string]*Node),
		users:         make(map[string]*User),
		files:         make(map[string]*File),
		comments:      make(map[string]*Comment),
	}
	for _, r := range resources {
		a.resources[Ref{ID: r.ID, Type: r.Type}] = r
	}
	return a
}

// related returns the included resources referenced by the relationship.
func (a *assembler) related(r Resource, name string) []Resource {
	rel, ok := r.Relationships[name]
	if !ok {
		return nil
	}
	var out []Resource
	for _, ref := range rel.Refs() {
		if res, ok := a.resources[ref]; ok {
			out = append(out, res)
		}
	}
	return out
}

func (a *assembler) registration(r Resource) (*Registration, error) {
	if reg, ok := a.registrations[r.ID]; ok {
		return reg, nil
	}
	reg, err := RegistrationFromResource(r)
	if err != nil {
		return nil, err
	}
	a.registrations[r.ID] = reg

	if err := a.fillBase(&reg.NodeBase, r); err != nil {
		return nil, err
	}

	for _, cr := range a.related(r, "children") {
		child, err := a.registration(cr)
		if err != nil {
			return nil, err
		}
		child.Parent = reg
		reg.Children = append(reg.Children, child)
	}
	for _, pr := range a.related(r, "parent") {
		parent, err := a.registration(pr)
		if err != nil {
			return nil, err
		}
		reg.Parent = parent
	}
	for _, nr := range a.related(r, "registered_from") {
		node, err := a.node(nr)
		if err != nil {
			return nil, err
		}
		reg.RegisteredFrom = node
	}
	for _, ur := range a.related(r, "registered_by") {
		u, err := a.user(ur)
		if err != nil {
			return nil, err
		}
		reg.RegisteredBy = u
	}
	return reg, nil
}

func (a *assembler) node(r Resource) (*Node, error) {
	if n, ok := a.nodes[r.ID]; ok {
		return n, nil
	}
	n, err := NodeFromResource(r)
	if err != nil {
		return nil, err
	}
	a.nodes[r.ID] = n
	if err := a.fillBase(&n.NodeBase, r); err != nil {
		return nil, err
	}
	for _, cr := range a.related(r, "children") {
		child, err := a.node(cr)
		if err != nil {
			return nil, err
		}
		child.Parent = n
		n.Children = append(n.Children, child)
	}
	return n, nil
}

func (a *assembler) user(r Resource) (*User, error) {
	if u, ok := a.users[r.ID]; ok {
		return u, nil
	}
	u, err := UserFromResource(r)
	if err != nil {
		return nil, err
	}
	a.users[r.ID] = u
	return u, nil
}

// userByID returns the included user with id, if any.
func (a *assembler) userByID(id string) (*User, error) {
	if u, ok := a.users[id]; ok {
		return u, nil
	}
	r, ok := a.resources[Ref{ID: id, Type: "users"}]
	if !ok {
		return nil, nil
	}
	return a.user(r)
}

func (a *assembler) fillBase(nb *NodeBase, r Resource) error {
	for _, cr := range a.related(r, "contributors") {
		c, err := ContributorFromResource(cr)
		if err != nil {
			return err
		}
		switch {
		case c.User != nil:
			if known, ok := a.users[c.User.ID]; ok {
				c.User = known
			} else {
				a.users[c.User.ID] = c.User
			}
		case c.UserID != "":
			if c.User, err = a.userByID(c.UserID); err != nil {
				return err
			}
		}
		nb.Contributors = append(nb.Contributors, c)
	}

	for _, fr := range a.related(r, "files") {
		f, err := a.file(fr)
		if err != nil {
			return err
		}
		nb.Files = append(nb.Files, f)
	}

	for _, wr := range a.related(r, "wikis") {
		w, err := WikiFromResource(wr)
		if err != nil {
			return err
		}
		nb.Wikis = append(nb.Wikis, w)
	}

	comments, err := a.commentTree(a.related(r, "comments"))
	if err != nil {
		return err
	}
	nb.Comments = comments

	for _, lr := range a.related(r, "license") {
		l, err := LicenseFromResource(lr)
		if err != nil {
			return err
		}
		nb.License = mergeLicense(nb.License, l)
	}

	for _, ir := range a.related(r, "affiliated_institutions") {
		inst, err := InstitutionFromResource(ir)
		if err != nil {
			return err
		}
		nb.Institutions = append(nb.Institutions, inst)
	}

	for _, ir := range a.related(r, "identifiers") {
		id, err := IdentifierFromResource(ir)
		if err != nil {
			return err
		}
		nb.Identifiers = append(nb.Identifiers, id)
	}
	return nil
}

func (a *assembler) file(r Resource) (*File, error) {
	if f, ok := a.files[r.ID]; ok {
		return f, nil
	}
	f, err := FileFromResource(r)
	if err != nil {
		return nil, err
	}
	a.files[r.ID] = f
	for _, cr := range a.related(r, "files") {
		child, err := a.file(cr)
		if err != nil {
			return nil, err
		}
		f.Files = append(f.Files, child)
	}
	return f, nil
}

// commentTree converts comments and nests replies under the comment they
// target. Comments that target anything else are returned as roots.
func (a *assembler) commentTree(resources []Resource) ([]*Comment, error) {
	all := make([]*Comment, 0, len(resources))
	for _, cr := range resources {
		c, ok := a.comments[cr.ID]
		if !ok {
			var err error
			if c, err = CommentFromResource(cr); err != nil {
				return nil, err
			}
			if c.AuthorID != "" {
				if c.Author, err = a.userByID(c.AuthorID); err != nil {
					return nil, err
				}
			}
			a.comments[cr.ID] = c
		}
		all = append(all, c)
	}
	return nestComments(all), nil
}

// nestComments attaches replies to their target comments and returns the
// top-level comments in input order.
func nestComments(all []*Comment) []*Comment {
	byID := make(map[string]*Comment, len(all))
	for _, c := range all {
		byID[c.ID] = c
	}
	var roots []*Comment
	for _, c := range all {
		if c.TargetType == "comments" {
			if parent, ok := byID[c.TargetID]; ok && parent != c {
				if !hasReply(parent, c) {
					parent.Replies = append(parent.Replies, c)
				}
				continue
			}
		}
		roots = append(roots, c)
	}
	return roots
}

func hasReply(parent, c *Comment) bool {
	for _, r := range parent.Replies {
		if r == c {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
