package osf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// API is the subset of the OSF API the Fetcher uses. *Client implements it.
type API interface {
	GetRegistration(ctx context.Context, id string) (*Registration, error)
	GetNode(ctx context.Context, id string) (*Node, error)
	GetUser(ctx context.Context, id string) (*User, error)
	GetLicense(ctx context.Context, id string) (*License, error)
	ListContributors(ctx context.Context, kind Kind, id string) ([]*Contributor, error)
	ListChildren(ctx context.Context, id string) ([]*Registration, error)
	ListWikis(ctx context.Context, kind Kind, id string) ([]*Wiki, error)
	ListComments(ctx context.Context, kind Kind, id string) ([]*Comment, error)
	ListFiles(ctx context.Context, kind Kind, id string) ([]*File, error)
	ListFolder(ctx context.Context, folder *File) ([]*File, error)
	ListInstitutions(ctx context.Context, kind Kind, id string) ([]*Institution, error)
	ListIdentifiers(ctx context.Context, kind Kind, id string) ([]*Identifier, error)
}

var _ API = (*Client)(nil)

// FetcherConfig bounds how much of a registration graph is fetched.
type FetcherConfig struct {
	// ChildDepth is the number of child registration levels fetched below
	// the root. Negative means unbounded.
	ChildDepth int

	// FileDepth is the number of folder levels expanded below the top level
	// of storage. Negative means unbounded.
	FileDepth int

	Logger *slog.Logger
}

// Fetcher assembles registration graphs from the API. Users and licenses
// are fetched once per call and shared, and parent/child links point both
// ways, so the result contains cycles.
type Fetcher struct {
	api    API
	cfg    FetcherConfig
	logger *slog.Logger
}

// NewFetcher creates a fetcher.
func NewFetcher(api API, cfg FetcherConfig) *Fetcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{api: api, cfg: cfg, logger: logger}
}

// Registration fetches the registration with id and everything reachable
// from it within the configured depths.
func (f *Fetcher) Registration(ctx context.Context, id string) (*Registration, error) {
	reg, err := f.api.GetRegistration(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get registration %s: %w", id, err)
	}
	s := &fetchSession{
		Fetcher:       f,
		users:         make(map[string]*User),
		licenses:      make(map[string]*License),
		registrations: map[string]*Registration{reg.ID: reg},
	}
	if err := s.registration(ctx, reg, 0); err != nil {
		return nil, err
	}
	f.logger.Info("Fetched registration",
		"id", reg.ID,
		"children", len(reg.Children),
		"contributors", len(reg.Contributors),
		"files", len(reg.Files),
		"users", len(s.users))
	return reg, nil
}

// fetchSession holds the caches of a single Registration call.
type fetchSession struct {
	*Fetcher
	users         map[string]*User
	licenses      map[string]*License
	registrations map[string]*Registration
}

func (s *fetchSession) registration(ctx context.Context, reg *Registration, depth int) error {
	if err := s.fillBase(ctx, KindRegistration, &reg.NodeBase); err != nil {
		return err
	}

	if reg.RegisteredFromID != "" {
		node, err := s.api.GetNode(ctx, reg.RegisteredFromID)
		switch {
		case errors.Is(err, ErrNotFound):
			s.logger.Warn("Source node not accessible", "registration", reg.ID, "node", reg.RegisteredFromID)
		case err != nil:
			return fmt.Errorf("get node %s: %w", reg.RegisteredFromID, err)
		default:
			reg.RegisteredFrom = node
		}
	}
	if reg.RegisteredByID != "" {
		u, err := s.user(ctx, reg.RegisteredByID)
		if err != nil {
			return err
		}
		reg.RegisteredBy = u
	}

	if !within(depth, s.cfg.ChildDepth) {
		return nil
	}
	children, err := s.api.ListChildren(ctx, reg.ID)
	if err != nil {
		return fmt.Errorf("list children of %s: %w", reg.ID, err)
	}
	for _, child := range children {
		if known, ok := s.registrations[child.ID]; ok {
			child = known
		} else {
			s.registrations[child.ID] = child
			if err := s.registration(ctx, child, depth+1); err != nil {
				return err
			}
		}
		child.Parent = reg
		reg.Children = append(reg.Children, child)
	}
	return nil
}

func (s *fetchSession) fillBase(ctx context.Context, kind Kind, nb *NodeBase) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	contributors, err := s.api.ListContributors(ctx, kind, nb.ID)
	if err != nil {
		return fmt.Errorf("list contributors of %s: %w", nb.ID, err)
	}
	for _, c := range contributors {
		switch {
		case c.User != nil:
			if known, ok := s.users[c.User.ID]; ok {
				c.User = known
			} else {
				s.users[c.User.ID] = c.User
			}
		case c.UserID != "":
			if c.User, err = s.user(ctx, c.UserID); err != nil {
				return err
			}
		}
	}
	nb.Contributors = contributors

	files, err := optional(s, nb.ID, "files", func() ([]*File, error) {
		return s.api.ListFiles(ctx, kind, nb.ID)
	})
	if err != nil {
		return err
	}
	for _, file := range files {
		if err := s.folder(ctx, file, 0); err != nil {
			return err
		}
	}
	nb.Files = files

	if nb.Wikis, err = optional(s, nb.ID, "wikis", func() ([]*Wiki, error) {
		return s.api.ListWikis(ctx, kind, nb.ID)
	}); err != nil {
		return err
	}

	comments, err := optional(s, nb.ID, "comments", func() ([]*Comment, error) {
		return s.api.ListComments(ctx, kind, nb.ID)
	})
	if err != nil {
		return err
	}
	for _, c := range comments {
		if c.AuthorID == "" {
			continue
		}
		if c.Author, err = s.user(ctx, c.AuthorID); err != nil {
			return err
		}
	}
	nb.Comments = nestComments(comments)

	if nb.LicenseID != "" {
		shared, err := s.license(ctx, nb.LicenseID)
		if err != nil {
			return err
		}
		nb.License = mergeLicense(nb.License, shared)
	}

	if nb.Institutions, err = optional(s, nb.ID, "institutions", func() ([]*Institution, error) {
		return s.api.ListInstitutions(ctx, kind, nb.ID)
	}); err != nil {
		return err
	}
	if nb.Identifiers, err = optional(s, nb.ID, "identifiers", func() ([]*Identifier, error) {
		return s.api.ListIdentifiers(ctx, kind, nb.ID)
	}); err != nil {
		return err
	}
	return nil
}

func (s *fetchSession) folder(ctx context.Context, file *File, depth int) error {
	if !file.IsFolder() || !within(depth, s.cfg.FileDepth) {
		return nil
	}
	children, err := s.api.ListFolder(ctx, file)
	if err != nil {
		return fmt.Errorf("list folder %s: %w", file.MaterializedPath, err)
	}
	for _, child := range children {
		if err := s.folder(ctx, child, depth+1); err != nil {
			return err
		}
	}
	file.Files = children
	return nil
}

// user returns the cached user or fetches it. Users that no longer exist
// yield nil.
func (s *fetchSession) user(ctx context.Context, id string) (*User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	u, err := s.api.GetUser(ctx, id)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn("User not accessible", "user", id)
		s.users[id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	s.users[id] = u
	return u, nil
}

func (s *fetchSession) license(ctx context.Context, id string) (*License, error) {
	if l, ok := s.licenses[id]; ok {
		return l, nil
	}
	l, err := s.api.GetLicense(ctx, id)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn("License not accessible", "license", id)
		s.licenses[id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get license %s: %w", id, err)
	}
	s.licenses[id] = l
	return l, nil
}

// optional lists a section that some nodes do not expose. A 404 yields an
// empty section.
func optional[T any](s *fetchSession, id, section string, list func() ([]T, error)) ([]T, error) {
	items, err := list()
	if errors.Is(err, ErrNotFound) {
		s.logger.Debug("Section not available", "node", id, "section", section)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s of %s: %w", section, id, err)
	}
	return items, nil
}

func within(depth, limit int) bool {
	return limit < 0 || depth < limit
}
