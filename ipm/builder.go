package ipm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/c360studio/osfipm/export"
	"github.com/c360studio/osfipm/mapping"
	"github.com/c360studio/osfipm/osf"
	vocab "github.com/c360studio/osfipm/vocabulary/osf"
)

// Options configures a Builder.
type Options struct {
	Profile export.Profile

	// ContinueOnError skips individuals that cannot be mapped instead of
	// failing the build.
	ContinueOnError bool

	// Workers bounds parallel walks when building several registrations.
	Workers int

	// BlankNodeID overrides blank node labelling, mainly for tests.
	BlankNodeID func() string

	Logger  *slog.Logger
	Metrics *mapping.Metrics
}

// Builder maps registrations into IPM graphs.
type Builder struct {
	mapper  *mapping.Mapper
	profile export.Profile
	logger  *slog.Logger
}

// NewBuilder creates a builder over the OSF mapping tables.
func NewBuilder(opts Options) (*Builder, error) {
	reg, err := Registry()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m, err := mapping.NewMapper(mapping.Config{
		Registry:        reg,
		Transforms:      Transforms(),
		Properties:      vocab.Properties(),
		Workers:         opts.Workers,
		ContinueOnError: opts.ContinueOnError,
		BlankNodeID:     opts.BlankNodeID,
		Logger:          logger,
		Metrics:         opts.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Builder{mapper: m, profile: opts.Profile, logger: logger}, nil
}

// Package is the mapped form of one or more registrations.
type Package struct {
	// Root is the first registration built.
	Root    *osf.Registration
	Graph   *export.Graph
	Index   *mapping.Index
	Payload []PayloadFile
}

// PayloadFile is a stored file that belongs in the package payload.
type PayloadFile struct {
	// Path is "<registration>/<materialized path>", slash separated.
	Path        string
	FileID      string
	DownloadURL string
	Size        *int64
	// Checksums maps algorithm to hex digest as reported by OSF.
	Checksums map[string]string
}

// Build maps the registrations into one graph and lists their payload files.
func (b *Builder) Build(ctx context.Context, regs ...*osf.Registration) (*Package, error) {
	if len(regs) == 0 {
		return nil, errors.New("no registrations to build")
	}
	roots := make([]any, 0, len(regs))
	for _, r := range regs {
		if r == nil {
			return nil, mapping.ErrNilInstance
		}
		roots = append(roots, r)
	}

	graph := export.NewGraph(export.WithProfile(b.profile))
	idx, err := b.mapper.MapAll(ctx, roots, graph)
	if err != nil {
		return nil, fmt.Errorf("map registration %s: %w", regs[0].ID, err)
	}

	pkg := &Package{
		Root:    regs[0],
		Graph:   graph,
		Index:   idx,
		Payload: payload(regs),
	}
	b.logger.Info("Built IPM graph",
		"registration", regs[0].ID,
		"statements", graph.Len(),
		"payload_files", len(pkg.Payload))
	return pkg, nil
}

// payload lists the downloadable files of the registrations and their
// descendants, sorted by path.
func payload(regs []*osf.Registration) []PayloadFile {
	var out []PayloadFile
	seen := make(map[*osf.Registration]bool)
	var visit func(r *osf.Registration)
	visit = func(r *osf.Registration) {
		if r == nil || seen[r] {
			return
		}
		seen[r] = true
		for _, f := range r.Files {
			out = appendFiles(out, r.ID, f)
		}
		for _, c := range r.Children {
			visit(c)
		}
	}
	for _, r := range regs {
		visit(r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func appendFiles(out []PayloadFile, regID string, f *osf.File) []PayloadFile {
	if f == nil {
		return out
	}
	if f.IsFolder() {
		for _, child := range f.Files {
			out = appendFiles(out, regID, child)
		}
		return out
	}
	if f.DownloadURL == "" {
		return out
	}
	rel := f.MaterializedPath
	if rel == "" {
		rel = f.Name
	}
	// Rooting before cleaning keeps ".." inside the registration directory.
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	pf := PayloadFile{
		Path:        path.Join(regID, rel),
		FileID:      f.ID,
		DownloadURL: f.DownloadURL,
		Size:        f.Size,
	}
	if len(f.Checksums) > 0 {
		pf.Checksums = make(map[string]string, len(f.Checksums))
		for _, c := range f.Checksums {
			pf.Checksums[c.Algorithm] = c.Value
		}
	}
	return append(out, pf)
}
