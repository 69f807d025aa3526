// Package bag writes BagIt 1.0 packages (RFC 8493) with SHA-256 payload and
// tag manifests.
package bag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// BagIt constants.
const (
	Version          = "1.0"
	PayloadDir       = "data"
	DeclarationFile  = "bagit.txt"
	InfoFile         = "bag-info.txt"
	ManifestFile     = "manifest-sha256.txt"
	TagManifestFile  = "tagmanifest-sha256.txt"
	defaultSoftware  = "osfipm"
	baggingDateStyle = "2006-01-02"
)

// Well-known bag-info.txt field names.
const (
	FieldSourceOrganization  = "Source-Organization"
	FieldExternalIdentifier  = "External-Identifier"
	FieldExternalDescription = "External-Description"
	FieldBaggingDate         = "Bagging-Date"
	FieldBagSoftwareAgent    = "Bag-Software-Agent"
	FieldPayloadOxum         = "Payload-Oxum"
)

// Common bag errors.
var (
	// ErrDirectoryNotEmpty is returned when the target directory already
	// has content.
	ErrDirectoryNotEmpty = errors.New("bag directory is not empty")

	// ErrInvalidPath is returned for payload paths that are empty or
	// escape the payload directory.
	ErrInvalidPath = errors.New("invalid payload path")

	// ErrManifestMismatch is returned by Verify when content does not
	// match the manifests.
	ErrManifestMismatch = errors.New("manifest mismatch")
)

// Field is one bag-info.txt line.
type Field struct {
	Name  string
	Value string
}

// Entry is one payload file. Content writes the file body.
type Entry struct {
	// Path is slash separated and relative to data/.
	Path    string
	Content func(ctx context.Context, w io.Writer) error

	// Required entries bypass the writer's Selector.
	Required bool
}

// Bytes returns an Entry with static content.
func Bytes(p string, b []byte) Entry {
	return Entry{Path: p, Content: func(_ context.Context, w io.Writer) error {
		_, err := w.Write(b)
		return err
	}}
}

// Bag describes a bag to write.
type Bag struct {
	Info    []Field
	Entries []Entry
}

// Result summarizes a written bag.
type Result struct {
	Dir                string
	Files              int
	Octets             int64
	ExternalIdentifier string
	// Skipped lists payload paths excluded by the Selector.
	Skipped []string
}

// Writer writes bags to a directory.
type Writer struct {
	dir         string
	selector    Selector
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithSelector filters payload entries.
func WithSelector(s Selector) Option {
	return func(w *Writer) {
		w.selector = s
	}
}

// WithConcurrency sets how many payload entries are written at once.
func WithConcurrency(n int) Option {
	return func(w *Writer) {
		w.concurrency = n
	}
}

// WithClock sets the clock used for Bagging-Date.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		w.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = l
	}
}

// NewWriter creates a writer that bags into dir.
func NewWriter(dir string, opts ...Option) *Writer {
	w := &Writer{
		dir:         dir,
		concurrency: 4,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type written struct {
	path   string
	sum    string
	octets int64
}

// Write creates the bag. The target directory is created if needed and must
// be empty.
func (w *Writer) Write(ctx context.Context, b Bag) (_ *Result, err error) {
	if err := w.selector.Validate(); err != nil {
		return nil, err
	}
	created, err := prepareDir(w.dir)
	if err != nil {
		return nil, err
	}
	// A failed write leaves the directory as it found it, so a rerun can
	// target the same path.
	defer func() {
		if err != nil {
			w.discard(created)
		}
	}()

	res := &Result{Dir: w.dir}
	entries := make([]Entry, 0, len(b.Entries))
	seen := make(map[string]bool, len(b.Entries))
	for _, e := range b.Entries {
		p, err := cleanPath(e.Path)
		if err != nil {
			return nil, err
		}
		if seen[p] {
			return nil, fmt.Errorf("%w: duplicate %s", ErrInvalidPath, p)
		}
		seen[p] = true
		if !e.Required && !w.selector.Match(p) {
			res.Skipped = append(res.Skipped, p)
			continue
		}
		e.Path = p
		entries = append(entries, e)
	}

	files, err := w.writePayload(ctx, entries)
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	for _, f := range files {
		res.Octets += f.octets
	}
	res.Files = len(files)

	info := w.info(b.Info, res)
	if err := w.writeTags(files, info); err != nil {
		return nil, err
	}

	w.logger.Info("Bag written",
		"dir", w.dir,
		"files", res.Files,
		"octets", res.Octets,
		"skipped", len(res.Skipped))
	return res, nil
}

func (w *Writer) writePayload(ctx context.Context, entries []Entry) ([]written, error) {
	files := make([]written, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	if w.concurrency > 0 {
		g.SetLimit(w.concurrency)
	}
	for i, e := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := w.writeEntry(ctx, e)
			if err != nil {
				return fmt.Errorf("write payload %s: %w", e.Path, err)
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func (w *Writer) writeEntry(ctx context.Context, e Entry) (written, error) {
	full := filepath.Join(w.dir, PayloadDir, filepath.FromSlash(e.Path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return written{}, err
	}
	f, err := os.Create(full)
	if err != nil {
		return written{}, err
	}
	defer f.Close()

	h := sha256.New()
	cw := &countingWriter{w: io.MultiWriter(f, h)}
	if err := e.Content(ctx, cw); err != nil {
		return written{}, err
	}
	if err := f.Close(); err != nil {
		return written{}, err
	}
	return written{
		path:   path.Join(PayloadDir, e.Path),
		sum:    hex.EncodeToString(h.Sum(nil)),
		octets: cw.n.Load(),
	}, nil
}

// info completes the bag-info fields: Bagging-Date, Bag-Software-Agent,
// Payload-Oxum and an External-Identifier are added when absent.
func (w *Writer) info(fields []Field, res *Result) []Field {
	out := make([]Field, 0, len(fields)+4)
	has := make(map[string]bool)
	for _, f := range fields {
		if strings.EqualFold(f.Name, FieldPayloadOxum) {
			continue
		}
		out = append(out, Field{Name: f.Name, Value: oneLine(f.Value)})
		has[strings.ToLower(f.Name)] = true
		if strings.EqualFold(f.Name, FieldExternalIdentifier) && res.ExternalIdentifier == "" {
			res.ExternalIdentifier = f.Value
		}
	}
	if !has[strings.ToLower(FieldExternalIdentifier)] {
		res.ExternalIdentifier = "urn:uuid:" + uuid.NewString()
		out = append(out, Field{Name: FieldExternalIdentifier, Value: res.ExternalIdentifier})
	}
	if !has[strings.ToLower(FieldBaggingDate)] {
		out = append(out, Field{Name: FieldBaggingDate, Value: w.now().UTC().Format(baggingDateStyle)})
	}
	if !has[strings.ToLower(FieldBagSoftwareAgent)] {
		out = append(out, Field{Name: FieldBagSoftwareAgent, Value: defaultSoftware})
	}
	out = append(out, Field{Name: FieldPayloadOxum, Value: fmt.Sprintf("%d.%d", res.Octets, res.Files)})
	return out
}

func (w *Writer) writeTags(files []written, info []Field) error {
	var manifest strings.Builder
	for _, f := range files {
		fmt.Fprintf(&manifest, "%s  %s\n", f.sum, encodePath(f.path))
	}
	var infoText strings.Builder
	for _, f := range info {
		fmt.Fprintf(&infoText, "%s: %s\n", f.Name, f.Value)
	}

	tags := []struct {
		name    string
		content string
	}{
		{DeclarationFile, "BagIt-Version: " + Version + "\nTag-File-Character-Encoding: UTF-8\n"},
		{InfoFile, infoText.String()},
		{ManifestFile, manifest.String()},
	}

	var tagManifest strings.Builder
	for _, t := range tags {
		if err := os.WriteFile(filepath.Join(w.dir, t.name), []byte(t.content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", t.name, err)
		}
		sum := sha256.Sum256([]byte(t.content))
		fmt.Fprintf(&tagManifest, "%s  %s\n", hex.EncodeToString(sum[:]), t.name)
	}
	if err := os.WriteFile(filepath.Join(w.dir, TagManifestFile), []byte(tagManifest.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", TagManifestFile, err)
	}
	return nil
}

// prepareDir makes sure dir exists and is empty. created reports whether
// dir did not exist before.
func prepareDir(dir string) (created bool, err error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		created = true
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create bag directory: %w", err)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("read bag directory: %w", err)
	}
	if len(ents) > 0 {
		return false, fmt.Errorf("%w: %s", ErrDirectoryNotEmpty, dir)
	}
	return created, nil
}

// discard removes what a failed Write left behind. A directory the writer
// created is removed entirely; a pre-existing one is emptied.
func (w *Writer) discard(created bool) {
	if created {
		if err := os.RemoveAll(w.dir); err != nil {
			w.logger.Warn("Failed to remove incomplete bag", "dir", w.dir, "error", err)
		}
		return
	}
	ents, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("Failed to read incomplete bag", "dir", w.dir, "error", err)
		return
	}
	for _, e := range ents {
		if err := os.RemoveAll(filepath.Join(w.dir, e.Name())); err != nil {
			w.logger.Warn("Failed to remove incomplete bag entry", "dir", w.dir, "entry", e.Name(), "error", err)
		}
	}
}

// cleanPath normalizes a payload path and rejects paths leaving data/.
func cleanPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	clean := path.Clean("/" + p)
	if clean == "/" || strings.Contains(p, "\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	rel := strings.TrimPrefix(clean, "/")
	if rel != strings.TrimPrefix(path.Clean(p), "/") {
		return "", fmt.Errorf("%w: %q escapes the payload directory", ErrInvalidPath, p)
	}
	return rel, nil
}

// encodePath percent-encodes the characters RFC 8493 reserves in manifest
// paths.
func encodePath(p string) string {
	r := strings.NewReplacer("%", "%25", "\n", "%0A", "\r", "%0D")
	return r.Replace(p)
}

func decodePath(p string) string {
	r := strings.NewReplacer("%0A", "\n", "%0D", "\r", "%25", "%")
	return r.Replace(p)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type countingWriter struct {
	w io.Writer
	n atomic.Int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	return n, err
}
