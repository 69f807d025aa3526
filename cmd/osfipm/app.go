package main

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/c360studio/semstreams/pkg/retry"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360studio/osfipm/bag"
	"github.com/c360studio/osfipm/config"
	"github.com/c360studio/osfipm/export"
	"github.com/c360studio/osfipm/graph"
	"github.com/c360studio/osfipm/ipm"
	"github.com/c360studio/osfipm/mapping"
	"github.com/c360studio/osfipm/osf"
	"github.com/c360studio/osfipm/publish"
	"github.com/c360studio/osfipm/storage"
	vocab "github.com/c360studio/osfipm/vocabulary/osf"
)

// metadataDir holds the RDF serialization inside the bag payload.
const metadataDir = "metadata"

// App wires the OSF client, the IPM builder and the packaging pipeline.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	client   *osf.Client
	fetcher  *osf.Fetcher
	builder  *ipm.Builder
	registry *prometheus.Registry

	// NATS, only when nats.url is set
	natsConn  *nats.Conn
	publisher *publish.Publisher
	ledger    ledger
	ingester  ingester
}

// ledger records package runs.
type ledger interface {
	Begin(ctx context.Context, registration string) (*storage.Record, error)
	Complete(ctx context.Context, registration string, out storage.Outcome) error
	Fail(ctx context.Context, registration string, cause error) error
	Get(ctx context.Context, registration string) (*storage.Record, error)
	List(ctx context.Context) ([]*storage.Record, error)
}

// ingester publishes mapped entities for graph ingestion.
type ingester interface {
	Ingest(ctx context.Context, payloads []*graph.EntityPayload) (int, error)
}

// PackageResult summarizes a package run.
type PackageResult struct {
	Registration string
	Format       export.Format
	Statements   int
	// Entities is the number of entities published for graph ingestion.
	Entities int
	Bag      *bag.Result
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	profile, err := export.ParseProfile(cfg.Export.Profile)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics, err := mapping.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	builder, err := ipm.NewBuilder(ipm.Options{
		Profile:         profile,
		ContinueOnError: cfg.Mapping.ContinueOnError,
		Workers:         cfg.Mapping.Workers,
		Logger:          logger,
		Metrics:         metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create builder: %w", err)
	}

	client := osf.NewClient(cfg.OSF.BaseURL,
		osf.WithToken(cfg.OSF.Token),
		osf.WithPageSize(cfg.OSF.PageSize),
		osf.WithHTTPClient(&http.Client{Timeout: cfg.OSF.Timeout}),
		osf.WithRetryConfig(retry.Config{
			MaxAttempts:  cfg.OSF.Retry.MaxAttempts,
			InitialDelay: cfg.OSF.Retry.InitialDelay,
			MaxDelay:     cfg.OSF.Retry.MaxDelay,
			Multiplier:   2,
			AddJitter:    true,
		}),
		osf.WithLogger(logger))

	return &App{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		fetcher:  osf.NewFetcher(client, osf.FetcherConfig{ChildDepth: cfg.OSF.ChildDepth, FileDepth: cfg.OSF.FileDepth, Logger: logger}),
		builder:  builder,
		registry: registry,
	}, nil
}

// Start connects to NATS when it is configured and sets up announcements,
// the package ledger and graph ingestion.
func (a *App) Start(ctx context.Context) error {
	if a.cfg.NATS.URL == "" {
		a.logger.Debug("NATS not configured, packages will not be announced")
		return nil
	}
	conn, err := publish.Connect(a.cfg.NATS.URL, a.logger)
	if err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}
	a.natsConn = conn
	a.publisher = publish.NewPublisher(conn, a.cfg.NATS.Subject, a.logger)

	if !a.cfg.NATS.Ledger && !a.cfg.NATS.Ingest {
		return nil
	}
	js, err := jetstream.New(conn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	if a.cfg.NATS.Ledger {
		store, err := storage.NewStore(ctx, js)
		if err != nil {
			return fmt.Errorf("start ledger: %w", err)
		}
		a.ledger = store
	}
	if a.cfg.NATS.Ingest {
		a.ingester = publish.NewIngester(js, a.logger)
	}
	return nil
}

// Shutdown drains the NATS connection.
func (a *App) Shutdown() {
	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			a.logger.Warn("NATS drain failed", "error", err)
		}
		a.natsConn.Close()
		a.natsConn = nil
	}
}

// Package fetches a registration, maps it and writes a bag to dir. The run
// is recorded in the ledger when one is configured; ledger failures are
// logged and never fail the run.
func (a *App) Package(ctx context.Context, id, dir string) (*PackageResult, error) {
	tracked := false
	if a.ledger != nil {
		if _, err := a.ledger.Begin(ctx, id); err != nil {
			a.logger.Warn("Failed to record package run", "registration", id, "error", err)
		} else {
			tracked = true
		}
	}

	res, err := a.writePackage(ctx, id, dir)

	if tracked {
		// Record the outcome even when ctx was cancelled mid-run.
		rctx := context.WithoutCancel(ctx)
		var lerr error
		if err != nil {
			lerr = a.ledger.Fail(rctx, id, err)
		} else {
			lerr = a.ledger.Complete(rctx, id, storage.Outcome{
				Dir:                res.Bag.Dir,
				Format:             string(res.Format),
				Statements:         res.Statements,
				Files:              res.Bag.Files,
				Octets:             res.Bag.Octets,
				ExternalIdentifier: res.Bag.ExternalIdentifier,
			})
		}
		if lerr != nil {
			a.logger.Warn("Failed to record package outcome", "registration", id, "error", lerr)
		}
	}
	return res, err
}

func (a *App) writePackage(ctx context.Context, id, dir string) (*PackageResult, error) {
	format, err := export.ParseFormat(a.cfg.Export.Format)
	if err != nil {
		return nil, err
	}

	reg, err := a.fetcher.Registration(ctx, id)
	if err != nil {
		return nil, err
	}
	pkg, err := a.builder.Build(ctx, reg)
	if err != nil {
		return nil, err
	}

	var rdf bytes.Buffer
	if err := pkg.Graph.Write(&rdf, format); err != nil {
		return nil, err
	}
	info, _ := export.GetFormatInfo(format)

	entries := []bag.Entry{{
		Path:     path.Join(metadataDir, reg.ID+info.Extension),
		Required: true,
		Content: func(_ context.Context, w io.Writer) error {
			_, err := w.Write(rdf.Bytes())
			return err
		},
	}}
	if a.cfg.Package.Download {
		for _, pf := range pkg.Payload {
			entries = append(entries, bag.Entry{
				Path:    path.Join("files", pf.Path),
				Content: a.download(pf),
			})
		}
	}

	writer := bag.NewWriter(dir,
		bag.WithSelector(bag.Selector{Include: a.cfg.Package.Include, Exclude: a.cfg.Package.Exclude}),
		bag.WithConcurrency(a.cfg.Package.Concurrency),
		bag.WithLogger(a.logger))
	res, err := writer.Write(ctx, bag.Bag{Info: a.bagInfo(reg), Entries: entries})
	if err != nil {
		return nil, err
	}

	out := &PackageResult{Registration: reg.ID, Format: format, Statements: pkg.Graph.Len(), Bag: res}

	if a.ingester != nil {
		payloads := graph.NewConverter(graph.DefaultSource).Convert(pkg.Graph.Triples())
		n, err := a.ingester.Ingest(ctx, payloads)
		out.Entities = n
		if err != nil {
			a.logger.Warn("Failed to publish entities for graph ingestion",
				"registration", reg.ID, "published", n, "total", len(payloads), "error", err)
		}
	}

	if a.publisher != nil {
		err := a.publisher.Announce(ctx, publish.Event{
			Registration:       reg.ID,
			Title:              reg.Title,
			Dir:                res.Dir,
			Format:             string(format),
			Statements:         pkg.Graph.Len(),
			Files:              res.Files,
			Octets:             res.Octets,
			ExternalIdentifier: res.ExternalIdentifier,
		})
		if err != nil {
			// The bag is already on disk.
			a.logger.Warn("Failed to announce package", "registration", reg.ID, "error", err)
		}
	}

	return out, nil
}

// Records returns the ledger record for id, or every record when id is
// empty.
func (a *App) Records(ctx context.Context, id string) ([]*storage.Record, error) {
	if a.ledger == nil {
		return nil, errors.New("package ledger requires nats.url and nats.ledger")
	}
	if id == "" {
		return a.ledger.List(ctx)
	}
	r, err := a.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return []*storage.Record{r}, nil
}

func (a *App) bagInfo(reg *osf.Registration) []bag.Field {
	fields := []bag.Field{
		{Name: bag.FieldExternalIdentifier, Value: osfURL(reg.ID)},
	}
	if a.cfg.Package.SourceOrganization != "" {
		fields = append(fields, bag.Field{Name: bag.FieldSourceOrganization, Value: a.cfg.Package.SourceOrganization})
	}
	if reg.Title != "" {
		fields = append(fields, bag.Field{Name: bag.FieldExternalDescription, Value: reg.Title})
	}
	return fields
}

// download streams an OSF file and checks it against the provider's SHA-256
// or MD5 digest when one is reported.
func (a *App) download(pf ipm.PayloadFile) func(context.Context, io.Writer) error {
	return func(ctx context.Context, w io.Writer) error {
		alg, want := expectedDigest(pf.Checksums)
		var h hash.Hash
		if alg != "" {
			h = newHash(alg)
			w = io.MultiWriter(w, h)
		}
		n, err := a.client.Download(ctx, pf.DownloadURL, w)
		if err != nil {
			return err
		}
		if pf.Size != nil && *pf.Size != n {
			return fmt.Errorf("size mismatch: got %d bytes, want %d", n, *pf.Size)
		}
		if h != nil {
			if got := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(got, want) {
				return fmt.Errorf("%s mismatch: got %s, want %s", alg, got, want)
			}
		}
		a.logger.Debug("Downloaded file", "file", pf.FileID, "bytes", n)
		return nil
	}
}

func expectedDigest(sums map[string]string) (string, string) {
	if v, ok := sums["sha256"]; ok && v != "" {
		return "sha256", v
	}
	if v, ok := sums["md5"]; ok && v != "" {
		return "md5", v
	}
	return "", ""
}

func newHash(alg string) hash.Hash {
	switch alg {
	case "sha256":
		return sha256.New()
	case "md5":
		return md5.New()
	}
	return nil
}

// MapFile maps an offline JSON-API registration document and writes the
// serialization to w.
func (a *App) MapFile(ctx context.Context, file string, w io.Writer) (int, error) {
	format, err := export.ParseFormat(a.cfg.Export.Format)
	if err != nil {
		return 0, err
	}
	reg, err := osf.DecodeRegistrationFile(file)
	if err != nil {
		return 0, err
	}
	pkg, err := a.builder.Build(ctx, reg)
	if err != nil {
		return 0, err
	}
	if err := pkg.Graph.Write(w, format); err != nil {
		return 0, err
	}
	return pkg.Graph.Len(), nil
}

// WriteMetrics writes the collected mapping metrics in the Prometheus text
// format.
func (a *App) WriteMetrics(file string) error {
	if err := prometheus.WriteToTextfile(file, a.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func osfURL(id string) string {
	return vocab.EntityNamespace + id + "/"
}

// openOutput returns stdout for "" or "-", otherwise a created file.
func openOutput(name string, stdout io.Writer) (io.WriteCloser, error) {
	if name == "" || name == "-" {
		return nopCloser{stdout}, nil
	}
	return os.Create(name)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
