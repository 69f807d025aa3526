// Package main provides the osfipm binary entry point.
// osfipm fetches OSF registrations, maps them to RDF with the OSF ontology
// and packages the result as a BagIt bag.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/osfipm/bag"
	"github.com/c360studio/osfipm/config"
	"github.com/c360studio/osfipm/export"
	"github.com/c360studio/osfipm/storage"
	vocab "github.com/c360studio/osfipm/vocabulary/osf"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "osfipm"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds flags shared by subcommands.
type options struct {
	configPath  string
	logLevel    string
	format      string
	profile     string
	metricsFile string
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Package OSF registrations as RDF-described BagIt bags",
		Long: `osfipm maps Open Science Framework registrations to RDF using the
OSF ontology and writes them, with their stored files, as BagIt packages.

Commands:
- package: fetch a registration from the OSF API and write a bag
- map:     map an offline JSON-API document and print the RDF
- vocab:   list the ontology properties
- verify:  check a bag's manifests
- status:  show package runs recorded in the NATS ledger`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&opts.format, "format", "f", "", "RDF format ("+formatNames()+")")
	cmd.PersistentFlags().StringVar(&opts.profile, "profile", "", "Export profile (minimal, owl)")
	cmd.PersistentFlags().StringVar(&opts.metricsFile, "metrics-file", "", "Write mapping metrics to this file on exit")

	cmd.AddCommand(packageCmd(opts), mapCmd(opts), vocabCmd(), verifyCmd(opts), statusCmd(opts), versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

func packageCmd(opts *options) *cobra.Command {
	var (
		output   string
		noFiles  bool
		include  []string
		exclude  []string
		children int
	)

	cmd := &cobra.Command{
		Use:   "package <registration-id>",
		Short: "Fetch a registration and write it as a BagIt bag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			cfg, logger, err := setup(opts, &config.Config{
				Package: config.PackageConfig{Include: include, Exclude: exclude},
			})
			if err != nil {
				return err
			}
			// Merge skips zero values, and 0 is a meaningful depth.
			if cmd.Flags().Changed("child-depth") {
				cfg.OSF.ChildDepth = children
			}
			if noFiles {
				cfg.Package.Download = false
			}
			if output == "" {
				output = id
			}

			app, err := NewApp(cfg, logger)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := app.Start(ctx); err != nil {
				return err
			}
			defer app.Shutdown()

			res, err := app.Package(ctx, id, output)
			if err != nil {
				return fmt.Errorf("package %s: %w", id, err)
			}
			if err := writeMetrics(app, opts); err != nil {
				return err
			}

			abs, _ := filepath.Abs(res.Bag.Dir)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %d statements, %d files, %d bytes\n",
				abs, res.Statements, res.Bag.Files, res.Bag.Octets)
			if res.Entities > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Published %d entities for graph ingestion\n", res.Entities)
			}
			if len(res.Bag.Skipped) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Skipped %d files by pattern\n", len(res.Bag.Skipped))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Bag directory (default: the registration id)")
	cmd.Flags().BoolVar(&noFiles, "no-files", false, "Only package metadata, skip OSF file downloads")
	cmd.Flags().StringSliceVar(&include, "include", nil, "Payload glob to include (repeatable)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Payload glob to exclude (repeatable)")
	cmd.Flags().IntVar(&children, "child-depth", -1, "Component depth to fetch (-1 = all)")
	return cmd
}

func mapCmd(opts *options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "map <jsonapi-file>",
		Short: "Map an offline JSON-API registration document to RDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts, nil)
			if err != nil {
				return err
			}
			app, err := NewApp(cfg, logger)
			if err != nil {
				return err
			}

			w, err := openOutput(output, cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("open output: %w", err)
			}
			n, err := app.MapFile(cmd.Context(), args[0], w)
			if cerr := w.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("map %s: %w", args[0], err)
			}
			logger.Info("Mapped document", "file", args[0], "statements", n)
			return writeMetrics(app, opts)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output file (- for stdout)")
	return cmd
}

func vocabCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vocab",
		Short: "List the OSF ontology properties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			props := vocab.Properties()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tIRI")
			for _, name := range vocab.Names() {
				p := props[name]
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Kind, p.IRI())
			}
			return tw.Flush()
		},
	}
}

func verifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <bag-dir>",
		Short: "Verify a bag's payload against its manifests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setupLogger(opts.logLevel); err != nil {
				return err
			}
			rep, err := bag.Verify(args[0])
			if err != nil {
				return err
			}
			for _, p := range rep.Problems {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			if err := rep.Err(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %d files, %d bytes\n", rep.Files, rep.Octets)
			return nil
		},
	}
}

func statusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status [registration-id]",
		Short: "Show package runs recorded in the ledger",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts, nil)
			if err != nil {
				return err
			}
			app, err := NewApp(cfg, logger)
			if err != nil {
				return err
			}
			if err := app.Start(cmd.Context()); err != nil {
				return err
			}
			defer app.Shutdown()

			var id string
			if len(args) == 1 {
				id = args[0]
			}
			records, err := app.Records(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), records)
		},
	}
}

func printRecords(w io.Writer, records []*storage.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REGISTRATION\tSTATUS\tUPDATED\tFILES\tDETAIL")
	for _, r := range records {
		files, detail := "-", r.Error
		if r.Outcome != nil {
			files = fmt.Sprint(r.Outcome.Files)
			detail = r.Outcome.Dir
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Registration, r.Status, r.UpdatedAt.UTC().Format(time.RFC3339), files, detail)
	}
	return tw.Flush()
}

// setup configures logging and loads the layered config, applying flag
// overrides last.
func setup(opts *options, override *config.Config) (*config.Config, *slog.Logger, error) {
	logger, err := setupLogger(opts.logLevel)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.NewLoader(logger).Load(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if override == nil {
		override = &config.Config{}
	}
	override.Export.Format = opts.format
	override.Export.Profile = opts.profile
	cfg.Merge(override)
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logger, nil
}

func setupLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info", "":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
	return logger, nil
}

func writeMetrics(app *App, opts *options) error {
	if opts.metricsFile == "" {
		return nil
	}
	return app.WriteMetrics(opts.metricsFile)
}

// formatNames lists the accepted --format values for help output.
func formatNames() string {
	names := make([]string, 0, len(export.FormatRegistry))
	for f := range export.FormatRegistry {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
