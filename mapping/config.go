package mapping

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/c360studio/osfipm/transform"
)

// DefaultIgnoredPrefixes are the package paths the walker never enters.
var DefaultIgnoredPrefixes = []string{
	"runtime",
	"reflect",
	"unsafe",
	"sync",
	"time",
	"internal/",
	"syscall",
	"os",
	"net",
	"io",
	"context",
}

// Config configures walkers, resolvers, projectors and mappers.
type Config struct {
	// Registry is the mapping table. Required.
	Registry *Registry

	// Transforms resolves transform IDs. Defaults to transform.NewRegistry().
	Transforms *transform.Registry

	// Properties, when set, is the closed property set every mapped field
	// must belong to.
	Properties PropertySet

	// IgnoredPrefixes bounds the walk. Defaults to DefaultIgnoredPrefixes.
	IgnoredPrefixes []string

	// Workers limits concurrent root walks in WalkAll. Zero means one
	// worker per root.
	Workers int

	// ContinueOnError makes MapAll log and count individuals that fail
	// instead of aborting.
	ContinueOnError bool

	// BlankNodeID mints blank node labels. Defaults to random UUIDs.
	BlankNodeID func() string

	Logger  *slog.Logger
	Metrics *Metrics
}

func (c Config) withDefaults() Config {
	if c.Registry == nil {
		c.Registry = NewRegistry()
	}
	if c.Transforms == nil {
		c.Transforms = transform.NewRegistry()
	}
	if c.IgnoredPrefixes == nil {
		c.IgnoredPrefixes = DefaultIgnoredPrefixes
	}
	if c.BlankNodeID == nil {
		c.BlankNodeID = func() string { return "b" + uuid.NewString() }
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
