package bag

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Selector chooses payload paths with doublestar glob patterns. A path is
// selected when it matches any include pattern (or there are none) and no
// exclude pattern.
type Selector struct {
	Include []string
	Exclude []string
}

// Validate checks that every pattern is well formed.
func (s Selector) Validate() error {
	for _, p := range append(append([]string(nil), s.Include...), s.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return nil
}

// Match reports whether the slash-separated path is selected.
func (s Selector) Match(path string) bool {
	if len(s.Include) > 0 && !matchAny(s.Include, path) {
		return false
	}
	return !matchAny(s.Exclude, path)
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
