package fs

import (
	"path/filepath"
	"sort"

	"go.trai.ch/zerr"
)

// Resolver expands install patterns using filepath.Glob.
type Resolver struct{}

// NewResolver creates a new Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve expands pattern relative to root and returns the sorted matches,
// relative to root. No matches is not an error.
func (r *Resolver) Resolve(root, pattern string) ([]string, error) {
	path := filepath.Join(root, pattern)

	matches, err := filepath.Glob(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to glob path"), "path", path)
	}

	result := make([]string, 0, len(matches))
	for _, match := range matches {
		rel, err := filepath.Rel(root, match)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to relativize path"), "path", match)
		}
		result = append(result, rel)
	}
	sort.Strings(result)

	return result, nil
}
