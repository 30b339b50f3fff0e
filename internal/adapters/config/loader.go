// Package config provides the recipe loaders for kiln.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// Extensions lists the recipe file extensions in lookup order.
var Extensions = []string{".yaml", ".yml", ".hcl"}

// Loader implements ports.RecipeLoader for YAML and HCL recipe files.
type Loader struct {
	SearchDirs []string
	Logger     ports.Logger
}

// NewLoader creates a loader that resolves bare recipe names against dirs.
func NewLoader(logger ports.Logger, dirs ...string) *Loader {
	return &Loader{SearchDirs: dirs, Logger: logger}
}

// Load reads a recipe from a file path, or resolves a bare name against the search directories.
func (l *Loader) Load(ref string) (*domain.Recipe, error) {
	path, err := l.locate(ref)
	if err != nil {
		return nil, err
	}

	r, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	if l.Logger != nil {
		l.Logger.Info(fmt.Sprintf("loaded recipe %s %s from %s", r.Name, r.Version, path))
	}
	return r, nil
}

func (l *Loader) locate(ref string) (string, error) {
	if slices.Contains(Extensions, filepath.Ext(ref)) || strings.ContainsRune(ref, filepath.Separator) {
		if _, err := os.Stat(ref); err != nil {
			return "", zerr.With(domain.ErrRecipeNotFound, "recipe", ref)
		}
		return ref, nil
	}

	for _, dir := range l.SearchDirs {
		for _, ext := range Extensions {
			candidate := filepath.Join(dir, ref+ext)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}

	err := zerr.With(domain.ErrRecipeNotFound, "recipe", ref)
	return "", zerr.With(err, "search_dirs", strings.Join(l.SearchDirs, string(os.PathListSeparator)))
}

// LoadFile reads and validates a recipe file. The format is chosen by extension.
func LoadFile(path string) (*domain.Recipe, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read recipe file")
	}

	var r *domain.Recipe
	if filepath.Ext(path) == ".hcl" {
		r, err = decodeHCL(path, data)
	} else {
		r, err = decodeYAML(data)
	}
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}

	if err := Validate(r); err != nil {
		return nil, zerr.With(err, "path", path)
	}
	return r, nil
}
