// Package advisory composes the post-install notes of a recipe.
package advisory

import (
	"fmt"
	"slices"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/engine/resolver"
	"go.trai.ch/zerr"
)

// Select returns the caveat blocks whose conditions hold, highest priority first.
// Blocks of equal priority keep their declaration order.
func Select(r *domain.Recipe, snap domain.Snapshot) ([]domain.Caveat, error) {
	eff, err := domain.Effective(r, snap)
	if err != nil {
		return nil, err
	}

	var active []domain.Caveat
	for i, c := range r.Caveats {
		ok, err := domain.Holds(c.When, eff)
		if err != nil {
			return nil, zerr.With(err, "field", fmt.Sprintf("caveats[%d]", i))
		}
		if ok {
			active = append(active, c)
		}
	}

	slices.SortStableFunc(active, func(a, b domain.Caveat) int {
		return b.Priority - a.Priority
	})
	return active, nil
}

// Compose concatenates the selected caveat blocks with placeholders expanded.
// It returns an empty string when no block applies.
func Compose(r *domain.Recipe, snap domain.Snapshot) (string, error) {
	blocks, err := Select(r, snap)
	if err != nil {
		return "", err
	}

	eff, err := domain.Effective(r, snap)
	if err != nil {
		return "", err
	}
	exp := resolver.NewExpander(domain.PlaceholderValues(r, eff))

	var out string
	for _, b := range blocks {
		text, err := exp.Expand(b.Text)
		if err != nil {
			return "", zerr.With(err, "caveat", b.Name)
		}
		out += text
	}
	return out, nil
}
