package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// SelectOptions validates the requested options against the recipe and returns
// the effective set: the request plus the default member of every exclusive
// group with no selected member.
func SelectOptions(r *Recipe, requested OptionSet) (OptionSet, error) {
	for _, name := range requested.Names() {
		if !r.HasOption(name) {
			err := zerr.With(ErrUnknownOption, "option", name)
			return OptionSet{}, zerr.With(err, "recipe", r.Name)
		}
	}

	var defaults []string
	for _, g := range r.Groups {
		var chosen []string
		for _, m := range g.Members {
			if requested.Has(m) {
				chosen = append(chosen, m)
			}
		}
		switch {
		case len(chosen) > 1:
			err := zerr.With(ErrConflictingOptions, "group", g.Name)
			return OptionSet{}, zerr.With(err, "options", strings.Join(chosen, ","))
		case len(chosen) == 0 && g.Default != "":
			defaults = append(defaults, g.Default)
		}
	}

	return requested.With(defaults...), nil
}

// Effective returns a copy of the snapshot carrying the effective option set for the recipe.
func Effective(r *Recipe, s Snapshot) (Snapshot, error) {
	opts, err := SelectOptions(r, s.Options)
	if err != nil {
		return Snapshot{}, err
	}
	return s.WithOptions(opts), nil
}
