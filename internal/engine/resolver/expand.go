package resolver

import (
	"errors"
	"sort"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// Expander substitutes ${name} placeholders in recipe templates.
// Templates are parsed as here-document bodies, so quotes and spaces are literal.
type Expander struct {
	cfg *expand.Config
}

// NewExpander returns an expander over a fixed set of variables.
func NewExpander(vars map[string]string) *Expander {
	pairs := make([]string, 0, len(vars))
	for k, v := range vars {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return &Expander{cfg: &expand.Config{
		Env:     expand.ListEnviron(pairs...),
		NoUnset: true,
	}}
}

// Expand returns s with every placeholder replaced.
func (e *Expander) Expand(s string) (string, error) {
	if !strings.ContainsAny(s, "$`") {
		return s, nil
	}

	word, err := syntax.NewParser().Document(strings.NewReader(s))
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrUnresolvedPlaceholder.Error()), "template", s)
	}

	out, err := expand.Document(e.cfg, word)
	if err != nil {
		var unset expand.UnsetParameterError
		if errors.As(err, &unset) {
			wrapped := zerr.With(domain.ErrUnresolvedPlaceholder, "template", s)
			return "", zerr.With(wrapped, "variable", unset.Node.Param.Value)
		}
		return "", zerr.With(zerr.Wrap(err, domain.ErrUnresolvedPlaceholder.Error()), "template", s)
	}
	return out, nil
}
