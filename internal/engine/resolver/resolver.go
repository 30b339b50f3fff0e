// Package resolver turns a recipe and a build snapshot into a concrete plan.
package resolver

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// Resolve evaluates every condition of r against snap and expands every placeholder.
// It has no side effects: the same recipe and snapshot always produce the same plan.
func Resolve(r *domain.Recipe, snap domain.Snapshot) (*domain.Plan, error) {
	eff, err := domain.Effective(r, snap)
	if err != nil {
		return nil, err
	}

	res := &resolution{
		snap: eff,
		exp:  NewExpander(domain.PlaceholderValues(r, eff)),
	}

	plan := &domain.Plan{
		Recipe:  r.Name,
		Version: r.Version,
		Options: eff.Options,
	}

	if plan.Source, err = res.source(r.Source); err != nil {
		return nil, err
	}

	for i, d := range r.Dependencies {
		ok, err := res.holds(d.When, fmt.Sprintf("dependencies[%d]", i))
		if err != nil {
			return nil, err
		}
		if ok {
			d.When = nil
			plan.Dependencies = append(plan.Dependencies, d)
		}
	}

	for i, p := range r.Patches {
		field := fmt.Sprintf("patches[%d]", i)
		ok, err := res.holds(p.When, field)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if p.URL, err = res.expand(p.URL, field+".url"); err != nil {
			return nil, err
		}
		p.When = nil
		plan.Patches = append(plan.Patches, p)
	}

	if plan.Env, err = res.env(r.Environment, "environment"); err != nil {
		return nil, err
	}

	for i, s := range r.Steps {
		inv, ok, err := res.step(s, fmt.Sprintf("steps[%d]", i))
		if err != nil {
			return nil, zerr.With(err, "step", s.Name)
		}
		if ok {
			plan.Invocations = append(plan.Invocations, inv)
		}
	}

	for i, f := range r.InstallFiles {
		field := fmt.Sprintf("install[%d]", i)
		ok, err := res.holds(f.When, field)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if f.Source, err = res.expand(f.Source, field); err != nil {
			return nil, err
		}
		f.When = nil
		plan.InstallFiles = append(plan.InstallFiles, f)
	}

	plan.Fingerprint = Fingerprint(plan)
	return plan, nil
}

// Fingerprint returns a stable digest of the plan's rendering.
func Fingerprint(p *domain.Plan) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(p.Render()))
}

type resolution struct {
	snap domain.Snapshot
	exp  *Expander
}

func (r *resolution) holds(p domain.Predicate, field string) (bool, error) {
	ok, err := domain.Holds(p, r.snap)
	if err != nil {
		return false, zerr.With(err, "field", field)
	}
	return ok, nil
}

func (r *resolution) expand(s, field string) (string, error) {
	out, err := r.exp.Expand(s)
	if err != nil {
		return "", zerr.With(err, "field", field)
	}
	return out, nil
}

func (r *resolution) source(s domain.Source) (domain.Source, error) {
	url, err := r.expand(s.URL, "source.url")
	if err != nil {
		return domain.Source{}, err
	}
	out := domain.Source{URL: url, Checksum: s.Checksum}
	for i, m := range s.Mirrors {
		mirror, err := r.expand(m, fmt.Sprintf("source.mirrors[%d]", i))
		if err != nil {
			return domain.Source{}, err
		}
		out.Mirrors = append(out.Mirrors, mirror)
	}
	return out, nil
}

func (r *resolution) env(in []domain.EnvAdjustment, field string) ([]domain.EnvOp, error) {
	var out []domain.EnvOp
	for i, e := range in {
		f := fmt.Sprintf("%s[%d]", field, i)
		ok, err := r.holds(e.When, f)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		v, err := r.expand(e.Value, f)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.EnvOp{Name: e.Name, Value: v, Mode: e.Mode})
	}
	return out, nil
}

func (r *resolution) step(s domain.Step, field string) (domain.Invocation, bool, error) {
	ok, err := r.holds(s.When, field)
	if err != nil || !ok {
		return domain.Invocation{}, false, err
	}

	inv := domain.Invocation{Step: s.Name, Policy: s.Policy}
	if inv.Command, err = r.expand(s.Command, field+".command"); err != nil {
		return domain.Invocation{}, false, err
	}
	if inv.LogFile, err = r.expand(s.LogFile, field+".log"); err != nil {
		return domain.Invocation{}, false, err
	}
	if inv.Env, err = r.env(s.Env, field+".env"); err != nil {
		return domain.Invocation{}, false, err
	}

	inv.Args = make([]string, 0, len(s.Args))
	for j, a := range s.Args {
		f := fmt.Sprintf("%s.args[%d]", field, j)
		ok, err := r.holds(a.When, f)
		if err != nil {
			return domain.Invocation{}, false, err
		}
		v := a.Value
		if !ok {
			if !a.HasElse {
				continue
			}
			v = a.Else
		}
		if v, err = r.expand(v, f); err != nil {
			return domain.Invocation{}, false, err
		}
		inv.Args = append(inv.Args, v)
	}
	return inv, true, nil
}
