package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

func decodeYAML(data []byte) (*domain.Recipe, error) {
	var file RecipeFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, invalid("", "empty recipe document")
		}
		return nil, zerr.Wrap(err, "failed to parse recipe")
	}
	return file.toDomain()
}

type converter struct {
	options map[string]bool
}

func (f *RecipeFile) toDomain() (*domain.Recipe, error) {
	r := &domain.Recipe{
		Name:        f.Name,
		Version:     f.Version,
		Description: f.Description,
		Homepage:    f.Homepage,
		Source: domain.Source{
			URL:      f.Source.URL,
			Mirrors:  f.Source.Mirrors,
			Checksum: domain.ParseChecksum(f.Source.Checksum),
		},
	}

	c := converter{options: make(map[string]bool, len(f.Options))}
	for _, o := range f.Options {
		r.Options = append(r.Options, domain.Option(o))
		c.options[o.Name] = true
	}

	for _, g := range f.Groups {
		r.Groups = append(r.Groups, domain.ExclusiveGroup(g))
	}

	for i, d := range f.Dependencies {
		when, err := c.predicate(d.When, fmt.Sprintf("dependencies[%d].when", i))
		if err != nil {
			return nil, err
		}
		r.Dependencies = append(r.Dependencies, domain.Dependency{
			Name:  d.Name,
			Kind:  dependencyKind(d.Kind),
			When:  when,
			Probe: probe(d.Name, d.Probe.Executable, d.Probe.Keg),
		})
	}

	for i, p := range f.Patches {
		when, err := c.predicate(p.When, fmt.Sprintf("patches[%d].when", i))
		if err != nil {
			return nil, err
		}
		strip := 1
		if p.Strip != nil {
			strip = *p.Strip
		}
		r.Patches = append(r.Patches, domain.Patch{
			Strip:    strip,
			URL:      p.URL,
			Data:     p.Data,
			Checksum: domain.ParseChecksum(p.Checksum),
			When:     when,
		})
	}

	env, err := c.env(f.Environment, "environment")
	if err != nil {
		return nil, err
	}
	r.Environment = env

	for i, s := range f.Steps {
		step, err := c.step(s, fmt.Sprintf("steps[%d]", i))
		if err != nil {
			return nil, err
		}
		r.Steps = append(r.Steps, step)
	}

	for i, in := range f.Install {
		when, err := c.predicate(in.When, fmt.Sprintf("install[%d].when", i))
		if err != nil {
			return nil, err
		}
		r.InstallFiles = append(r.InstallFiles, domain.InstallFile{Source: in.Path, Optional: in.Optional, When: when})
	}

	for i, cv := range f.Caveats {
		when, err := c.predicate(cv.When, fmt.Sprintf("caveats[%d].when", i))
		if err != nil {
			return nil, err
		}
		r.Caveats = append(r.Caveats, domain.Caveat{Name: cv.Name, Text: cv.Text, Priority: cv.Priority, When: when})
	}

	return r, nil
}

func (c converter) step(s StepDTO, field string) (domain.Step, error) {
	when, err := c.predicate(s.When, field+".when")
	if err != nil {
		return domain.Step{}, err
	}
	env, err := c.env(s.Env, field+".env")
	if err != nil {
		return domain.Step{}, err
	}

	args := make([]domain.Arg, 0, len(s.Args))
	for j, a := range s.Args {
		argWhen, err := c.predicate(a.When, fmt.Sprintf("%s.args[%d].when", field, j))
		if err != nil {
			return domain.Step{}, err
		}
		arg := domain.Arg{Value: a.Value, When: argWhen}
		if a.Else != nil {
			arg.Else, arg.HasElse = *a.Else, true
		}
		args = append(args, arg)
	}

	return domain.Step{
		Name:    s.Name,
		Command: s.Command,
		Args:    args,
		Env:     env,
		When:    when,
		Policy:  stepPolicy(s.Policy),
		LogFile: s.Log,
	}, nil
}

func (c converter) env(in []EnvDTO, field string) ([]domain.EnvAdjustment, error) {
	var out []domain.EnvAdjustment
	for i, e := range in {
		when, err := c.predicate(e.When, fmt.Sprintf("%s[%d].when", field, i))
		if err != nil {
			return nil, err
		}
		out = append(out, domain.EnvAdjustment{Name: e.Name, Value: e.Value, Mode: envMode(e.Mode), When: when})
	}
	return out, nil
}

func (c converter) predicate(d *PredicateDTO, field string) (domain.Predicate, error) {
	if d == nil {
		return nil, nil
	}

	var terms domain.All
	if d.Option != "" {
		if !c.options[d.Option] {
			return nil, zerr.With(zerr.With(domain.ErrUnknownOption, "option", d.Option), "field", field)
		}
		terms = append(terms, domain.OptionSelected{Name: d.Option})
	}
	if d.OS != "" {
		terms = append(terms, domain.OSIs{OS: d.OS})
	}
	if d.Platform != nil {
		pts, err := platformTerms(d.Platform, field+".platform")
		if err != nil {
			return nil, err
		}
		terms = append(terms, pts...)
	}
	if d.Bits != 0 {
		if d.Bits != 32 && d.Bits != 64 {
			return nil, zerr.With(zerr.With(domain.ErrInvalidPredicate, "field", field), "bits", d.Bits)
		}
		terms = append(terms, domain.Bits{Bits: d.Bits})
	}
	if d.All != nil {
		sub := domain.All{}
		for i := range d.All {
			p, err := c.predicate(&d.All[i], fmt.Sprintf("%s.all[%d]", field, i))
			if err != nil {
				return nil, err
			}
			sub = append(sub, p)
		}
		terms = append(terms, sub)
	}
	if d.Any != nil {
		sub := domain.Any{}
		for i := range d.Any {
			p, err := c.predicate(&d.Any[i], fmt.Sprintf("%s.any[%d]", field, i))
			if err != nil {
				return nil, err
			}
			sub = append(sub, p)
		}
		terms = append(terms, sub)
	}
	if d.Not != nil {
		p, err := c.predicate(d.Not, field+".not")
		if err != nil {
			return nil, err
		}
		terms = append(terms, domain.Not{Term: p})
	}

	switch len(terms) {
	case 0:
		return nil, zerr.With(zerr.With(domain.ErrInvalidPredicate, "field", field), "reason", "empty condition")
	case 1:
		return terms[0], nil
	default:
		return terms, nil
	}
}

func platformTerms(d *PlatformDTO, field string) ([]domain.Predicate, error) {
	var terms []domain.Predicate
	for _, c := range []struct {
		op domain.VersionOp
		v  string
	}{
		{domain.VersionEq, d.Eq},
		{domain.VersionAtLeast, d.Min},
		{domain.VersionAtMost, d.Max},
		{domain.VersionBelow, d.Below},
	} {
		if c.v == "" {
			continue
		}
		if _, err := domain.CanonicalVersion(c.v); err != nil {
			return nil, zerr.With(err, "field", field)
		}
		terms = append(terms, domain.PlatformVersion{Op: c.op, Version: c.v})
	}
	if len(terms) == 0 {
		return nil, zerr.With(zerr.With(domain.ErrInvalidPredicate, "field", field), "reason", "no version comparison")
	}
	return terms, nil
}

func dependencyKind(s string) domain.DependencyKind {
	if s == "" {
		return domain.DependencyRuntime
	}
	return domain.DependencyKind(s)
}

func probe(name, executable, keg string) domain.Probe {
	switch {
	case executable != "":
		return domain.Probe{Kind: domain.ProbeExecutable, Target: executable}
	case keg != "":
		return domain.Probe{Kind: domain.ProbeKeg, Target: keg}
	default:
		return domain.Probe{Kind: domain.ProbeKeg, Target: name}
	}
}

func envMode(s string) domain.EnvMode {
	if s == "" {
		return domain.EnvSet
	}
	return domain.EnvMode(s)
}

func stepPolicy(s string) domain.StepPolicy {
	if s == "" {
		return domain.PolicyFatal
	}
	return domain.StepPolicy(s)
}
