package config

import (
	"encoding/hex"
	"fmt"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

func invalid(field, reason string) error {
	return zerr.With(zerr.With(domain.ErrInvalidRecipe, "field", field), "reason", reason)
}

// Validate checks the structural rules every recipe must satisfy regardless of its source format.
func Validate(r *domain.Recipe) error {
	if r.Name == "" {
		return invalid("name", "name is required")
	}
	if r.Version == "" {
		return invalid("version", "version is required")
	}
	if r.Source.URL == "" {
		return invalid("source.url", "source url is required")
	}
	if r.Source.Checksum.IsZero() {
		return invalid("source.checksum", "source checksum is required")
	}
	if err := validateChecksum("source.checksum", r.Source.Checksum); err != nil {
		return err
	}

	seen := make(map[string]bool, len(r.Options))
	for i, o := range r.Options {
		field := fmt.Sprintf("options[%d]", i)
		if o.Name == "" {
			return invalid(field, "option name is required")
		}
		if seen[o.Name] {
			return invalid(field, "duplicate option "+o.Name)
		}
		seen[o.Name] = true
	}

	grouped := make(map[string]string)
	for i, g := range r.Groups {
		field := fmt.Sprintf("groups[%d]", i)
		if g.Name == "" {
			return invalid(field, "group name is required")
		}
		if len(g.Members) < 2 {
			return invalid(field, "group needs at least two members")
		}
		for _, m := range g.Members {
			if !seen[m] {
				return zerr.With(zerr.With(domain.ErrUnknownOption, "option", m), "field", field)
			}
			if other, ok := grouped[m]; ok {
				return invalid(field, "option "+m+" already belongs to group "+other)
			}
			grouped[m] = g.Name
		}
		if g.Default != "" && grouped[g.Default] != g.Name {
			return invalid(field, "default "+g.Default+" is not a member")
		}
	}

	for i, d := range r.Dependencies {
		if err := validateDependency(fmt.Sprintf("dependencies[%d]", i), d); err != nil {
			return err
		}
	}

	for i, p := range r.Patches {
		field := fmt.Sprintf("patches[%d]", i)
		if (p.URL == "") == (p.Data == "") {
			return invalid(field, "exactly one of url or data is required")
		}
		if p.Strip < 0 {
			return invalid(field, "strip must not be negative")
		}
		if err := validateChecksum(field+".checksum", p.Checksum); err != nil {
			return err
		}
	}

	if err := validateEnv("environment", r.Environment); err != nil {
		return err
	}

	steps := make(map[string]bool, len(r.Steps))
	for i, s := range r.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		switch {
		case s.Name == "":
			return invalid(field, "step name is required")
		case steps[s.Name]:
			return invalid(field, "duplicate step "+s.Name)
		case s.Command == "":
			return invalid(field, "command is required")
		case s.Policy != domain.PolicyFatal && s.Policy != domain.PolicyBestEffort:
			return invalid(field, "unknown policy "+string(s.Policy))
		}
		steps[s.Name] = true
		if err := validateEnv(field+".env", s.Env); err != nil {
			return err
		}
	}

	for i, f := range r.InstallFiles {
		if f.Source == "" {
			return invalid(fmt.Sprintf("install[%d]", i), "path is required")
		}
	}

	for i, c := range r.Caveats {
		if c.Text == "" {
			return invalid(fmt.Sprintf("caveats[%d]", i), "text is required")
		}
	}
	return nil
}

func validateDependency(field string, d domain.Dependency) error {
	if d.Name == "" {
		return invalid(field, "dependency name is required")
	}
	switch d.Kind {
	case domain.DependencyBuild, domain.DependencyRuntime, domain.DependencyRecommended, domain.DependencyOptional:
	default:
		return invalid(field, "unknown dependency kind "+string(d.Kind))
	}
	switch d.Probe.Kind {
	case domain.ProbeKeg, domain.ProbeExecutable:
	default:
		return invalid(field, "unknown probe "+string(d.Probe.Kind))
	}
	if d.Probe.Target == "" {
		return invalid(field, "probe target is required")
	}
	return nil
}

func validateEnv(field string, env []domain.EnvAdjustment) error {
	for i, e := range env {
		f := fmt.Sprintf("%s[%d]", field, i)
		if e.Name == "" {
			return invalid(f, "variable name is required")
		}
		switch e.Mode {
		case domain.EnvSet, domain.EnvAppend, domain.EnvPrepend:
		default:
			return invalid(f, "unknown mode "+string(e.Mode))
		}
	}
	return nil
}

// digestLen is the hex length of each supported digest.
var digestLen = map[string]int{
	"sha1":   40,
	"sha256": 64,
}

func validateChecksum(field string, c domain.Checksum) error {
	if c.IsZero() {
		return nil
	}
	want, ok := digestLen[c.Algorithm]
	switch {
	case !ok:
		return invalid(field, "unsupported checksum algorithm "+c.Algorithm)
	case c.Hex == "":
		return invalid(field, c.Algorithm+" digest is empty")
	case len(c.Hex) != want:
		return invalid(field, fmt.Sprintf("%s digest must be %d hex characters, got %d", c.Algorithm, want, len(c.Hex)))
	}
	if _, err := hex.DecodeString(c.Hex); err != nil {
		return invalid(field, c.Algorithm+" digest is not hex")
	}
	return nil
}
