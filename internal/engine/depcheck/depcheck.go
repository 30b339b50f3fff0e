// Package depcheck verifies that the dependencies of a plan are present.
package depcheck

import (
	"errors"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// Result is the outcome of probing one dependency.
type Result struct {
	Dependency domain.Dependency
	Location   string
	Found      bool
}

// Required reports whether a missing dependency blocks the build.
func (r Result) Required() bool {
	return r.Dependency.Kind == domain.DependencyBuild || r.Dependency.Kind == domain.DependencyRuntime
}

// Probe checks every dependency and returns the results in order.
func Probe(prober ports.DependencyProber, storePrefix string, deps []domain.Dependency) []Result {
	results := make([]Result, 0, len(deps))
	for _, d := range deps {
		loc, found := prober.Probe(storePrefix, d)
		results = append(results, Result{Dependency: d, Location: loc, Found: found})
	}
	return results
}

// Check probes deps and fails when a build or runtime dependency is missing.
// Missing recommended dependencies are reported as warnings, missing optional ones as info.
func Check(prober ports.DependencyProber, log ports.Logger, storePrefix string, deps []domain.Dependency) ([]Result, error) {
	results := Probe(prober, storePrefix, deps)

	var errs []error
	for _, r := range results {
		if r.Found {
			continue
		}
		switch r.Dependency.Kind {
		case domain.DependencyRecommended:
			log.Warn("recommended dependency " + r.Dependency.Name + " is not installed")
		case domain.DependencyOptional:
			log.Info("optional dependency " + r.Dependency.Name + " is not installed")
		default:
			depErr := zerr.With(domain.ErrUnsatisfiedDependency, "dependency", r.Dependency.Name)
			errs = append(errs, zerr.With(depErr, "kind", string(r.Dependency.Kind)))
		}
	}

	if len(errs) > 0 {
		return results, errors.Join(errs...)
	}
	return results, nil
}
