package ports

import "go.trai.ch/kiln/internal/core/domain"

// DependencyProber checks whether a dependency is present on the machine.
//
//go:generate go run go.uber.org/mock/mockgen -source=prober.go -destination=mocks/mock_prober.go -package=mocks
type DependencyProber interface {
	// Probe returns where the dependency was found.
	// Keg dependencies are looked up below storePrefix.
	Probe(storePrefix string, dep domain.Dependency) (location string, found bool)
}
