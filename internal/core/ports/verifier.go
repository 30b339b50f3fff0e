package ports

import "go.trai.ch/kiln/internal/core/domain"

// Verifier defines the interface for checking downloaded content.
//
//go:generate mockgen -destination=mocks/verifier_mock.go -package=mocks -source=verifier.go
type Verifier interface {
	// Verify returns an error when the file digest does not match sum.
	// A zero checksum always verifies.
	Verify(path string, sum domain.Checksum) error
}
