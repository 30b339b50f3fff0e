package ports

import "context"

// Unpacker extracts source archives.
//
//go:generate mockgen -destination=mocks/unpacker_mock.go -package=mocks -source=unpacker.go
type Unpacker interface {
	// Unpack extracts archive into dest and returns the source root.
	// A single top-level directory is treated as the root.
	Unpack(ctx context.Context, archive, dest string) (string, error)
}
