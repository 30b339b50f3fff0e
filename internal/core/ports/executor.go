package ports

import (
	"context"
	"io"

	"go.trai.ch/kiln/internal/core/domain"
)

// Executor defines the interface for running resolved commands.
//
//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs the invocation in dir.
	//
	// The env operations are applied on top of the process environment before
	// the invocation's own environment. A non-zero exit is returned as an error
	// carrying "exit_code" metadata.
	Execute(ctx context.Context, dir string, inv domain.Invocation, env []domain.EnvOp, stdout, stderr io.Writer) error
}
