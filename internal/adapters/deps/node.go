package deps

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the dependency prober Graft node.
const NodeID graft.ID = "adapter.dependency_prober"

func init() {
	graft.Register(graft.Node[ports.DependencyProber]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{},
		Run: func(_ context.Context) (ports.DependencyProber, error) {
			return NewProber(), nil
		},
	})
}
