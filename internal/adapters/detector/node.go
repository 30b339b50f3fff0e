package detector

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the platform detector Graft node.
const NodeID graft.ID = "adapter.detector"

func init() {
	graft.Register(graft.Node[ports.PlatformDetector]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.PlatformDetector, error) {
			return NewHost(), nil
		},
	})
}
