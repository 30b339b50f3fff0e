package progrock

import (
	"fmt"
	"sync"
	"time"

	"github.com/vito/progrock"
	"go.trai.ch/kiln/internal/core/ports"
)

var _ progrock.Writer = (*Progress)(nil)

// Progress consumes a progrock status stream and reports each vertex once it
// settles: finished, failed or skipped.
type Progress struct {
	logger ports.Logger

	mu      sync.Mutex
	settled map[string]bool
}

// NewProgress creates a Progress that reports through logger.
func NewProgress(logger ports.Logger) *Progress {
	return &Progress{
		logger:  logger,
		settled: make(map[string]bool),
	}
}

// WriteStatus implements progrock.Writer. Log chunks are ignored; the executor
// already forwards step output to the logger.
func (p *Progress) WriteStatus(update *progrock.StatusUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, v := range update.Vertexes {
		p.vertex(v)
	}
	return nil
}

func (p *Progress) vertex(v *progrock.Vertex) {
	if v.Completed == nil {
		// Recording a name again reopens its vertex.
		delete(p.settled, v.Id)
		return
	}
	if p.settled[v.Id] {
		return
	}
	p.settled[v.Id] = true

	switch {
	case v.Cached:
		p.logger.Info("skipped " + v.Name)
	case v.Error != nil:
		p.logger.Warn(fmt.Sprintf("%s failed after %s: %s", v.Name, elapsed(v), *v.Error))
	default:
		p.logger.Info(fmt.Sprintf("%s finished in %s", v.Name, elapsed(v)))
	}
}

// Close implements progrock.Writer.
func (p *Progress) Close() error {
	return nil
}

func elapsed(v *progrock.Vertex) time.Duration {
	if v.Started == nil {
		return 0
	}
	return v.Completed.AsTime().Sub(v.Started.AsTime()).Round(10 * time.Millisecond)
}
