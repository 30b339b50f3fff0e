// Package deps detects whether recipe dependencies are installed.
package deps

import (
	"os"
	"os/exec"
	"path/filepath"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

var _ ports.DependencyProber = (*Prober)(nil)

// OptDirName is the directory below the store prefix holding one keg per package.
const OptDirName = "opt"

// Prober implements ports.DependencyProber by looking at PATH and the keg directory.
type Prober struct {
	lookPath func(string) (string, error)
}

// NewProber creates a Prober that searches the process PATH.
func NewProber() *Prober {
	return &Prober{lookPath: exec.LookPath}
}

// Probe reports where dep was found.
func (p *Prober) Probe(storePrefix string, dep domain.Dependency) (string, bool) {
	target := dep.Probe.Target
	if target == "" {
		target = dep.Name
	}

	switch dep.Probe.Kind {
	case domain.ProbeExecutable:
		loc, err := p.lookPath(target)
		if err != nil {
			return "", false
		}
		return loc, true
	default:
		return kegPath(storePrefix, target)
	}
}

func kegPath(storePrefix, name string) (string, bool) {
	if storePrefix == "" {
		return "", false
	}
	dir := filepath.Join(storePrefix, OptDirName, name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return dir, true
}
