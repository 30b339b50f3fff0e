package domain

import (
	"slices"
	"strings"
)

// OptionSet is an immutable sorted set of option names.
type OptionSet struct {
	names []string
}

// NewOptionSet builds a set from names, dropping blanks and duplicates.
func NewOptionSet(names ...string) OptionSet {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return OptionSet{names: slices.Compact(out)}
}

// Has reports whether the option is in the set.
func (s OptionSet) Has(name string) bool {
	_, found := slices.BinarySearch(s.names, name)
	return found
}

// Names returns a copy of the set members in sorted order.
func (s OptionSet) Names() []string {
	return slices.Clone(s.names)
}

// Len returns the number of members.
func (s OptionSet) Len() int {
	return len(s.names)
}

// With returns a new set containing the additional names.
func (s OptionSet) With(names ...string) OptionSet {
	return NewOptionSet(append(s.Names(), names...)...)
}

func (s OptionSet) String() string {
	return strings.Join(s.names, ",")
}

// Snapshot is the build context captured once before resolution.
// Every condition of a recipe is evaluated against the same Snapshot.
type Snapshot struct {
	OS              string
	PlatformVersion string
	// Bits is the word size the build targets. It is 64 when the platform prefers 64-bit code.
	Bits        int
	Options     OptionSet
	Prefix      string
	StorePrefix string
	Jobs        int
}

// WithOptions returns a copy of the snapshot carrying a different option set.
func (s Snapshot) WithOptions(opts OptionSet) Snapshot {
	s.Options = opts
	return s
}

// Platform is what a detector reports about the host.
type Platform struct {
	OS      string
	Version string
	Bits    int
}
