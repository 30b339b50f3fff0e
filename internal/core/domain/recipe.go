package domain

import (
	"slices"
	"strings"
)

// DependencyKind classifies how a dependency participates in a build.
type DependencyKind string

const (
	// DependencyBuild is needed only while building.
	DependencyBuild DependencyKind = "build"
	// DependencyRuntime is needed to build and to run the result.
	DependencyRuntime DependencyKind = "runtime"
	// DependencyRecommended is used when present; absence is reported as a warning.
	DependencyRecommended DependencyKind = "recommended"
	// DependencyOptional is used when present; absence is reported as information.
	DependencyOptional DependencyKind = "optional"
)

// Required reports whether a missing dependency of this kind must abort the build.
func (k DependencyKind) Required() bool {
	return k == DependencyBuild || k == DependencyRuntime
}

// ProbeKind selects how a dependency's presence is checked.
type ProbeKind string

const (
	// ProbeKeg checks for an installed package directory under the store prefix.
	ProbeKeg ProbeKind = "keg"
	// ProbeExecutable checks for an executable on PATH.
	ProbeExecutable ProbeKind = "executable"
)

// Probe describes how to detect a dependency.
type Probe struct {
	Kind   ProbeKind
	Target string
}

// Recipe is the declarative description of how to build and install one package.
type Recipe struct {
	Name        string
	Version     string
	Description string
	Homepage    string

	Source       Source
	Options      []Option
	Groups       []ExclusiveGroup
	Dependencies []Dependency
	Patches      []Patch
	Environment  []EnvAdjustment
	Steps        []Step
	InstallFiles []InstallFile
	Caveats      []Caveat
}

// Option is a named boolean switch the user may select at build time.
type Option struct {
	Name        string
	Description string
}

// ExclusiveGroup names options of which exactly one is effective.
// When none is selected the Default member applies.
type ExclusiveGroup struct {
	Name    string
	Members []string
	Default string
}

// Source is the upstream archive of a recipe.
type Source struct {
	URL      string
	Mirrors  []string
	Checksum Checksum
}

// Locations returns the primary URL followed by its mirrors.
func (s Source) Locations() []string {
	return append([]string{s.URL}, s.Mirrors...)
}

// Checksum is an algorithm-qualified content digest.
type Checksum struct {
	Algorithm string
	Hex       string
}

// ParseChecksum parses "algo:hex". A bare hex string is taken as sha256.
func ParseChecksum(s string) Checksum {
	if s == "" {
		return Checksum{}
	}
	algo, sum, ok := strings.Cut(s, ":")
	if !ok {
		return Checksum{Algorithm: "sha256", Hex: strings.ToLower(s)}
	}
	return Checksum{Algorithm: strings.ToLower(algo), Hex: strings.ToLower(sum)}
}

// IsZero reports whether no checksum was declared. "sha1:" declares an
// algorithm with an empty digest and is not zero.
func (c Checksum) IsZero() bool {
	return c.Algorithm == "" && c.Hex == ""
}

func (c Checksum) String() string {
	if c.IsZero() {
		return ""
	}
	return c.Algorithm + ":" + c.Hex
}

// Dependency is a conditional edge to another package.
type Dependency struct {
	Name  string
	Kind  DependencyKind
	When  Predicate
	Probe Probe
}

// Patch is a conditional source modification.
// Exactly one of URL or Data is set.
type Patch struct {
	Strip    int
	URL      string
	Data     string
	Checksum Checksum
	When     Predicate
}

// Inline reports whether the patch body is embedded in the recipe.
func (p Patch) Inline() bool {
	return p.URL == ""
}

// EnvMode selects how an environment adjustment combines with the existing value.
type EnvMode string

const (
	// EnvSet replaces the variable.
	EnvSet EnvMode = "set"
	// EnvAppend adds the value after the existing one, space separated.
	EnvAppend EnvMode = "append"
	// EnvPrepend adds the value before the existing one, space separated.
	EnvPrepend EnvMode = "prepend"
)

// EnvAdjustment is a conditional change to the build environment.
type EnvAdjustment struct {
	Name  string
	Value string
	Mode  EnvMode
	When  Predicate
}

// InstallFile is a file copied from the build tree into the install prefix.
type InstallFile struct {
	Source   string
	Optional bool
	When     Predicate
}

// Caveat is a conditional block of post-install advisory text.
// Higher priority blocks are emitted first.
type Caveat struct {
	Name     string
	Text     string
	Priority int
	When     Predicate
}

// HasOption reports whether the recipe declares the named option.
func (r *Recipe) HasOption(name string) bool {
	return slices.ContainsFunc(r.Options, func(o Option) bool { return o.Name == name })
}

// Group returns the exclusive group containing the option, if any.
func (r *Recipe) Group(option string) (ExclusiveGroup, bool) {
	for _, g := range r.Groups {
		if slices.Contains(g.Members, option) {
			return g, true
		}
	}
	return ExclusiveGroup{}, false
}
