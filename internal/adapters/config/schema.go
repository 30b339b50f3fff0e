package config

import "gopkg.in/yaml.v3"

// RecipeFile represents the structure of a YAML recipe document.
type RecipeFile struct {
	Name         string          `yaml:"name"`
	Version      string          `yaml:"version"`
	Description  string          `yaml:"description"`
	Homepage     string          `yaml:"homepage"`
	Source       SourceDTO       `yaml:"source"`
	Options      []OptionDTO     `yaml:"options"`
	Groups       []GroupDTO      `yaml:"groups"`
	Dependencies []DependencyDTO `yaml:"dependencies"`
	Patches      []PatchDTO      `yaml:"patches"`
	Environment  []EnvDTO        `yaml:"environment"`
	Steps        []StepDTO       `yaml:"steps"`
	Install      []InstallDTO    `yaml:"install"`
	Caveats      []CaveatDTO     `yaml:"caveats"`
}

// SourceDTO represents the upstream archive.
type SourceDTO struct {
	URL      string   `yaml:"url"`
	Mirrors  []string `yaml:"mirrors"`
	Checksum string   `yaml:"checksum"`
}

// OptionDTO represents a declared build option.
type OptionDTO struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// GroupDTO represents an exclusive option group.
type GroupDTO struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
	Default string   `yaml:"default"`
}

// DependencyDTO represents a dependency edge.
type DependencyDTO struct {
	Name  string        `yaml:"name"`
	Kind  string        `yaml:"kind"`
	Probe ProbeDTO      `yaml:"probe"`
	When  *PredicateDTO `yaml:"when"`
}

// ProbeDTO selects how a dependency is detected. At most one field is set.
type ProbeDTO struct {
	Executable string `yaml:"executable"`
	Keg        string `yaml:"keg"`
}

// PatchDTO represents a source patch.
type PatchDTO struct {
	Strip    *int          `yaml:"strip"`
	URL      string        `yaml:"url"`
	Data     string        `yaml:"data"`
	Checksum string        `yaml:"checksum"`
	When     *PredicateDTO `yaml:"when"`
}

// EnvDTO represents an environment adjustment.
type EnvDTO struct {
	Name  string        `yaml:"name"`
	Value string        `yaml:"value"`
	Mode  string        `yaml:"mode"`
	When  *PredicateDTO `yaml:"when"`
}

// StepDTO represents a build step.
type StepDTO struct {
	Name    string        `yaml:"name"`
	Command string        `yaml:"command"`
	Args    []ArgDTO      `yaml:"args"`
	Env     []EnvDTO      `yaml:"env"`
	When    *PredicateDTO `yaml:"when"`
	Policy  string        `yaml:"policy"`
	Log     string        `yaml:"log"`
}

// ArgDTO is either a plain scalar or a conditional mapping.
type ArgDTO struct {
	Value string        `yaml:"value"`
	When  *PredicateDTO `yaml:"when"`
	Else  *string       `yaml:"else"`
}

// UnmarshalYAML accepts both "--flag" and {value: --flag, when: ...}.
func (a *ArgDTO) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		a.Value = value.Value
		return nil
	}
	type plain ArgDTO
	return value.Decode((*plain)(a))
}

// InstallDTO represents a file installed into the prefix.
type InstallDTO struct {
	Path     string        `yaml:"path"`
	Optional bool          `yaml:"optional"`
	When     *PredicateDTO `yaml:"when"`
}

// CaveatDTO represents a block of advisory text.
type CaveatDTO struct {
	Name     string        `yaml:"name"`
	Text     string        `yaml:"text"`
	Priority int           `yaml:"priority"`
	When     *PredicateDTO `yaml:"when"`
}

// PredicateDTO represents a condition. Every set field must hold.
type PredicateDTO struct {
	Option   string         `yaml:"option"`
	OS       string         `yaml:"os"`
	Platform *PlatformDTO   `yaml:"platform"`
	Bits     int            `yaml:"bits"`
	All      []PredicateDTO `yaml:"all"`
	Any      []PredicateDTO `yaml:"any"`
	Not      *PredicateDTO  `yaml:"not"`
}

// PlatformDTO represents platform version comparisons.
// Versions may be numeric or release codenames.
type PlatformDTO struct {
	Eq    string `yaml:"eq"`
	Min   string `yaml:"min"`
	Max   string `yaml:"max"`
	Below string `yaml:"below"`
}
