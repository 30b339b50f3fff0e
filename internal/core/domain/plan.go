package domain

import (
	"strconv"
	"strings"
)

// EnvOp is an unconditional environment change produced by resolution.
type EnvOp struct {
	Name  string
	Value string
	Mode  EnvMode
}

// Invocation is a fully resolved external command.
type Invocation struct {
	Step    string
	Command string
	Args    []string
	Env     []EnvOp
	Policy  StepPolicy
	LogFile string
}

// Argv returns the command followed by its arguments.
func (i Invocation) Argv() []string {
	return append([]string{i.Command}, i.Args...)
}

// Plan is the resolved form of a recipe for one Snapshot.
// It contains no conditions and no placeholders.
type Plan struct {
	Recipe       string
	Version      string
	Options      OptionSet
	Source       Source
	Dependencies []Dependency
	Patches      []Patch
	Env          []EnvOp
	Invocations  []Invocation
	InstallFiles []InstallFile
	Fingerprint  string
}

// Render returns the canonical text form of the plan, one fact per line.
// The fingerprint is not part of the rendering.
func (p *Plan) Render() string {
	var b strings.Builder
	b.WriteString("recipe " + p.Recipe + " " + p.Version + "\n")
	b.WriteString("options " + p.Options.String() + "\n")
	b.WriteString("source " + p.Source.URL + "\n")
	for _, m := range p.Source.Mirrors {
		b.WriteString("mirror " + m + "\n")
	}
	for _, d := range p.Dependencies {
		b.WriteString("depends " + string(d.Kind) + " " + d.Name + "\n")
	}
	for _, pt := range p.Patches {
		loc := pt.URL
		if pt.Inline() {
			loc = "inline:" + strconv.Itoa(len(pt.Data))
		}
		b.WriteString("patch p" + strconv.Itoa(pt.Strip) + " " + loc + "\n")
	}
	for _, e := range p.Env {
		b.WriteString("env " + string(e.Mode) + " " + e.Name + "=" + e.Value + "\n")
	}
	for _, inv := range p.Invocations {
		b.WriteString("step " + inv.Step + " " + string(inv.Policy))
		if inv.LogFile != "" {
			b.WriteString(" log=" + inv.LogFile)
		}
		b.WriteString("\n")
		for _, e := range inv.Env {
			b.WriteString("  env " + string(e.Mode) + " " + e.Name + "=" + e.Value + "\n")
		}
		for _, a := range inv.Argv() {
			b.WriteString("  " + a + "\n")
		}
	}
	for _, f := range p.InstallFiles {
		line := "install " + f.Source
		if f.Optional {
			line += " optional"
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
