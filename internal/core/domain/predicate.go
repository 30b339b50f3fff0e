package domain

import (
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

// Predicate is a condition over a Snapshot.
type Predicate interface {
	Eval(s Snapshot) (bool, error)
	String() string
}

// Holds evaluates p against s. A nil predicate always holds.
func Holds(p Predicate, s Snapshot) (bool, error) {
	if p == nil {
		return true, nil
	}
	ok, err := p.Eval(s)
	if err != nil {
		return false, zerr.With(err, "condition", p.String())
	}
	return ok, nil
}

// OptionSelected holds when the named option is effective.
type OptionSelected struct {
	Name string
}

func (p OptionSelected) Eval(s Snapshot) (bool, error) {
	return s.Options.Has(p.Name), nil
}

func (p OptionSelected) String() string {
	return "option(" + p.Name + ")"
}

// OSIs holds when the snapshot operating system matches.
type OSIs struct {
	OS string
}

func (p OSIs) Eval(s Snapshot) (bool, error) {
	return strings.EqualFold(s.OS, p.OS), nil
}

func (p OSIs) String() string {
	return "os(" + p.OS + ")"
}

// VersionOp is a platform version comparison.
type VersionOp string

const (
	VersionEq      VersionOp = "eq"
	VersionAtLeast VersionOp = "min"
	VersionAtMost  VersionOp = "max"
	VersionBelow   VersionOp = "below"
)

// PlatformVersion compares the snapshot platform version against a fixed version.
type PlatformVersion struct {
	Op      VersionOp
	Version string
}

func (p PlatformVersion) Eval(s Snapshot) (bool, error) {
	if s.PlatformVersion == "" {
		return false, zerr.With(ErrInvalidVersion, "reason", "platform version unknown")
	}
	c, err := ComparePlatformVersion(s.PlatformVersion, p.Version)
	if err != nil {
		return false, err
	}
	switch p.Op {
	case VersionEq:
		return c == 0, nil
	case VersionAtLeast:
		return c >= 0, nil
	case VersionAtMost:
		return c <= 0, nil
	case VersionBelow:
		return c < 0, nil
	default:
		return false, zerr.With(ErrInvalidPredicate, "operator", string(p.Op))
	}
}

func (p PlatformVersion) String() string {
	return "platform." + string(p.Op) + "(" + p.Version + ")"
}

// Bits holds when the snapshot targets the given word size.
type Bits struct {
	Bits int
}

func (p Bits) Eval(s Snapshot) (bool, error) {
	return s.Bits == p.Bits, nil
}

func (p Bits) String() string {
	return "bits(" + strconv.Itoa(p.Bits) + ")"
}

// All holds when every term holds.
type All []Predicate

func (p All) Eval(s Snapshot) (bool, error) {
	for _, t := range p {
		ok, err := Holds(t, s)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (p All) String() string {
	return "all(" + join(p) + ")"
}

// Any holds when at least one term holds.
type Any []Predicate

func (p Any) Eval(s Snapshot) (bool, error) {
	for _, t := range p {
		ok, err := Holds(t, s)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (p Any) String() string {
	return "any(" + join(p) + ")"
}

// Not negates its term.
type Not struct {
	Term Predicate
}

func (p Not) Eval(s Snapshot) (bool, error) {
	ok, err := Holds(p.Term, s)
	return !ok && err == nil, err
}

func (p Not) String() string {
	if p.Term == nil {
		return "not(true)"
	}
	return "not(" + p.Term.String() + ")"
}

func join(terms []Predicate) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		if t == nil {
			parts[i] = "true"
			continue
		}
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
