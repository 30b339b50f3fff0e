package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// hclRecipeFile represents the top-level structure of an HCL recipe for decoding.
type hclRecipeFile struct {
	Name         string          `hcl:"name"`
	Version      string          `hcl:"version"`
	Description  string          `hcl:"description,optional"`
	Homepage     string          `hcl:"homepage,optional"`
	Source       hclSource       `hcl:"source,block"`
	Options      []hclOption     `hcl:"option,block"`
	Groups       []hclGroup      `hcl:"group,block"`
	Dependencies []hclDependency `hcl:"dependency,block"`
	Patches      []hclPatch      `hcl:"patch,block"`
	Environment  []hclEnv        `hcl:"env,block"`
	Steps        []hclStep       `hcl:"step,block"`
	Install      []hclInstall    `hcl:"install,block"`
	Caveats      []hclCaveat     `hcl:"caveat,block"`
}

type hclSource struct {
	URL      string   `hcl:"url"`
	Mirrors  []string `hcl:"mirrors,optional"`
	Checksum string   `hcl:"checksum,optional"`
}

type hclOption struct {
	Name        string `hcl:"name,label"`
	Description string `hcl:"description,optional"`
}

type hclGroup struct {
	Name    string   `hcl:"name,label"`
	Members []string `hcl:"members"`
	Default string   `hcl:"default,optional"`
}

type hclDependency struct {
	Name       string         `hcl:"name,label"`
	Kind       string         `hcl:"kind,optional"`
	Executable string         `hcl:"executable,optional"`
	Keg        string         `hcl:"keg,optional"`
	When       hcl.Expression `hcl:"when,optional"`
}

type hclPatch struct {
	Strip    *int           `hcl:"strip,optional"`
	URL      string         `hcl:"url,optional"`
	Data     string         `hcl:"data,optional"`
	Checksum string         `hcl:"checksum,optional"`
	When     hcl.Expression `hcl:"when,optional"`
}

type hclEnv struct {
	Name  string         `hcl:"name,label"`
	Value string         `hcl:"value"`
	Mode  string         `hcl:"mode,optional"`
	When  hcl.Expression `hcl:"when,optional"`
}

type hclStep struct {
	Name    string         `hcl:"name,label"`
	Command string         `hcl:"command"`
	Args    hcl.Expression `hcl:"args,optional"`
	Env     []hclEnv       `hcl:"env,block"`
	When    hcl.Expression `hcl:"when,optional"`
	Policy  string         `hcl:"policy,optional"`
	Log     string         `hcl:"log,optional"`
}

type hclInstall struct {
	Path     string         `hcl:"path,label"`
	Optional bool           `hcl:"optional,optional"`
	When     hcl.Expression `hcl:"when,optional"`
}

type hclCaveat struct {
	Name     string         `hcl:"name,label"`
	Text     string         `hcl:"text"`
	Priority int            `hcl:"priority,optional"`
	When     hcl.Expression `hcl:"when,optional"`
}

// placeholderContext evaluates ${name} references to themselves so that
// templates survive decoding and are expanded during resolution.
func placeholderContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(domain.Placeholders))
	for _, name := range domain.Placeholders {
		vars[name] = cty.StringVal("${" + name + "}")
	}
	return &hcl.EvalContext{Variables: vars}
}

func decodeHCL(path string, data []byte) (*domain.Recipe, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, path)
	if diags.HasErrors() {
		return nil, zerr.Wrap(diags, "failed to parse recipe")
	}

	var f hclRecipeFile
	if diags := gohcl.DecodeBody(file.Body, placeholderContext(), &f); diags.HasErrors() {
		return nil, zerr.Wrap(diags, "failed to decode recipe")
	}

	c := hclConverter{src: data, options: make(map[string]bool, len(f.Options))}
	r := &domain.Recipe{
		Name:        f.Name,
		Version:     f.Version,
		Description: f.Description,
		Homepage:    f.Homepage,
		Source: domain.Source{
			URL:      f.Source.URL,
			Mirrors:  f.Source.Mirrors,
			Checksum: domain.ParseChecksum(f.Source.Checksum),
		},
	}
	for _, o := range f.Options {
		r.Options = append(r.Options, domain.Option(o))
		c.options[o.Name] = true
		c.names = append(c.names, o.Name)
	}
	for _, g := range f.Groups {
		r.Groups = append(r.Groups, domain.ExclusiveGroup(g))
	}

	for i, d := range f.Dependencies {
		when, err := c.predicate(d.When, fmt.Sprintf("dependency[%d].when", i))
		if err != nil {
			return nil, err
		}
		r.Dependencies = append(r.Dependencies, domain.Dependency{
			Name:  d.Name,
			Kind:  dependencyKind(d.Kind),
			When:  when,
			Probe: probe(d.Name, d.Executable, d.Keg),
		})
	}

	for i, p := range f.Patches {
		when, err := c.predicate(p.When, fmt.Sprintf("patch[%d].when", i))
		if err != nil {
			return nil, err
		}
		strip := 1
		if p.Strip != nil {
			strip = *p.Strip
		}
		r.Patches = append(r.Patches, domain.Patch{
			Strip:    strip,
			URL:      p.URL,
			Data:     p.Data,
			Checksum: domain.ParseChecksum(p.Checksum),
			When:     when,
		})
	}

	env, err := c.env(f.Environment, "env")
	if err != nil {
		return nil, err
	}
	r.Environment = env

	for i, s := range f.Steps {
		step, err := c.step(s, fmt.Sprintf("step[%d]", i))
		if err != nil {
			return nil, err
		}
		r.Steps = append(r.Steps, step)
	}

	for i, in := range f.Install {
		when, err := c.predicate(in.When, fmt.Sprintf("install[%d].when", i))
		if err != nil {
			return nil, err
		}
		r.InstallFiles = append(r.InstallFiles, domain.InstallFile{Source: in.Path, Optional: in.Optional, When: when})
	}

	for i, cv := range f.Caveats {
		when, err := c.predicate(cv.When, fmt.Sprintf("caveat[%d].when", i))
		if err != nil {
			return nil, err
		}
		r.Caveats = append(r.Caveats, domain.Caveat{Name: cv.Name, Text: cv.Text, Priority: cv.Priority, When: when})
	}

	return r, nil
}

type hclConverter struct {
	src     []byte
	options map[string]bool
	names   []string
}

func (c hclConverter) step(s hclStep, field string) (domain.Step, error) {
	when, err := c.predicate(s.When, field+".when")
	if err != nil {
		return domain.Step{}, err
	}
	env, err := c.env(s.Env, field+".env")
	if err != nil {
		return domain.Step{}, err
	}
	args, err := c.args(s.Args, field+".args")
	if err != nil {
		return domain.Step{}, err
	}
	return domain.Step{
		Name:    s.Name,
		Command: s.Command,
		Args:    args,
		Env:     env,
		When:    when,
		Policy:  stepPolicy(s.Policy),
		LogFile: s.Log,
	}, nil
}

func (c hclConverter) env(in []hclEnv, field string) ([]domain.EnvAdjustment, error) {
	var out []domain.EnvAdjustment
	for i, e := range in {
		when, err := c.predicate(e.When, fmt.Sprintf("%s[%d].when", field, i))
		if err != nil {
			return nil, err
		}
		out = append(out, domain.EnvAdjustment{Name: e.Name, Value: e.Value, Mode: envMode(e.Mode), When: when})
	}
	return out, nil
}

// args decodes a list whose elements are strings or {value, when, else} objects.
func (c hclConverter) args(expr hcl.Expression, field string) ([]domain.Arg, error) {
	if isNullExpr(expr) {
		return nil, nil
	}
	elems, diags := hcl.ExprList(expr)
	if diags.HasErrors() {
		return nil, zerr.With(zerr.Wrap(diags, "args must be a list"), "field", field)
	}

	args := make([]domain.Arg, 0, len(elems))
	for i, e := range elems {
		elemField := fmt.Sprintf("%s[%d]", field, i)
		pairs, mapDiags := hcl.ExprMap(e)
		if mapDiags.HasErrors() {
			s, err := c.str(e, elemField)
			if err != nil {
				return nil, err
			}
			args = append(args, domain.Arg{Value: s})
			continue
		}

		var arg domain.Arg
		for _, pair := range pairs {
			key := hcl.ExprAsKeyword(pair.Key)
			var err error
			switch key {
			case "value":
				arg.Value, err = c.str(pair.Value, elemField+".value")
			case "else":
				arg.Else, err = c.str(pair.Value, elemField+".else")
				arg.HasElse = true
			case "when":
				arg.When, err = c.predicate(pair.Value, elemField+".when")
			default:
				err = invalid(elemField, "unknown argument key "+key)
			}
			if err != nil {
				return nil, err
			}
		}
		args = append(args, arg)
	}
	return args, nil
}

func (c hclConverter) str(expr hcl.Expression, field string) (string, error) {
	var s string
	if diags := gohcl.DecodeExpression(expr, placeholderContext(), &s); diags.HasErrors() {
		return "", zerr.With(zerr.Wrap(diags, "expected a string"), "field", field)
	}
	return s, nil
}

func (c hclConverter) predicate(expr hcl.Expression, field string) (domain.Predicate, error) {
	if isNullExpr(expr) {
		return nil, nil
	}

	for _, t := range expr.Variables() {
		switch t.RootName() {
		case "option":
			attr, ok := traversalAttr(t)
			if !ok {
				return nil, zerr.With(zerr.With(domain.ErrInvalidPredicate, "field", field), "reason", "option must be referenced by name")
			}
			if !c.options[attr] {
				return nil, zerr.With(zerr.With(domain.ErrUnknownOption, "option", attr), "field", field)
			}
		case "platform":
		default:
			return nil, zerr.With(zerr.With(domain.ErrInvalidPredicate, "field", field), "variable", t.RootName())
		}
	}

	return hclPredicate{
		expr:    expr,
		src:     strings.TrimSpace(string(expr.Range().SliceBytes(c.src))),
		options: c.names,
	}, nil
}

func traversalAttr(t hcl.Traversal) (string, bool) {
	if len(t) < 2 {
		return "", false
	}
	attr, ok := t[1].(hcl.TraverseAttr)
	return attr.Name, ok
}

// isNullExpr reports whether expr is absent or a constant null.
func isNullExpr(expr hcl.Expression) bool {
	if expr == nil {
		return true
	}
	if len(expr.Variables()) > 0 {
		return false
	}
	v, diags := expr.Value(nil)
	return !diags.HasErrors() && v.IsNull()
}

// hclPredicate is a boolean HCL expression evaluated against a snapshot.
type hclPredicate struct {
	expr    hcl.Expression
	src     string
	options []string
}

func (p hclPredicate) Eval(s domain.Snapshot) (bool, error) {
	v, diags := p.expr.Value(evalContext(p.options, s))
	if diags.HasErrors() {
		return false, zerr.With(zerr.Wrap(diags, domain.ErrInvalidPredicate.Error()), "expression", p.src)
	}
	if v.IsNull() {
		return true, nil
	}
	if !v.IsKnown() || !v.Type().Equals(cty.Bool) {
		err := zerr.With(domain.ErrInvalidPredicate, "expression", p.src)
		return false, zerr.With(err, "reason", "condition must be a bool")
	}
	return v.True(), nil
}

func (p hclPredicate) String() string {
	return p.src
}

func evalContext(options []string, s domain.Snapshot) *hcl.EvalContext {
	opts := make(map[string]cty.Value, len(options))
	for _, name := range options {
		opts[name] = cty.BoolVal(s.Options.Has(name))
	}
	optVal := cty.EmptyObjectVal
	if len(opts) > 0 {
		optVal = cty.ObjectVal(opts)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"option": optVal,
			"platform": cty.ObjectVal(map[string]cty.Value{
				"os":      cty.StringVal(s.OS),
				"version": cty.StringVal(s.PlatformVersion),
				"bits":    cty.NumberIntVal(int64(s.Bits)),
			}),
		},
		Functions: versionFunctions,
	}
}

var versionFunctions = map[string]function.Function{
	"version_eq":       versionFunc(func(c int) bool { return c == 0 }),
	"version_at_least": versionFunc(func(c int) bool { return c >= 0 }),
	"version_at_most":  versionFunc(func(c int) bool { return c <= 0 }),
	"version_below":    versionFunc(func(c int) bool { return c < 0 }),
}

func versionFunc(test func(int) bool) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "version", Type: cty.String},
			{Name: "other", Type: cty.String},
		},
		Type: function.StaticReturnType(cty.Bool),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			c, err := domain.ComparePlatformVersion(args[0].AsString(), args[1].AsString())
			if err != nil {
				return cty.NilVal, err
			}
			return cty.BoolVal(test(c)), nil
		},
	})
}
