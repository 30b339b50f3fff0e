package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/config"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

const recipesDir = "../../../recipes"

func writeRecipe(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func metadata(t *testing.T, err error) map[string]any {
	t.Helper()
	zErr, ok := err.(*zerr.Error)
	require.True(t, ok, "expected *zerr.Error, got %T", err)
	return zErr.Metadata()
}

func TestLoadFile_BundledOctave(t *testing.T) {
	for _, file := range []string{"octave.yaml", "octave.hcl"} {
		t.Run(file, func(t *testing.T) {
			r, err := config.LoadFile(filepath.Join(recipesDir, file))
			require.NoError(t, err)

			assert.Equal(t, "octave", r.Name)
			assert.Equal(t, "3.6.4", r.Version)
			assert.Equal(t, domain.Checksum{Algorithm: "sha1", Hex: "3cc9366b6dbbd336eaf90fe70ad16e63705d82c4"}, r.Source.Checksum)
			assert.Len(t, r.Source.Mirrors, 1)

			require.Len(t, r.Groups, 1)
			assert.Equal(t, domain.ExclusiveGroup{
				Name:    "graphics",
				Members: []string{"with-fltk", "without-fltk"},
				Default: "with-fltk",
			}, r.Groups[0])

			steps := make([]string, 0, len(r.Steps))
			for _, s := range r.Steps {
				steps = append(steps, s.Name)
			}
			assert.Equal(t, []string{"autoreconf", "configure", "make", "check", "install"}, steps)

			check := r.Steps[3]
			assert.Equal(t, domain.PolicyBestEffort, check.Policy)
			assert.Equal(t, "make-check.log", check.LogFile)

			require.Len(t, r.Patches, 6)
			assert.Equal(t, 0, r.Patches[0].Strip)
			assert.True(t, r.Patches[5].Inline())
			assert.Len(t, r.Caveats, 3)
			require.Len(t, r.InstallFiles, 2)
			assert.Equal(t, "test/fntests.log", r.InstallFiles[0].Source)
			assert.True(t, r.InstallFiles[0].Optional)
			assert.False(t, r.InstallFiles[1].Optional)

			var ldflags []domain.EnvAdjustment
			for _, e := range r.Environment {
				if e.Name == "LDFLAGS" {
					ldflags = append(ldflags, e)
				}
			}
			require.Len(t, ldflags, 1)
			assert.Equal(t, "-arch x86_64", ldflags[0].Value)
			assert.Equal(t, domain.EnvAppend, ldflags[0].Mode)
			for bits, want := range map[int]bool{64: true, 32: false} {
				ok, err := domain.Holds(ldflags[0].When, domain.Snapshot{OS: "darwin", PlatformVersion: "10.8", Bits: bits})
				require.NoError(t, err)
				assert.Equal(t, want, ok, "LDFLAGS on %d bits", bits)
			}
		})
	}
}

// The two encodings of the bundled recipe must agree on every condition.
func TestLoadFile_EncodingsAgree(t *testing.T) {
	y, err := config.LoadFile(filepath.Join(recipesDir, "octave.yaml"))
	require.NoError(t, err)
	h, err := config.LoadFile(filepath.Join(recipesDir, "octave.hcl"))
	require.NoError(t, err)

	snapshots := []domain.Snapshot{
		{OS: "darwin", PlatformVersion: "10.5", Bits: 32, Options: domain.NewOptionSet("with-fltk")},
		{OS: "darwin", PlatformVersion: "10.6.8", Bits: 64, Options: domain.NewOptionSet("without-fltk", "test")},
		{OS: "darwin", PlatformVersion: "10.8", Bits: 64, Options: domain.NewOptionSet("with-fltk")},
		{OS: "darwin", PlatformVersion: "10.9", Bits: 32, Options: domain.NewOptionSet("without-fltk")},
	}

	holds := func(p domain.Predicate, s domain.Snapshot) bool {
		ok, err := domain.Holds(p, s)
		require.NoError(t, err)
		return ok
	}

	require.Len(t, h.Dependencies, len(y.Dependencies))
	require.Len(t, h.Steps, len(y.Steps))
	require.Len(t, h.Caveats, len(y.Caveats))

	for _, s := range snapshots {
		for i := range y.Dependencies {
			assert.Equal(t, y.Dependencies[i].Name, h.Dependencies[i].Name)
			assert.Equal(t, y.Dependencies[i].Probe, h.Dependencies[i].Probe)
			assert.Equal(t, holds(y.Dependencies[i].When, s), holds(h.Dependencies[i].When, s),
				"dependency %s on %s", y.Dependencies[i].Name, s.PlatformVersion)
		}
		for i := range y.Steps {
			require.Len(t, h.Steps[i].Args, len(y.Steps[i].Args))
			for j, a := range y.Steps[i].Args {
				b := h.Steps[i].Args[j]
				assert.Equal(t, a.Value, b.Value)
				assert.Equal(t, a.Else, b.Else)
				assert.Equal(t, holds(a.When, s), holds(b.When, s), "step %s arg %d", y.Steps[i].Name, j)
			}
		}
		for i := range y.Caveats {
			assert.Equal(t, y.Caveats[i].Text, h.Caveats[i].Text)
			assert.Equal(t, holds(y.Caveats[i].When, s), holds(h.Caveats[i].When, s))
		}
	}
}

func TestLoadFile_ScalarAndMappingArgs(t *testing.T) {
	path := writeRecipe(t, "args.yaml", `
name: demo
version: "1.0"
source: {url: "file:///tmp/demo.tar.gz", checksum: "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}
options:
  - name: debug
steps:
  - name: configure
    command: ./configure
    args:
      - --prefix=${prefix}
      - value: --enable-debug
        when: {option: debug}
        else: --disable-debug
`)

	r, err := config.LoadFile(path)
	require.NoError(t, err)
	require.Len(t, r.Steps, 1)

	args := r.Steps[0].Args
	require.Len(t, args, 2)
	assert.Equal(t, domain.Arg{Value: "--prefix=${prefix}"}, args[0])
	assert.Equal(t, "--enable-debug", args[1].Value)
	assert.Equal(t, "--disable-debug", args[1].Else)
	assert.True(t, args[1].HasElse)
	assert.Equal(t, "option(debug)", args[1].When.String())

	// Defaults
	assert.Equal(t, domain.PolicyFatal, r.Steps[0].Policy)
}

func TestLoadFile_Defaults(t *testing.T) {
	path := writeRecipe(t, "defaults.yaml", `
name: demo
version: "1.0"
source: {url: "file:///tmp/demo.tar.gz", checksum: "E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855"}
dependencies:
  - name: zlib
patches:
  - url: https://example.com/fix.diff
environment:
  - {name: LANG, value: C}
steps:
  - {name: make, command: make}
`)

	r, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, domain.Checksum{Algorithm: "sha256", Hex: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}, r.Source.Checksum)
	assert.Equal(t, domain.DependencyRuntime, r.Dependencies[0].Kind)
	assert.Equal(t, domain.Probe{Kind: domain.ProbeKeg, Target: "zlib"}, r.Dependencies[0].Probe)
	assert.Equal(t, 1, r.Patches[0].Strip)
	assert.Equal(t, domain.EnvSet, r.Environment[0].Mode)
}

func TestLoadFile_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
		reason  string
	}{
		{
			name:    "Missing Name",
			content: `{version: "1", source: {url: x, checksum: "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}}`,
			field:   "name",
			reason:  "name is required",
		},
		{
			name:    "Missing Source",
			content: `{name: a, version: "1"}`,
			field:   "source.url",
			reason:  "source url is required",
		},
		{
			name: "Duplicate Option",
			content: `
name: a
version: "1"
source: {url: x, checksum: "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}
options: [{name: test}, {name: test}]`,
			field:  "options[1]",
			reason: "duplicate option test",
		},
		{
			name: "Group Default Not A Member",
			content: `
name: a
version: "1"
source: {url: x, checksum: "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}
options: [{name: on}, {name: off}, {name: other}]
groups: [{name: g, members: [on, off], default: other}]`,
			field:  "groups[0]",
			reason: "default other is not a member",
		},
		{
			name: "Group With One Member",
			content: `
name: a
version: "1"
source: {url: x, checksum: "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}
options: [{name: on}]
groups: [{name: g, members: [on], default: on}]`,
			field:  "groups[0]",
			reason: "group needs at least two members",
		},
		{
			name: "Patch With URL And Data",
			content: `
name: a
version: "1"
source: {url: x, checksum: "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}
patches: [{url: http://x/p.diff, data: "diff"}]`,
			field:  "patches[0]",
			reason: "exactly one of url or data is required",
		},
		{
			name: "Unknown Policy",
			content: `
name: a
version: "1"
source: {url: x, checksum: "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}
steps: [{name: s, command: make, policy: sometimes}]`,
			field:  "steps[0]",
			reason: "unknown policy sometimes",
		},
		{
			name: "Duplicate Step",
			content: `
name: a
version: "1"
source: {url: x, checksum: "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}
steps: [{name: s, command: make}, {name: s, command: make}]`,
			field:  "steps[1]",
			reason: "duplicate step s",
		},
		{
			name: "Unsupported Checksum",
			content: `
name: a
version: "1"
source: {url: x, checksum: "md5:abc"}`,
			field:  "source.checksum",
			reason: "unsupported checksum algorithm md5",
		},
		{
			name:    "Empty Document",
			content: ``,
			field:   "",
			reason:  "empty recipe document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeRecipe(t, "recipe.yaml", tt.content)

			_, err := config.LoadFile(path)
			require.Error(t, err)
			require.ErrorContains(t, err, domain.ErrInvalidRecipe.Error())

			md := metadata(t, err)
			assert.Equal(t, tt.field, md["field"])
			assert.Equal(t, tt.reason, md["reason"])
			assert.Equal(t, path, md["path"])
		})
	}
}

func TestLoadFile_SourceChecksum(t *testing.T) {
	tests := []struct {
		name     string
		checksum string
		reason   string
	}{
		{name: "Missing", checksum: "", reason: "source checksum is required"},
		{name: "Algorithm Without Digest", checksum: "sha1:", reason: "sha1 digest is empty"},
		{name: "Short sha1", checksum: "sha1:3cc9366b", reason: "sha1 digest must be 40 hex characters, got 8"},
		{name: "sha1 Given As sha256", checksum: "sha256:3cc9366b6dbbd336eaf90fe70ad16e63705d82c4", reason: "sha256 digest must be 64 hex characters, got 40"},
		{name: "Short Bare Digest", checksum: "abc123", reason: "sha256 digest must be 64 hex characters, got 6"},
		{name: "Not Hex", checksum: "sha1:zzc9366b6dbbd336eaf90fe70ad16e63705d82c4", reason: "sha1 digest is not hex"},
	}

	render := map[string]func(checksum string) string{
		"recipe.yaml": func(checksum string) string {
			if checksum == "" {
				return "{name: a, version: \"1\", source: {url: x}}"
			}
			return "{name: a, version: \"1\", source: {url: x, checksum: \"" + checksum + "\"}}"
		},
		"recipe.hcl": func(checksum string) string {
			src := "name    = \"a\"\nversion = \"1\"\nsource {\n  url = \"x\"\n"
			if checksum != "" {
				src += "  checksum = \"" + checksum + "\"\n"
			}
			return src + "}\n"
		},
	}

	for file, content := range render {
		for _, tt := range tests {
			t.Run(file+"/"+tt.name, func(t *testing.T) {
				path := writeRecipe(t, file, content(tt.checksum))

				_, err := config.LoadFile(path)
				require.Error(t, err)
				require.ErrorContains(t, err, domain.ErrInvalidRecipe.Error())

				md := metadata(t, err)
				assert.Equal(t, "source.checksum", md["field"])
				assert.Equal(t, tt.reason, md["reason"])
			})
		}
	}
}

func TestLoadFile_PatchChecksumOptional(t *testing.T) {
	path := writeRecipe(t, "recipe.yaml", `
name: a
version: "1"
source: {url: x, checksum: "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}
patches:
  - url: http://x/unpinned.diff
  - url: http://x/pinned.diff
    checksum: "sha1:"
`)

	_, err := config.LoadFile(path)
	require.Error(t, err)
	md := metadata(t, err)
	assert.Equal(t, "patches[1].checksum", md["field"])
	assert.Equal(t, "sha1 digest is empty", md["reason"])
}

func TestLoadFile_UnknownField(t *testing.T) {
	path := writeRecipe(t, "typo.yaml", `
name: a
version: "1"
source: {url: x, checksum: "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}
stepz: []
`)

	_, err := config.LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse recipe")
}

func TestLoadFile_PredicateErrors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		sentinel error
		meta     map[string]any
	}{
		{
			name: "YAML Undeclared Option",
			file: "recipe.yaml",
			content: `
name: a
version: "1"
source: {url: x, checksum: "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}
steps: [{name: s, command: make, when: {option: tests}}]`,
			sentinel: domain.ErrUnknownOption,
			meta:     map[string]any{"option": "tests", "field": "steps[0].when"},
		},
		{
			name: "YAML Empty Condition",
			file: "recipe.yaml",
			content: `
name: a
version: "1"
source: {url: x, checksum: "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}
install: [{path: a.log, when: {}}]`,
			sentinel: domain.ErrInvalidPredicate,
			meta:     map[string]any{"field": "install[0].when", "reason": "empty condition"},
		},
		{
			name: "YAML Bad Bits",
			file: "recipe.yaml",
			content: `
name: a
version: "1"
source: {url: x, checksum: "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}
environment: [{name: CFLAGS, value: -m16, when: {bits: 16}}]`,
			sentinel: domain.ErrInvalidPredicate,
			meta:     map[string]any{"field": "environment[0].when", "bits": 16},
		},
		{
			name: "YAML Bad Platform Version",
			file: "recipe.yaml",
			content: `
name: a
version: "1"
source: {url: x, checksum: "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}
patches: [{url: http://x/p.diff, when: {platform: {min: tiger-ish}}}]`,
			sentinel: domain.ErrInvalidVersion,
			meta:     map[string]any{"field": "patches[0].when.platform"},
		},
		{
			name: "HCL Undeclared Option",
			file: "recipe.hcl",
			content: `
name    = "a"
version = "1"
source {
  url      = "x"
  checksum = "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
}
step "s" {
  command = "make"
  when    = option.tests
}`,
			sentinel: domain.ErrUnknownOption,
			meta:     map[string]any{"option": "tests"},
		},
		{
			name: "HCL Unknown Variable",
			file: "recipe.hcl",
			content: `
name    = "a"
version = "1"
source {
  url      = "x"
  checksum = "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
}
caveat "c" {
  text = "hello"
  when = host.arch == "arm64"
}`,
			sentinel: domain.ErrInvalidPredicate,
			meta:     map[string]any{"variable": "host"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeRecipe(t, tt.file, tt.content)

			_, err := config.LoadFile(path)
			require.Error(t, err)
			require.ErrorContains(t, err, tt.sentinel.Error())

			md := metadata(t, err)
			for k, v := range tt.meta {
				assert.Equal(t, v, md[k], "metadata %q", k)
			}
		})
	}
}

func TestLoadFile_HCLArgsWithUnknownKey(t *testing.T) {
	path := writeRecipe(t, "recipe.hcl", `
name    = "a"
version = "1"
source {
  url      = "x"
  checksum = "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
}
step "configure" {
  command = "./configure"
  args    = [{ value = "--with-x", unless = true }]
}`)

	_, err := config.LoadFile(path)
	require.Error(t, err)
	require.ErrorContains(t, err, domain.ErrInvalidRecipe.Error())
	assert.Equal(t, "unknown argument key unless", metadata(t, err)["reason"])
}

func TestLoader_LoadByName(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Info("loaded recipe octave 3.6.4 from " + filepath.Join(recipesDir, "octave.yaml")).Times(1)

	loader := config.NewLoader(mockLogger, t.TempDir(), recipesDir)
	r, err := loader.Load("octave")
	require.NoError(t, err)
	assert.Equal(t, "octave", r.Name)
}

func TestLoader_LoadByPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Info(gomock.Any()).Times(1)

	loader := config.NewLoader(mockLogger)
	r, err := loader.Load(filepath.Join(recipesDir, "octave.hcl"))
	require.NoError(t, err)
	assert.Equal(t, "3.6.4", r.Version)
}

func TestLoader_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLogger := mocks.NewMockLogger(ctrl)
	dirA, dirB := t.TempDir(), t.TempDir()

	loader := config.NewLoader(mockLogger, dirA, dirB)
	_, err := loader.Load("gnuplot")
	require.Error(t, err)
	require.ErrorContains(t, err, domain.ErrRecipeNotFound.Error())

	md := metadata(t, err)
	assert.Equal(t, "gnuplot", md["recipe"])
	assert.Equal(t, dirA+string(os.PathListSeparator)+dirB, md["search_dirs"])
}

func TestLoader_MissingPath(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	loader := config.NewLoader(mocks.NewMockLogger(ctrl))
	_, err := loader.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.ErrorContains(t, err, domain.ErrRecipeNotFound.Error())
}

func TestSearchDirs(t *testing.T) {
	sep := string(os.PathListSeparator)

	assert.Equal(t, []string{"recipes"}, config.SearchDirs(""))
	assert.Equal(t, []string{"/a", "/b", "recipes"}, config.SearchDirs("/a"+sep+sep+"/b"))
}
