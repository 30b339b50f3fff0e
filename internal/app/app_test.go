package app_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/kiln/internal/engine/runner"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	loader    *mocks.MockRecipeLoader
	detector  *mocks.MockPlatformDetector
	prober    *mocks.MockDependencyProber
	fetcher   *mocks.MockFetcher
	verifier  *mocks.MockVerifier
	unpacker  *mocks.MockUnpacker
	executor  *mocks.MockExecutor
	installer *mocks.MockInstaller
	store     *mocks.MockReceiptStore
	logger    *mocks.MockLogger
	app       *app.App
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	vertex := mocks.NewMockVertex(ctrl)
	vertex.EXPECT().Stdout().Return(io.Discard).AnyTimes()
	vertex.EXPECT().Stderr().Return(io.Discard).AnyTimes()
	vertex.EXPECT().Log(gomock.Any(), gomock.Any()).AnyTimes()
	vertex.EXPECT().Complete(gomock.Any()).AnyTimes()
	vertex.EXPECT().Skipped().AnyTimes()
	telemetry := mocks.NewMockTelemetry(ctrl)
	telemetry.EXPECT().Record(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string) (context.Context, ports.Vertex) {
			return ctx, vertex
		}).AnyTimes()

	f := &fixture{
		loader:    mocks.NewMockRecipeLoader(ctrl),
		detector:  mocks.NewMockPlatformDetector(ctrl),
		prober:    mocks.NewMockDependencyProber(ctrl),
		fetcher:   mocks.NewMockFetcher(ctrl),
		verifier:  mocks.NewMockVerifier(ctrl),
		unpacker:  mocks.NewMockUnpacker(ctrl),
		executor:  mocks.NewMockExecutor(ctrl),
		installer: mocks.NewMockInstaller(ctrl),
		store:     mocks.NewMockReceiptStore(ctrl),
		logger:    mocks.NewMockLogger(ctrl),
	}
	f.logger.EXPECT().Info(gomock.Any()).AnyTimes()

	run := runner.NewRunner(f.fetcher, f.verifier, f.unpacker, f.executor, f.installer, f.store, telemetry, f.logger)
	f.app = app.New(f.loader, f.detector, f.prober, run, f.store, f.logger)
	return f
}

func (f *fixture) host(p domain.Platform) {
	f.detector.EXPECT().Detect().Return(p, nil).AnyTimes()
}

var lion = domain.Platform{OS: "darwin", Version: "10.7.5", Bits: 64}

func hello() *domain.Recipe {
	return &domain.Recipe{
		Name:    "hello",
		Version: "2.12",
		Source: domain.Source{
			URL:      "https://ftp.gnu.org/gnu/hello/hello-${version}.tar.gz",
			Checksum: domain.ParseChecksum("sha256:cf04af86dc085268c5f4470fbae49b18afbc221b78096aab842d934a76bad0ab"),
		},
		Options: []domain.Option{{Name: "with-gui"}, {Name: "without-gui"}},
		Groups:  []domain.ExclusiveGroup{{Name: "gui", Members: []string{"with-gui", "without-gui"}, Default: "with-gui"}},
		Dependencies: []domain.Dependency{
			{Name: "gettext", Kind: domain.DependencyBuild, Probe: domain.Probe{Kind: domain.ProbeKeg, Target: "gettext"}},
			{Name: "gtk", Kind: domain.DependencyRecommended, When: domain.OptionSelected{Name: "with-gui"}, Probe: domain.Probe{Kind: domain.ProbeKeg, Target: "gtk"}},
		},
		Steps: []domain.Step{{
			Name:    "configure",
			Command: "./configure",
			Policy:  domain.PolicyFatal,
			Args: []domain.Arg{
				{Value: "--prefix=${prefix}"},
				{Value: "--host-bits=${bits}"},
				{Value: "--jobs=${jobs}"},
			},
		}},
		Caveats: []domain.Caveat{
			{Name: "gui", Text: "GUI enabled.\n", Priority: 1, When: domain.OptionSelected{Name: "with-gui"}},
			{Name: "darwin", Text: "Installed in ${prefix}.\n", Priority: 2, When: domain.OSIs{OS: "darwin"}},
		},
	}
}

func TestApp_Plan(t *testing.T) {
	f := newFixture(t)
	f.host(lion)
	f.loader.EXPECT().Load("hello").Return(hello(), nil)

	plan, err := f.app.Plan(context.Background(), "hello", app.SnapshotOptions{Jobs: 4})
	require.NoError(t, err)

	assert.Equal(t, "https://ftp.gnu.org/gnu/hello/hello-2.12.tar.gz", plan.Source.URL)
	assert.Equal(t, []string{"with-gui"}, plan.Options.Names(), "group default is selected")
	require.Len(t, plan.Invocations, 1)
	assert.Equal(t, []string{"--prefix=/usr/local/Cellar/hello/2.12", "--host-bits=64", "--jobs=4"}, plan.Invocations[0].Args)
	assert.Len(t, plan.Dependencies, 2)
}

func TestApp_Plan_Overrides(t *testing.T) {
	f := newFixture(t)
	f.host(lion)
	f.loader.EXPECT().Load("hello").Return(hello(), nil)

	plan, err := f.app.Plan(context.Background(), "hello", app.SnapshotOptions{
		Options:     []string{"without-gui"},
		Bits:        32,
		Jobs:        1,
		StorePrefix: "/opt/kiln",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"--prefix=/opt/kiln/Cellar/hello/2.12", "--host-bits=32", "--jobs=1"}, plan.Invocations[0].Args)
	assert.Len(t, plan.Dependencies, 1, "gtk is only needed with the gui")
}

func TestApp_Plan_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture)
		opts    app.SnapshotOptions
		wantErr string
	}{
		{
			name: "recipe not found",
			setup: func(f *fixture) {
				f.loader.EXPECT().Load("hello").Return(nil, zerr.With(domain.ErrRecipeNotFound, "recipe", "hello"))
			},
			wantErr: domain.ErrRecipeNotFound.Error(),
		},
		{
			name: "detection fails",
			setup: func(f *fixture) {
				f.loader.EXPECT().Load("hello").Return(hello(), nil)
				f.detector.EXPECT().Detect().Return(domain.Platform{}, errors.New("uname failed"))
			},
			wantErr: "failed to detect platform",
		},
		{
			name: "bad bits",
			setup: func(f *fixture) {
				f.loader.EXPECT().Load("hello").Return(hello(), nil)
				f.host(lion)
			},
			opts:    app.SnapshotOptions{Bits: 16},
			wantErr: domain.ErrInvalidSnapshot.Error(),
		},
		{
			name: "bad platform version",
			setup: func(f *fixture) {
				f.loader.EXPECT().Load("hello").Return(hello(), nil)
				f.host(lion)
			},
			opts:    app.SnapshotOptions{PlatformVersion: "tiger-ish"},
			wantErr: domain.ErrInvalidSnapshot.Error(),
		},
		{
			name: "conflicting options",
			setup: func(f *fixture) {
				f.loader.EXPECT().Load("hello").Return(hello(), nil)
				f.host(lion)
			},
			opts:    app.SnapshotOptions{Options: []string{"with-gui", "without-gui"}},
			wantErr: domain.ErrConflictingOptions.Error(),
		},
		{
			name: "unknown option",
			setup: func(f *fixture) {
				f.loader.EXPECT().Load("hello").Return(hello(), nil)
				f.host(lion)
			},
			opts:    app.SnapshotOptions{Options: []string{"with-qt"}},
			wantErr: domain.ErrUnknownOption.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			_, err := f.app.Plan(context.Background(), "hello", tt.opts)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestApp_Deps(t *testing.T) {
	f := newFixture(t)
	f.host(lion)
	f.loader.EXPECT().Load("hello").Return(hello(), nil)
	f.prober.EXPECT().Probe("/usr/local", gomock.Any()).DoAndReturn(func(_ string, d domain.Dependency) (string, bool) {
		if d.Name == "gettext" {
			return "/usr/local/opt/gettext", true
		}
		return "", false
	}).Times(2)
	f.logger.EXPECT().Warn("recommended dependency gtk is not installed")

	results, err := f.app.Deps(context.Background(), "hello", app.SnapshotOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Found)
	assert.False(t, results[1].Found)
}

func TestApp_Caveats(t *testing.T) {
	f := newFixture(t)
	f.host(lion)
	f.loader.EXPECT().Load("hello").Return(hello(), nil).Times(2)

	text, err := f.app.Caveats(context.Background(), "hello", app.SnapshotOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Installed in /usr/local/Cellar/hello/2.12.\nGUI enabled.\n", text)

	text, err = f.app.Caveats(context.Background(), "hello", app.SnapshotOptions{OS: "linux", Options: []string{"without-gui"}})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestApp_Install_MissingDependency(t *testing.T) {
	f := newFixture(t)
	f.host(lion)
	f.loader.EXPECT().Load("hello").Return(hello(), nil)
	f.prober.EXPECT().Probe(gomock.Any(), gomock.Any()).Return("", false).Times(2)
	f.logger.EXPECT().Warn(gomock.Any())

	// Nothing is fetched or run.
	_, err := f.app.Install(context.Background(), "hello", app.InstallOptions{WorkDir: t.TempDir()})
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrUnsatisfiedDependency.Error())
}

func TestApp_Install(t *testing.T) {
	f := newFixture(t)
	f.host(lion)
	workDir := t.TempDir()
	prefix := filepath.Join(t.TempDir(), "hello")

	f.loader.EXPECT().Load("hello").Return(hello(), nil)
	f.prober.EXPECT().Probe(gomock.Any(), gomock.Any()).Return("/usr/local/opt/x", true).Times(2)

	archive := filepath.Join(domain.DownloadsPath(workDir), "hello-2.12.tar.gz")
	f.fetcher.EXPECT().Fetch(gomock.Any(), domain.DownloadsPath(workDir), []string{"https://ftp.gnu.org/gnu/hello/hello-2.12.tar.gz"}).Return(archive, nil)
	f.verifier.EXPECT().Verify(archive, hello().Source.Checksum).Return(nil)
	f.unpacker.EXPECT().Unpack(gomock.Any(), archive, gomock.Any()).DoAndReturn(func(_ context.Context, _, dest string) (string, error) {
		return dest, os.MkdirAll(dest, 0o750)
	})
	f.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, inv domain.Invocation, _ []domain.EnvOp, _, _ io.Writer) error {
			assert.Equal(t, "--prefix="+prefix, inv.Args[0])
			return nil
		})
	f.store.EXPECT().Put(workDir, gomock.Any()).Return(nil)

	report, err := f.app.Install(context.Background(), "hello", app.InstallOptions{
		SnapshotOptions: app.SnapshotOptions{Prefix: prefix},
		WorkDir:         workDir,
	})
	require.NoError(t, err)

	require.NotNil(t, report.Receipt)
	assert.Equal(t, prefix, report.Receipt.Prefix)
	assert.Equal(t, []string{"with-gui"}, report.Receipt.Options)
	assert.Equal(t, "10.7.5", report.Receipt.PlatformVersion)
	assert.Equal(t, "Installed in "+prefix+".\nGUI enabled.\n", report.Caveats)
	assert.Empty(t, report.Tolerated)
}

func TestApp_Install_StepFailure(t *testing.T) {
	f := newFixture(t)
	f.host(lion)
	workDir := t.TempDir()

	f.loader.EXPECT().Load("hello").Return(hello(), nil)
	f.prober.EXPECT().Probe(gomock.Any(), gomock.Any()).Return("/usr/local/opt/x", true).Times(2)
	f.fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).Return("/cache/hello.tar.gz", nil)
	f.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(nil)
	f.unpacker.EXPECT().Unpack(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, _, dest string) (string, error) {
		return dest, os.MkdirAll(dest, 0o750)
	})
	f.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(zerr.With(zerr.Wrap(fmt.Errorf("exit status 1"), "command failed"), "exit_code", 1))

	_, err := f.app.Install(context.Background(), "hello", app.InstallOptions{WorkDir: workDir})
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrStepFailed.Error())

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok)
	assert.Equal(t, "hello", zErr.Metadata()["recipe"])
}

func TestApp_Clean(t *testing.T) {
	f := newFixture(t)
	workDir := t.TempDir()
	require.NoError(t, os.MkdirAll(domain.BuildPath(workDir, "hello", "2.12"), 0o750))
	require.NoError(t, os.MkdirAll(domain.DownloadsPath(workDir), 0o750))
	require.NoError(t, os.MkdirAll(domain.StorePath(workDir), 0o750))

	require.NoError(t, f.app.Clean(context.Background(), app.CleanOptions{WorkDir: workDir, Build: true}))
	assert.NoDirExists(t, domain.BuildRoot(workDir))
	assert.DirExists(t, domain.DownloadsPath(workDir))

	require.NoError(t, f.app.Clean(context.Background(), app.CleanOptions{WorkDir: workDir, Cache: true}))
	assert.NoDirExists(t, domain.CachePath(workDir))
	assert.DirExists(t, domain.StorePath(workDir), "receipts are kept")
}

func TestApp_Receipt(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().Get("/work", "hello").Return(&domain.Receipt{Name: "hello"}, nil)

	receipt, err := f.app.Receipt(context.Background(), "/work", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", receipt.Name)
}

func TestApp_ConfigureOutput_NonConfigurableLogger(t *testing.T) {
	f := newFixture(t)
	assert.NotPanics(t, func() { f.app.ConfigureOutput(true, "never") })
}
