// Package app implements the application layer for kiln.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"go.trai.ch/kiln/internal/adapters/detector"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/advisory"
	"go.trai.ch/kiln/internal/engine/depcheck"
	"go.trai.ch/kiln/internal/engine/resolver"
	"go.trai.ch/kiln/internal/engine/runner"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	loader   ports.RecipeLoader
	detector ports.PlatformDetector
	prober   ports.DependencyProber
	runner   *runner.Runner
	store    ports.ReceiptStore
	logger   ports.Logger
}

// New creates a new App instance.
func New(
	loader ports.RecipeLoader,
	platform ports.PlatformDetector,
	prober ports.DependencyProber,
	run *runner.Runner,
	store ports.ReceiptStore,
	log ports.Logger,
) *App {
	return &App{
		loader:   loader,
		detector: platform,
		prober:   prober,
		runner:   run,
		store:    store,
		logger:   log,
	}
}

// SnapshotOptions selects options and overrides detected platform facts.
// Zero values keep the detected or default value.
type SnapshotOptions struct {
	Options         []string
	OS              string
	PlatformVersion string
	Bits            int
	Jobs            int
	Prefix          string
	StorePrefix     string
}

// InstallOptions configuration for the Install method.
type InstallOptions struct {
	SnapshotOptions
	WorkDir   string
	KeepBuild bool
}

// InstallReport describes a completed installation.
type InstallReport struct {
	Plan      *domain.Plan
	Receipt   *domain.Receipt
	Tolerated []string
	Caveats   string
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	WorkDir string
	Build   bool
	Cache   bool
}

type outputConfigurer interface {
	SetJSON(enable bool)
	SetColor(enable bool)
}

// ConfigureOutput switches the logger between pretty and JSON output.
// colorMode is one of "auto", "always" or "never".
func (a *App) ConfigureOutput(jsonMode bool, colorMode string) {
	cfg, ok := a.logger.(outputConfigurer)
	if !ok {
		return
	}
	cfg.SetJSON(jsonMode)
	cfg.SetColor(detector.ResolveColor(detector.DetectColor(os.Stderr), detector.ParseColorMode(colorMode)))
}

// Plan loads a recipe and resolves it for the snapshot described by opts.
func (a *App) Plan(_ context.Context, ref string, opts SnapshotOptions) (*domain.Plan, error) {
	_, _, plan, err := a.prepare(ref, opts)
	return plan, err
}

// Deps resolves a recipe and probes its active dependencies.
// The results are returned even when a required dependency is missing.
func (a *App) Deps(_ context.Context, ref string, opts SnapshotOptions) ([]depcheck.Result, error) {
	_, snap, plan, err := a.prepare(ref, opts)
	if err != nil {
		return nil, err
	}
	return depcheck.Check(a.prober, a.logger, snap.StorePrefix, plan.Dependencies)
}

// Caveats returns the advisory text for a recipe and selection.
func (a *App) Caveats(_ context.Context, ref string, opts SnapshotOptions) (string, error) {
	recipe, snap, _, err := a.prepare(ref, opts)
	if err != nil {
		return "", err
	}
	return advisory.Compose(recipe, snap)
}

// Install builds and installs a recipe.
func (a *App) Install(ctx context.Context, ref string, opts InstallOptions) (*InstallReport, error) {
	// 1. Load and resolve
	recipe, snap, plan, err := a.prepare(ref, opts.SnapshotOptions)
	if err != nil {
		return nil, err
	}

	// 2. Check dependencies before anything is fetched
	if _, err := depcheck.Check(a.prober, a.logger, snap.StorePrefix, plan.Dependencies); err != nil {
		return nil, err
	}

	// 3. Run the plan
	a.logger.Info(fmt.Sprintf("installing %s %s into %s", plan.Recipe, plan.Version, snap.Prefix))
	res, err := a.runner.Run(ctx, plan, snap, runner.Options{WorkDir: opts.WorkDir, KeepBuild: opts.KeepBuild})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "install failed"), "recipe", plan.Recipe)
	}

	report := &InstallReport{
		Plan:      plan,
		Receipt:   res.Receipt,
		Tolerated: res.Tolerated(),
	}
	for _, step := range report.Tolerated {
		a.logger.Warn(step + " failed; its log was installed into " + snap.Prefix)
	}

	// 4. Advisory text
	if report.Caveats, err = advisory.Compose(recipe, snap); err != nil {
		return report, err
	}
	return report, nil
}

// Receipt returns the stored receipt of a recipe, or nil when it was never installed.
func (a *App) Receipt(_ context.Context, workDir, name string) (*domain.Receipt, error) {
	return a.store.Get(workDir, name)
}

// Clean removes build trees and downloads based on the provided options.
func (a *App) Clean(_ context.Context, options CleanOptions) error {
	var errs error

	remove := func(path string, name string) {
		a.logger.Info(fmt.Sprintf("removing %s...", name))
		if err := os.RemoveAll(path); err != nil {
			errs = errors.Join(errs, zerr.Wrap(err, fmt.Sprintf("failed to remove %s", name)))
			return
		}
		a.logger.Info(fmt.Sprintf("removed %s", name))
	}

	if options.Build {
		remove(domain.BuildRoot(options.WorkDir), "build trees")
	}
	if options.Cache {
		remove(domain.CachePath(options.WorkDir), "download cache")
	}

	return errs
}

func (a *App) prepare(ref string, opts SnapshotOptions) (*domain.Recipe, domain.Snapshot, *domain.Plan, error) {
	recipe, err := a.loader.Load(ref)
	if err != nil {
		return nil, domain.Snapshot{}, nil, zerr.Wrap(err, "failed to load recipe")
	}

	snap, err := a.snapshot(recipe, opts)
	if err != nil {
		return nil, domain.Snapshot{}, nil, err
	}

	plan, err := resolver.Resolve(recipe, snap)
	if err != nil {
		return nil, domain.Snapshot{}, nil, zerr.With(zerr.Wrap(err, "failed to resolve recipe"), "recipe", recipe.Name)
	}

	// Resolution adds group defaults to the selection.
	return recipe, snap.WithOptions(plan.Options), plan, nil
}

// snapshot captures the build context once. Overrides in opts win over detection.
func (a *App) snapshot(recipe *domain.Recipe, opts SnapshotOptions) (domain.Snapshot, error) {
	platform, err := a.detector.Detect()
	if err != nil {
		return domain.Snapshot{}, zerr.Wrap(err, "failed to detect platform")
	}

	snap := domain.Snapshot{
		OS:              platform.OS,
		PlatformVersion: platform.Version,
		Bits:            platform.Bits,
		Options:         domain.NewOptionSet(opts.Options...),
		Prefix:          opts.Prefix,
		StorePrefix:     opts.StorePrefix,
		Jobs:            opts.Jobs,
	}
	if opts.OS != "" {
		snap.OS = opts.OS
	}
	if opts.PlatformVersion != "" {
		snap.PlatformVersion = opts.PlatformVersion
	}
	if opts.Bits != 0 {
		snap.Bits = opts.Bits
	}
	if snap.StorePrefix == "" {
		snap.StorePrefix = domain.DefaultStorePrefix
	}
	if snap.Prefix == "" {
		snap.Prefix = domain.KegPrefix(snap.StorePrefix, recipe.Name, recipe.Version)
	}
	if snap.Jobs <= 0 {
		snap.Jobs = runtime.NumCPU()
	}

	if snap.Bits != 32 && snap.Bits != 64 {
		return domain.Snapshot{}, zerr.With(domain.ErrInvalidSnapshot, "bits", snap.Bits)
	}
	if snap.PlatformVersion != "" {
		if _, err := domain.CanonicalVersion(snap.PlatformVersion); err != nil {
			return domain.Snapshot{}, zerr.With(zerr.Wrap(err, domain.ErrInvalidSnapshot.Error()), "platform_version", snap.PlatformVersion)
		}
	}
	return snap, nil
}
