// Package runner executes a resolved plan: source, patches, steps, install and receipt.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// PatchCommand is the executable used to apply patches.
const PatchCommand = "patch"

// Runner drives a plan through its phases, one after the other.
type Runner struct {
	fetcher   ports.Fetcher
	verifier  ports.Verifier
	unpacker  ports.Unpacker
	executor  ports.Executor
	installer ports.Installer
	store     ports.ReceiptStore
	telemetry ports.Telemetry
	logger    ports.Logger
	now       func() time.Time
}

// NewRunner creates a new Runner with the given dependencies.
func NewRunner(
	fetcher ports.Fetcher,
	verifier ports.Verifier,
	unpacker ports.Unpacker,
	executor ports.Executor,
	installer ports.Installer,
	store ports.ReceiptStore,
	telemetry ports.Telemetry,
	logger ports.Logger,
) *Runner {
	return &Runner{
		fetcher:   fetcher,
		verifier:  verifier,
		unpacker:  unpacker,
		executor:  executor,
		installer: installer,
		store:     store,
		telemetry: telemetry,
		logger:    logger,
		now:       time.Now,
	}
}

// Options controls where a run keeps its files.
type Options struct {
	// WorkDir is the root below which the .kiln directory lives.
	WorkDir string
	// KeepBuild leaves the build tree in place after a successful install.
	KeepBuild bool
}

// Result describes a finished or aborted run.
type Result struct {
	SourceRoot string
	Steps      []domain.StepOutcome
	Installed  []string
	Receipt    *domain.Receipt
}

// Tolerated returns the steps that failed without aborting the build.
func (r *Result) Tolerated() []string {
	var names []string
	for _, s := range r.Steps {
		if s.Status == domain.StepStatusTolerated {
			names = append(names, s.Step)
		}
	}
	return names
}

// Run executes plan for snap. The returned Result is non-nil even when the run fails,
// so callers can report how far it got.
func (r *Runner) Run(ctx context.Context, plan *domain.Plan, snap domain.Snapshot, opts Options) (*Result, error) {
	res := &Result{}
	buildDir := domain.BuildPath(opts.WorkDir, plan.Recipe, plan.Version)
	cacheDir := domain.DownloadsPath(opts.WorkDir)

	// 1. Source
	archive, err := r.fetchSource(ctx, plan, cacheDir)
	if err != nil {
		return res, err
	}

	// 2. Patches are downloaded before anything is unpacked.
	patches, err := r.fetchPatches(ctx, plan.Patches, cacheDir, snap.Jobs)
	if err != nil {
		return res, err
	}

	// 3. Unpack
	if err := os.RemoveAll(buildDir); err != nil {
		return res, zerr.With(zerr.Wrap(err, "failed to clean build directory"), "path", buildDir)
	}
	if res.SourceRoot, err = r.unpack(ctx, archive, buildDir); err != nil {
		return res, err
	}

	// 4. Apply patches
	if err := r.applyPatches(ctx, res.SourceRoot, plan.Patches, patches); err != nil {
		return res, err
	}

	// 5. Steps
	if err := r.runSteps(ctx, res, plan); err != nil {
		return res, err
	}

	// 6. Install
	if res.Installed, err = r.install(ctx, res.SourceRoot, snap.Prefix, plan.InstallFiles); err != nil {
		return res, err
	}

	// 7. Receipt
	receipt := domain.Receipt{
		Name:            plan.Recipe,
		Version:         plan.Version,
		Prefix:          snap.Prefix,
		Options:         plan.Options.Names(),
		OS:              snap.OS,
		PlatformVersion: snap.PlatformVersion,
		Bits:            snap.Bits,
		Fingerprint:     plan.Fingerprint,
		Steps:           res.Steps,
		Installed:       res.Installed,
		Timestamp:       r.now().UTC(),
	}
	if err := r.store.Put(opts.WorkDir, receipt); err != nil {
		return res, zerr.Wrap(err, "failed to store receipt")
	}
	res.Receipt = &receipt

	if !opts.KeepBuild {
		if err := os.RemoveAll(buildDir); err != nil {
			r.logger.Warn("could not remove build directory " + buildDir)
		}
	}
	return res, nil
}

func (r *Runner) fetchSource(ctx context.Context, plan *domain.Plan, cacheDir string) (path string, err error) {
	ctx, vertex := r.telemetry.Record(ctx, "fetch "+plan.Recipe+"-"+plan.Version)
	defer func() { vertex.Complete(err) }()

	path, err = r.fetcher.Fetch(ctx, cacheDir, plan.Source.Locations())
	if err != nil {
		return "", err
	}
	if err := r.verifier.Verify(path, plan.Source.Checksum); err != nil {
		return "", zerr.With(err, "url", plan.Source.URL)
	}
	vertex.Log(domain.LogLevelInfo, "verified "+filepath.Base(path))
	return path, nil
}

// fetchPatches downloads remote patches concurrently and writes inline ones into the cache.
// The returned paths line up with patches.
func (r *Runner) fetchPatches(ctx context.Context, patches []domain.Patch, cacheDir string, jobs int) (paths []string, err error) {
	if len(patches) == 0 {
		return nil, nil
	}

	ctx, vertex := r.telemetry.Record(ctx, "fetch patches")
	defer func() { vertex.Complete(err) }()

	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	paths = make([]string, len(patches))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i, p := range patches {
		g.Go(func() error {
			if p.Inline() {
				path, err := writeInlinePatch(cacheDir, p.Data)
				if err != nil {
					return err
				}
				paths[i] = path
				return nil
			}

			path, err := r.fetcher.Fetch(ctx, cacheDir, []string{p.URL})
			if err != nil {
				return zerr.With(err, "patch", p.URL)
			}
			if err := r.verifier.Verify(path, p.Checksum); err != nil {
				return zerr.With(err, "patch", p.URL)
			}
			paths[i] = path
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func writeInlinePatch(cacheDir, data string) (string, error) {
	if err := os.MkdirAll(cacheDir, domain.DirPerm); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to create download cache"), "path", cacheDir)
	}
	path := filepath.Join(cacheDir, fmt.Sprintf("%016x.patch", xxhash.Sum64String(data)))
	if err := os.WriteFile(path, []byte(data), domain.FilePerm); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to write inline patch"), "path", path)
	}
	return path, nil
}

func (r *Runner) unpack(ctx context.Context, archive, buildDir string) (root string, err error) {
	ctx, vertex := r.telemetry.Record(ctx, "unpack "+filepath.Base(archive))
	defer func() { vertex.Complete(err) }()

	return r.unpacker.Unpack(ctx, archive, buildDir)
}

func (r *Runner) applyPatches(ctx context.Context, srcRoot string, patches []domain.Patch, paths []string) error {
	for i, p := range patches {
		name := p.URL
		if p.Inline() {
			name = "inline patch " + strconv.Itoa(i)
		}

		inv := domain.Invocation{
			Step:    "patch",
			Command: PatchCommand,
			Args:    []string{"-p" + strconv.Itoa(p.Strip), "-i", paths[i]},
			Policy:  domain.PolicyFatal,
		}

		vctx, vertex := r.telemetry.Record(ctx, "patch "+strconv.Itoa(i)+" "+filepath.Base(name))
		r.logger.Info("applying " + name)
		err := r.executor.Execute(vctx, srcRoot, inv, nil, nil, nil)
		vertex.Complete(err)
		if err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrPatchFailed.Error()), "patch", name)
		}
	}
	return nil
}

func (r *Runner) runSteps(ctx context.Context, res *Result, plan *domain.Plan) error {
	for i, inv := range plan.Invocations {
		if err := ctx.Err(); err != nil {
			r.skipFrom(ctx, res, plan.Invocations[i:])
			return err
		}

		outcome, err := r.runStep(ctx, res.SourceRoot, inv, plan.Env)
		res.Steps = append(res.Steps, outcome)
		if err != nil {
			r.skipFrom(ctx, res, plan.Invocations[i+1:])
			return err
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, srcRoot string, inv domain.Invocation, env []domain.EnvOp) (domain.StepOutcome, error) {
	outcome := domain.StepOutcome{Step: inv.Step, Status: domain.StepStatusRunning}

	ctx, vertex := r.telemetry.Record(ctx, "step "+inv.Step)
	r.logger.Info(strings.Join(inv.Argv(), " "))

	var out io.Writer
	if inv.LogFile != "" {
		logPath := filepath.Join(srcRoot, inv.LogFile)
		f, err := os.Create(logPath) //nolint:gosec // Log file lives in the build tree
		if err != nil {
			err = zerr.With(zerr.Wrap(err, "failed to create step log"), "path", logPath)
			vertex.Complete(err)
			outcome.Status = domain.StepStatusFailed
			return outcome, zerr.With(err, "step", inv.Step)
		}
		defer f.Close() //nolint:errcheck // Best effort close in defer
		out = &lockedWriter{w: f}
	}

	err := r.executor.Execute(ctx, srcRoot, inv, env, out, out)
	vertex.Complete(err)
	if err == nil {
		outcome.Status = domain.StepStatusCompleted
		return outcome, nil
	}

	outcome.ExitCode = exitCode(err)
	if inv.Policy == domain.PolicyBestEffort && ctx.Err() == nil {
		outcome.Status = domain.StepStatusTolerated
		r.logger.Warn(fmt.Sprintf("%s failed with exit code %d, continuing", inv.Step, outcome.ExitCode))
		return outcome, nil
	}

	outcome.Status = domain.StepStatusFailed
	return outcome, zerr.With(zerr.Wrap(err, domain.ErrStepFailed.Error()), "step", inv.Step)
}

func (r *Runner) skipFrom(ctx context.Context, res *Result, rest []domain.Invocation) {
	for _, inv := range rest {
		_, vertex := r.telemetry.Record(ctx, "step "+inv.Step)
		vertex.Skipped()
		res.Steps = append(res.Steps, domain.StepOutcome{Step: inv.Step, Status: domain.StepStatusSkipped})
	}
}

func (r *Runner) install(ctx context.Context, srcRoot, prefix string, files []domain.InstallFile) (installed []string, err error) {
	if len(files) == 0 {
		return nil, nil
	}

	_, vertex := r.telemetry.Record(ctx, "install files")
	defer func() { vertex.Complete(err) }()

	return r.installer.Install(srcRoot, prefix, files)
}

// exitCode extracts the "exit_code" metadata from an executor error, or -1.
func exitCode(err error) int {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if zErr, ok := e.(*zerr.Error); ok {
			if code, ok := zErr.Metadata()["exit_code"].(int); ok {
				return code
			}
		}
	}
	return -1
}

// lockedWriter serialises writes from the stdout and stderr copiers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
