// Package shell provides the shell executor adapter.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// tailSize is the amount of combined output attached to a failed command.
const tailSize = 4096

// Executor implements ports.Executor using os/exec.
type Executor struct {
	logger  ports.Logger
	environ func() []string
}

// NewExecutor creates a new Executor that inherits the process environment.
func NewExecutor(logger ports.Logger) *Executor {
	return &Executor{
		logger:  logger,
		environ: os.Environ,
	}
}

// Execute runs the invocation in dir and waits for it to complete.
//
// The environment is built in three layers (low to high):
// 1. the process environment
// 2. env (plan-wide adjustments)
// 3. inv.Env (step overrides)
//
// Output is copied to stdout and stderr and each line is forwarded to the logger.
// When ctx carries a telemetry vertex the output is also streamed to it.
func (e *Executor) Execute(
	ctx context.Context,
	dir string,
	inv domain.Invocation,
	env []domain.EnvOp,
	stdout, stderr io.Writer,
) error {
	if inv.Command == "" {
		return nil
	}

	cmdEnv := resolveEnvironment(e.environ(), env, inv.Env)

	executable := inv.Command
	if !filepath.IsAbs(executable) && !strings.ContainsRune(executable, filepath.Separator) {
		lp, err := lookPath(executable, cmdEnv)
		if err != nil {
			return zerr.With(zerr.With(domain.ErrCommandNotFound, "command", inv.Command), "step", inv.Step)
		}
		executable = lp
	}

	cmd := exec.CommandContext(ctx, executable, inv.Args...) //nolint:gosec // recipe provided command

	// Preserve the name as written in the recipe.
	cmd.Args[0] = inv.Command
	cmd.Dir = dir
	cmd.Env = cmdEnv

	tail := &tailBuffer{limit: tailSize}
	outSink, errSink, flush := e.sinks(ctx)
	defer flush()

	cmd.Stdout = io.MultiWriter(writerOrDiscard(stdout), outSink, tail)
	cmd.Stderr = io.MultiWriter(writerOrDiscard(stderr), errSink, tail)

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		wrapped := zerr.With(zerr.Wrap(err, "command failed"), "exit_code", exitCode)
		wrapped = zerr.With(wrapped, "command", inv.Command)
		if out := tail.String(); out != "" {
			wrapped = zerr.With(wrapped, "output", out)
		}
		return wrapped
	}

	return nil
}

// sinks returns the secondary writers for a command's output streams.
func (e *Executor) sinks(ctx context.Context) (stdout, stderr io.Writer, flush func()) {
	outLog := &logWriter{logger: e.logger, level: "info"}
	errLog := &logWriter{logger: e.logger, level: "warn"}
	flush = func() {
		_ = outLog.Close()
		_ = errLog.Close()
	}
	if vertex, ok := ports.VertexFromContext(ctx); ok {
		return io.MultiWriter(vertex.Stdout(), outLog), io.MultiWriter(vertex.Stderr(), errLog), flush
	}
	return outLog, errLog, flush
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

type logWriter struct {
	logger ports.Logger
	level  string
	mu     sync.Mutex
	buf    []byte
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *logWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *logWriter) logLine(line []byte) {
	msg := strings.TrimSuffix(string(line), "\r")
	if w.level == "info" {
		w.logger.Info(msg)
	} else {
		w.logger.Warn(msg)
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimRight(string(t.buf), "\n")
}

// resolveEnvironment applies plan and step adjustments to the system environment.
// The result is sorted by variable name.
func resolveEnvironment(sysEnv []string, planEnv, stepEnv []domain.EnvOp) []string {
	envMap := make(map[string]string, len(sysEnv))
	for _, entry := range sysEnv {
		if k, v, ok := strings.Cut(entry, "="); ok {
			envMap[k] = v
		}
	}

	applyEnvOps(envMap, planEnv)
	applyEnvOps(envMap, stepEnv)

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

func applyEnvOps(envMap map[string]string, ops []domain.EnvOp) {
	for _, op := range ops {
		current, exists := envMap[op.Name]
		sep := " "
		if op.Name == "PATH" {
			sep = string(os.PathListSeparator)
		}
		switch {
		case op.Mode == domain.EnvAppend && exists && current != "":
			envMap[op.Name] = current + sep + op.Value
		case op.Mode == domain.EnvPrepend && exists && current != "":
			envMap[op.Name] = op.Value + sep + current
		default:
			envMap[op.Name] = op.Value
		}
	}
}

// lookPath searches for an executable in the directories named by the PATH environment variable.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			path = strings.TrimPrefix(e, "PATH=")
			break
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
