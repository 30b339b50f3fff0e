package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

func newInstaller() *fs.Installer {
	return fs.NewInstaller(fs.NewResolver(), fs.NewWalker())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestInstaller_Install_TestLogs(t *testing.T) {
	buildDir := filepath.Join(t.TempDir(), "octave-3.6.4")
	prefix := filepath.Join(t.TempDir(), "Cellar", "octave", "3.6.4")

	writeFile(t, filepath.Join(buildDir, "test", "fntests.log"), "PASS 9508")
	writeFile(t, filepath.Join(buildDir, "make-check.log"), "make check output")

	installed, err := newInstaller().Install(buildDir, prefix, []domain.InstallFile{
		{Source: "test/fntests.log"},
		{Source: "make-check.log"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(prefix, "fntests.log"),
		filepath.Join(prefix, "make-check.log"),
	}, installed)

	content, err := os.ReadFile(filepath.Join(prefix, "fntests.log")) //nolint:gosec // Test file with controlled path
	require.NoError(t, err)
	assert.Equal(t, "PASS 9508", string(content))
}

func TestInstaller_Install_Glob(t *testing.T) {
	buildDir := t.TempDir()
	prefix := t.TempDir()

	writeFile(t, filepath.Join(buildDir, "b.log"), "b")
	writeFile(t, filepath.Join(buildDir, "a.log"), "a")
	writeFile(t, filepath.Join(buildDir, "keep.txt"), "x")

	installed, err := newInstaller().Install(buildDir, prefix, []domain.InstallFile{{Source: "*.log"}})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(prefix, "a.log"), filepath.Join(prefix, "b.log")}, installed)
	assert.NoFileExists(t, filepath.Join(prefix, "keep.txt"))
}

func TestInstaller_Install_Directory(t *testing.T) {
	buildDir := t.TempDir()
	prefix := t.TempDir()

	writeFile(t, filepath.Join(buildDir, "doc", "html", "index.html"), "<html>")
	writeFile(t, filepath.Join(buildDir, "doc", "README"), "readme")

	installed, err := newInstaller().Install(buildDir, prefix, []domain.InstallFile{{Source: "doc"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(prefix, "doc", "README"),
		filepath.Join(prefix, "doc", "html", "index.html"),
	}, installed)
	assert.FileExists(t, filepath.Join(prefix, "doc", "html", "index.html"))
}

func TestInstaller_Install_MissingOptional(t *testing.T) {
	installed, err := newInstaller().Install(t.TempDir(), t.TempDir(), []domain.InstallFile{
		{Source: "test/fntests.log", Optional: true},
	})
	require.NoError(t, err)
	assert.Empty(t, installed)
}

func TestInstaller_Install_MissingRequired(t *testing.T) {
	buildDir := t.TempDir()

	_, err := newInstaller().Install(buildDir, t.TempDir(), []domain.InstallFile{{Source: "make-check.log"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), domain.ErrInstallFileMissing.Error())

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok)
	assert.Equal(t, "make-check.log", zErr.Metadata()["path"])
	assert.Equal(t, buildDir, zErr.Metadata()["build_dir"])
}

func TestInstaller_Install_PreservesMode(t *testing.T) {
	buildDir := t.TempDir()
	prefix := t.TempDir()

	//nolint:gosec // Test requires executable file
	require.NoError(t, os.WriteFile(filepath.Join(buildDir, "run-octave"), []byte("#!/bin/sh\n"), 0o750))

	_, err := newInstaller().Install(buildDir, prefix, []domain.InstallFile{{Source: "run-octave"}})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(prefix, "run-octave"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())
}
