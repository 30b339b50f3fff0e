package fs

import (
	"io"
	"os"
	"path/filepath"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Installer = (*Installer)(nil)

// Installer copies files from a build tree into an install prefix.
type Installer struct {
	resolver *Resolver
	walker   *Walker
}

// NewInstaller creates a new Installer.
func NewInstaller(resolver *Resolver, walker *Walker) *Installer {
	return &Installer{resolver: resolver, walker: walker}
}

// Install copies each matched file to the top of prefix, keeping its base name.
// A matched directory is copied as a tree. Missing optional files are skipped;
// a missing required file fails with ErrInstallFileMissing.
func (i *Installer) Install(buildDir, prefix string, files []domain.InstallFile) ([]string, error) {
	var installed []string

	for _, f := range files {
		matches, err := i.resolver.Resolve(buildDir, f.Source)
		if err != nil {
			return installed, err
		}
		if len(matches) == 0 {
			if f.Optional {
				continue
			}
			return installed, zerr.With(zerr.With(domain.ErrInstallFileMissing, "path", f.Source), "build_dir", buildDir)
		}

		for _, match := range matches {
			src := filepath.Join(buildDir, match)
			dst := filepath.Join(prefix, filepath.Base(match))

			info, err := os.Stat(src)
			if err != nil {
				return installed, zerr.With(zerr.Wrap(err, "failed to stat install file"), "path", src)
			}

			if !info.IsDir() {
				if err := copyFile(src, dst, info.Mode().Perm()); err != nil {
					return installed, err
				}
				installed = append(installed, dst)
				continue
			}

			for rel := range i.walker.WalkFiles(src, nil) {
				from := filepath.Join(src, rel)
				to := filepath.Join(dst, rel)
				fi, err := os.Stat(from)
				if err != nil {
					return installed, zerr.With(zerr.Wrap(err, "failed to stat install file"), "path", from)
				}
				if err := copyFile(from, to, fi.Mode().Perm()); err != nil {
					return installed, err
				}
				installed = append(installed, to)
			}
		}
	}

	return installed, nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create install directory"), "path", filepath.Dir(dst))
	}

	in, err := os.Open(src) //nolint:gosec // Path is inside the build tree
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to open install file"), "path", src)
	}
	defer in.Close() //nolint:errcheck // Best effort close in defer

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm) //nolint:gosec // Path is inside the prefix
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create install file"), "path", dst)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return zerr.With(zerr.Wrap(err, "failed to copy install file"), "path", dst)
	}
	if err := out.Close(); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to close install file"), "path", dst)
	}
	return nil
}
