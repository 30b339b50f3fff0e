// Package archive extracts source tarballs.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Unpacker = (*Unpacker)(nil)

// Format is a recognised archive compression.
type Format string

// Supported formats.
const (
	FormatTar   Format = "tar"
	FormatGzip  Format = "gzip"
	FormatBzip2 Format = "bzip2"
	FormatXz    Format = "xz"
)

var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicBzip2 = []byte("BZh")
	magicXz    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicUstar = []byte("ustar")
)

// ustarOffset is where the ustar magic sits in a tar header block.
const ustarOffset = 257

// Unpacker extracts tar archives, optionally gzip, bzip2 or xz compressed.
type Unpacker struct{}

// NewUnpacker creates a new Unpacker.
func NewUnpacker() *Unpacker {
	return &Unpacker{}
}

// Unpack extracts archive into dest. The format is sniffed from the content.
// When the archive holds exactly one top-level directory, that directory is returned
// as the source root; otherwise dest is.
func (u *Unpacker) Unpack(ctx context.Context, archive, dest string) (string, error) {
	f, err := os.Open(archive) //nolint:gosec // Path is inside the download cache
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to open archive"), "path", archive)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	br := bufio.NewReader(f)
	format, err := Sniff(br)
	if err != nil {
		return "", zerr.With(err, "path", archive)
	}

	r, err := decompress(br, format)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to open "+string(format)+" stream"), "path", archive)
	}

	if err := os.MkdirAll(dest, domain.DirPerm); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to create extraction directory"), "path", dest)
	}

	if err := extractTar(ctx, r, dest); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", zerr.With(err, "path", archive)
	}

	return sourceRoot(dest)
}

// Sniff inspects the head of r and reports its archive format.
func Sniff(r *bufio.Reader) (Format, error) {
	head, err := r.Peek(ustarOffset + len(magicUstar))
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", zerr.Wrap(err, "failed to read archive header")
	}

	switch {
	case bytes.HasPrefix(head, magicGzip):
		return FormatGzip, nil
	case bytes.HasPrefix(head, magicBzip2):
		return FormatBzip2, nil
	case bytes.HasPrefix(head, magicXz):
		return FormatXz, nil
	case len(head) >= ustarOffset+len(magicUstar) && bytes.Equal(head[ustarOffset:], magicUstar):
		return FormatTar, nil
	default:
		return "", domain.ErrUnsupportedArchive
	}
}

func decompress(r io.Reader, format Format) (io.Reader, error) {
	switch format {
	case FormatGzip:
		return gzip.NewReader(r)
	case FormatBzip2:
		return bzip2.NewReader(r), nil
	case FormatXz:
		return xz.NewReader(r)
	default:
		return r, nil
	}
}

func extractTar(ctx context.Context, r io.Reader, dest string) error {
	tr := tar.NewReader(r)
	x := &extractor{root: dest, walked: make(map[string]bool)}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return zerr.Wrap(err, "failed to read archive entry")
		}

		target, err := entryPath(dest, hdr.Name)
		if err != nil {
			return err
		}
		if target == dest {
			continue
		}
		if hdr.Typeflag != tar.TypeDir && hdr.Typeflag != tar.TypeReg &&
			hdr.Typeflag != tar.TypeSymlink && hdr.Typeflag != tar.TypeLink {
			// Devices, fifos and global headers are skipped.
			continue
		}
		if err := x.checkParents(target); err != nil {
			return zerr.With(err, "entry", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if isSymlink(target) {
				return zerr.With(domain.ErrUnsafeArchivePath, "entry", hdr.Name)
			}
			if err := os.MkdirAll(target, domain.DirPerm); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to create directory"), "entry", hdr.Name)
			}
		case tar.TypeReg:
			if isSymlink(target) {
				return zerr.With(domain.ErrUnsafeArchivePath, "entry", hdr.Name)
			}
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return zerr.With(err, "entry", hdr.Name)
			}
		case tar.TypeSymlink:
			if !x.linkInside(target, hdr.Linkname) {
				return zerr.With(zerr.With(domain.ErrUnsafeArchivePath, "entry", hdr.Name), "link", hdr.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to create directory"), "entry", hdr.Name)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to create symlink"), "entry", hdr.Name)
			}
		case tar.TypeLink:
			source, err := entryPath(dest, hdr.Linkname)
			if err != nil {
				return err
			}
			// A hard link to a symlink is a symlink evaluated from a new directory.
			if x.walked[target] || isSymlink(source) {
				return zerr.With(zerr.With(domain.ErrUnsafeArchivePath, "entry", hdr.Name), "link", hdr.Linkname)
			}
			if err := x.checkParents(source); err != nil {
				return zerr.With(err, "entry", hdr.Name)
			}
			if err := os.Link(source, target); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to create hard link"), "entry", hdr.Name)
			}
		}
	}
}

// entryPath joins an archive entry name onto dest and rejects names escaping it.
func entryPath(dest, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", zerr.With(domain.ErrUnsafeArchivePath, "entry", name)
	}
	target := filepath.Join(dest, name)
	if !inside(dest, target) {
		return "", zerr.With(domain.ErrUnsafeArchivePath, "entry", name)
	}
	return target, nil
}

// extractor tracks the symlinks created under root so that no chain of them
// resolves outside it.
type extractor struct {
	root string
	// walked holds the intermediate paths accepted symlinks resolve through.
	// None of them may become a symlink later.
	walked map[string]bool
}

// checkParents rejects a path whose parent directories include a symlink.
func (x *extractor) checkParents(path string) error {
	rel, err := filepath.Rel(x.root, filepath.Dir(path))
	if err != nil {
		return zerr.With(domain.ErrUnsafeArchivePath, "path", path)
	}
	if rel == "." {
		return nil
	}
	cur := x.root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		fi, err := os.Lstat(cur)
		if errors.Is(err, iofs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to inspect directory"), "path", cur)
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			return zerr.With(domain.ErrUnsafeArchivePath, "symlink", cur)
		}
	}
	return nil
}

// linkInside walks link from the directory of target one component at a time.
// Every step must stay under root and no component before the last may be a symlink.
func (x *extractor) linkInside(target, link string) bool {
	if filepath.IsAbs(link) || x.walked[target] {
		return false
	}

	parts := strings.Split(filepath.ToSlash(link), "/")
	cur := filepath.Dir(target)
	var walked []string
	for i, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			cur = filepath.Dir(cur)
		default:
			cur = filepath.Join(cur, part)
		}
		if !inside(x.root, cur) {
			return false
		}
		if i < len(parts)-1 {
			if isSymlink(cur) {
				return false
			}
			walked = append(walked, cur)
		}
	}

	for _, w := range walked {
		x.walked[w] = true
	}
	return true
}

func isSymlink(path string) bool {
	fi, err := os.Lstat(path)
	return err == nil && fi.Mode()&os.ModeSymlink != 0
}

func inside(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create directory")
	}
	if perm == 0 {
		perm = domain.FilePerm
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm) //nolint:gosec // Path checked by entryPath
	if err != nil {
		return zerr.Wrap(err, "failed to create file")
	}
	if _, err := io.Copy(out, r); err != nil { //nolint:gosec // Source archives are checksummed before extraction
		_ = out.Close()
		return zerr.Wrap(err, "failed to write file")
	}
	if err := out.Close(); err != nil {
		return zerr.Wrap(err, "failed to close file")
	}
	return nil
}

func sourceRoot(dest string) (string, error) {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to read extraction directory"), "path", dest)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dest, entries[0].Name()), nil
	}
	return dest, nil
}
