package fs

import (
	"crypto/sha1" //nolint:gosec // sha1 is what older recipes publish
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Verifier = (*Verifier)(nil)

// Verifier checks downloaded files against recipe checksums.
type Verifier struct{}

// NewVerifier creates a new Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify hashes the file at path and compares it with sum.
func (v *Verifier) Verify(path string, sum domain.Checksum) error {
	if sum.IsZero() {
		return nil
	}

	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	var actual string
	switch sum.Algorithm {
	case "sha256":
		d, err := digest.SHA256.FromReader(f)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
		}
		actual = d.Encoded()
	case "sha1":
		h := sha1.New() //nolint:gosec // see import
		if _, err := io.Copy(h, f); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
		}
		actual = hex.EncodeToString(h.Sum(nil))
	default:
		return zerr.With(zerr.With(domain.ErrChecksumMismatch, "path", path), "algorithm", sum.Algorithm)
	}

	if !strings.EqualFold(actual, sum.Hex) {
		err := zerr.With(domain.ErrChecksumMismatch, "path", path)
		err = zerr.With(err, "expected", sum.String())
		return zerr.With(err, "actual", sum.Algorithm+":"+actual)
	}
	return nil
}
