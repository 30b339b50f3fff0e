// Package fetch downloads sources and patches into the download cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Fetcher = (*Fetcher)(nil)

// Fetcher implements ports.Fetcher for http(s), file URLs and local paths.
type Fetcher struct {
	logger ports.Logger
	client *http.Client
}

// NewFetcher creates a new Fetcher using a default HTTP client.
func NewFetcher(logger ports.Logger) *Fetcher {
	return newFetcherWithClient(logger, &http.Client{})
}

// newFetcherWithClient creates a Fetcher with a custom http client (used for testing).
func newFetcherWithClient(logger ports.Logger, client *http.Client) *Fetcher {
	return &Fetcher{
		logger: logger,
		client: client,
	}
}

// Fetch tries each location in order and returns the path of the first one available.
// Remote locations are downloaded into cacheDir once and reused afterwards.
// Local files are used in place.
func (f *Fetcher) Fetch(ctx context.Context, cacheDir string, locations []string) (string, error) {
	var errs []error
	for _, loc := range locations {
		if loc == "" {
			continue
		}

		p, err := f.fetch(ctx, cacheDir, loc)
		if err == nil {
			return p, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		f.logger.Warn("could not fetch " + loc)
		errs = append(errs, zerr.With(err, "url", loc))
	}

	if len(errs) == 0 {
		return "", zerr.With(domain.ErrFetchFailed, "reason", "no locations")
	}
	return "", zerr.With(zerr.Wrap(errors.Join(errs...), domain.ErrFetchFailed.Error()), "locations", strings.Join(locations, ", "))
}

func (f *Fetcher) fetch(ctx context.Context, cacheDir, loc string) (string, error) {
	u, err := url.Parse(loc)
	if err != nil || u.Scheme == "" {
		return local(loc)
	}

	switch u.Scheme {
	case "file":
		return local(u.Path)
	case "http", "https":
		return f.download(ctx, cacheDir, loc)
	default:
		return "", zerr.With(domain.ErrFetchFailed, "scheme", u.Scheme)
	}
}

func local(p string) (string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return "", zerr.Wrap(err, "failed to stat local source")
	}
	if info.IsDir() {
		return "", zerr.With(domain.ErrFetchFailed, "reason", "is a directory")
	}
	return p, nil
}

func (f *Fetcher) download(ctx context.Context, cacheDir, loc string) (string, error) {
	target := CachePath(cacheDir, loc)
	if info, err := os.Stat(target); err == nil && info.Mode().IsRegular() {
		f.logger.Info("using cached " + filepath.Base(target))
		return target, nil
	}

	if err := os.MkdirAll(cacheDir, domain.DirPerm); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to create download cache"), "path", cacheDir)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, http.NoBody)
	if err != nil {
		return "", zerr.Wrap(err, "failed to create request")
	}

	f.logger.Info("downloading " + loc)
	resp, err := f.client.Do(req)
	if err != nil {
		return "", zerr.Wrap(err, "request failed")
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close in defer

	if resp.StatusCode != http.StatusOK {
		return "", zerr.With(domain.ErrFetchFailed, "status_code", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(cacheDir, ".download-*")
	if err != nil {
		return "", zerr.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return "", zerr.Wrap(err, "failed to read response body")
	}
	if err := tmp.Close(); err != nil {
		return "", zerr.Wrap(err, "failed to close temp file")
	}

	// Partial downloads never appear under the final name.
	if err := os.Rename(tmpName, target); err != nil {
		return "", zerr.Wrap(err, "failed to move download into cache")
	}
	return target, nil
}

// CachePath returns where a remote location is stored inside cacheDir.
func CachePath(cacheDir, loc string) string {
	return filepath.Join(cacheDir, fmt.Sprintf("%016x-%s", xxhash.Sum64String(loc), basename(loc)))
}

func basename(loc string) string {
	name := loc
	if u, err := url.Parse(loc); err == nil {
		name = u.Path
	}
	name = path.Base(name)
	if name == "." || name == "/" || name == "" {
		return "download"
	}
	return name
}
