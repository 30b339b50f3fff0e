package ports

import "context"

// Fetcher downloads remote content into a local cache directory.
//
//go:generate go run go.uber.org/mock/mockgen -source=fetcher.go -destination=mocks/mock_fetcher.go -package=mocks
type Fetcher interface {
	// Fetch tries each location in order and returns the cached path of the first that succeeds.
	Fetch(ctx context.Context, cacheDir string, locations []string) (string, error)
}
