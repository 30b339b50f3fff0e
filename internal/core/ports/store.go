package ports

import "go.trai.ch/kiln/internal/core/domain"

// ReceiptStore defines the interface for storing and retrieving install receipts.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type ReceiptStore interface {
	// Get retrieves the receipt for a recipe name under the work root.
	// Returns nil, nil if not found.
	Get(root, name string) (*domain.Receipt, error)

	// Put stores the receipt under the work root.
	Put(root string, receipt domain.Receipt) error
}
