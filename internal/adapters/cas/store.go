// Package cas implements install receipt storage.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// Store implements ports.ReceiptStore using a file-per-recipe strategy.
type Store struct{}

// NewStore creates a new ReceiptStore.
func NewStore() (*Store, error) {
	return &Store{}, nil
}

// Get retrieves the receipt for a given recipe name.
func (s *Store) Get(root, name string) (*domain.Receipt, error) {
	filename := s.getFilename(root, name)
	//nolint:gosec // Path is constructed from trusted directory and hashed filename
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read receipt"), "recipe", name)
	}

	var receipt domain.Receipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to unmarshal receipt"), "recipe", name)
	}
	for i := range receipt.Steps {
		receipt.Steps[i].Status = domain.NormalizeStepStatus(string(receipt.Steps[i].Status))
	}

	return &receipt, nil
}

// Put stores the receipt, replacing any previous one for the same recipe.
// Every step must have finished.
func (s *Store) Put(root string, receipt domain.Receipt) error {
	for _, step := range receipt.Steps {
		if !step.Status.IsTerminal() {
			err := zerr.With(zerr.New("receipt has an unfinished step"), "step", step.Step)
			return zerr.With(err, "status", string(step.Status))
		}
	}

	data, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal receipt")
	}

	filename := s.getFilename(root, receipt.Name)
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.Wrap(err, "failed to create receipt store")
	}

	// Receipts are replaced atomically.
	tmp, err := os.CreateTemp(dir, ".receipt-*")
	if err != nil {
		return zerr.Wrap(err, "failed to write receipt")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return zerr.Wrap(err, "failed to write receipt")
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(err, "failed to write receipt")
	}
	if err := os.Chmod(tmp.Name(), domain.PrivateFilePerm); err != nil {
		return zerr.Wrap(err, "failed to write receipt")
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return zerr.Wrap(err, "failed to write receipt")
	}

	return nil
}

func (s *Store) getFilename(root, name string) string {
	hash := sha256.Sum256([]byte(name))
	hexHash := hex.EncodeToString(hash[:])
	return filepath.Join(domain.StorePath(root), hexHash+".json")
}
