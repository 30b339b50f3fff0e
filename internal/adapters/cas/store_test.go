package cas_test

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.trai.ch/kiln/internal/adapters/cas"
	"go.trai.ch/kiln/internal/core/domain"
)

func TestStore_PutAndGet(t *testing.T) {
	root := t.TempDir()

	store, err := cas.NewStore()
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	receipt := domain.Receipt{
		Name:        "octave",
		Version:     "3.6.4",
		Prefix:      "/opt/kiln/Cellar/octave/3.6.4",
		Options:     []string{"test", "with-fltk"},
		Fingerprint: "0123456789abcdef",
		Steps: []domain.StepOutcome{
			{Step: "configure", Status: domain.StepStatusCompleted},
			{Step: "check", Status: domain.StepStatusTolerated, ExitCode: 2},
		},
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}

	if err := store.Put(root, receipt); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(root, "octave")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil")
	}

	if got.Version != receipt.Version {
		t.Errorf("expected Version %q, got %q", receipt.Version, got.Version)
	}
	if len(got.Steps) != 2 || got.Steps[1].Status != domain.StepStatusTolerated || got.Steps[1].ExitCode != 2 {
		t.Errorf("unexpected steps: %+v", got.Steps)
	}
	if !got.Timestamp.Equal(receipt.Timestamp) {
		t.Errorf("expected Timestamp %v, got %v", receipt.Timestamp, got.Timestamp)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store, err := cas.NewStore()
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	got, err := store.Get(t.TempDir(), "gnuplot")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil receipt, got %+v", got)
	}
}

func TestStore_Replace(t *testing.T) {
	root := t.TempDir()
	store, _ := cas.NewStore()

	if err := store.Put(root, domain.Receipt{Name: "octave", Version: "3.6.3"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(root, domain.Receipt{Name: "octave", Version: "3.6.4"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(root, "octave")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Version != "3.6.4" {
		t.Errorf("expected Version %q, got %q", "3.6.4", got.Version)
	}

	entries, err := os.ReadDir(domain.StorePath(root))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly one receipt file, got %d", len(entries))
	}
}

func TestStore_CorruptReceipt(t *testing.T) {
	root := t.TempDir()
	store, _ := cas.NewStore()

	hash := sha256.Sum256([]byte("octave"))
	file := filepath.Join(domain.StorePath(root), hex.EncodeToString(hash[:])+".json")
	if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(file, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := store.Get(root, "octave"); err == nil {
		t.Fatal("expected error for corrupt receipt")
	}
}

func TestStore_OmitZero(t *testing.T) {
	root := t.TempDir()

	store, err := cas.NewStore()
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if err := store.Put(root, domain.Receipt{Name: "octave"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	hash := sha256.Sum256([]byte("octave"))
	hexHash := hex.EncodeToString(hash[:])
	receiptFile := filepath.Join(root, ".kiln", "store", hexHash+".json")

	//nolint:gosec // Test file with controlled path
	content, err := os.ReadFile(receiptFile)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	jsonStr := string(content)
	t.Logf("JSON content: %s", jsonStr)

	for _, field := range []string{"fingerprint", "timestamp", "steps", "installed", "bits"} {
		if strings.Contains(jsonStr, `"`+field+`"`) {
			t.Errorf("JSON should not contain %q for zero value", field)
		}
	}
	if !strings.Contains(jsonStr, `"name"`) {
		t.Error("JSON should contain 'name'")
	}
}

func TestStore_UnfinishedStep(t *testing.T) {
	root := t.TempDir()
	store, _ := cas.NewStore()

	err := store.Put(root, domain.Receipt{
		Name:  "octave",
		Steps: []domain.StepOutcome{{Step: "make", Status: domain.StepStatusRunning}},
	})
	if err == nil {
		t.Fatal("expected error for unfinished step")
	}
	if _, statErr := os.Stat(domain.StorePath(root)); !os.IsNotExist(statErr) {
		t.Errorf("expected no store to be created, got %v", statErr)
	}
}

func TestStore_NormalizesStatus(t *testing.T) {
	root := t.TempDir()
	store, _ := cas.NewStore()

	hash := sha256.Sum256([]byte("octave"))
	file := filepath.Join(domain.StorePath(root), hex.EncodeToString(hash[:])+".json")
	if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	data := `{"name":"octave","steps":[{"step":"check","status":"TOLERATED"},{"step":"install","status":"bogus"}]}`
	if err := os.WriteFile(file, []byte(data), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	got, err := store.Get(root, "octave")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Steps[0].Status != domain.StepStatusTolerated {
		t.Errorf("expected %q, got %q", domain.StepStatusTolerated, got.Steps[0].Status)
	}
	if got.Steps[1].Status != domain.StepStatusPending {
		t.Errorf("expected %q, got %q", domain.StepStatusPending, got.Steps[1].Status)
	}
}
