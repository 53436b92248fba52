package native

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/joshgermon/bksd/internal/model"
)

func TestTransferCopiesFilesAndDirectories(t *testing.T) {
	source := t.TempDir()
	if err := os.MkdirAll(filepath.Join(source, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(source, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(source, "sub", "b.txt"), []byte("world!"), 0o644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(t.TempDir(), "dest")
	eng := New()
	sink := make(chan model.TransferStatus, 16)

	result, err := eng.Transfer(context.Background(), model.TransferRequest{Source: source, Destination: dest}, sink)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if result.TotalBytes != int64(len("hello")+len("world!")) {
		t.Errorf("TotalBytes = %d, want %d", result.TotalBytes, len("hello")+len("world!"))
	}
	if len(result.FileHashes) != 2 {
		t.Fatalf("FileHashes len = %d, want 2", len(result.FileHashes))
	}

	got, err := os.ReadFile(filepath.Join(dest, "sub", "b.txt"))
	if err != nil {
		t.Fatalf("reading copied file: %v", err)
	}
	if string(got) != "world!" {
		t.Errorf("copied content = %q, want %q", got, "world!")
	}
}

func TestTransferFailsWhenDestinationExists(t *testing.T) {
	source := t.TempDir()
	dest := t.TempDir() // already exists

	eng := New()
	sink := make(chan model.TransferStatus, 4)
	_, err := eng.Transfer(context.Background(), model.TransferRequest{Source: source, Destination: dest}, sink)
	if err == nil {
		t.Fatal("expected an error when destination already exists")
	}

	select {
	case st := <-sink:
		if st.Kind != model.KindFailed {
			t.Errorf("sink status kind = %v, want failed", st.Kind)
		}
	default:
		t.Error("expected a failed status on the sink")
	}
}

func TestTransferFailsWhenSourceMissing(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "dest")
	eng := New()
	sink := make(chan model.TransferStatus, 4)

	_, err := eng.Transfer(context.Background(), model.TransferRequest{
		Source:      filepath.Join(t.TempDir(), "does-not-exist"),
		Destination: dest,
	}, sink)
	if err == nil {
		t.Fatal("expected an error when source does not exist")
	}
}

func TestNewEnablesSyncFilesByDefault(t *testing.T) {
	if eng := New(); !eng.SyncFiles {
		t.Error("expected SyncFiles to default to true")
	}
}
