package rsync

import (
	"context"
	"strings"
	"testing"

	"github.com/joshgermon/bksd/internal/model"
)

func TestScanLinesSplitsOnCROrLF(t *testing.T) {
	input := "first\rsecond\nthird"
	var got []string
	scanLines(strings.NewReader(input), func(line string) {
		got = append(got, line)
	})

	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestProgressRegexMatchesRsyncOutput(t *testing.T) {
	m := progressRe.FindStringSubmatch("  1,048,576  42%   10.00MB/s    0:00:05")
	if m == nil {
		t.Fatal("expected the progress line to match")
	}
	if m[1] != "1,048,576" || m[2] != "42" {
		t.Errorf("unexpected capture groups: %v", m)
	}
}

func TestTransferFailsWhenBinaryMissing(t *testing.T) {
	eng := &Engine{Binary: "bksd-rsync-binary-that-does-not-exist"}
	sink := make(chan model.TransferStatus, 4)

	_, err := eng.Transfer(context.Background(), model.TransferRequest{
		Source:      t.TempDir(),
		Destination: t.TempDir(),
	}, sink)
	if err == nil {
		t.Fatal("expected an error when the rsync binary cannot be started")
	}
}

func TestNewDefaultsBinaryToRsyncOnPath(t *testing.T) {
	eng := New()
	if eng.Binary != "rsync" {
		t.Errorf("Binary = %q, want rsync", eng.Binary)
	}
}
