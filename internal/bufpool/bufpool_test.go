package bufpool

import "testing"

func TestGetReturnsChunkSizeBuffer(t *testing.T) {
	buf := Get()
	if len(buf) != ChunkSize {
		t.Fatalf("len = %d, want %d", len(buf), ChunkSize)
	}
	Put(buf)
}

func TestPutDropsWrongCapacity(t *testing.T) {
	// Should not panic, and should not get reused since cap mismatches.
	Put(make([]byte, 10))
}

func TestGetAfterPutReturnsChunkSizeBuffer(t *testing.T) {
	first := Get()
	first[0] = 0x42
	Put(first)

	second := Get()
	defer Put(second)
	if len(second) != ChunkSize {
		t.Fatalf("len = %d, want %d", len(second), ChunkSize)
	}
}
