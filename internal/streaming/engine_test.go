package streaming

import "testing"

func TestChunkCount(t *testing.T) {
	tests := []struct {
		name      string
		dataLen   int
		chunkSize int
		want      int
	}{
		{"exact multiple", 8192, 4096, 2},
		{"with remainder", 9000, 4096, 2},
		{"empty buffer", 0, 4096, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &Buffer{Data: make([]byte, tt.dataLen)}
			if got := buf.ChunkCount(tt.chunkSize); got != tt.want {
				t.Fatalf("ChunkCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestChunk(t *testing.T) {
	buf := &Buffer{Data: []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}}

	if got := buf.Chunk(4, 0); string(got) != string([]byte{0, 1, 2, 3}) {
		t.Fatalf("unexpected first chunk: %v", got)
	}
	if got := buf.Chunk(4, 2); string(got) != string([]byte{8, 9}) {
		t.Fatalf("expected short final chunk, got %v", got)
	}
	if got := buf.Chunk(4, 5); got != nil {
		t.Fatalf("expected nil for out-of-range chunk index, got %v", got)
	}
}

func TestSampleIndexForSeconds(t *testing.T) {
	// 44100 samples/sec, 4096-byte chunks at 2 bytes/sample => 2048 samples/chunk.
	got := SampleIndexForSeconds(10, 44100, 4096)
	want := (10 * 44100) / 2048
	if got != want {
		t.Fatalf("SampleIndexForSeconds(10, 44100, 4096) = %d, want %d", got, want)
	}
}
