package scan

import "testing"

func TestChunkSizesWholeLineMultiples(t *testing.T) {
	const lineBytes = 24000
	total := lineBytes * 10
	chunks, err := ChunkSizes(total, lineBytes)
	if err != nil {
		t.Fatalf("ChunkSizes: %v", err)
	}
	sum := 0
	for _, c := range chunks {
		if c%lineBytes != 0 {
			t.Fatalf("chunk %d is not a multiple of line size %d", c, lineBytes)
		}
		if c <= 0 {
			t.Fatalf("non-positive chunk size %d", c)
		}
		sum += c
	}
	if sum != total {
		t.Fatalf("sum of chunks = %d, want %d", sum, total)
	}
}

func TestChunkSizesCapAt64k(t *testing.T) {
	const lineBytes = 512
	total := lineBytes * 1000
	chunks, err := ChunkSizes(total, lineBytes)
	if err != nil {
		t.Fatalf("ChunkSizes: %v", err)
	}
	for _, c := range chunks {
		if c > 65536 {
			t.Fatalf("chunk %d exceeds 65536", c)
		}
	}
}

func TestShiftTableIsBijective(t *testing.T) {
	lpis := []int{160, 500, 1000, 2000, 4000}
	seen := map[int]bool{}
	for _, lpi := range lpis {
		shift, ok := ShiftForLPI(lpi)
		if !ok {
			t.Fatalf("ShiftForLPI(%d) not found", lpi)
		}
		if seen[shift] {
			t.Fatalf("shift %d reused across lpi values", shift)
		}
		seen[shift] = true
	}
}

func TestShiftForLPIUnlistedIsNoop(t *testing.T) {
	shift, ok := ShiftForLPI(160 - 100)
	if ok {
		t.Fatalf("expected unlisted lpi to report !ok")
	}
	if shift != 0 {
		t.Fatalf("shift = %d, want 0", shift)
	}
}
