/*Package scan implements the acquisition state machine that sequences a
full scan: film-holder check, lamp warm-up, carriage homing, focus pass,
optional auto-exposure pre-pass, scan-mode/window programming, the
streamed bulk read, per-channel deinterlace, and guaranteed release on
every exit path.
*/
package scan

import "fmt"

// SamplesPerPixel is fixed for this CCD: three channels, red/green/blue.
const SamplesPerPixel = 3

// Buffer is the raw scan buffer: device-reported geometry plus the sample
// data, before and after deinterlace. It is owned by the orchestrator
// while a scan is in flight and exposed read-only to the boundary adapter
// once Drained.
type Buffer struct {
	Lines         uint32
	LineBytes     uint32
	BitsPerSample int // 8, 14 (normalised to 16 on readout), or 16
	LinesPerInch  int
	LeftToRight   bool
	Shift         int
	Data          []byte
}

// NewBuffer allocates a zero-initialised buffer sized exactly
// lines*line_bytes, per spec §4.4 step 8.
func NewBuffer(lines, lineBytes uint32, bitsPerSample, lpi int, leftToRight bool) *Buffer {
	return &Buffer{
		Lines:         lines,
		LineBytes:     lineBytes,
		BitsPerSample: bitsPerSample,
		LinesPerInch:  lpi,
		LeftToRight:   leftToRight,
		Data:          make([]byte, uint64(lines)*uint64(lineBytes)),
	}
}

// BytesPerSample is 2 for every in_mode this driver supports: 14-bit
// samples are normalised to 16 bits on readout, and 8-bit samples are
// widened to 16 bits by the same channel-offset arithmetic (the device
// never actually emits packed 8-bit samples over this wire format).
const BytesPerSample = 2

// LineEntries returns the number of per-channel sample slots in one line:
// line_bytes / bytes_per_sample.
func (b *Buffer) LineEntries() int {
	return int(b.LineBytes) / BytesPerSample
}

// shiftTable is the per-lpi deinterlace shift, bijective over the lpi
// values the device reports (spec §4.4, §8).
var shiftTable = map[int]int{
	160:  0,
	500:  1,
	1000: 2,
	2000: 4,
	4000: 8,
}

// ShiftForLPI returns the deinterlace shift for lpi, and false if lpi is
// not in the table. An lpi outside the table is not an error (spec §9):
// callers treat a false return as shift 0 and report it through the
// feedback callback as informational.
func ShiftForLPI(lpi int) (int, bool) {
	s, ok := shiftTable[lpi]
	return s, ok
}

// ChunkSizes computes the bulk-read chunk plan for a buffer of totalBytes,
// each chunk min(65536, remaining) rounded down to a whole multiple of
// lineBytes, with the final chunk the remainder. Returns an error if
// lineBytes is not positive or does not evenly divide totalBytes, since the
// device always reports whole lines (spec invariant, §8).
func ChunkSizes(totalBytes, lineBytes int) ([]int, error) {
	const maxChunk = 65536
	if lineBytes <= 0 || totalBytes%lineBytes != 0 {
		return nil, fmt.Errorf("scan: total %d is not a whole multiple of line size %d", totalBytes, lineBytes)
	}
	var chunks []int
	remaining := totalBytes
	for remaining > 0 {
		chunk := maxChunk
		if chunk > remaining {
			chunk = remaining
		} else {
			chunk -= chunk % lineBytes
			if chunk == 0 {
				chunk = remaining // lineBytes itself exceeds maxChunk: take it whole
			}
		}
		chunks = append(chunks, chunk)
		remaining -= chunk
	}
	return chunks, nil
}
