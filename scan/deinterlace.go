package scan

import "encoding/binary"

// CalEntry is one column's calibration coefficients: a signed additive
// offset and a fixed-point (14-bit fraction) multiplicative factor.
type CalEntry struct {
	Offset int32
	Mult   int32
}

// CalibrationEntries is the fixed table size the session allocates,
// indexed by column.
const CalibrationEntries = 12120

// DefaultCalEntry is the neutral calibration entry every table slot starts
// at: zero offset, unity multiplier in 14-bit fixed point (1<<14).
var DefaultCalEntry = CalEntry{Offset: 0, Mult: 16384}

// Stats aggregates calibration underflow/overflow counts during
// deinterlace for the warning the feedback callback reports (spec §4.4/§7).
// Only the worst (most negative) underflow is located, by column and line;
// overflows are counted without a location, and no channel is recorded.
type Stats struct {
	Underflows      int
	Overflows       int
	WorstUnderValue int
	WorstColumn     int
	WorstLine       int
	Min, Max        uint16
}

// DeinterlaceParams bundles the inputs Deinterlace needs beyond the buffer
// itself.
type DeinterlaceParams struct {
	Cal      []CalEntry // len == CalibrationEntries
	Boost    [3]uint16  // 8.8 fixed point, nominal 256
	Margin   int
	ApplyCal bool
	InMode   int // 8, 14, or 16: selects the 14-bit normalisation shift
}

// Deinterlace reduces buf in place: it reads the raw interlaced samples in
// acquisition order, applies the per-lpi channel shift, 14→16-bit
// normalisation, and optional calibration/boost, and compacts the result
// to buf.Lines - 2*shift lines. Bit-exact to the channel-offset and
// calibration arithmetic of spec §4.4.
func Deinterlace(buf *Buffer, p DeinterlaceParams) (*Stats, error) {
	shift, _ := ShiftForLPI(buf.LinesPerInch) // lpi outside the table: shift 0, not an error (spec §9)
	lineEnts := buf.LineEntries()
	shift2 := shift * 2

	off := [3]int{0, -shift * lineEnts, 0}
	if buf.LeftToRight {
		off[0] -= shift2 * lineEnts
	} else {
		off[2] -= shift2 * lineEnts
	}

	samples := asUint16(buf.Data)
	stats := &Stats{Min: 0xFFFF, Max: 0}

	col, channel, line := 0, 0, 0
	limit := (1 << 16) - 1

	for i := 0; i < samples.Len(); i++ {
		sample := int(samples.get(i))
		if p.InMode == 14 {
			sample <<= 2
		}
		if uint16(sample) < stats.Min {
			stats.Min = uint16(sample)
		}
		if uint16(sample) > stats.Max {
			stats.Max = uint16(sample)
		}

		if p.ApplyCal && col >= p.Margin {
			cal := p.Cal[col]
			sample += int(cal.Offset)
			if sample < 0 {
				if sample < stats.WorstUnderValue {
					stats.WorstUnderValue = sample
					stats.WorstColumn = col
					stats.WorstLine = line
				}
				sample = 0
				stats.Underflows++
			} else {
				sample *= int(cal.Mult)
				sample += 8192
				sample >>= 14
				if boost := int(p.Boost[channel]); boost > 256 {
					sample *= boost
					sample >>= 8
				}
				if sample > limit {
					sample = limit
					stats.Overflows++
				}
			}
		}

		idx := i + off[channel]
		if idx >= 0 {
			samples.set(idx, uint16(sample))
		}

		col++
		if col == lineEnts {
			col = 0
			line++
		}
		channel++
		if channel == 3 {
			channel = 0
		}
	}

	buf.Lines -= uint32(shift2)
	buf.Shift = shift
	buf.Data = buf.Data[:uint64(buf.Lines)*uint64(buf.LineBytes)]
	return stats, nil
}

// asUint16 views a byte buffer as big-endian uint16 samples in place,
// writing back through the same slice it reads from.
func asUint16(b []byte) uint16View {
	return uint16View(b)
}

// uint16View is a byte slice addressed as big-endian uint16 samples.
type uint16View []byte

func (v uint16View) Len() int { return len(v) / 2 }

func (v uint16View) get(i int) uint16 { return binary.BigEndian.Uint16(v[i*2 : i*2+2]) }
func (v uint16View) set(i int, val uint16) {
	binary.BigEndian.PutUint16(v[i*2:i*2+2], val)
}
