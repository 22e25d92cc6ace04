package scan

import "testing"

func setUint16(data []byte, i int, v uint16) {
	data[i*2] = byte(v >> 8)
	data[i*2+1] = byte(v)
}

func getUint16(data []byte, i int) uint16 {
	return uint16(data[i*2])<<8 | uint16(data[i*2+1])
}

func TestDeinterlace14BitNormalisation(t *testing.T) {
	const lineEnts = 3 // one RGB pixel per line
	const lines = 4
	buf := NewBuffer(lines, lineEnts*BytesPerSample, 16, 160, false) // lpi 160 -> shift 0
	for i := 0; i < lineEnts*lines; i++ {
		setUint16(buf.Data, i, uint16(i))
	}

	_, err := Deinterlace(buf, DeinterlaceParams{
		Cal:      make([]CalEntry, CalibrationEntries),
		Boost:    [3]uint16{256, 256, 256},
		Margin:   0,
		ApplyCal: false,
		InMode:   14,
	})
	if err != nil {
		t.Fatalf("Deinterlace: %v", err)
	}
	if buf.Lines != lines {
		t.Fatalf("lines changed with zero shift: got %d, want %d", buf.Lines, lines)
	}
	for i := 0; i < lineEnts*lines; i++ {
		want := uint16(i) << 2
		if got := getUint16(buf.Data, i); got != want {
			t.Fatalf("sample %d = %d, want %d (raw<<2)", i, got, want)
		}
	}
}

func TestDeinterlaceShiftAndLinesAt4000LPI(t *testing.T) {
	const lineEnts = 5
	const rawLines = 20
	buf := NewBuffer(rawLines, lineEnts*BytesPerSample, 16, 4000, false) // R2L: shift 8
	for i := 0; i < lineEnts*rawLines; i++ {
		setUint16(buf.Data, i, uint16(i))
	}

	_, err := Deinterlace(buf, DeinterlaceParams{
		Cal:      make([]CalEntry, CalibrationEntries),
		Boost:    [3]uint16{256, 256, 256},
		Margin:   0,
		ApplyCal: false,
		InMode:   16,
	})
	if err != nil {
		t.Fatalf("Deinterlace: %v", err)
	}
	if buf.Shift != 8 {
		t.Fatalf("Shift = %d, want 8", buf.Shift)
	}
	if buf.Lines != rawLines-16 {
		t.Fatalf("Lines = %d, want %d", buf.Lines, rawLines-16)
	}
}

func TestDeinterlaceLinesReducedBy2Shift(t *testing.T) {
	const lineEnts = 3
	const rawLines = 40
	buf := NewBuffer(rawLines, lineEnts*BytesPerSample, 16, 1000, true) // shift 2
	for i := range buf.Data {
		buf.Data[i] = 0
	}

	_, err := Deinterlace(buf, DeinterlaceParams{
		Cal:      make([]CalEntry, CalibrationEntries),
		Boost:    [3]uint16{256, 256, 256},
		ApplyCal: false,
		InMode:   16,
	})
	if err != nil {
		t.Fatalf("Deinterlace: %v", err)
	}
	if got, want := buf.Lines, uint32(rawLines-4); got != want {
		t.Fatalf("Lines = %d, want %d", got, want)
	}
	if got, want := len(buf.Data), int(buf.Lines)*lineEnts*BytesPerSample; got != want {
		t.Fatalf("len(Data) = %d, want %d", got, want)
	}
}
