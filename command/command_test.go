package command

import (
	"bytes"
	"testing"

	"github.com/nasa-jpl/fs4000scan/codec"
	"github.com/nasa-jpl/fs4000scan/transport"
)

// fakeExecutor is a minimal transport.Executor stand-in: it hands back a
// canned status/sense pair and, for DirIn calls, fills the caller's buffer
// from a script keyed by opcode.
type fakeExecutor struct {
	status   [4]byte
	sense    *[14]byte
	fill     map[byte][]byte
	lastCDB  []byte
	lastDir  transport.Direction
	lastData []byte
}

func (f *fakeExecutor) Exec(cdb []byte, dir transport.Direction, data []byte) (transport.Result, error) {
	f.lastCDB = append([]byte(nil), cdb...)
	f.lastDir = dir
	f.lastData = append([]byte(nil), data...)

	res := transport.Result{Status: f.status, Sense: f.sense}
	if dir == transport.DirIn {
		if src, ok := f.fill[cdb[0]]; ok {
			copy(data, src)
		}
		res.Data = data
	}
	return res, nil
}

func TestInquiryHappyPath(t *testing.T) {
	buf := make([]byte, codec.InquiryLen)
	copy(buf[8:16], "CANON   ")
	copy(buf[16:26], "IX-40015G ")
	f := &fakeExecutor{
		status: [4]byte{byte(codec.OpInquiry), 0, 0, 0},
		fill:   map[byte][]byte{byte(codec.OpInquiry): buf},
	}
	inq, err := Inquiry(f)
	if err != nil {
		t.Fatalf("Inquiry: %v", err)
	}
	if !inq.IsCanonical() {
		t.Fatalf("IsCanonical() = false, vendor=%q product=%q", inq.Vendor(), inq.Product())
	}
	if got := f.lastCDB[2]; got != codec.InquiryLen {
		t.Fatalf("cdb[2] = %d, want %d (alloc length folded into wValue)", got, codec.InquiryLen)
	}
}

func TestTestUnitReadyMapsNotReadyToBusy(t *testing.T) {
	sense := &[14]byte{0x70, 0, 0x02}
	f := &fakeExecutor{
		status: [4]byte{byte(codec.OpTestUnitReady), 1, 0, 0},
		sense:  sense,
	}
	err := TestUnitReady(f)
	if err != ErrDeviceBusy {
		t.Fatalf("TestUnitReady() = %v, want ErrDeviceBusy", err)
	}
}

func TestReserveReleaseEchoQuirkIsNotAnError(t *testing.T) {
	f := &fakeExecutor{status: [4]byte{0, 0, 0, 0}}
	if err := ReserveUnit(f); err != nil {
		t.Fatalf("ReserveUnit: %v", err)
	}
	if err := ReleaseUnit(f); err != nil {
		t.Fatalf("ReleaseUnit: %v", err)
	}
}

func TestStatusMismatchOutsideReserveQuirkIsWarnedNotFailed(t *testing.T) {
	var warned string
	Warn = func(msg string) { warned = msg }
	defer func() { Warn = nil }()

	f := &fakeExecutor{status: [4]byte{0x00, 0, 0, 0}}
	if err := SetFrame(f, 0x01); err != nil {
		t.Fatalf("SetFrame: %v, want nil (mismatch is a warning, not a failure)", err)
	}
	if warned == "" {
		t.Fatalf("expected Warn to be called with the status mismatch")
	}
}

func TestReserveReleaseEchoQuirkDoesNotWarn(t *testing.T) {
	var warned string
	Warn = func(msg string) { warned = msg }
	defer func() { Warn = nil }()

	f := &fakeExecutor{status: [4]byte{0, 0, 0, 0}}
	if err := ReserveUnit(f); err != nil {
		t.Fatalf("ReserveUnit: %v", err)
	}
	if warned != "" {
		t.Fatalf("expected no warning for the documented echo=0 quirk, got %q", warned)
	}
}

func TestSenseErrorSurfaces(t *testing.T) {
	sense := &[14]byte{0x70, 0, 0x06, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x4C, 0x00}
	f := &fakeExecutor{
		status: [4]byte{byte(codec.OpScan), 1, 0, 0},
		sense:  sense,
	}
	err := Scan(f)
	se, ok := err.(*SenseError)
	if !ok {
		t.Fatalf("err = %T, want *SenseError", err)
	}
	if se.Key != 0x06 {
		t.Fatalf("Key = %#x, want 0x06", se.Key)
	}
}

func TestReadRejectsOversizeLength(t *testing.T) {
	f := &fakeExecutor{}
	if _, err := Read(f, 0x1000000); err == nil {
		t.Fatalf("expected ProtocolError for oversize read length")
	}
}

func TestReadEncodesLengthInCDBTail(t *testing.T) {
	f := &fakeExecutor{status: [4]byte{byte(codec.OpRead), 0, 0, 0}}
	if _, err := Read(f, 65536); err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []byte{0x01, 0x00, 0x00}
	if !bytes.Equal(f.lastCDB[6:9], want) {
		t.Fatalf("cdb[6:9] = %x, want %x", f.lastCDB[6:9], want)
	}
}

func TestMovePositionAxes(t *testing.T) {
	f := &fakeExecutor{status: [4]byte{byte(codec.OpMovePosition), 0, 0, 0}}
	if err := MovePosition(f, AxisFilmHolder, 4, 1802); err != nil {
		t.Fatalf("MovePosition: %v", err)
	}
	if f.lastCDB[2] != byte(AxisFilmHolder) || f.lastCDB[3] != 4 {
		t.Fatalf("cdb = %x", f.lastCDB)
	}
	if got := uint16(f.lastCDB[4])<<8 | uint16(f.lastCDB[5]); got != 1802 {
		t.Fatalf("position = %d, want 1802", got)
	}
}
