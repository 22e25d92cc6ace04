package session

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nasa-jpl/fs4000scan/codec"
	"github.com/nasa-jpl/fs4000scan/scan"
	"github.com/nasa-jpl/fs4000scan/transport"
)

// fakeExecutor is a minimal transport.Executor stand-in, mirroring the one
// in command/command_test.go: it answers every Exec with a status echo
// matching the issued opcode and, for DirIn calls, leaves the caller's
// already-correctly-sized buffer as the result data.
type fakeExecutor struct {
	busyTUR int  // number of TEST_UNIT_READY calls that report busy before success
	calls   []byte
}

func (f *fakeExecutor) Exec(cdb []byte, dir transport.Direction, data []byte) (transport.Result, error) {
	op := cdb[0]
	f.calls = append(f.calls, op)

	res := transport.Result{Status: [4]byte{op, 0, 0, 0}}
	if dir == transport.DirIn {
		res.Data = data
	}

	if codec.Opcode(op) == codec.OpTestUnitReady && f.busyTUR > 0 {
		f.busyTUR--
		res.Sense = &[14]byte{0x70, 0, 0x02}
	}
	return res, nil
}

func TestReadinessHandshakeRunsFullSequence(t *testing.T) {
	f := &fakeExecutor{busyTUR: 2}
	if err := readinessHandshake(f); err != nil {
		t.Fatalf("readinessHandshake: %v", err)
	}

	want := []byte{
		byte(codec.OpSetFrame), byte(codec.OpMovePosition), // command.Cancel's release pair
		byte(codec.OpTestUnitReady), byte(codec.OpTestUnitReady), byte(codec.OpTestUnitReady),
		byte(codec.OpSetLamp), // GetLamp shares SET_LAMP's opcode; direction distinguishes it
		byte(codec.OpGetFilmStatus),
		byte(codec.OpGetScanMode), byte(codec.OpPutScanMode),
		byte(codec.OpGetWindow), byte(codec.OpSetWindow),
	}
	if len(f.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", f.calls, want)
	}
	for i := range want {
		if f.calls[i] != want[i] {
			t.Fatalf("calls[%d] = %#x, want %#x (full sequence %v)", i, f.calls[i], want[i], f.calls)
		}
	}
}

func TestReadinessHandshakeSwallowsInitialCancelSentinel(t *testing.T) {
	f := &fakeExecutor{}
	if err := readinessHandshake(f); err != nil {
		t.Fatalf("readinessHandshake: %v, want nil (command.Cancel's ErrCancelled is expected)", err)
	}
}

func TestDefaultParamsMatchDocumentedValues(t *testing.T) {
	p := DefaultParams()
	if p.AGain != [3]uint16{47, 36, 36} {
		t.Fatalf("AGain = %v", p.AGain)
	}
	if p.AOffset != [3]int{-25, -8, -5} {
		t.Fatalf("AOffset = %v", p.AOffset)
	}
	if p.Shutter != [3]uint16{750, 352, 235} {
		t.Fatalf("Shutter = %v", p.Shutter)
	}
	if p.Boost != [3]uint16{256, 256, 256} {
		t.Fatalf("Boost = %v", p.Boost)
	}
	if p.Speed != 2 || p.InMode != 14 || p.MaxShutter != 890 || p.AutoExp != 2 || p.Margin != 120 {
		t.Fatalf("scalar defaults wrong: %+v", p)
	}
	if p.DisableShutters {
		t.Fatalf("DisableShutters should default false")
	}
}

func TestNewCalibrationTableIsNeutral(t *testing.T) {
	cal := newCalibrationTable()
	if len(cal) != scan.CalibrationEntries {
		t.Fatalf("len(cal) = %d, want %d", len(cal), scan.CalibrationEntries)
	}
	for i, e := range cal {
		if e != scan.DefaultCalEntry {
			t.Fatalf("cal[%d] = %+v, want neutral default", i, e)
		}
	}
}

func TestCancelFromIdleIsNoop(t *testing.T) {
	s := &Session{state: scan.Idle}
	s.Cancel()
	if s.State() != scan.Idle {
		t.Fatalf("state = %v, want Idle", s.State())
	}
}

func TestCancelFromArmedSetsCancelRequested(t *testing.T) {
	s := &Session{state: scan.Armed}
	s.Cancel()
	if !s.cancelRequested {
		t.Fatalf("cancelRequested = false, want true after Cancel() from Armed")
	}
	if s.State() != scan.Armed {
		t.Fatalf("state = %v, want unchanged Armed (Scan's own abort poll resolves it)", s.State())
	}
}

func TestDrainWithoutBufferReportsFalse(t *testing.T) {
	s := &Session{state: scan.Idle}
	buf, ok := s.Drain()
	if ok || buf != nil {
		t.Fatalf("Drain() on empty session = (%v, %v), want (nil, false)", buf, ok)
	}
}

func TestDrainReturnsBufferAndResetsToIdle(t *testing.T) {
	want := scan.NewBuffer(10, 30, 16, 0, false)
	s := &Session{state: scan.Drained, buffer: want}
	got, ok := s.Drain()
	if !ok || got != want {
		t.Fatalf("Drain() = (%v, %v), want (%v, true)", got, ok, want)
	}
	if s.State() != scan.Idle {
		t.Fatalf("state after drain = %v, want Idle", s.State())
	}
	if _, ok := s.Drain(); ok {
		t.Fatalf("second Drain() should report false")
	}
}

func TestSetParamsRoundTrips(t *testing.T) {
	s := &Session{}
	p := DefaultParams()
	p.Margin = 0
	p.DisableShutters = true
	s.SetParams(p)
	if got := s.Params(); !cmp.Equal(got, p) {
		t.Fatalf("Params() round trip mismatch (-got +want):\n%s", cmp.Diff(got, p))
	}
}

func TestOpenFailsWhileSessionActive(t *testing.T) {
	activeMu.Lock()
	prev := active
	active = &Session{}
	activeMu.Unlock()
	defer func() {
		activeMu.Lock()
		active = prev
		activeMu.Unlock()
	}()

	if _, err := Open(); err == nil {
		t.Fatalf("expected Open() to fail while a session is already active")
	}
}
