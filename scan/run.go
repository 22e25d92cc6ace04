package scan

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/nasa-jpl/fs4000scan/codec"
	"github.com/nasa-jpl/fs4000scan/command"
	"github.com/nasa-jpl/fs4000scan/transport"
)

// lampWarmupSeconds is the cumulative visible-lamp on-time the orchestrator
// waits for before starting a scan (spec §4.4 step 3).
const lampWarmupSeconds = 15

// focusBacksetSteps is the fixed backset from the frame's carriage offset
// used for the focus-position move before autofocus (spec §4.4 step 4;
// grounded on fs4000-control.c's literal `iOffset - 236`).
const focusBacksetSteps = 236

// prePassGeometry is the fixed reduced-resolution window used for the
// auto-exposure pre-pass (spec §4.4 step 6).
var prePassGeometry = struct {
	XRes, YRes           uint16
	Width, Height        uint32
}{XRes: 4000, YRes: 500, Width: 4000, Height: 5904}

// fullPassGeometry is the window programmed for the real acquisition pass
// (spec §4.4 step 7).
var fullPassGeometry = struct {
	XRes, YRes    uint16
	ULX, ULY      uint32
	Width, Height uint32
}{XRes: 4000, YRes: 4000, ULX: 0, ULY: 0, Width: 4000, Height: 5904}

// Params is the subset of session parameters the orchestrator needs to
// drive one scan; session.Session converts its own Params into this type
// at Run time, keeping scan independent of the session package.
type Params struct {
	AGain           [3]uint16
	AOffset         [3]int // signed; encoded via codec.EncodeOffset at the wire boundary
	Shutter         [3]uint16
	Boost           [3]uint16
	Speed           int
	InMode          int
	MaxShutter      uint16
	AutoExpSpeed    int
	Margin          int
	DisableShutters bool
	Cal             []CalEntry
}

// Callbacks are the two capabilities spec §9 calls out for re-architecture:
// feedback is advisory progress/warning text delivered from the
// orchestrator's own thread, while Abort must be safe to poll from
// anywhere and simply answers whether a cancellation has been requested.
type Callbacks struct {
	Feedback func(string)
	Abort    func() bool
}

func (c Callbacks) feedback(format string, args ...interface{}) {
	if c.Feedback != nil {
		c.Feedback(fmt.Sprintf(format, args...))
	}
}

func (c Callbacks) aborted() bool {
	return c.Abort != nil && c.Abort()
}

// Result is what a completed (or cancelled) Run leaves behind.
type Result struct {
	Buffer *Buffer
	Stats  *Stats
	State  State
}

// Run sequences one complete acquisition for the given frame index,
// following spec §4.4's eleven-step procedure: reserve/check/home, lamp
// warm-up, focus, optional auto-exposure pre-pass, scan-mode/window
// programming, the bulk read, deinterlace, and a guaranteed release path
// on every exit.
func Run(t transport.Executor, p Params, frameIndex int, autoExpose bool, cb Callbacks) (res Result, err error) {
	res.State = Armed

	command.Warn = func(msg string) { cb.feedback("%s", msg) }
	defer func() { command.Warn = nil }()

	if err := command.ReserveUnit(t); err != nil {
		return res, &TransportStageError{Stage: "reserve_unit", Err: err}
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if err := command.SetFrame(t, 0); err != nil {
			cb.feedback("release: set_frame(0) failed: %v", err)
		}
		if err := command.MovePosition(t, command.AxisCarriage, 0, 0); err != nil {
			cb.feedback("release: home carriage failed: %v", err)
		}
		if err := command.ControlLED(t, 0, [4]byte{}); err != nil {
			cb.feedback("release: control_led(off) failed: %v", err)
		}
		if err := command.ReleaseUnit(t); err != nil {
			cb.feedback("release: release_unit failed: %v", err)
		}
	}
	defer release()

	if err := command.ControlLED(t, 1, [4]byte{0x01}); err != nil { // blink pattern
		return res, &TransportStageError{Stage: "control_led(blink)", Err: err}
	}

	if err := command.TestUnitReady(t); err != nil && err != command.ErrDeviceBusy {
		return res, &TransportStageError{Stage: "test_unit_ready", Err: err}
	}

	film, err := command.GetFilmStatus(t)
	if err != nil {
		return res, &TransportStageError{Stage: "get_film_status", Err: err}
	}

	holderType := film.HolderType()
	if !codec.KnownHolderType(holderType) {
		command.SetLamp(t, false, false)
		return res, command.ErrNoFilmHolder
	}
	offset, ok := codec.CarriageOffset(holderType, frameIndex)
	if !ok {
		command.SetLamp(t, false, false)
		return res, &command.ProtocolError{Msg: fmt.Sprintf("frame index %d out of range for holder type %d", frameIndex, holderType)}
	}

	if err := warmUpLamp(t, cb); err != nil {
		return res, err
	}

	if err := command.SetFrame(t, 0); err != nil {
		return res, &TransportStageError{Stage: "set_frame(0)", Err: err}
	}
	if err := command.MovePosition(t, command.AxisCarriage, 0, 0); err != nil {
		return res, &TransportStageError{Stage: "home carriage", Err: err}
	}
	if err := command.MovePosition(t, command.AxisFilmHolder, 4, uint16(offset-focusBacksetSteps)); err != nil {
		return res, &TransportStageError{Stage: "focus position", Err: err}
	}

	inModeBits, err := codec.BitsCodeFor(p.InMode)
	if err != nil {
		return res, &ProtocolStageError{Msg: err.Error()}
	}

	if err := programScanMode(t, 4, p, inModeBits); err != nil {
		return res, err
	}
	if err := command.ExecuteAFAE(t, command.FocusOnlyAFAE.Mode, command.FocusOnlyAFAE.P2,
		command.FocusOnlyAFAE.P3, command.FocusOnlyAFAE.P4,
		command.FocusOnlyAFAE.P5, command.FocusOnlyAFAE.P6); err != nil {
		return res, &TransportStageError{Stage: "execute_afae", Err: err}
	}
	if err := command.MovePosition(t, command.AxisFilmHolder, 4, uint16(offset)); err != nil {
		return res, &TransportStageError{Stage: "move to frame", Err: err}
	}

	leftToRight := false // default: right-to-left, frame direction bit 0 = 0
	shutter := p.Shutter
	boost := p.Boost
	speed := p.Speed

	if autoExpose {
		leftToRight = true
		cal, err := preExposurePass(t, p, inModeBits, cb)
		if err != nil {
			return res, err
		}
		shutter = cal.Shutter
		boost = cal.Boost
		speed = cal.Speed
	}

	if err := command.SetFrame(t, frameCode(leftToRight)); err != nil {
		return res, &TransportStageError{Stage: "set_frame(direction)", Err: err}
	}

	pFinal := p
	pFinal.Shutter = shutter
	pFinal.Boost = boost
	pFinal.Speed = speed
	if err := programScanMode(t, speed, pFinal, inModeBits); err != nil {
		return res, err
	}
	if err := programWindow(t, fullPassGeometry.XRes, fullPassGeometry.YRes,
		fullPassGeometry.ULX, fullPassGeometry.ULY, fullPassGeometry.Width, fullPassGeometry.Height, inModeBits); err != nil {
		return res, err
	}

	if err := command.Scan(t); err != nil {
		return res, &TransportStageError{Stage: "scan", Err: err}
	}

	buf, err := bulkRead(t, p.InMode, cb)
	if err != nil {
		return res, err
	}
	buf.LeftToRight = leftToRight
	buf.LinesPerInch = int(fullPassGeometry.YRes)
	if _, ok := ShiftForLPI(buf.LinesPerInch); !ok {
		cb.feedback("deinterlace: %d lpi is not in the shift table; no shift applied", buf.LinesPerInch)
	}

	stats, err := Deinterlace(buf, DeinterlaceParams{
		Cal:      p.Cal,
		Boost:    boost,
		Margin:   p.Margin,
		ApplyCal: true, // fs4000_read_scan's bCorrectSamples is true for every normal acquisition
		InMode:   p.InMode,
	})
	if err != nil {
		return res, err
	}
	if stats.Underflows > 0 || stats.Overflows > 0 {
		cb.feedback("calibration: %d underflows, %d overflows (worst col=%d line=%d)",
			stats.Underflows, stats.Overflows, stats.WorstColumn, stats.WorstLine)
	}

	res.Buffer = buf
	res.Stats = stats
	res.State = Drained
	return res, nil
}

func frameCode(leftToRight bool) byte {
	if leftToRight {
		return 1
	}
	return 0
}

func warmUpLamp(t transport.Executor, cb Callbacks) error {
	limiter := rate.NewLimiter(rate.Every(500*time.Millisecond), 1)
	ctx := context.Background()
	for {
		if err := command.SetLamp(t, true, false); err != nil {
			return &TransportStageError{Stage: "set_lamp", Err: err}
		}
		lamp, err := command.GetLamp(t)
		if err != nil {
			return &TransportStageError{Stage: "get_lamp", Err: err}
		}
		if lamp.VisibleSeconds() >= lampWarmupSeconds {
			return nil
		}
		cb.feedback("waiting for lamp (%d)", lampWarmupSeconds-lamp.VisibleSeconds())
		if cb.aborted() {
			return command.ErrCancelled
		}
		if err := limiter.Wait(ctx); err != nil {
			return &TransportStageError{Stage: "lamp warm-up pacing", Err: err}
		}
	}
}

func programScanMode(t transport.Executor, speed int, p Params, inModeBits byte) error {
	mode, err := command.GetScanMode(t)
	if err != nil {
		return &TransportStageError{Stage: "get_scan_mode", Err: err}
	}
	mode.SetSpeed(byte(speed))
	mode.SetSampleMods(codec.BuildSampleMods(inModeBits&0x03, p.Margin))
	mode.SetAGain(p.AGain)
	var encoded [3]uint16
	for i, v := range p.AOffset {
		encoded[i] = codec.EncodeOffset(v)
	}
	mode.SetAOffset(encoded)
	shutter := p.Shutter
	if p.DisableShutters { // tuning mode: fs4k_SetScanModeEx zeroes every channel's shutter pulse width
		shutter = [3]uint16{0, 0, 0}
	}
	mode.SetShutter(shutter)
	if err := command.PutScanMode(t, mode); err != nil {
		return &TransportStageError{Stage: "put_scan_mode", Err: err}
	}
	return nil
}

func programWindow(t transport.Executor, xres, yres uint16, ulx, uly, width, height uint32, bits byte) error {
	w, err := command.GetWindow(t)
	if err != nil {
		return &TransportStageError{Stage: "get_window", Err: err}
	}
	w.SetXRes(xres)
	w.SetYRes(yres)
	w.SetULX(ulx)
	w.SetULY(uly)
	w.SetWidth(width)
	w.SetHeight(height)
	w.SetBitsPerPixel(bits)
	if err := command.PutWindow(t, w); err != nil {
		return &TransportStageError{Stage: "put_window", Err: err}
	}
	return nil
}

func preExposurePass(t transport.Executor, p Params, inModeBits byte, cb Callbacks) (CalibrationResult, error) {
	prePassParams := p
	prePassParams.Speed = p.AutoExpSpeed
	if err := programScanMode(t, p.AutoExpSpeed, prePassParams, inModeBits); err != nil {
		return CalibrationResult{}, err
	}
	if err := programWindow(t, prePassGeometry.XRes, prePassGeometry.YRes, 0, 0,
		prePassGeometry.Width, prePassGeometry.Height, inModeBits); err != nil {
		return CalibrationResult{}, err
	}
	if err := command.Scan(t); err != nil {
		return CalibrationResult{}, &TransportStageError{Stage: "pre-pass scan", Err: err}
	}
	buf, err := bulkRead(t, p.InMode, cb)
	if err != nil {
		return CalibrationResult{}, err
	}

	speed := p.Speed
	var cal CalibrationResult
	for {
		cal = Calibrate(buf, p.Shutter, p.MaxShutter, speed)
		if cal.Satisfied || speed <= MinSpeed {
			break
		}
		speed--
	}
	cal.Speed = speed
	return cal, nil
}

func bulkRead(t transport.Executor, inMode int, cb Callbacks) (*Buffer, error) {
	status, err := command.GetDataStatus(t)
	if err != nil {
		return nil, &TransportStageError{Stage: "get_data_status", Err: err}
	}

	total := int(status.Lines) * int(status.LineBytes)
	chunks, err := ChunkSizes(total, int(status.LineBytes))
	if err != nil {
		return nil, &ProtocolStageError{Msg: err.Error()}
	}

	buf := NewBuffer(status.Lines, status.LineBytes, normalisedBits(inMode), 0, false)
	limiter := rate.NewLimiter(rate.Every(5*time.Millisecond), 1)
	ctx := context.Background()

	off := 0
	for _, n := range chunks {
		if cb.aborted() {
			return nil, command.ErrCancelled
		}
		chunk, err := command.Read(t, n)
		if err != nil {
			return nil, &TransportStageError{Stage: "read", Err: err}
		}
		copy(buf.Data[off:off+n], chunk)
		off += n
		if err := limiter.Wait(ctx); err != nil {
			return nil, &TransportStageError{Stage: "bulk read pacing", Err: err}
		}
	}
	return buf, nil
}

func normalisedBits(inMode int) int {
	if inMode == 14 {
		return 16
	}
	return inMode
}

// TransportStageError names the orchestration stage a transport/command
// failure occurred in, so feedback and logs can point at the step rather
// than just the underlying opcode error.
type TransportStageError struct {
	Stage string
	Err   error
}

func (e *TransportStageError) Error() string { return fmt.Sprintf("scan: %s: %v", e.Stage, e.Err) }
func (e *TransportStageError) Unwrap() error { return e.Err }

// ProtocolStageError reports a malformed precondition the orchestrator
// caught itself, not a transport/command failure.
type ProtocolStageError struct {
	Msg string
}

func (e *ProtocolStageError) Error() string { return "scan: protocol: " + e.Msg }
