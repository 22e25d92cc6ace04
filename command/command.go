/*Package command is the typed façade over the scanner's opcode set: one
function per SCSI command, each building its CDB, driving a
transport.Executor, and decoding or validating the response through the
codec package. No function here owns hardware state; session and scan own
that above this layer.
*/
package command

import (
	"fmt"

	"github.com/nasa-jpl/fs4000scan/codec"
	"github.com/nasa-jpl/fs4000scan/transport"
)

// Opcode re-exports codec.Opcode so callers of this package never import
// codec directly just to reference an opcode constant.
type Opcode = codec.Opcode

// Warn receives non-fatal command-layer conditions as advisory text: an
// unexpected status echo outside the documented reserve_unit/release_unit
// quirk is logged and the command proceeds, per spec.md §4.1 step 4 and
// §7 ("unexpected status echo … do not fail the scan"). The orchestrator
// wires this to its feedback callback for the duration of one Run; nil
// drops warnings silently.
var Warn func(string)

func warn(format string, args ...interface{}) {
	if Warn != nil {
		Warn(fmt.Sprintf(format, args...))
	}
}

// statusOK checks a command's status phase, translating a device-reported
// sense condition into a *SenseError. A mismatched status echo is not
// fatal outside reserve_unit/release_unit's documented echo=0 quirk: it is
// reported through Warn and otherwise ignored.
func statusOK(op Opcode, res transport.Result) error {
	if res.Sense != nil {
		s, err := codec.DecodeSense(res.Sense[:])
		if err != nil {
			return &ProtocolError{Msg: err.Error()}
		}
		if !s.IsNoSense() {
			return &SenseError{Key: s.Key(), ASC: s.ASC(), ASCQ: s.ASCQ()}
		}
	}
	echoed := res.Status[0]
	if echoed != byte(op) {
		if echoed == 0 && (op == codec.OpReserveUnit || op == codec.OpReleaseUnit) {
			return nil
		}
		warn((&StatusMismatchError{Issued: op, Echoed: echoed}).Error())
	}
	return nil
}

func exec(t transport.Executor, op Opcode, cdbTail []byte, dir transport.Direction, data []byte) (transport.Result, error) {
	cdbLen, ok := codec.CDBLen(op)
	if !ok {
		return transport.Result{}, &ProtocolError{Msg: fmt.Sprintf("unknown opcode %#02x", byte(op))}
	}
	cdb := make([]byte, cdbLen)
	cdb[0] = byte(op)
	copy(cdb[1:], cdbTail)

	res, err := t.Exec(cdb, dir, data)
	if err != nil {
		return transport.Result{}, &TransportError{Op: fmt.Sprintf("%#02x", byte(op)), Err: err}
	}
	if err := statusOK(op, res); err != nil {
		return res, err
	}
	return res, nil
}

// Inquiry issues INQUIRY and decodes the 36-byte response. The allocation
// length goes in CDB byte 2 (not the standard SCSI byte 4): this device
// folds that byte into the control transfer's wValue for opcodes 0x12 and
// 0xD5 (§4.1), so it has to land where controlValue expects it.
func Inquiry(t transport.Executor) (*codec.InquiryBlock, error) {
	buf := make([]byte, codec.InquiryLen)
	tail := make([]byte, 5)
	tail[1] = codec.InquiryLen
	res, err := exec(t, codec.OpInquiry, tail, transport.DirIn, buf)
	if err != nil {
		return nil, err
	}
	return codec.DecodeInquiry(res.Data)
}

// TestUnitReady issues TEST_UNIT_READY. A sense key of not-ready surfaces
// as ErrDeviceBusy so callers can poll without inspecting sense details.
func TestUnitReady(t transport.Executor) error {
	_, err := exec(t, codec.OpTestUnitReady, make([]byte, 5), transport.DirNone, nil)
	if se, ok := err.(*SenseError); ok && se.IsNotReady() {
		return ErrDeviceBusy
	}
	return err
}

// ReserveUnit issues RESERVE_UNIT. Nesting is not supported: callers track
// whether a unit is already reserved (the session layer owns this).
func ReserveUnit(t transport.Executor) error {
	_, err := exec(t, codec.OpReserveUnit, make([]byte, 5), transport.DirNone, nil)
	return err
}

// ReleaseUnit issues RELEASE_UNIT.
func ReleaseUnit(t transport.Executor) error {
	_, err := exec(t, codec.OpReleaseUnit, make([]byte, 5), transport.DirNone, nil)
	return err
}

// GetFilmStatus issues the vendor GET_FILM_STATUS command and decodes the
// 40-byte response.
func GetFilmStatus(t transport.Executor) (*codec.FilmStatusBlock, error) {
	buf := make([]byte, codec.FilmStatusLen)
	tail := make([]byte, 9)
	putAllocLen10(tail, codec.FilmStatusLen)
	res, err := exec(t, codec.OpGetFilmStatus, tail, transport.DirIn, buf)
	if err != nil {
		return nil, err
	}
	return codec.DecodeFilmStatus(res.Data)
}

// GetLamp issues the vendor lamp-status read. It shares opcode 0xE8 with
// SetLamp; the direction of the data phase, not a distinct opcode, is what
// tells the device which one it's looking at (the dummy-buffer rewrite in
// the transport layer only fires when the data phase is absent, which is
// never the case here since a real 10-byte IN buffer is supplied).
func GetLamp(t transport.Executor) (*codec.LampBlock, error) {
	buf := make([]byte, codec.LampLen)
	tail := make([]byte, 5)
	res, err := exec(t, codec.OpSetLamp, tail, transport.DirIn, buf)
	if err != nil {
		return nil, err
	}
	return codec.DecodeLamp(res.Data)
}

// SetLamp issues SET_LAMP, turning the visible and/or IR lamp on or off.
func SetLamp(t transport.Executor, visible, ir bool) error {
	tail := make([]byte, 5)
	if visible {
		tail[0] = 1
	}
	if ir {
		tail[1] = 1
	}
	_, err := exec(t, codec.OpSetLamp, tail, transport.DirNone, nil)
	return err
}

// GetScanMode issues GET_SCAN_MODE and decodes the 0x38-byte response. Like
// Inquiry, its allocation length rides in CDB byte 2 for the wValue fold.
func GetScanMode(t transport.Executor) (*codec.ScanModeBlock, error) {
	buf := make([]byte, codec.ScanModeLen)
	tail := make([]byte, 9)
	tail[1] = codec.ScanModeLen
	putAllocLen10(tail, codec.ScanModeLen)
	res, err := exec(t, codec.OpGetScanMode, tail, transport.DirIn, buf)
	if err != nil {
		return nil, err
	}
	return codec.DecodeScanMode(res.Data)
}

// PutScanMode issues PUT_SCAN_MODE, writing back a full scan-mode block.
// Callers are expected to have read-modify-written it via GetScanMode
// first, so reserved and vendor-private bytes survive unchanged.
func PutScanMode(t transport.Executor, b *codec.ScanModeBlock) error {
	tail := make([]byte, 9)
	putAllocLen10(tail, codec.ScanModeLen)
	_, err := exec(t, codec.OpPutScanMode, tail, transport.DirOut, b.Bytes())
	return err
}

// GetWindow issues GET_WINDOW and decodes the window parameter list.
func GetWindow(t transport.Executor) (*codec.WindowBlock, error) {
	buf := make([]byte, codec.WindowLen)
	tail := make([]byte, 9)
	putAllocLen10(tail, codec.WindowLen)
	res, err := exec(t, codec.OpGetWindow, tail, transport.DirIn, buf)
	if err != nil {
		return nil, err
	}
	return codec.DecodeWindow(res.Data)
}

// PutWindow issues SET_WINDOW, writing back a full window parameter list.
func PutWindow(t transport.Executor, b *codec.WindowBlock) error {
	tail := make([]byte, 9)
	putAllocLen10(tail, codec.WindowLen)
	_, err := exec(t, codec.OpSetWindow, tail, transport.DirOut, b.Bytes())
	return err
}

// DataStatus is the (lines, line_bytes) pair sizing the next bulk read,
// returned by GetDataStatus between scan and the first read.
type DataStatus struct {
	Lines     uint32
	LineBytes uint32
}

// GetDataStatus issues GET_DATA_STATUS. Must be called after scan and
// before the first bulk read.
func GetDataStatus(t transport.Executor) (DataStatus, error) {
	buf := make([]byte, 8)
	tail := make([]byte, 9)
	putAllocLen10(tail, 8)
	res, err := exec(t, codec.OpGetDataStatus, tail, transport.DirIn, buf)
	if err != nil {
		return DataStatus{}, err
	}
	return DataStatus{Lines: be32(res.Data[0:4]), LineBytes: be32(res.Data[4:8])}, nil
}

// SetFrame issues SET_FRAME. code bit 0 selects scan direction; the other
// bits select motion policy. Setting code to 0 before other moves re-arms
// the home sensor (spec §4.3).
func SetFrame(t transport.Executor, code byte) error {
	tail := make([]byte, 9)
	tail[1] = code
	_, err := exec(t, codec.OpSetFrame, tail, transport.DirNone, nil)
	return err
}

// Axis selects which actuator MovePosition drives.
type Axis byte

// Axes the device exposes.
const (
	AxisCarriage   Axis = 0
	AxisFilmHolder Axis = 1
)

// MovePosition issues MOVE_POSITION. axis 0 moves the carriage (position 0
// is home); axis 1 moves the film holder.
func MovePosition(t transport.Executor, axis Axis, mode byte, position uint16) error {
	tail := make([]byte, 9)
	tail[1] = byte(axis)
	tail[2] = mode
	putBE16(tail[3:5], position)
	_, err := exec(t, codec.OpMovePosition, tail, transport.DirNone, nil)
	return err
}

// ExecuteAFAE runs the device's autofocus/auto-exposure sweep. The
// documented focus-only parameter set is (1, 0, 0, 0, 500, 3500).
func ExecuteAFAE(t transport.Executor, mode, p2, p3, p4 byte, p5, p6 uint16) error {
	tail := make([]byte, 9)
	tail[1] = mode
	tail[2] = p2
	tail[3] = p3
	tail[4] = p4
	putBE16(tail[5:7], p5)
	putBE16(tail[7:9], p6)
	_, err := exec(t, codec.OpExecuteAFAE, tail, transport.DirNone, nil)
	return err
}

// FocusOnlyAFAE are the documented focus-only ExecuteAFAE parameters.
var FocusOnlyAFAE = struct {
	Mode, P2, P3, P4 byte
	P5, P6           uint16
}{1, 0, 0, 0, 500, 3500}

// Scan issues the SCAN opcode, initiating acquisition.
func Scan(t transport.Executor) error {
	_, err := exec(t, codec.OpScan, make([]byte, 9), transport.DirNone, nil)
	return err
}

// Cancel issues the vendor cancel sequence: the device has no dedicated
// cancel opcode, so the orchestrator cancels by running its release path
// (set_frame(0), move_position home, control_led off, release_unit); this
// function exists so callers have a single named entry point to wrap with
// ErrCancelled.
func Cancel(t transport.Executor) error {
	if err := SetFrame(t, 0); err != nil {
		return err
	}
	if err := MovePosition(t, AxisCarriage, 0, 0); err != nil {
		return err
	}
	return ErrCancelled
}

// ControlLED turns the status LED on (non-zero) or off (0), plus four
// vendor-private mode bytes carried through verbatim.
func ControlLED(t transport.Executor, on byte, modeBytes [4]byte) error {
	tail := make([]byte, 5)
	tail[0] = on
	copy(tail[1:5], modeBytes[:])
	_, err := exec(t, codec.OpControlLED, tail, transport.DirNone, nil)
	return err
}

// Read issues the bulk READ command for n bytes, which must be a positive
// multiple of the line size reported by GetDataStatus.
func Read(t transport.Executor, n int) ([]byte, error) {
	if n <= 0 || n > 0xFFFFFF {
		return nil, &ProtocolError{Msg: fmt.Sprintf("read length %d out of range", n)}
	}
	tail := make([]byte, 9)
	tail[5] = byte(n >> 16)
	tail[6] = byte(n >> 8)
	tail[7] = byte(n)
	buf := make([]byte, n)
	res, err := exec(t, codec.OpRead, tail, transport.DirIn, buf)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// putAllocLen10 writes a 3-byte big-endian allocation length into a 10-byte
// CDB tail at the offset the device's 10-byte vendor commands use (bytes
// 7..9 of the full CDB, i.e. tail[6:9] once the opcode byte is excluded).
func putAllocLen10(tail []byte, n int) {
	tail[6] = byte(n >> 16)
	tail[7] = byte(n >> 8)
	tail[8] = byte(n)
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func putBE16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}
