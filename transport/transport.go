/*Package transport implements the SCSI-over-vendor-USB wire protocol used
to talk to the scanner: every SCSI command is carried as a USB vendor
control transfer, with an optional bulk-IN data phase for the read opcode,
followed by a mandatory status phase and a conditional sense phase.

The dummy-buffer and read-opcode rewrites below are bit-exact to the
control sequence the vendor driver issues on the wire; they exist because
the device's USB vendor request interface was grafted onto a parallel SCSI
command set late in its life and never made orthogonal.
*/
package transport

import (
	"fmt"

	"github.com/cenkalti/backoff"
	"github.com/google/gousb"
)

// VendorID and ProductID identify the scanner on the USB bus.
const (
	VendorID  = gousb.ID(0x04A9) // Canon
	ProductID = gousb.ID(0x3042) // CanoScan FS4000US
)

const (
	bulkInEndpoint = 1 // address 0x81, direction bit implied by InEndpoint

	reqSmall = 0x0C // bRequest when the data phase is shorter than 2 bytes
	reqLarge = 0x04 // bRequest otherwise

	wValueStatus = 0xC500
	wValueSense  = 0x0300
)

// Direction is the data-phase direction of a control transfer.
type Direction int

// Directions a command's data phase can take.
const (
	DirNone Direction = iota
	DirIn
	DirOut
)

// link is the low-level USB operations Transport drives. The real
// implementation is backed by gousb; device-simulator tests substitute a
// fake that replays recorded traffic without real hardware.
type link interface {
	control(bmRequestType, bRequest uint8, wValue uint16, data []byte) (int, error)
	bulkRead(buf []byte) (int, error)
}

// gousbLink adapts a gousb device/endpoint pair to link.
type gousbLink struct {
	dev *gousb.Device
	in  *gousb.InEndpoint
}

func (g *gousbLink) control(bmRequestType, bRequest uint8, wValue uint16, data []byte) (int, error) {
	return g.dev.Control(bmRequestType, bRequest, wValue, 0, data)
}

func (g *gousbLink) bulkRead(buf []byte) (int, error) {
	return g.in.Read(buf)
}

// Transport owns the open USB handle to the scanner and implements the
// opcode-to-control-transfer rewrite rules. A *Transport is not safe for
// concurrent use; callers serialize access (the session package owns a
// single Transport per process).
type Transport struct {
	ctx       *gousb.Context
	dev       *gousb.Device
	iface     *gousb.Interface
	ifaceDone func()
	link      link
}

// Open opens the first scanner found on the USB bus, retrying with
// exponential backoff since the device can take several seconds to
// enumerate after power-on.
func Open() (*Transport, error) {
	ctx := gousb.NewContext()
	t := &Transport{ctx: ctx}

	op := func() error {
		dev, err := ctx.OpenDeviceWithVIDPID(VendorID, ProductID)
		if err != nil {
			return err
		}
		if dev == nil {
			return fmt.Errorf("transport: no scanner found at vid=%s pid=%s", VendorID, ProductID)
		}
		t.dev = dev
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // no elapsed-time limit: every error is retried until the device opens
	if err := backoff.Retry(op, bo); err != nil {
		ctx.Close()
		return nil, fmt.Errorf("transport: open device: %w", err)
	}

	if err := t.dev.SetAutoDetach(true); err != nil {
		t.dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("transport: set auto detach: %w", err)
	}

	iface, done, err := t.dev.DefaultInterface()
	if err != nil {
		t.dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("transport: claim interface: %w", err)
	}
	t.iface = iface
	t.ifaceDone = done

	in, err := iface.InEndpoint(bulkInEndpoint)
	if err != nil {
		done()
		t.dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("transport: open bulk in endpoint: %w", err)
	}
	t.link = &gousbLink{dev: t.dev, in: in}

	return t, nil
}

// Close releases the USB interface and device handle.
func (t *Transport) Close() error {
	if t.ifaceDone != nil {
		t.ifaceDone()
	}
	var err error
	if t.dev != nil {
		err = t.dev.Close()
	}
	t.ctx.Close()
	return err
}

// controlValue builds the wValue of the vendor control transfer for a CDB:
// the opcode in the high byte, and for INQUIRY and GET_SCAN_MODE, the
// allocation-length byte (CDB[2]) in the low byte.
func controlValue(cdb []byte) uint16 {
	v := uint16(cdb[0]) << 8
	if len(cdb) > 2 && (cdb[0] == 0x12 || cdb[0] == 0xD5) {
		v += uint16(cdb[2])
	}
	return v
}

// dataPhase computes the actual bytes and direction sent in the control
// transfer's data stage, applying the dummy-buffer and read-opcode
// rewrites the device expects in place of the nominal CDB/data.
func dataPhase(cdb []byte, dir Direction, data []byte) (Direction, []byte) {
	op := cdb[0]

	if op == 0x28 { // READ: send the 3-byte requested transfer length, OUT
		return DirOut, append([]byte(nil), cdb[6:9]...)
	}

	if dir != DirNone && len(data) > 0 {
		return dir, data
	}

	// No real data phase: substitute the dummy buffer this opcode expects.
	switch op {
	case 0x00: // TEST_UNIT_READY
		return DirOut, []byte{0x01}
	case 0xE4: // vendor reserve-variant
		return DirOut, []byte{0x01}
	case 0xE6: // CONTROL_LED: bytes 1..5 of the CDB
		return DirOut, append([]byte(nil), cdb[1:6]...)
	case 0xE7: // SET_FRAME: bytes 2..3 of the CDB
		return DirOut, append([]byte(nil), cdb[2:4]...)
	case 0xE8: // SET_LAMP: bytes 1.. of the CDB
		return DirOut, append([]byte(nil), cdb[1:]...)
	default:
		return DirOut, []byte{0x00}
	}
}

// Executor is the interface the command layer drives; *Transport is the
// real implementation, and tests substitute a simulated device that
// speaks the same rewritten wire protocol without real USB hardware.
type Executor interface {
	Exec(cdb []byte, dir Direction, data []byte) (Result, error)
}

// Result is the outcome of one Exec call: the data read back (if any), the
// echoed status block, and the sense block when the status block flagged
// one.
type Result struct {
	Data   []byte
	Status [4]byte
	Sense  *[14]byte
}

// Exec carries out one SCSI command over the vendor USB control/bulk
// transport: the command phase, an optional bulk-IN phase for READ, the
// mandatory status phase, and a conditional sense phase.
//
// dir and data describe the nominal data phase as the command layer sees
// it (DirIn with a buffer to fill for most GET_* commands, DirNone for
// commands with no real transfer); Exec applies whatever rewrite the wire
// protocol actually requires.
func (t *Transport) Exec(cdb []byte, dir Direction, data []byte) (Result, error) {
	if len(cdb) < 1 {
		return Result{}, fmt.Errorf("transport: empty cdb")
	}

	wValue := controlValue(cdb)
	phaseDir, phaseData := dataPhase(cdb, dir, data)

	if err := t.control(wValue, phaseDir, phaseData); err != nil {
		return Result{}, fmt.Errorf("transport: command phase: %w", err)
	}

	var result Result
	if cdb[0] == 0x28 {
		buf := data
		n, err := t.link.bulkRead(buf)
		if err != nil {
			return Result{}, fmt.Errorf("transport: bulk read: %w", err)
		}
		if n != len(buf) {
			return Result{}, fmt.Errorf("transport: bulk read: got %d bytes, want %d", n, len(buf))
		}
		result.Data = buf
	} else if dir == DirIn {
		result.Data = phaseData
	}

	var status [4]byte
	if err := t.control(wValueStatus, DirIn, status[:]); err != nil {
		return Result{}, fmt.Errorf("transport: status phase: %w", err)
	}
	result.Status = status

	if status[1] != 0 {
		var sense [14]byte
		if err := t.control(wValueSense, DirIn, sense[:]); err != nil {
			return Result{}, fmt.Errorf("transport: sense phase: %w", err)
		}
		result.Sense = &sense
	}

	return result, nil
}

// control issues one USB vendor control transfer: bmRequestType is built
// from the direction bit and the vendor-to-device recipient bits, bRequest
// from the data length per the device's (undocumented) convention.
func (t *Transport) control(wValue uint16, dir Direction, data []byte) error {
	bRequest := uint8(reqLarge)
	if len(data) < 2 {
		bRequest = reqSmall
	}

	var bmRequestType uint8 = 0x40 // host-to-device, vendor, device
	in := dir == DirIn
	if in {
		bmRequestType = 0xC0 // device-to-host, vendor, device
	}

	n, err := t.link.control(bmRequestType, bRequest, wValue, data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("control transfer: wrote/read %d of %d bytes", n, len(data))
	}
	return nil
}
