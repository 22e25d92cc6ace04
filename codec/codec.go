/*Package codec packs and unpacks the fixed, big-endian, byte-packed
wire blocks exchanged with the scanner.

Every block here is kept as a raw byte slice with named accessors at fixed
offsets, rather than as a native Go struct, so that reserved and
vendor-private bytes round-trip unchanged across a read-modify-write cycle:
a caller decodes a block, mutates one or two named fields through the
accessors below, and re-encodes the same bytes elsewhere in the block
untouched. None of these types reorder fields or introduce padding; Go
struct layout is implementation-defined and would silently break that
contract, so offsets are computed by hand against encoding/binary.
*/
package codec

import "encoding/binary"

// Opcode identifies a SCSI command by its first CDB byte.
type Opcode byte

// Opcodes, bit-exact to the command set this device accepts.
const (
	OpTestUnitReady   Opcode = 0x00
	OpRequestSense    Opcode = 0x03
	OpInquiry         Opcode = 0x12
	OpReserveUnit     Opcode = 0x16
	OpReleaseUnit     Opcode = 0x17
	OpSetWindow       Opcode = 0x24
	OpGetWindow       Opcode = 0x25
	OpRead            Opcode = 0x28
	OpScan            Opcode = 0x2A
	OpMovePosition    Opcode = 0x2B
	OpExecuteAFAE     Opcode = 0x2C
	OpGetStatus       Opcode = 0xC5
	OpGetScanMode     Opcode = 0xD5
	OpPutScanMode     Opcode = 0xD6
	OpGetFilmStatus   Opcode = 0xD8
	OpGetDataStatus   Opcode = 0xD9
	OpReserveVariant  Opcode = 0xE4
	OpControlLED      Opcode = 0xE6
	OpSetFrame        Opcode = 0xE7
	OpSetLamp         Opcode = 0xE8
)

// CDBLen returns the command descriptor block length for opcodes this
// driver issues, and false for any opcode outside the accepted set.
func CDBLen(op Opcode) (int, bool) {
	switch op {
	case OpTestUnitReady, OpRequestSense, OpInquiry, OpReserveUnit, OpReleaseUnit,
		OpReserveVariant, OpControlLED, OpSetFrame, OpSetLamp:
		return 6, true
	case OpSetWindow, OpGetWindow, OpRead, OpScan, OpMovePosition, OpExecuteAFAE,
		OpGetScanMode, OpPutScanMode, OpGetFilmStatus, OpGetDataStatus:
		return 10, true
	case OpGetStatus:
		return 4, true
	default:
		return 0, false
	}
}

// be16 / be32 are tiny wrappers kept local so every block decodes with
// the same idiom: encoding/binary.BigEndian, never a hand-rolled shift.
func be16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func be32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func putBE16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func putBE32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
