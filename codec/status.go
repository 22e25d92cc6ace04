package codec

import "fmt"

// StatusLen is the length of the 4-byte status phase block returned for
// wValue 0xC500 (§4.1).
const StatusLen = 4

// StatusBlock is the 4-byte status phase block: the echoed opcode of the
// command just executed, a sense-present flag, and 2 reserved bytes.
type StatusBlock struct {
	raw [StatusLen]byte
}

// DecodeStatus validates the length of p and wraps it as a StatusBlock.
func DecodeStatus(p []byte) (*StatusBlock, error) {
	if len(p) != StatusLen {
		return nil, fmt.Errorf("codec: status block must be %d bytes, got %d", StatusLen, len(p))
	}
	b := &StatusBlock{}
	copy(b.raw[:], p)
	return b, nil
}

// Bytes returns the raw wire bytes.
func (b *StatusBlock) Bytes() []byte { return b.raw[:] }

// Opcode returns the opcode of the command this status describes.
func (b *StatusBlock) Opcode() Opcode { return Opcode(b.raw[0]) }

// SensePresent reports whether a request-sense phase should follow.
func (b *StatusBlock) SensePresent() bool { return b.raw[1] != 0 }
