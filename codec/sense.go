package codec

import "fmt"

// SenseLen is the length of the 14-byte fixed sense data block returned for
// wValue 0x0300 (§4.1).
const SenseLen = 14

// Standard SCSI fixed-format sense keys this driver distinguishes by name;
// others are carried through as their raw nibble.
const (
	SenseKeyNoSense      = 0x0
	SenseKeyNotReady     = 0x2
	SenseKeyIllegalReq   = 0x5
	SenseKeyUnitAttn     = 0x6
	SenseKeyAbortedCmd   = 0xB
)

// SenseBlock is the 14-byte fixed-format sense block: response code(1),
// reserved(1), sense key(1, low nibble), information(4), additional
// length(1), command-specific information(4), ASC(1), ASCQ(1).
type SenseBlock struct {
	raw [SenseLen]byte
}

// DecodeSense validates the length of p and wraps it as a SenseBlock.
func DecodeSense(p []byte) (*SenseBlock, error) {
	if len(p) != SenseLen {
		return nil, fmt.Errorf("codec: sense block must be %d bytes, got %d", SenseLen, len(p))
	}
	b := &SenseBlock{}
	copy(b.raw[:], p)
	return b, nil
}

// Bytes returns the raw wire bytes.
func (b *SenseBlock) Bytes() []byte { return b.raw[:] }

// Key returns the sense key, masked to its low nibble.
func (b *SenseBlock) Key() byte { return b.raw[2] & 0x0F }

// ASC returns the additional sense code.
func (b *SenseBlock) ASC() byte { return b.raw[12] }

// ASCQ returns the additional sense code qualifier.
func (b *SenseBlock) ASCQ() byte { return b.raw[13] }

// IsNoSense reports whether this block carries no error (key 0, ASC 0,
// ASCQ 0) — the common case following a status phase with SensePresent
// false, or a defensive check after one that claimed sense was present.
func (b *SenseBlock) IsNoSense() bool {
	return b.Key() == SenseKeyNoSense && b.ASC() == 0 && b.ASCQ() == 0
}
