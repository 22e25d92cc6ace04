package command

import "fmt"

// Sentinel errors a caller can test for with errors.Is, following the
// andor/sdk2 convention of small package-scope sentinels.
var (
	// ErrCancelled reports that a scan in progress was cancelled.
	ErrCancelled = fmt.Errorf("command: cancelled")

	// ErrNoFilmHolder reports no holder mounted, or an unrecognised holder type.
	ErrNoFilmHolder = fmt.Errorf("command: no film holder mounted")

	// ErrDeviceBusy reports the device has not reached the idle state
	// test_unit_ready polls for.
	ErrDeviceBusy = fmt.Errorf("command: device busy")

	// ErrOutOfMemory reports the host ran out of buffer space for a bulk read.
	ErrOutOfMemory = fmt.Errorf("command: out of memory")
)

// TransportError wraps a failure from the transport layer itself: USB I/O,
// a short bulk transfer, or a timeout.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("command: %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// StatusMismatchError reports that the status phase echoed a different
// opcode than the one just issued. reserve_unit/release_unit are exempted
// from this check per the device's documented quirk (spec §4.1/§9).
type StatusMismatchError struct {
	Issued Opcode
	Echoed byte
}

func (e *StatusMismatchError) Error() string {
	return fmt.Sprintf("command: status echoed opcode %#02x for issued %#02x", e.Echoed, byte(e.Issued))
}

// SenseError reports a non-empty sense block returned after a command's
// status phase flagged one.
type SenseError struct {
	Key  byte
	ASC  byte
	ASCQ byte
}

func (e *SenseError) Error() string {
	return fmt.Sprintf("command: sense key=%#x asc=%#02x ascq=%#02x", e.Key, e.ASC, e.ASCQ)
}

// IsNotReady reports whether this sense error's key is the "not ready"
// key, which the error-handling design maps to a retryable busy condition.
func (e *SenseError) IsNotReady() bool { return e.Key == 0x02 }

// ProtocolError reports a malformed block length, an unrecognised holder
// type, or a frame index out of range for its holder.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return "command: protocol: " + e.Msg }
