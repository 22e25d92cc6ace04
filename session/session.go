/*Package session owns the device session lifecycle: the single active USB
handle, session parameters, the calibration table, and the feedback/abort
callback pair the scan orchestrator borrows.

Only one session exists process-wide; Open fails while another is active.
This is enforced here, not in the transport layer, per the re-architecture
note in spec.md §9: the restriction is a session-layer policy rather than
a correctness property the transport itself must maintain.
*/
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/nasa-jpl/fs4000scan/codec"
	"github.com/nasa-jpl/fs4000scan/command"
	"github.com/nasa-jpl/fs4000scan/scan"
	"github.com/nasa-jpl/fs4000scan/transport"
)

// readinessPollInterval paces the test_unit_ready wait in the open-time
// handshake below.
const readinessPollInterval = 500 * time.Millisecond

// Params are the session parameters of spec.md §3, with their documented
// defaults.
type Params struct {
	AGain           [3]uint16
	AOffset         [3]int
	Shutter         [3]uint16
	Boost           [3]uint16
	Speed           int
	InMode          int
	MaxShutter      uint16
	AutoExp         int
	Margin          int
	DisableShutters bool
}

// DefaultParams are the documented defaults from spec.md §3.
func DefaultParams() Params {
	return Params{
		AGain:      [3]uint16{47, 36, 36},
		AOffset:    [3]int{-25, -8, -5},
		Shutter:    [3]uint16{750, 352, 235},
		Boost:      [3]uint16{256, 256, 256},
		Speed:      2,
		InMode:     14,
		MaxShutter: 890,
		AutoExp:    2,
		Margin:     120,
	}
}

// Session is the single active context for one scanner.
type Session struct {
	mu sync.Mutex

	transport *transport.Transport
	params    Params
	cal       []scan.CalEntry

	feedback func(string)
	abort    func() bool

	state           scan.State
	buffer          *scan.Buffer
	stats           *scan.Stats
	cancelRequested bool
}

var (
	activeMu sync.Mutex
	active   *Session
)

// Open claims the process-wide scanner session. It fails if another
// session is already active (spec.md §3's "a second open fails"
// invariant), and otherwise opens the USB transport (retrying with
// exponential backoff inside transport.Open), runs the device readiness
// handshake, and initialises the calibration table to its documented
// neutral defaults.
func Open() (*Session, error) {
	activeMu.Lock()
	defer activeMu.Unlock()
	if active != nil {
		return nil, fmt.Errorf("session: a scanner session is already open")
	}

	tr, err := transport.Open()
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	if err := readinessHandshake(tr); err != nil {
		tr.Close()
		return nil, fmt.Errorf("session: %w", err)
	}

	s := &Session{
		transport: tr,
		params:    DefaultParams(),
		cal:       newCalibrationTable(),
		state:     scan.Idle,
	}
	active = s
	return s, nil
}

// readinessHandshake runs spec.md §4.5's open-time device confirmation: a
// first cancel (its documented ErrCancelled is expected, not a failure),
// an in_mode selection, a test_unit_ready wait, then a fetch and write-
// back of the lamp/film/scan-mode/window blocks to confirm the device
// accepts them before the session is handed to a caller. Grounded on
// fs4k_InitCommands in the original backend.
func readinessHandshake(t transport.Executor) error {
	if err := command.Cancel(t); err != nil && err != command.ErrCancelled {
		return fmt.Errorf("initial cancel: %w", err)
	}
	if _, err := codec.BitsCodeFor(DefaultParams().InMode); err != nil {
		return fmt.Errorf("select in_mode: %w", err)
	}

	for {
		err := command.TestUnitReady(t)
		if err == nil {
			break
		}
		if err != command.ErrDeviceBusy {
			return fmt.Errorf("test_unit_ready: %w", err)
		}
		time.Sleep(readinessPollInterval)
	}

	if _, err := command.GetLamp(t); err != nil {
		return fmt.Errorf("get_lamp: %w", err)
	}
	if _, err := command.GetFilmStatus(t); err != nil {
		return fmt.Errorf("get_film_status: %w", err)
	}
	mode, err := command.GetScanMode(t)
	if err != nil {
		return fmt.Errorf("get_scan_mode: %w", err)
	}
	if err := command.PutScanMode(t, mode); err != nil {
		return fmt.Errorf("put_scan_mode: %w", err)
	}
	window, err := command.GetWindow(t)
	if err != nil {
		return fmt.Errorf("get_window: %w", err)
	}
	if err := command.PutWindow(t, window); err != nil {
		return fmt.Errorf("put_window: %w", err)
	}
	return nil
}

func newCalibrationTable() []scan.CalEntry {
	cal := make([]scan.CalEntry, scan.CalibrationEntries)
	for i := range cal {
		cal[i] = scan.DefaultCalEntry
	}
	return cal
}

// Close releases the USB transport and frees the process-wide session
// slot. Safe to call more than once.
func (s *Session) Close() error {
	activeMu.Lock()
	defer activeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if active != s {
		return nil
	}
	active = nil
	if s.transport == nil {
		return nil
	}
	err := s.transport.Close()
	s.transport = nil
	return err
}

// SetFeedback installs the advisory progress/warning callback the
// orchestrator calls from its own thread.
func (s *Session) SetFeedback(f func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = f
}

// SetAbort installs the cancellation-poll callback, which must be safe to
// call from any context.
func (s *Session) SetAbort(f func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abort = f
}

// Params returns a copy of the current session parameters.
func (s *Session) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// SetParams replaces the session parameters wholesale; callers read-modify-
// write via Params().
func (s *Session) SetParams(p Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
}

// State reports the current position in the scan state machine.
func (s *Session) State() scan.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Inquiry issues INQUIRY against the open device.
func (s *Session) Inquiry() (*codec.InquiryBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inq, err := command.Inquiry(s.transport)
	if err == nil && !inq.IsCanonical() && s.feedback != nil {
		s.feedback(fmt.Sprintf("inquiry: unexpected vendor %q product %q", inq.Vendor(), inq.Product()))
	}
	return inq, err
}

// Scan runs a full acquisition for frameIndex. The session is Armed for the
// whole orchestrator run (it does not enter Reading) and moves to Drained
// on success, or straight back to Idle on abort or error once the
// orchestrator's release path has run. The acquired buffer is retained
// until Drain or until a later successful Scan replaces it.
func (s *Session) Scan(frameIndex int, autoExpose bool) error {
	s.mu.Lock()
	p := s.params
	cal := s.cal
	fb := s.feedback
	extAbort := s.abort
	tr := s.transport
	s.state = scan.Armed
	s.cancelRequested = false
	s.mu.Unlock()

	// ab folds in the session's own Cancel() request alongside whatever
	// external abort callback the caller installed via SetAbort, so that
	// Cancel() is observable at Run's between-chunk abort poll even when
	// no external callback is wired (spec.md §4.6/§5).
	ab := func() bool {
		s.mu.Lock()
		requested := s.cancelRequested
		s.mu.Unlock()
		return requested || (extAbort != nil && extAbort())
	}

	sp := scan.Params{
		AGain:           p.AGain,
		AOffset:         p.AOffset,
		Shutter:         p.Shutter,
		Boost:           p.Boost,
		Speed:           p.Speed,
		InMode:          p.InMode,
		MaxShutter:      p.MaxShutter,
		AutoExpSpeed:    p.AutoExp,
		Margin:          p.Margin,
		DisableShutters: p.DisableShutters,
		Cal:             cal,
	}

	res, err := scan.Run(tr, sp, frameIndex, autoExpose, scan.Callbacks{Feedback: fb, Abort: ab})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelRequested = false
	if err != nil {
		// Run's own release path (set_frame(0), home carriage, LED off,
		// release_unit) has already executed by the time it returns, on
		// every exit after reserve_unit succeeded, including cancellation
		// and sense errors, so the session is immediately
		// ready for the next Open/Scan rather than left parked in
		// Cancelled (spec.md §8's release-path scenario).
		s.state = scan.Idle
		return err
	}
	s.buffer = res.Buffer
	s.stats = res.Stats
	s.state = res.State
	return nil
}

// Drain returns the acquired buffer and transitions the session back to
// Idle. Calling Drain when no buffer is available returns (nil, false).
func (s *Session) Drain() (*scan.Buffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buffer == nil {
		return nil, false
	}
	buf := s.buffer
	s.buffer = nil
	s.state = scan.Idle
	return buf, true
}

// Cancel requests cancellation of an in-flight scan. Repeated Cancel from
// Idle is a no-op, per spec.md §8. The request is observed by the abort
// poll an in-flight Scan's orchestrator run is already checking between
// chunks; Scan's own exit resolves the session straight back to Idle once
// the release path completes.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == scan.Idle {
		return
	}
	s.cancelRequested = true
}
