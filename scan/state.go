package scan

// State is a position in the scan orchestrator's state machine.
type State int

// States, per spec §4.4:
//
//	Idle --arm--> Armed --scan_started--> Reading --drained--> Drained --ack--> Idle
//	                   \--cancel--> Cancelled --> Idle
const (
	Idle State = iota
	Armed
	Reading
	Drained
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Armed:
		return "Armed"
	case Reading:
		return "Reading"
	case Drained:
		return "Drained"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}
