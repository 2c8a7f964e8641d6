package session

import "fmt"

// Phase is the lifecycle state of the orchestrator. All changes go through
// the transition table below; there are no ad-hoc flag checks.
type Phase int32

const (
	// PhaseIdle means no session exists. Start is the only valid request.
	PhaseIdle Phase = iota
	// PhaseStarting means resources are being acquired and the connection
	// handshake is in flight.
	PhaseStarting
	// PhaseActive means the connection is ready and media is flowing.
	PhaseActive
	// PhaseStopping means teardown is in progress.
	PhaseStopping
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseActive:
		return "active"
	case PhaseStopping:
		return "stopping"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// validTransition is the single authority on phase changes. Anything not
// listed is rejected, which makes stop-while-idle and double-start no-ops by
// construction.
func validTransition(from, to Phase) bool {
	switch {
	case from == PhaseIdle && to == PhaseStarting:
		return true
	case from == PhaseStarting && to == PhaseActive:
		return true
	case from == PhaseStarting && to == PhaseStopping:
		return true
	case from == PhaseStarting && to == PhaseIdle: // failed start
		return true
	case from == PhaseActive && to == PhaseStopping:
		return true
	case from == PhaseStopping && to == PhaseIdle:
		return true
	}
	return false
}
