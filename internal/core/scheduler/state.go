package scheduler

import "fmt"

// State is the lifecycle state of a Scheduler.
type State int32

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// transitions is the complete edge list of the lifecycle. Stopped is also
// reachable from every other state (forced stop and finalization).
var transitions = map[State]State{
	Stopped:  Starting,
	Starting: Running,
	Running:  Stopping,
	Stopping: Stopped,
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to State) bool {
	if from == to {
		return false
	}
	if to == Stopped {
		return true
	}
	next, ok := transitions[from]
	return ok && next == to
}
