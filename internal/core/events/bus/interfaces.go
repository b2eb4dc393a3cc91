package bus

// TickListener observes every simulation step of a scheduler.
//
// Key characteristics:
// - BeforeStep runs before the field hooks of a tick, AfterStep after them.
// - Both hooks run synchronously on the scheduler goroutine; a slow listener
//   lengthens the tick it runs in.
// - A returned error or a panic is logged by the bus and isolated to that
//   listener; the remaining listeners and the tick itself are unaffected.
// - Listeners are identified by pointer. The bus rejects any other kind.
type TickListener interface {
	BeforeStep() error
	AfterStep() error
}

// ListenerFuncs adapts a pair of closures to TickListener. Nil hooks are no-ops.
// Register a pointer (&ListenerFuncs{...}) so it can later be unregistered by identity.
type ListenerFuncs struct {
	Before func() error
	After  func() error
}

func (f *ListenerFuncs) BeforeStep() error {
	if f.Before == nil {
		return nil
	}
	return f.Before()
}

func (f *ListenerFuncs) AfterStep() error {
	if f.After == nil {
		return nil
	}
	return f.After()
}

// Phase names the hook being broadcast.
type Phase uint8

const (
	PhaseBeforeStep Phase = iota
	PhaseAfterStep
)

func (p Phase) String() string {
	switch p {
	case PhaseBeforeStep:
		return "before_step"
	case PhaseAfterStep:
		return "after_step"
	default:
		return "unknown"
	}
}

// Metrics is a best-effort snapshot of bus counters.
type Metrics struct {
	Broadcasts  uint64
	Invocations uint64
	Failures    uint64
	Listeners   int
}
