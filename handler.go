package statetab

// EventHandler is the port through which the machine reaches its timer
// and wake-signal collaborator. The engine owns no event loop of its own:
// Start hands control to Init, timeouts are armed through TimerStart, and
// pass-states and inner transitions are dispatched through RaiseSignal.
type EventHandler[ST ~int, EV ~int, CBA any] interface {
	// Init blocks running the event loop and returns only after
	// TimerKill has been called.
	Init(m *Machine[ST, EV, CBA])

	// TimerStart reads the timeout of the machine's current state and
	// arms a one-shot timer. On expiry the handler calls back into
	// ProcessTimeout; a cancelled timer does nothing.
	TimerStart(m *Machine[ST, EV, CBA])

	// TimerCancel cancels the currently armed timer, if any. Safe to
	// call when none is armed.
	TimerCancel()

	// TimerKill stops the blocking Init loop and drops pending work.
	TimerKill()

	// RaiseSignal schedules ProcessInnerEvent to run on the loop.
	RaiseSignal()
}

// NoopHandler is the event handler for machines that use neither timers
// nor signals. Machines built with it reject the timer-configuring APIs
// at configuration time.
type NoopHandler[ST ~int, EV ~int, CBA any] struct{}

func (NoopHandler[ST, EV, CBA]) Init(*Machine[ST, EV, CBA])       {}
func (NoopHandler[ST, EV, CBA]) TimerStart(*Machine[ST, EV, CBA]) {}
func (NoopHandler[ST, EV, CBA]) TimerCancel()                     {}
func (NoopHandler[ST, EV, CBA]) TimerKill()                       {}
func (NoopHandler[ST, EV, CBA]) RaiseSignal()                     {}
