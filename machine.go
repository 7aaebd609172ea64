package statetab

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// timerEvent holds the timeout descriptor of a state. Every state carries
// one; when enabled is false the other fields are meaningless.
type timerEvent[ST ~int] struct {
	nextState ST
	duration  uint64
	unit      DurationUnit
	enabled   bool
}

// innerTransition is a transition effective only while its active flag is
// set by ActivateInnerEvent. The flag is toggled at run time, never at
// configuration time.
type innerTransition[ST ~int, EV ~int] struct {
	event  EV
	dest   ST
	active bool
}

// stateInfo holds the per-state configuration: timeout, callback,
// pass-state marker and inner transitions.
type stateInfo[ST ~int, EV ~int, CBA any] struct {
	timer       timerEvent[ST]
	callback    func(CBA)
	callbackArg CBA
	isPassState bool
	passNext    ST
	inner       []innerTransition[ST, EV]
}

// Machine is a finite state machine over the identifier domains ST and EV.
// ST and EV are user-defined integer types whose values run contiguously
// from 0; their cardinalities are fixed at construction. CBA is the value
// type passed to per-state callbacks.
//
// The configuration is mutable until Start succeeds; afterwards it is
// frozen and only the run-time methods may be called. State 0 is the
// initial state.
type Machine[ST ~int, EV ~int, CBA any] struct {
	id       string
	nbStates int
	nbEvents int

	// Transition table: rows are events, columns are states. next holds
	// the target state, allowed gates whether the event is handled.
	next    [][]ST
	allowed [][]bool

	states      []stateInfo[ST, EV, CBA]
	stateStrs   []string // nbStates entries
	eventStrs   []string // nbEvents+2 entries, last two label Timeout and AAT
	defaultUnit DurationUnit
	ignoredCB   func(ST, EV)

	handler      EventHandler[ST, EV, CBA]
	timerSupport bool
	externalLoop bool
	verbose      bool

	logger *log.Logger
	runLog *RunLogger

	mu      sync.Mutex
	current ST
	running bool
}

// Option configures a Machine at construction.
type Option[ST ~int, EV ~int, CBA any] func(*Machine[ST, EV, CBA])

// WithHandler attaches an event handler providing timers and wake
// signals. Machines built without one, or with a NoopHandler, reject the
// timer-configuring APIs.
func WithHandler[ST ~int, EV ~int, CBA any](h EventHandler[ST, EV, CBA]) Option[ST, EV, CBA] {
	return func(m *Machine[ST, EV, CBA]) {
		m.handler = h
		_, noop := h.(NoopHandler[ST, EV, CBA])
		m.timerSupport = !noop
	}
}

// WithExternalEventLoop marks the event loop as host-owned: Start will not
// call the handler's blocking Init.
func WithExternalEventLoop[ST ~int, EV ~int, CBA any]() Option[ST, EV, CBA] {
	return func(m *Machine[ST, EV, CBA]) {
		m.externalLoop = true
	}
}

// WithLogger replaces the diagnostic logger. Validator warnings and, in
// verbose mode, state tracing go through it.
func WithLogger[ST ~int, EV ~int, CBA any](l *log.Logger) Option[ST, EV, CBA] {
	return func(m *Machine[ST, EV, CBA]) {
		m.logger = l
	}
}

// WithRunLogger attaches a run logger collecting counters and the CSV
// transition history.
func WithRunLogger[ST ~int, EV ~int, CBA any](rl *RunLogger) Option[ST, EV, CBA] {
	return func(m *Machine[ST, EV, CBA]) {
		m.runLog = rl
	}
}

// WithVerbose enables debug-level state tracing on the diagnostic logger.
func WithVerbose[ST ~int, EV ~int, CBA any]() Option[ST, EV, CBA] {
	return func(m *Machine[ST, EV, CBA]) {
		m.verbose = true
	}
}

// New creates a machine with nbStates states and nbEvents events.
// nbStates must be at least 2; nbEvents may be 0 for purely timer- and
// signal-driven machines.
func New[ST ~int, EV ~int, CBA any](nbStates, nbEvents int, opts ...Option[ST, EV, CBA]) (*Machine[ST, EV, CBA], error) {
	const op = "New"
	if nbStates < 2 {
		return nil, newConfigError(op, "at least two states required, got %d", nbStates)
	}
	if nbEvents < 0 {
		return nil, newConfigError(op, "negative event count %d", nbEvents)
	}

	m := &Machine[ST, EV, CBA]{
		id:          uuid.New().String(),
		nbStates:    nbStates,
		nbEvents:    nbEvents,
		next:        make([][]ST, nbEvents),
		allowed:     make([][]bool, nbEvents),
		states:      make([]stateInfo[ST, EV, CBA], nbStates),
		stateStrs:   make([]string, nbStates),
		eventStrs:   make([]string, nbEvents+2),
		defaultUnit: UnitSec,
		handler:     NoopHandler[ST, EV, CBA]{},
	}
	for e := range m.next {
		m.next[e] = make([]ST, nbStates)
		m.allowed[e] = make([]bool, nbStates)
	}
	for i := range m.stateStrs {
		m.stateStrs[i] = fmt.Sprintf("St-%d", i)
	}
	for i := 0; i < nbEvents; i++ {
		m.eventStrs[i] = fmt.Sprintf("Ev-%d", i)
	}
	m.eventStrs[nbEvents] = "*Timeout*"
	m.eventStrs[nbEvents+1] = "*  AAT  *"

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: libName})
	}
	if m.verbose {
		m.logger.SetLevel(log.DebugLevel)
	}
	m.logger = m.logger.With("fsm", m.id[:8])

	if m.runLog != nil {
		m.runLog.bind(nbStates, nbEvents, m.StateLabel, m.EventLabel)
	}
	return m, nil
}

// ID returns the unique identifier assigned to this machine instance.
func (m *Machine[ST, EV, CBA]) ID() string { return m.id }

// NbStates returns the number of states.
func (m *Machine[ST, EV, CBA]) NbStates() int { return m.nbStates }

// NbEvents returns the number of external events.
func (m *Machine[ST, EV, CBA]) NbEvents() int { return m.nbEvents }

// CurrentState returns the current state.
func (m *Machine[ST, EV, CBA]) CurrentState() ST {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// IsRunning reports whether Start has succeeded and Stop has not been
// called since.
func (m *Machine[ST, EV, CBA]) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// TimeoutDuration returns the timeout duration and unit configured on st,
// or (0, default unit) when st has no enabled timeout.
func (m *Machine[ST, EV, CBA]) TimeoutDuration(st ST) (uint64, DurationUnit) {
	if int(st) < 0 || int(st) >= m.nbStates {
		return 0, m.defaultUnit
	}
	te := m.states[int(st)].timer
	if !te.enabled {
		return 0, m.defaultUnit
	}
	return te.duration, te.unit
}

// StateString returns the label configured for st, or "" when st is out
// of range.
func (m *Machine[ST, EV, CBA]) StateString(st ST) string {
	return m.StateLabel(int(st))
}

// EventString returns the label configured for ev, or "" when ev is out
// of range.
func (m *Machine[ST, EV, CBA]) EventString(ev EV) string {
	return m.EventLabel(int(ev))
}

// BuildOptions reports the construction options resolved for this
// machine, one per line.
func (m *Machine[ST, EV, CBA]) BuildOptions() string {
	var b strings.Builder
	yn := func(v bool) string {
		if v {
			return "yes"
		}
		return "no"
	}
	fmt.Fprintf(&b, "%s version %s\n", libName, Version)
	fmt.Fprintf(&b, "machine id: %s\n", m.id)
	b.WriteString("Build options:\n")
	fmt.Fprintf(&b, "timer support = %s\n", yn(m.timerSupport))
	fmt.Fprintf(&b, "external event loop = %s\n", yn(m.externalLoop))
	fmt.Fprintf(&b, "run logging = %s\n", yn(m.runLog != nil))
	fmt.Fprintf(&b, "verbose tracing = %s\n", yn(m.verbose))
	return b.String()
}

// Index-based introspection. These back the DOT exporter and the run
// logger without exposing the generic identifier types.

// CurrentStateIndex returns the current state as a plain index.
func (m *Machine[ST, EV, CBA]) CurrentStateIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int(m.current)
}

// TransitionTarget returns the target of the external transition (ev, st)
// and whether the transition is allowed. Indices out of range report not
// allowed.
func (m *Machine[ST, EV, CBA]) TransitionTarget(ev, st int) (int, bool) {
	if ev < 0 || ev >= m.nbEvents || st < 0 || st >= m.nbStates {
		return 0, false
	}
	return int(m.next[ev][st]), m.allowed[ev][st]
}

// PassTarget returns the pass-state successor of st, if st is a
// pass-state.
func (m *Machine[ST, EV, CBA]) PassTarget(st int) (int, bool) {
	if st < 0 || st >= m.nbStates || !m.states[st].isPassState {
		return 0, false
	}
	return int(m.states[st].passNext), true
}

// TimeoutTarget returns the timeout successor, duration and unit of st,
// if st has an enabled timeout.
func (m *Machine[ST, EV, CBA]) TimeoutTarget(st int) (next int, dur uint64, unit string, ok bool) {
	if st < 0 || st >= m.nbStates {
		return 0, 0, "", false
	}
	te := m.states[st].timer
	if !te.enabled {
		return 0, 0, "", false
	}
	return int(te.nextState), te.duration, te.unit.String(), true
}

// InnerTargets returns the (event, destination) pairs of the inner
// transitions configured on st, in configuration order.
func (m *Machine[ST, EV, CBA]) InnerTargets(st int) [][2]int {
	if st < 0 || st >= m.nbStates {
		return nil
	}
	out := make([][2]int, 0, len(m.states[st].inner))
	for _, it := range m.states[st].inner {
		out = append(out, [2]int{int(it.event), int(it.dest)})
	}
	return out
}

// StateLabel returns the label of the state at index i, or "" when out of
// range.
func (m *Machine[ST, EV, CBA]) StateLabel(i int) string {
	if i < 0 || i >= m.nbStates {
		return ""
	}
	return m.stateStrs[i]
}

// EventLabel returns the label of the event at index i. Indices nbEvents
// and nbEvents+1 name the synthetic Timeout and AAT events.
func (m *Machine[ST, EV, CBA]) EventLabel(i int) string {
	if i < 0 || i >= len(m.eventStrs) {
		return ""
	}
	return m.eventStrs[i]
}

// stateName renders a state index with its label for diagnostics.
func (m *Machine[ST, EV, CBA]) stateName(st ST) string {
	return fmt.Sprintf("%d (%s)", int(st), m.stateStrs[int(st)])
}

// eventName renders an event index with its label for diagnostics.
func (m *Machine[ST, EV, CBA]) eventName(ev EV) string {
	return fmt.Sprintf("%d (%s)", int(ev), m.eventStrs[int(ev)])
}

// checkState validates a state index.
func (m *Machine[ST, EV, CBA]) checkState(op string, st ST) error {
	if int(st) < 0 || int(st) >= m.nbStates {
		return newConfigError(op, "state index %d out of range [0,%d)", int(st), m.nbStates)
	}
	return nil
}

// checkEvent validates an event index.
func (m *Machine[ST, EV, CBA]) checkEvent(op string, ev EV) error {
	if int(ev) < 0 || int(ev) >= m.nbEvents {
		return newConfigError(op, "event index %d out of range [0,%d)", int(ev), m.nbEvents)
	}
	return nil
}

// checkFrozen rejects configuration once the machine is running.
func (m *Machine[ST, EV, CBA]) checkFrozen(op string) error {
	if m.running {
		return newConfigError(op, "machine is running, configuration is frozen")
	}
	return nil
}

// checkTimerSupport rejects timer configuration on machines built without
// a timer-capable event handler.
func (m *Machine[ST, EV, CBA]) checkTimerSupport(op string) error {
	if !m.timerSupport {
		return newConfigError(op, "machine built without timer support")
	}
	return nil
}
