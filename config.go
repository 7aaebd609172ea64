package statetab

// Configuration API. Every method validates its indices against the
// machine cardinalities and returns a ConfigError on violation. The
// configuration is frozen once Start succeeds.

// AssignTransition wires the external transition: when ev occurs on state
// from, the machine switches to state to. The transition is marked
// allowed. Fails when from is a pass-state.
func (m *Machine[ST, EV, CBA]) AssignTransition(from ST, ev EV, to ST) error {
	const op = "AssignTransition"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	if err := m.checkState(op, from); err != nil {
		return err
	}
	if err := m.checkState(op, to); err != nil {
		return err
	}
	if err := m.checkEvent(op, ev); err != nil {
		return err
	}
	if m.states[int(from)].isPassState {
		return newConfigError(op, "state %s is a pass-state and cannot carry external transitions", m.stateName(from))
	}
	m.next[int(ev)][int(from)] = to
	m.allowed[int(ev)][int(from)] = true
	return nil
}

// AssignTransitionAlways wires ev to switch to state to from every state.
// Pass-states are skipped.
func (m *Machine[ST, EV, CBA]) AssignTransitionAlways(ev EV, to ST) error {
	const op = "AssignTransitionAlways"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	if err := m.checkState(op, to); err != nil {
		return err
	}
	if err := m.checkEvent(op, ev); err != nil {
		return err
	}
	for s := 0; s < m.nbStates; s++ {
		if m.states[s].isPassState {
			m.logger.Debug("broadcast transition skips pass-state", "state", s, "event", int(ev))
			continue
		}
		m.next[int(ev)][s] = to
		m.allowed[int(ev)][s] = true
	}
	return nil
}

// AssignPassTransition marks from as a pass-state: once entered, after its
// callback, the machine immediately switches to state to through the
// signal channel. Any timeout or inner transitions configured on from are
// cleared with a warning.
func (m *Machine[ST, EV, CBA]) AssignPassTransition(from, to ST) error {
	const op = "AssignPassTransition"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	if err := m.checkState(op, from); err != nil {
		return err
	}
	if err := m.checkState(op, to); err != nil {
		return err
	}
	if from == to {
		return newConfigError(op, "pass-state %s cannot lead to itself", m.stateName(from))
	}
	si := &m.states[int(from)]
	if si.timer.enabled {
		m.logger.Warn("pass-state assignment clears existing timeout", "state", m.stateName(from))
		si.timer = timerEvent[ST]{}
	}
	if len(si.inner) > 0 {
		m.logger.Warn("pass-state assignment clears inner transitions", "state", m.stateName(from), "count", len(si.inner))
		si.inner = nil
	}
	si.isPassState = true
	si.passNext = to
	return nil
}

// AssignInnerTransition appends the inner transition (ev, to) to state
// from. Inner transitions fire through the signal channel once activated
// by ActivateInnerEvent. The external table entry (ev, from) is updated
// alongside. Fails when from is a pass-state or when ev is already wired
// as an inner transition on from.
func (m *Machine[ST, EV, CBA]) AssignInnerTransition(from ST, ev EV, to ST) error {
	const op = "AssignInnerTransition"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	if err := m.checkState(op, from); err != nil {
		return err
	}
	if err := m.checkState(op, to); err != nil {
		return err
	}
	if err := m.checkEvent(op, ev); err != nil {
		return err
	}
	if m.states[int(from)].isPassState {
		return newConfigError(op, "state %s is a pass-state and cannot carry inner transitions", m.stateName(from))
	}
	for _, it := range m.states[int(from)].inner {
		if it.event == ev {
			return newConfigError(op, "state %s already has an inner transition on event %s", m.stateName(from), m.eventName(ev))
		}
	}
	m.states[int(from)].inner = append(m.states[int(from)].inner, innerTransition[ST, EV]{event: ev, dest: to})
	m.next[int(ev)][int(from)] = to
	m.allowed[int(ev)][int(from)] = true
	return nil
}

// AssignInnerTransitionAlways appends the inner transition (ev, to) to
// every state except to itself. States already carrying an inner
// transition on ev and pass-states are skipped.
func (m *Machine[ST, EV, CBA]) AssignInnerTransitionAlways(ev EV, to ST) error {
	const op = "AssignInnerTransitionAlways"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	if err := m.checkState(op, to); err != nil {
		return err
	}
	if err := m.checkEvent(op, ev); err != nil {
		return err
	}
	for s := 0; s < m.nbStates; s++ {
		if ST(s) == to || m.states[s].isPassState {
			continue
		}
		exists := false
		for _, it := range m.states[s].inner {
			if it.event == ev {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		m.states[s].inner = append(m.states[s].inner, innerTransition[ST, EV]{event: ev, dest: to})
		m.next[int(ev)][s] = to
		m.allowed[int(ev)][s] = true
	}
	return nil
}

// DisableInnerTransition removes the inner transition on state from whose
// event is ev, and clears the matching allow-mask entry. Fails when no
// such inner transition exists.
func (m *Machine[ST, EV, CBA]) DisableInnerTransition(ev EV, from ST) error {
	const op = "DisableInnerTransition"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	if err := m.checkState(op, from); err != nil {
		return err
	}
	if err := m.checkEvent(op, ev); err != nil {
		return err
	}
	si := &m.states[int(from)]
	for i, it := range si.inner {
		if it.event == ev {
			si.inner = append(si.inner[:i], si.inner[i+1:]...)
			m.allowed[int(ev)][int(from)] = false
			return nil
		}
	}
	return newConfigError(op, "state %s has no inner transition on event %s", m.stateName(from), m.eventName(ev))
}

// AssignTimeout arms a timeout on state from: after dur counts of the
// default unit the machine switches to state to.
func (m *Machine[ST, EV, CBA]) AssignTimeout(from ST, dur uint64, to ST) error {
	return m.assignTimeout("AssignTimeout", from, dur, m.defaultUnit, to)
}

// AssignTimeoutUnit arms a timeout on state from with an explicit unit.
func (m *Machine[ST, EV, CBA]) AssignTimeoutUnit(from ST, dur uint64, unit DurationUnit, to ST) error {
	return m.assignTimeout("AssignTimeoutUnit", from, dur, unit, to)
}

// AssignTimeoutString arms a timeout on state from with the unit given in
// its textual form ("ms", "sec" or "min").
func (m *Machine[ST, EV, CBA]) AssignTimeoutString(from ST, dur uint64, unit string, to ST) error {
	u, err := ParseDurationUnit(unit)
	if err != nil {
		return err
	}
	return m.assignTimeout("AssignTimeoutString", from, dur, u, to)
}

func (m *Machine[ST, EV, CBA]) assignTimeout(op string, from ST, dur uint64, unit DurationUnit, to ST) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	if err := m.checkTimerSupport(op); err != nil {
		return err
	}
	if err := m.checkState(op, from); err != nil {
		return err
	}
	if err := m.checkState(op, to); err != nil {
		return err
	}
	if m.states[int(from)].isPassState {
		return newConfigError(op, "state %s is a pass-state and cannot carry a timeout", m.stateName(from))
	}
	m.states[int(from)].timer = timerEvent[ST]{nextState: to, duration: dur, unit: unit, enabled: true}
	return nil
}

// AssignGlobalTimeout arms a timeout of dur default units on every state
// except final, each leading to final. Fails when any such state already
// carries a timeout; pass-states are skipped.
func (m *Machine[ST, EV, CBA]) AssignGlobalTimeout(dur uint64, final ST) error {
	return m.assignGlobalTimeout("AssignGlobalTimeout", dur, m.defaultUnit, final)
}

// AssignGlobalTimeoutUnit is AssignGlobalTimeout with an explicit unit.
func (m *Machine[ST, EV, CBA]) AssignGlobalTimeoutUnit(dur uint64, unit DurationUnit, final ST) error {
	return m.assignGlobalTimeout("AssignGlobalTimeoutUnit", dur, unit, final)
}

func (m *Machine[ST, EV, CBA]) assignGlobalTimeout(op string, dur uint64, unit DurationUnit, final ST) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	if err := m.checkTimerSupport(op); err != nil {
		return err
	}
	if err := m.checkState(op, final); err != nil {
		return err
	}
	for s := 0; s < m.nbStates; s++ {
		if ST(s) != final && m.states[s].timer.enabled {
			return newConfigError(op, "state %s already has a timeout", m.stateName(ST(s)))
		}
	}
	for s := 0; s < m.nbStates; s++ {
		if ST(s) == final || m.states[s].isPassState {
			continue
		}
		m.states[s].timer = timerEvent[ST]{nextState: final, duration: dur, unit: unit, enabled: true}
	}
	return nil
}

// ClearTimeout disables the timeout on state from. A warning is emitted
// when from has no timeout to clear.
func (m *Machine[ST, EV, CBA]) ClearTimeout(from ST) error {
	const op = "ClearTimeout"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	if err := m.checkState(op, from); err != nil {
		return err
	}
	if !m.states[int(from)].timer.enabled {
		m.logger.Warn("no timeout to clear", "state", m.stateName(from))
		return nil
	}
	m.states[int(from)].timer = timerEvent[ST]{}
	return nil
}

// ClearTimeouts disables the timeouts on all states.
func (m *Machine[ST, EV, CBA]) ClearTimeouts() error {
	const op = "ClearTimeouts"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	for s := range m.states {
		m.states[s].timer = timerEvent[ST]{}
	}
	return nil
}

// AllowEvent flips the allow-mask entry for (ev, from). Forbidden when
// (ev, from) names an existing inner transition.
func (m *Machine[ST, EV, CBA]) AllowEvent(from ST, ev EV, allowed bool) error {
	const op = "AllowEvent"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	if err := m.checkState(op, from); err != nil {
		return err
	}
	if err := m.checkEvent(op, ev); err != nil {
		return err
	}
	for _, it := range m.states[int(from)].inner {
		if it.event == ev {
			return newConfigError(op, "event %s is wired as an inner transition on state %s", m.eventName(ev), m.stateName(from))
		}
	}
	m.allowed[int(ev)][int(from)] = allowed
	return nil
}

// AllowAllEvents sets every allow-mask entry to true.
func (m *Machine[ST, EV, CBA]) AllowAllEvents() error {
	const op = "AllowAllEvents"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	for e := range m.allowed {
		for s := range m.allowed[e] {
			m.allowed[e][s] = true
		}
	}
	return nil
}

// AssignCallback sets the on-entry callback of state st together with its
// argument.
func (m *Machine[ST, EV, CBA]) AssignCallback(st ST, fn func(CBA), arg CBA) error {
	const op = "AssignCallback"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	if err := m.checkState(op, st); err != nil {
		return err
	}
	m.states[int(st)].callback = fn
	m.states[int(st)].callbackArg = arg
	return nil
}

// AssignGlobalCallback sets fn as the on-entry callback of every state.
// Callback arguments are left untouched.
func (m *Machine[ST, EV, CBA]) AssignGlobalCallback(fn func(CBA)) error {
	const op = "AssignGlobalCallback"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	for s := range m.states {
		m.states[s].callback = fn
	}
	return nil
}

// AssignCallbackArg sets the callback argument of state st.
func (m *Machine[ST, EV, CBA]) AssignCallbackArg(st ST, arg CBA) error {
	const op = "AssignCallbackArg"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	if err := m.checkState(op, st); err != nil {
		return err
	}
	m.states[int(st)].callbackArg = arg
	return nil
}

// AssignCallbackArgStrings copies each state's label into its callback
// argument. Only meaningful when CBA is a string type; otherwise a
// warning is emitted and nothing changes.
func (m *Machine[ST, EV, CBA]) AssignCallbackArgStrings() error {
	const op = "AssignCallbackArgStrings"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	for s := range m.states {
		arg, ok := any(m.stateStrs[s]).(CBA)
		if !ok {
			m.logger.Warn("callback argument type is not string, labels not assigned")
			return nil
		}
		m.states[s].callbackArg = arg
	}
	return nil
}

// AssignIgnoredEventsCallback sets the callback invoked when an event is
// ignored because its allow-mask entry is false.
func (m *Machine[ST, EV, CBA]) AssignIgnoredEventsCallback(fn func(ST, EV)) error {
	const op = "AssignIgnoredEventsCallback"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	m.ignoredCB = fn
	return nil
}

// AssignStateString sets the label of state st.
func (m *Machine[ST, EV, CBA]) AssignStateString(st ST, s string) error {
	const op = "AssignStateString"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	if err := m.checkState(op, st); err != nil {
		return err
	}
	m.stateStrs[int(st)] = s
	return nil
}

// AssignEventString sets the label of event ev.
func (m *Machine[ST, EV, CBA]) AssignEventString(ev EV, s string) error {
	const op = "AssignEventString"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	if err := m.checkEvent(op, ev); err != nil {
		return err
	}
	m.eventStrs[int(ev)] = s
	return nil
}

// AssignStateStrings sets state labels in batch.
func (m *Machine[ST, EV, CBA]) AssignStateStrings(labels map[ST]string) error {
	for st, s := range labels {
		if err := m.AssignStateString(st, s); err != nil {
			return err
		}
	}
	return nil
}

// AssignEventStrings sets event labels in batch.
func (m *Machine[ST, EV, CBA]) AssignEventStrings(labels map[EV]string) error {
	for ev, s := range labels {
		if err := m.AssignEventString(ev, s); err != nil {
			return err
		}
	}
	return nil
}

// SetDefaultTimerUnit sets the unit used by the timeout methods that take
// none.
func (m *Machine[ST, EV, CBA]) SetDefaultTimerUnit(u DurationUnit) error {
	const op = "SetDefaultTimerUnit"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	if err := m.checkTimerSupport(op); err != nil {
		return err
	}
	if u != UnitMS && u != UnitSec && u != UnitMin {
		return newConfigError(op, "invalid duration unit %d", int(u))
	}
	m.defaultUnit = u
	return nil
}

// SetDefaultTimerUnitString is SetDefaultTimerUnit with the unit given in
// its textual form.
func (m *Machine[ST, EV, CBA]) SetDefaultTimerUnitString(s string) error {
	u, err := ParseDurationUnit(s)
	if err != nil {
		return err
	}
	return m.SetDefaultTimerUnit(u)
}

// AssignTransitionMatrix replaces the whole next-state matrix. The matrix
// must have nbEvents rows of nbStates columns, each entry a valid state.
func (m *Machine[ST, EV, CBA]) AssignTransitionMatrix(mat [][]ST) error {
	const op = "AssignTransitionMatrix"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	if len(mat) != m.nbEvents {
		return newConfigError(op, "matrix has %d rows, want %d", len(mat), m.nbEvents)
	}
	for e, row := range mat {
		if len(row) != m.nbStates {
			return newConfigError(op, "row %d has %d columns, want %d", e, len(row), m.nbStates)
		}
		for s, to := range row {
			if int(to) < 0 || int(to) >= m.nbStates {
				return newConfigError(op, "entry [%d][%d] = %d out of range [0,%d)", e, s, int(to), m.nbStates)
			}
		}
	}
	for e, row := range mat {
		copy(m.next[e], row)
	}
	return nil
}

// AssignEventMatrix replaces the whole allow-mask. The matrix must have
// nbEvents rows of nbStates columns.
func (m *Machine[ST, EV, CBA]) AssignEventMatrix(mat [][]bool) error {
	const op = "AssignEventMatrix"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	if len(mat) != m.nbEvents {
		return newConfigError(op, "matrix has %d rows, want %d", len(mat), m.nbEvents)
	}
	for e, row := range mat {
		if len(row) != m.nbStates {
			return newConfigError(op, "row %d has %d columns, want %d", e, len(row), m.nbStates)
		}
	}
	for e, row := range mat {
		copy(m.allowed[e], row)
	}
	return nil
}

// AssignConfig copies the configuration of another machine with identical
// cardinalities: transition table, allow-mask, state info, labels and the
// default timer unit.
func (m *Machine[ST, EV, CBA]) AssignConfig(other *Machine[ST, EV, CBA]) error {
	const op = "AssignConfig"
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkFrozen(op); err != nil {
		return err
	}
	if other.nbStates != m.nbStates || other.nbEvents != m.nbEvents {
		return newConfigError(op, "cardinality mismatch: %dx%d vs %dx%d",
			other.nbEvents, other.nbStates, m.nbEvents, m.nbStates)
	}
	for e := range m.next {
		copy(m.next[e], other.next[e])
		copy(m.allowed[e], other.allowed[e])
	}
	for s := range m.states {
		si := other.states[s]
		si.inner = append([]innerTransition[ST, EV](nil), other.states[s].inner...)
		m.states[s] = si
	}
	copy(m.stateStrs, other.stateStrs)
	copy(m.eventStrs, other.eventStrs)
	m.defaultUnit = other.defaultUnit
	return nil
}
