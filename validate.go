package statetab

// doChecking is the one-shot configuration validator run by Start, with
// the machine lock held. Fatal violations return a ConfigError; anomalies
// are written to the diagnostic logger as warnings and do not prevent
// startup.
func (m *Machine[ST, EV, CBA]) doChecking() error {
	const op = "Start"

	for s := range m.states {
		si := m.states[s]
		if !si.isPassState {
			continue
		}
		next := int(si.passNext)
		if next == s {
			return newConfigError(op, "pass-state %s cannot lead to itself", m.stateName(ST(s)))
		}
		if m.states[next].isPassState {
			return newConfigError(op, "state %s cannot be followed by another pass-state", m.stateName(ST(s)))
		}
		if si.timer.enabled {
			return newConfigError(op, "state %s cannot have both a timeout and a pass-state flag", m.stateName(ST(s)))
		}
	}

	// State 0 is the initial state and always reachable.
	unreachable := make(map[int]bool)
	for s := 1; s < m.nbStates; s++ {
		if !m.isReachable(s) {
			unreachable[s] = true
			m.logger.Warn("state is unreachable", "state", m.stateName(ST(s)))
		}
	}

	for s := 0; s < m.nbStates; s++ {
		if unreachable[s] {
			continue
		}
		if m.isDeadEnd(s) {
			m.logger.Warn("state is a dead-end", "state", m.stateName(ST(s)))
		}
	}
	return nil
}

// isReachable reports whether some other state leads to st through an
// allowed external transition, a timeout, a pass-state transition or an
// inner transition.
func (m *Machine[ST, EV, CBA]) isReachable(st int) bool {
	for s := 0; s < m.nbStates; s++ {
		if s == st {
			continue
		}
		for e := 0; e < m.nbEvents; e++ {
			if m.allowed[e][s] && int(m.next[e][s]) == st {
				return true
			}
		}
		si := m.states[s]
		if si.timer.enabled && int(si.timer.nextState) == st {
			return true
		}
		if si.isPassState && int(si.passNext) == st {
			return true
		}
		for _, it := range si.inner {
			if int(it.dest) == st {
				return true
			}
		}
	}
	return false
}

// isDeadEnd reports whether no transition leaves st: no timeout, no
// pass-state flag, and every event either disallowed or a self-loop.
func (m *Machine[ST, EV, CBA]) isDeadEnd(st int) bool {
	si := m.states[st]
	if si.timer.enabled || si.isPassState {
		return false
	}
	for e := 0; e < m.nbEvents; e++ {
		if m.allowed[e][st] && int(m.next[e][st]) != st {
			return false
		}
	}
	return true
}
