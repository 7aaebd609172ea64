package statetab

// Run-time methods. All of them require a started machine and are meant
// to be called from a single logical task: the host's event loop, or the
// handler's Init loop calling back in. Table and current-state mutation
// happens under the machine lock; handler calls and user callbacks run
// after it is released, so callbacks may observe the machine but must not
// call Start, Stop or the Process methods — follow-up events are enqueued
// with the handler for the next turn of the loop.

// Start validates the configuration, freezes it, enters the initial
// state and — unless the machine was built with WithExternalEventLoop —
// hands control to the handler's blocking Init loop until Stop is called.
func (m *Machine[ST, EV, CBA]) Start() error {
	const op = "Start"
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return newRuntimeError(op, "machine is already running")
	}
	if err := m.doChecking(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.running = true
	m.current = 0
	if m.runLog != nil {
		m.runLog.begin()
	}
	m.logger.Debug("starting", "state", m.stateName(m.current))
	st, wake := m.entryActions()
	m.mu.Unlock()

	m.runAction(st, wake)
	if !m.externalLoop {
		m.handler.Init(m)
	}
	return nil
}

// Stop cancels any pending timer, kills the handler loop and leaves the
// running state.
func (m *Machine[ST, EV, CBA]) Stop() error {
	const op = "Stop"
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return newRuntimeError(op, "machine is not running")
	}
	m.logger.Debug("stopping", "state", m.stateName(m.current))
	m.handler.TimerCancel()
	m.handler.TimerKill()
	m.running = false
	return nil
}

// ProcessEvent delivers the external event ev. When the allow-mask entry
// for (ev, current) is false the event is ignored: the ignored counter is
// incremented and the ignored-events callback, if any, is invoked.
// Otherwise any pending timer is cancelled, the machine switches to the
// configured next state and the state's entry action runs.
func (m *Machine[ST, EV, CBA]) ProcessEvent(ev EV) error {
	const op = "ProcessEvent"
	m.mu.Lock()
	if err := m.checkEvent(op, ev); err != nil {
		m.mu.Unlock()
		return err
	}
	if !m.running {
		m.mu.Unlock()
		return newRuntimeError(op, "machine is not started")
	}
	cur := int(m.current)
	if !m.allowed[int(ev)][cur] {
		m.logger.Debug("event ignored", "event", m.eventName(ev), "state", m.stateName(m.current))
		if m.runLog != nil {
			m.runLog.logIgnored(int(ev))
		}
		ignored := m.ignoredCB
		state := m.current
		m.mu.Unlock()
		if ignored != nil {
			ignored(state, ev)
		}
		return nil
	}
	cancel := m.states[cur].timer.enabled
	m.current = m.next[int(ev)][cur]
	m.logger.Debug("external transition", "event", m.eventName(ev), "state", m.stateName(m.current))
	logErr := m.logTransition(int(ev))
	st, wake := m.entryActions()
	m.mu.Unlock()

	if cancel {
		m.handler.TimerCancel()
	}
	m.runAction(st, wake)
	return logErr
}

// ProcessTimeout is called back by the event handler when its timer
// expires without cancellation. The machine switches to the timeout's
// next state.
func (m *Machine[ST, EV, CBA]) ProcessTimeout() error {
	const op = "ProcessTimeout"
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return newRuntimeError(op, "machine is not started")
	}
	te := m.states[int(m.current)].timer
	if !te.enabled {
		m.mu.Unlock()
		return newRuntimeError(op, "timeout fired on state %s which has none", m.stateName(m.current))
	}
	m.current = te.nextState
	m.logger.Debug("timeout transition", "state", m.stateName(m.current))
	logErr := m.logTransition(m.nbEvents)
	st, wake := m.entryActions()
	m.mu.Unlock()

	m.runAction(st, wake)
	return logErr
}

// ProcessInnerEvent is called back by the event handler after a raised
// signal. On a pass-state the machine switches to the pass successor;
// otherwise the first active inner transition of the current state fires
// and its flag is cleared. A signal that finds neither is dropped — an
// external transition won the race.
func (m *Machine[ST, EV, CBA]) ProcessInnerEvent() error {
	const op = "ProcessInnerEvent"
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return newRuntimeError(op, "machine is not started")
	}
	si := &m.states[int(m.current)]
	if si.isPassState {
		m.current = si.passNext
	} else {
		fired := false
		for i := range si.inner {
			if si.inner[i].active {
				m.current = si.inner[i].dest
				si.inner[i].active = false
				fired = true
				break
			}
		}
		if !fired {
			m.logger.Debug("signal dropped, no active inner transition", "state", m.stateName(m.current))
			m.mu.Unlock()
			return nil
		}
	}
	m.logger.Debug("inner transition", "state", m.stateName(m.current))
	logErr := m.logTransition(m.nbEvents + 1)
	st, wake := m.entryActions()
	m.mu.Unlock()

	m.runAction(st, wake)
	return logErr
}

// ActivateInnerEvent sets the active flag of every inner transition wired
// to ev, anywhere in the table. The transition does not fire here: when
// the current state carries a matching inner transition a signal is
// raised and the handler dispatches ProcessInnerEvent on its next turn.
// Fails when ev is not wired as an inner transition on any state.
func (m *Machine[ST, EV, CBA]) ActivateInnerEvent(ev EV) error {
	const op = "ActivateInnerEvent"
	m.mu.Lock()
	if err := m.checkEvent(op, ev); err != nil {
		m.mu.Unlock()
		return err
	}
	if !m.running {
		m.mu.Unlock()
		return newRuntimeError(op, "machine is not started")
	}
	found := false
	matchesCurrent := false
	for s := range m.states {
		for i := range m.states[s].inner {
			if m.states[s].inner[i].event == ev {
				m.states[s].inner[i].active = true
				found = true
				if s == int(m.current) {
					matchesCurrent = true
				}
			}
		}
	}
	m.mu.Unlock()

	if !found {
		return newRuntimeError(op, "event %s is not wired as an inner transition on any state", m.eventName(ev))
	}
	if matchesCurrent {
		m.handler.RaiseSignal()
		m.handler.TimerCancel()
	}
	return nil
}

// entryActions snapshots, with the lock held, what runAction must do for
// the just-entered state: its index and whether the wake signal must be
// raised (pass-state, or some inner transition already active).
func (m *Machine[ST, EV, CBA]) entryActions() (st int, wake bool) {
	st = int(m.current)
	si := &m.states[st]
	wake = si.isPassState
	for _, it := range si.inner {
		if it.active {
			wake = true
			break
		}
	}
	return st, wake
}

// runAction runs the entry sequence of state st: arm the timer, invoke
// the callback, then raise the wake signal when a pass-state or an active
// inner transition must fire. The timer is armed before the callback so a
// slow callback cannot extend the state's dwell time; the cancel after
// the raise keeps a timeout from racing the signalled transition. Called
// without the machine lock.
func (m *Machine[ST, EV, CBA]) runAction(st int, wake bool) {
	si := &m.states[st]
	if si.timer.enabled {
		m.handler.TimerStart(m)
	}
	if si.callback != nil {
		si.callback(si.callbackArg)
	}
	if wake {
		m.handler.RaiseSignal()
		m.handler.TimerCancel()
	}
}

// logTransition records the arrival on the current state through event
// index evIdx, where nbEvents and nbEvents+1 denote the synthetic Timeout
// and AAT events.
func (m *Machine[ST, EV, CBA]) logTransition(evIdx int) error {
	if m.runLog == nil {
		return nil
	}
	return m.runLog.logTransition(int(m.current), evIdx)
}
