package statetab

import (
	"sync"
	"time"
)

// LoopHandler is the standard EventHandler: a cooperative event loop
// draining a work queue, a one-shot timer built on time.AfterFunc, and a
// wake channel for pass-states and inner transitions. Everything the
// machine does at run time — external events posted with PostEvent, timer
// expiries, raised signals — executes sequentially on the goroutine that
// called Init.
//
// A LoopHandler drives one run of one machine: after TimerKill it is
// spent, and a fresh handler is needed for a new Start.
type LoopHandler[ST ~int, EV ~int, CBA any] struct {
	work chan func()
	done chan struct{}
	kill sync.Once

	mu    sync.Mutex
	fsm   *Machine[ST, EV, CBA]
	timer *time.Timer
	gen   uint64 // incremented on every start/cancel; stale expiries are dropped
}

// NewLoopHandler creates a loop handler. The work queue holds queueSize
// pending entries; 0 selects a default.
func NewLoopHandler[ST ~int, EV ~int, CBA any](queueSize int) *LoopHandler[ST, EV, CBA] {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &LoopHandler[ST, EV, CBA]{
		work: make(chan func(), queueSize),
		done: make(chan struct{}),
	}
}

// Init runs the event loop. It blocks until TimerKill is called; pending
// work is dropped at that point.
func (h *LoopHandler[ST, EV, CBA]) Init(m *Machine[ST, EV, CBA]) {
	h.mu.Lock()
	h.fsm = m
	h.mu.Unlock()
	for {
		select {
		case <-h.done:
			return
		case fn := <-h.work:
			fn()
		}
	}
}

// PostEvent enqueues an external event for the next turn of the loop.
// This is how host code — and state callbacks — feed events to a machine
// running on an embedded loop.
func (h *LoopHandler[ST, EV, CBA]) PostEvent(ev EV) {
	h.post(func() {
		if m := h.machine(); m != nil {
			if err := m.ProcessEvent(ev); err != nil {
				m.logger.Debug("event loop", "err", err)
			}
		}
	})
}

// TimerStart arms the one-shot timer with the timeout of the machine's
// current state. A previously armed timer is superseded.
func (h *LoopHandler[ST, EV, CBA]) TimerStart(m *Machine[ST, EV, CBA]) {
	dur, unit := m.TimeoutDuration(m.CurrentState())
	d := unit.Duration(dur)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.fsm = m
	if h.timer != nil {
		h.timer.Stop()
	}
	h.gen++
	gen := h.gen
	h.timer = time.AfterFunc(d, func() {
		h.mu.Lock()
		live := h.gen == gen
		h.mu.Unlock()
		if !live {
			return
		}
		h.post(func() {
			h.mu.Lock()
			live := h.gen == gen
			h.mu.Unlock()
			if !live {
				return
			}
			if err := m.ProcessTimeout(); err != nil {
				m.logger.Debug("event loop", "err", err)
			}
		})
	})
}

// TimerCancel cancels the armed timer, if any. Idempotent.
func (h *LoopHandler[ST, EV, CBA]) TimerCancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gen++
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

// TimerKill stops the Init loop and drops pending work.
func (h *LoopHandler[ST, EV, CBA]) TimerKill() {
	h.TimerCancel()
	h.kill.Do(func() { close(h.done) })
}

// RaiseSignal schedules ProcessInnerEvent on the next turn of the loop.
func (h *LoopHandler[ST, EV, CBA]) RaiseSignal() {
	h.post(func() {
		if m := h.machine(); m != nil {
			if err := m.ProcessInnerEvent(); err != nil {
				m.logger.Debug("event loop", "err", err)
			}
		}
	})
}

func (h *LoopHandler[ST, EV, CBA]) machine() *Machine[ST, EV, CBA] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fsm
}

func (h *LoopHandler[ST, EV, CBA]) post(fn func()) {
	select {
	case h.work <- fn:
	case <-h.done:
	}
}
