package statetab

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// DefaultHistoryFile is the CSV history file written by a RunLogger when
// no other path is configured.
const DefaultHistoryFile = "spaghetti.csv"

// HistoryEntry is one logged transition: the time elapsed since Start,
// the index of the event that caused it — NbEvents denotes a timeout,
// NbEvents+1 an AAT/inner transition — and the state arrived at.
type HistoryEntry struct {
	Elapsed time.Duration
	Event   int
	State   int
}

// RunLogger collects the dynamic data of a machine run: per-state entry
// counters, per-event fire and ignored counters, and the transition
// history. The history is kept in memory and mirrored to a CSV file
// (';'-separated) opened lazily on the first transition. Attach one with
// WithRunLogger.
type RunLogger struct {
	mu         sync.Mutex
	nbStates   int
	nbEvents   int
	stateLabel func(int) string
	eventLabel func(int) string

	stateCount []uint64
	eventCount []uint64 // nbEvents+2 slots, the last two for Timeout and AAT
	ignored    []uint64
	history    []HistoryEntry
	startTime  time.Time

	path   string
	f      *os.File
	failed bool // file open failed once, do not retry
}

// NewRunLogger creates a run logger writing its history to
// DefaultHistoryFile.
func NewRunLogger() *RunLogger {
	return &RunLogger{path: DefaultHistoryFile}
}

// SetOutputFile overrides the CSV history file path. Must be called
// before the first transition is logged.
func (rl *RunLogger) SetOutputFile(path string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.path = path
}

// bind sizes the counters for a machine's cardinalities and borrows its
// label accessors. Called by New when the logger is attached.
func (rl *RunLogger) bind(nbStates, nbEvents int, stateLabel, eventLabel func(int) string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.nbStates = nbStates
	rl.nbEvents = nbEvents
	rl.stateLabel = stateLabel
	rl.eventLabel = eventLabel
	rl.stateCount = make([]uint64, nbStates)
	rl.eventCount = make([]uint64, nbEvents+2)
	rl.ignored = make([]uint64, nbEvents+2)
}

// begin marks the start of a run: the monotonic reference time is taken
// and the initial state is counted as entered.
func (rl *RunLogger) begin() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.stateCount == nil {
		return
	}
	rl.startTime = time.Now()
	rl.stateCount[0]++
}

// logTransition records the arrival on state st through event index ev
// and appends the matching CSV row.
func (rl *RunLogger) logTransition(st, ev int) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.stateCount == nil || st >= rl.nbStates || ev >= rl.nbEvents+2 {
		return nil
	}
	elapsed := time.Since(rl.startTime)
	rl.stateCount[st]++
	rl.eventCount[ev]++
	rl.history = append(rl.history, HistoryEntry{Elapsed: elapsed, Event: ev, State: st})

	if rl.failed {
		return nil
	}
	if rl.f == nil {
		f, err := os.Create(rl.path)
		if err != nil {
			rl.failed = true
			return newRuntimeError("RunLogger", "cannot open history file %s: %v", rl.path, err)
		}
		rl.f = f
		fmt.Fprintf(rl.f, "# FSM run history:\n#time;event;event_string;state;state_string\n")
	}
	fmt.Fprintf(rl.f, "%f;%d;%s;%d;%s\n",
		elapsed.Seconds(), ev, rl.eventLabel(ev), st, rl.stateLabel(st))
	return nil
}

// logIgnored counts an event delivered while its allow-mask entry was
// false.
func (rl *RunLogger) logIgnored(ev int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.ignored == nil || ev >= len(rl.ignored) {
		return
	}
	rl.ignored[ev]++
}

// StateCount returns how many times state st was entered.
func (rl *RunLogger) StateCount(st int) uint64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if st < 0 || st >= len(rl.stateCount) {
		return 0
	}
	return rl.stateCount[st]
}

// EventCount returns how many times event ev fired a transition. Indices
// NbEvents and NbEvents+1 count timeouts and AAT/inner transitions.
func (rl *RunLogger) EventCount(ev int) uint64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if ev < 0 || ev >= len(rl.eventCount) {
		return 0
	}
	return rl.eventCount[ev]
}

// IgnoredCount returns how many times event ev was delivered but not
// allowed.
func (rl *RunLogger) IgnoredCount(ev int) uint64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if ev < 0 || ev >= len(rl.ignored) {
		return 0
	}
	return rl.ignored[ev]
}

// History returns a copy of the transition history.
func (rl *RunLogger) History() []HistoryEntry {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return append([]HistoryEntry(nil), rl.history...)
}

// Clear resets every counter and the in-memory history. The CSV file is
// left as written.
func (rl *RunLogger) Clear() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for i := range rl.stateCount {
		rl.stateCount[i] = 0
	}
	for i := range rl.eventCount {
		rl.eventCount[i] = 0
	}
	for i := range rl.ignored {
		rl.ignored[i] = 0
	}
	rl.history = nil
}

// Close closes the CSV history file, if one was opened.
func (rl *RunLogger) Close() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.f == nil {
		return nil
	}
	err := rl.f.Close()
	rl.f = nil
	return err
}

// PrintData dumps the sections selected by flags to w.
func (rl *RunLogger) PrintData(w io.Writer, flags PrintFlags) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.stateCount == nil {
		return
	}

	if flags&PrintStateCount != 0 {
		fmt.Fprintf(w, "# State counters:\n")
		for i, c := range rl.stateCount {
			fmt.Fprintf(w, "%d;%s;%d\n", i, rl.stateLabel(i), c)
		}
	}
	if flags&PrintEventCount != 0 {
		fmt.Fprintf(w, "\n# Event counters:\n")
		for i, c := range rl.eventCount {
			fmt.Fprintf(w, "%d;%s;%d\n", i, rl.eventLabel(i), c)
		}
		fmt.Fprintf(w, "\n# Ignored events:\n")
		for i := 0; i < rl.nbEvents; i++ {
			fmt.Fprintf(w, "%d;%s;%d\n", i, rl.eventLabel(i), rl.ignored[i])
		}
	}
	if flags&PrintHistory != 0 {
		fmt.Fprintf(w, "\n# Run history:\n#time;event;event_string;state;state_string\n")
		for _, h := range rl.history {
			fmt.Fprintf(w, "%f;%d;%s;%d;%s\n",
				h.Elapsed.Seconds(), h.Event, rl.eventLabel(h.Event), h.State, rl.stateLabel(h.State))
		}
	}
}
