// Package statetab provides a table-driven finite state machine engine for
// reactive control logic: traffic lights, protocol handshakes, UI mode
// controllers, device sequencers.
//
// A machine is defined over two contiguous, zero-based integer identifier
// domains — states and events — whose cardinalities are fixed at
// construction. Transitions live in an events × states matrix gated by an
// allow-mask; each state additionally carries an optional timeout, an
// optional on-entry callback, an optional pass-state (always-active)
// transition, and a list of signal-driven inner transitions. A one-shot
// validator runs at Start and rejects inconsistent configurations.
//
// The engine is single-threaded and cooperative: it never spawns
// goroutines of its own, and delegates timers and wake signals to an
// EventHandler collaborator. LoopHandler is the standard channel-driven
// implementation; NoopHandler serves machines that use neither timers nor
// signals.
package statetab

// Version is the library version reported by BuildOptions.
const Version = "0.4.0"

// libName prefixes error messages and the default diagnostic logger.
const libName = "statetab"

// PrintFlags selects the sections dumped by RunLogger.PrintData.
type PrintFlags int

const (
	// PrintStateCount dumps the per-state entry counters.
	PrintStateCount PrintFlags = 1 << iota

	// PrintEventCount dumps the per-event fire counters.
	PrintEventCount

	// PrintHistory dumps the transition history.
	PrintHistory

	// PrintAll dumps every section.
	PrintAll = PrintStateCount | PrintEventCount | PrintHistory
)
