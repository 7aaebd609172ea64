package statetab

import (
	"fmt"
	"io"
)

// PrintConfig writes a human-readable dump of the transition table and
// the per-state configuration to w. Disallowed entries print as '.'.
func (m *Machine[ST, EV, CBA]) PrintConfig(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fmt.Fprintf(w, "---------------------\nTransition table:\n")
	fmt.Fprintf(w, "%12s|", "STATES:")
	for s := 0; s < m.nbStates; s++ {
		fmt.Fprintf(w, " %2d", s)
	}
	fmt.Fprintf(w, "\n------------|")
	for s := 0; s < m.nbStates; s++ {
		fmt.Fprintf(w, "---")
	}
	fmt.Fprintln(w)

	for e := 0; e < m.nbEvents; e++ {
		fmt.Fprintf(w, "%9s %2d|", "E", e)
		for s := 0; s < m.nbStates; s++ {
			if m.allowed[e][s] {
				fmt.Fprintf(w, " %2d", int(m.next[e][s]))
			} else {
				fmt.Fprintf(w, "  .")
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "%9s TO|", "")
	for s := 0; s < m.nbStates; s++ {
		if m.states[s].timer.enabled {
			fmt.Fprintf(w, " %2d", int(m.states[s].timer.nextState))
		} else {
			fmt.Fprintf(w, "  .")
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%8s AAT|", "")
	for s := 0; s < m.nbStates; s++ {
		if m.states[s].isPassState {
			fmt.Fprintf(w, " %2d", int(m.states[s].passNext))
		} else {
			fmt.Fprintf(w, "  .")
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\nState info:\n")
	for s := 0; s < m.nbStates; s++ {
		si := m.states[s]
		fmt.Fprintf(w, "%d:%s| ", s, m.stateStrs[s])
		switch {
		case si.timer.enabled:
			fmt.Fprintf(w, "%d %s => %d (%s)", si.timer.duration, si.timer.unit,
				int(si.timer.nextState), m.stateStrs[int(si.timer.nextState)])
		case si.isPassState:
			fmt.Fprintf(w, "AAT => %d (%s)", int(si.passNext), m.stateStrs[int(si.passNext)])
		default:
			fmt.Fprintf(w, "-")
		}
		for _, it := range si.inner {
			fmt.Fprintf(w, " [inner %d => %d]", int(it.event), int(it.dest))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "---------------------\n")
}
