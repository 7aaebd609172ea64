// Package visualization renders statetab machines as Graphviz DOT graphs.
package visualization

import (
	"fmt"
	"os"
	"strings"
)

// Graph is the read-only view of a machine that the exporter consumes.
// *statetab.Machine implements it.
type Graph interface {
	NbStates() int
	NbEvents() int
	CurrentStateIndex() int

	// TransitionTarget returns the target of the external transition
	// (ev, st) and whether it is allowed.
	TransitionTarget(ev, st int) (int, bool)

	// PassTarget returns the pass-state successor of st, if any.
	PassTarget(st int) (int, bool)

	// TimeoutTarget returns the timeout successor, duration and unit of
	// st, if st has a timeout.
	TimeoutTarget(st int) (next int, dur uint64, unit string, ok bool)

	// InnerTargets returns the (event, destination) pairs of the inner
	// transitions on st.
	InnerTargets(st int) [][2]int

	StateLabel(st int) string
	EventLabel(ev int) string
}

// Options configures the DOT generation.
type Options struct {
	ShowActiveState bool // shade the current state
	ShowTimeouts    bool // emit timeout edges
	ShowInnerEvents bool // emit inner transition edges
	ShowAAT         bool // emit always-active transition edges
	UseStateStrings bool // node labels from state labels instead of S<i>
	UseEventStrings bool // edge labels from event labels instead of E<i>
}

// DefaultOptions returns the default options: everything on.
func DefaultOptions() Options {
	return Options{
		ShowActiveState: true,
		ShowTimeouts:    true,
		ShowInnerEvents: true,
		ShowAAT:         true,
		UseStateStrings: true,
		UseEventStrings: true,
	}
}

// DOTGenerator generates Graphviz DOT representations of a machine.
type DOTGenerator struct {
	graph   Graph
	options Options
}

// NewDOTGenerator creates a DOT generator for the given machine view.
func NewDOTGenerator(g Graph, options ...Options) *DOTGenerator {
	opts := DefaultOptions()
	if len(options) > 0 {
		opts = options[0]
	}
	return &DOTGenerator{graph: g, options: opts}
}

// Generate creates the DOT text. State 0 is double-circled; edges cover
// allowed external transitions (except from pass-states), timeouts, AATs
// and inner transitions. Timeout, AAT and inner edges are switchable
// through Options; external edges are always emitted.
func (g *DOTGenerator) Generate() (string, error) {
	var dot strings.Builder
	gr := g.graph

	dot.WriteString("digraph G {\nrankdir=LR;\n")

	active := gr.CurrentStateIndex()
	for s := 0; s < gr.NbStates(); s++ {
		attrs := []string{fmt.Sprintf("label=%q", g.stateLabel(s))}
		if s == 0 {
			attrs = append(attrs, `shape="doublecircle"`)
		}
		if g.options.ShowActiveState && s == active {
			attrs = append(attrs, `style="filled"`, `fillcolor="gray"`)
		}
		fmt.Fprintf(&dot, "%d [%s];\n", s, strings.Join(attrs, ","))
	}

	for s := 0; s < gr.NbStates(); s++ {
		if _, isPass := gr.PassTarget(s); isPass {
			continue
		}
		inner := make(map[int]bool)
		for _, it := range gr.InnerTargets(s) {
			inner[it[0]] = true
		}
		for e := 0; e < gr.NbEvents(); e++ {
			// Inner-backed table entries render as inner edges below.
			if inner[e] {
				continue
			}
			if to, ok := gr.TransitionTarget(e, s); ok {
				fmt.Fprintf(&dot, "%d -> %d [label=%q];\n", s, to, g.eventLabel(e))
			}
		}
	}

	if g.options.ShowTimeouts {
		for s := 0; s < gr.NbStates(); s++ {
			if to, dur, unit, ok := gr.TimeoutTarget(s); ok {
				fmt.Fprintf(&dot, "%d -> %d [label=\"TO:%d%s\"];\n", s, to, dur, unit)
			}
		}
	}

	if g.options.ShowAAT {
		for s := 0; s < gr.NbStates(); s++ {
			if to, ok := gr.PassTarget(s); ok {
				fmt.Fprintf(&dot, "%d -> %d [label=\"AAT\"];\n", s, to)
			}
		}
	}

	if g.options.ShowInnerEvents {
		for s := 0; s < gr.NbStates(); s++ {
			for _, it := range gr.InnerTargets(s) {
				fmt.Fprintf(&dot, "%d -> %d [label=%q,style=\"dashed\"];\n",
					s, it[1], g.eventLabel(it[0]))
			}
		}
	}

	dot.WriteString("}\n")
	return dot.String(), nil
}

// GenerateToFile writes the DOT representation to a file.
func (g *DOTGenerator) GenerateToFile(filename string) error {
	content, err := g.Generate()
	if err != nil {
		return err
	}
	return os.WriteFile(filename, []byte(content), 0644)
}

func (g *DOTGenerator) stateLabel(s int) string {
	if g.options.UseStateStrings {
		if l := g.graph.StateLabel(s); l != "" {
			return l
		}
	}
	return fmt.Sprintf("S%d", s)
}

func (g *DOTGenerator) eventLabel(e int) string {
	if g.options.UseEventStrings {
		if l := g.graph.EventLabel(e); l != "" {
			return l
		}
	}
	return fmt.Sprintf("E%d", e)
}
