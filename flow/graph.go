package flow

import (
	"fmt"

	"github.com/uemux/uemux/config"
)

// graph is the declarative topology: typed nodes and directed edges.
type graph struct {
	nodes map[string]config.Node
	order []string
	out   map[string][]string
	in    map[string][]string
}

func newGraph(cfg *config.Config) *graph {
	g := &graph{
		nodes: make(map[string]config.Node, len(cfg.Nodes)),
		order: make([]string, 0, len(cfg.Nodes)),
		out:   make(map[string][]string),
		in:    make(map[string][]string),
	}
	for _, n := range cfg.Nodes {
		g.nodes[n.Name] = n
		g.order = append(g.order, n.Name)
	}
	for _, e := range cfg.Edges {
		g.out[e.From] = append(g.out[e.From], e.To)
		g.in[e.To] = append(g.in[e.To], e.From)
	}
	return g
}

// validate checks the structural invariants of the topology. Violations
// are configuration errors, fatal at startup.
func (g *graph) validate() error {
	for _, name := range g.order {
		n := g.nodes[name]
		in, out := len(g.in[name]), len(g.out[name])
		switch n.Type {
		case config.TypeSource:
			if in != 0 || out != 1 {
				return fmt.Errorf("node %q: source requires no inputs and one output, got %d/%d", name, in, out)
			}
		case config.TypeGain, config.TypeThrottle:
			if in != 1 || out != 1 {
				return fmt.Errorf("node %q: %s requires one input and one output, got %d/%d", name, n.Type, in, out)
			}
		case config.TypeCombiner:
			if in < 2 || out != 1 {
				return fmt.Errorf("node %q: combiner requires at least two inputs and one output, got %d/%d", name, in, out)
			}
		case config.TypeSplit:
			if in != 1 || out < 2 {
				return fmt.Errorf("node %q: split requires one input and at least two outputs, got %d/%d", name, in, out)
			}
		case config.TypeSink, config.TypeWavTap:
			if in != 1 || out != 0 {
				return fmt.Errorf("node %q: %s requires one input and no outputs, got %d/%d", name, n.Type, in, out)
			}
		}
	}
	return g.acyclic()
}

// acyclic rejects cyclic wiring, which would deadlock the rendezvous.
func (g *graph) acyclic() error {
	indeg := make(map[string]int, len(g.nodes))
	for name := range g.nodes {
		indeg[name] = len(g.in[name])
	}
	queue := make([]string, 0, len(g.nodes))
	for name, d := range indeg {
		if d == 0 {
			queue = append(queue, name)
		}
	}
	visited := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range g.out[name] {
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited != len(g.nodes) {
		return fmt.Errorf("topology contains a cycle")
	}
	return nil
}
