// Package graph implements a small dataflow graph engine: named nodes
// wired by static and conditional edges, executed over a shared state.
//
// Nodes never mutate state. Each node receives a state snapshot and
// returns a delta; a single scheduler goroutine folds deltas into the
// state with the graph's reducer, so state transitions are serialized
// even when independent nodes run concurrently.
//
// Static edges define fan-out and fan-in: a node becomes runnable when
// all of its inbound static edges have fired in the current wave, and
// its countdown resets on firing so cyclic topologies can re-enter it.
// Conditional edges are evaluated on the reduced state after their
// source node completes and enqueue the chosen target directly,
// bypassing fan-in countdowns. Routing to End stops that branch.
//
// Every run emits node_start/node_end lifecycle events plus any custom
// events the nodes publish, on a bounded channel; when the consumer
// falls behind, emitting nodes block, which is the backpressure story
// for streaming output.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// End is the reserved routing label that terminates a branch.
const End = "__end__"

// DefaultMaxSteps caps node executions per run when not configured.
const DefaultMaxSteps = 25

// DefaultEventBuffer is the event channel capacity when not configured.
const DefaultEventBuffer = 64

// Reducer folds a node's delta into the state. Called only from the
// scheduler goroutine.
type Reducer[S, D any] func(S, D) S

// Builder assembles a graph prior to Compile.
type Builder[S, D any] struct {
	reduce Reducer[S, D]
	nodes  map[string]*nodeSpec[S, D]
	edges  map[string][]string
	conds  map[string]*conditional[S]
	entry  string
	errs   []error
}

type conditional[S any] struct {
	route   func(S) string
	targets map[string]bool
}

// NewBuilder creates a builder with the given reducer.
func NewBuilder[S, D any](reduce Reducer[S, D]) *Builder[S, D] {
	return &Builder[S, D]{
		reduce: reduce,
		nodes:  make(map[string]*nodeSpec[S, D]),
		edges:  make(map[string][]string),
		conds:  make(map[string]*conditional[S]),
	}
}

// AddNode registers a named node.
func (b *Builder[S, D]) AddNode(name string, fn NodeFunc[S, D], opts ...NodeOption) *Builder[S, D] {
	if name == "" || name == End {
		b.errs = append(b.errs, fmt.Errorf("%w: %q", ErrInvalidNodeName, name))
		return b
	}
	if _, exists := b.nodes[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("%w: %q", ErrDuplicateNode, name))
		return b
	}
	spec := &nodeSpec[S, D]{name: name, fn: fn}
	for _, opt := range opts {
		opt(&spec.nodeOptions)
	}
	b.nodes[name] = spec
	return b
}

// AddEdge adds a static edge from one node to another. The target's
// fan-in countdown counts one inbound slot per static edge.
func (b *Builder[S, D]) AddEdge(from, to string) *Builder[S, D] {
	b.edges[from] = append(b.edges[from], to)
	return b
}

// AddConditionalEdge attaches a routing function evaluated after `from`
// completes. The function must return one of targets or End.
func (b *Builder[S, D]) AddConditionalEdge(from string, route func(S) string, targets ...string) *Builder[S, D] {
	allowed := make(map[string]bool, len(targets)+1)
	allowed[End] = true
	for _, t := range targets {
		allowed[t] = true
	}
	b.conds[from] = &conditional[S]{route: route, targets: allowed}
	return b
}

// SetEntry names the node that starts every run.
func (b *Builder[S, D]) SetEntry(name string) *Builder[S, D] {
	b.entry = name
	return b
}

// Compile validates the topology and returns an executable engine.
func (b *Builder[S, D]) Compile(opts ...Option) (*Engine[S, D], error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if len(b.nodes) == 0 {
		return nil, ErrEmptyGraph
	}
	if b.entry == "" {
		return nil, ErrNoEntry
	}
	if _, ok := b.nodes[b.entry]; !ok {
		return nil, fmt.Errorf("%w: entry %q", ErrUnknownNode, b.entry)
	}
	indegree := make(map[string]int, len(b.nodes))
	for from, tos := range b.edges {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: edge source %q", ErrUnknownNode, from)
		}
		for _, to := range tos {
			if _, ok := b.nodes[to]; !ok {
				return nil, fmt.Errorf("%w: edge target %q", ErrUnknownNode, to)
			}
			indegree[to]++
		}
	}
	for from, cond := range b.conds {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: conditional source %q", ErrUnknownNode, from)
		}
		for target := range cond.targets {
			if target == End {
				continue
			}
			if _, ok := b.nodes[target]; !ok {
				return nil, fmt.Errorf("%w: conditional target %q", ErrUnknownNode, target)
			}
		}
	}

	e := &Engine[S, D]{
		reduce:      b.reduce,
		nodes:       b.nodes,
		edges:       b.edges,
		conds:       b.conds,
		indegree:    indegree,
		entry:       b.entry,
		maxSteps:    DefaultMaxSteps,
		eventBuffer: DefaultEventBuffer,
		tracer:      otel.Tracer("revera/graph"),
	}
	for _, opt := range opts {
		opt(&e.options)
	}
	if e.options.maxSteps > 0 {
		e.maxSteps = e.options.maxSteps
	}
	if e.options.eventBuffer > 0 {
		e.eventBuffer = e.options.eventBuffer
	}
	e.metrics = e.options.metrics
	return e, nil
}

// Engine executes a compiled graph. Safe for concurrent Execute calls;
// each run gets its own scheduler, channels, and state.
type Engine[S, D any] struct {
	reduce   Reducer[S, D]
	nodes    map[string]*nodeSpec[S, D]
	edges    map[string][]string
	conds    map[string]*conditional[S]
	indegree map[string]int
	entry    string

	maxSteps    int
	eventBuffer int
	metrics     *Metrics
	tracer      trace.Tracer

	options options
}

// Outcome is the terminal result of a run.
type Outcome[S any] struct {
	State S
	Steps int
	Err   error
}

// Execute starts a run from the entry node and returns the event channel
// plus a single-element outcome channel. Both are closed when the run
// ends; consume events until closed, then read the outcome.
func (e *Engine[S, D]) Execute(ctx context.Context, initial S) (<-chan Event, <-chan Outcome[S]) {
	events := make(chan Event, e.eventBuffer)
	outcome := make(chan Outcome[S], 1)

	go func() {
		defer close(outcome)
		result := e.run(ctx, initial, events)
		close(events)
		e.metrics.runFinished(result.Err)
		outcome <- result
	}()

	return events, outcome
}

type completion[D any] struct {
	node    string
	delta   D
	err     error
	elapsed time.Duration
}

func (e *Engine[S, D]) run(ctx context.Context, initial S, events chan<- Event) Outcome[S] {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := initial
	steps := 0
	inflight := 0

	pending := make(map[string]int, len(e.nodes))
	for name, n := range e.indegree {
		pending[name] = n
	}

	results := make(chan completion[D])
	var wg sync.WaitGroup

	// finish tears down workers before the caller closes the events
	// channel. Workers blocked on emits unblock via runCtx.
	finish := func(err error) Outcome[S] {
		cancel()
		wg.Wait()
		return Outcome[S]{State: state, Steps: steps, Err: err}
	}

	emit := func(ev Event) error {
		select {
		case events <- ev:
			return nil
		case <-runCtx.Done():
			return runCtx.Err()
		}
	}

	start := func(name string) error {
		spec := e.nodes[name]
		steps++
		if steps > e.maxSteps {
			return fmt.Errorf("%w: limit %d reached at node %q", ErrMaxSteps, e.maxSteps, name)
		}
		if err := emit(Event{Type: EventNodeStart, Node: name, Step: steps}); err != nil {
			return err
		}

		inflight++
		e.metrics.nodeStarted()
		snapshot := state
		step := steps
		wg.Add(1)
		go func() {
			defer wg.Done()
			nodeCtx, span := e.tracer.Start(runCtx, "graph.node "+name,
				trace.WithAttributes(
					attribute.String("graph.node", name),
					attribute.Int("graph.step", step),
				))
			began := time.Now()
			nc := &NodeContext{node: name, step: step, emit: emit}
			delta, err := spec.fn(nodeCtx, snapshot, nc)
			elapsed := time.Since(began)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()

			select {
			case results <- completion[D]{node: name, delta: delta, err: err, elapsed: elapsed}:
			case <-runCtx.Done():
			}
		}()
		return nil
	}

	if err := start(e.entry); err != nil {
		return finish(err)
	}

	for inflight > 0 {
		select {
		case <-runCtx.Done():
			return finish(ctx.Err())

		case c := <-results:
			inflight--
			e.metrics.nodeFinished(c.node, c.elapsed, c.err)

			if c.err != nil && !e.nodes[c.node].nonFatal {
				// Emitting node_end here is best-effort; the run is
				// already failing.
				_ = emit(Event{Type: EventNodeEnd, Node: c.node, Payload: c.delta, Err: c.err})
				return finish(&NodeError{Node: c.node, Err: c.err})
			}

			state = e.reduce(state, c.delta)

			if c.err != nil {
				slog.Warn("Graph node failed non-fatally, continuing",
					"node", c.node,
					"error", c.err)
			}
			if err := emit(Event{Type: EventNodeEnd, Node: c.node, Payload: c.delta, Err: c.err}); err != nil {
				return finish(err)
			}

			for _, to := range e.edges[c.node] {
				pending[to]--
				if pending[to] > 0 {
					continue
				}
				// Reset before firing so a later wave can re-enter the
				// node on cyclic topologies.
				pending[to] = e.indegree[to]
				if err := start(to); err != nil {
					return finish(err)
				}
			}

			if cond := e.conds[c.node]; cond != nil {
				label := cond.route(state)
				if label == End {
					continue
				}
				if !cond.targets[label] {
					return finish(fmt.Errorf("%w: node %q routed to %q", ErrInvalidRoute, c.node, label))
				}
				if err := start(label); err != nil {
					return finish(err)
				}
			}
		}
	}

	return finish(nil)
}
