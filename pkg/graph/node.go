package graph

import "context"

// NodeFunc is the unit of work. It receives an immutable state snapshot
// and returns a delta for the reducer. Long-running nodes must honor ctx.
type NodeFunc[S, D any] func(ctx context.Context, state S, nc *NodeContext) (D, error)

type nodeSpec[S, D any] struct {
	name string
	fn   NodeFunc[S, D]
	nodeOptions
}

type nodeOptions struct {
	nonFatal bool
}

// NodeOption configures a single node.
type NodeOption func(*nodeOptions)

// WithNonFatal marks a node whose errors do not abort the run: the
// returned partial delta is still reduced, the node_end event carries
// the error, and routing continues.
func WithNonFatal() NodeOption {
	return func(o *nodeOptions) {
		o.nonFatal = true
	}
}

type options struct {
	maxSteps    int
	eventBuffer int
	metrics     *Metrics
}

// Option configures a compiled engine.
type Option func(*options)

// WithMaxSteps caps node executions per run. Exceeding the cap fails
// the run; it is the guard against unbounded refinement loops.
func WithMaxSteps(n int) Option {
	return func(o *options) {
		o.maxSteps = n
	}
}

// WithEventBuffer sets the per-run event channel capacity.
func WithEventBuffer(n int) Option {
	return func(o *options) {
		o.eventBuffer = n
	}
}

// WithMetrics attaches Prometheus metrics to the engine.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// NodeContext lets a running node publish custom events into the run's
// event channel. Emits share the channel's backpressure: they block when
// the consumer falls behind.
type NodeContext struct {
	node string
	step int
	emit func(Event) error
}

// Node returns the executing node's name.
func (nc *NodeContext) Node() string { return nc.node }

// Step returns the 1-based execution ordinal of this node run.
func (nc *NodeContext) Step() int { return nc.step }

// Emit publishes a named custom event.
func (nc *NodeContext) Emit(name string, payload any) error {
	return nc.emit(Event{Type: EventCustom, Node: nc.node, Name: name, Payload: payload, Step: nc.step})
}
