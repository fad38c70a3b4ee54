package graph

// CreateTestContext returns a NodeContext that delivers emits to sink,
// for exercising node functions without a compiled engine. A nil sink
// drops the events.
func CreateTestContext(node string, sink func(Event) error) *NodeContext {
	if sink == nil {
		sink = func(Event) error { return nil }
	}
	return &NodeContext{node: node, step: 1, emit: sink}
}
