package graph

// EventType discriminates engine lifecycle events from node emissions.
type EventType string

const (
	// EventNodeStart is emitted when a node is scheduled.
	EventNodeStart EventType = "node_start"

	// EventNodeEnd is emitted after a node's delta has been reduced.
	// Payload carries the delta; Err is set for failed nodes.
	EventNodeEnd EventType = "node_end"

	// EventCustom is emitted by nodes via NodeContext.Emit.
	EventCustom EventType = "custom"
)

// Event is one entry on a run's event channel.
type Event struct {
	Type EventType

	// Node is the emitting or transitioning node.
	Node string

	// Name is the custom event name; empty for lifecycle events.
	Name string

	// Payload is the custom payload, or the node's delta on node_end.
	Payload any

	// Err is the node error on node_end (nil on success).
	Err error

	// Step is the execution ordinal the event belongs to.
	Step int
}
