package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyGraph indicates Compile on a builder with no nodes.
	ErrEmptyGraph = errors.New("graph has no nodes")

	// ErrNoEntry indicates Compile without SetEntry.
	ErrNoEntry = errors.New("graph entry node not set")

	// ErrUnknownNode indicates an edge or entry referencing an
	// unregistered node.
	ErrUnknownNode = errors.New("unknown node")

	// ErrDuplicateNode indicates AddNode with an already-used name.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrInvalidNodeName indicates an empty or reserved node name.
	ErrInvalidNodeName = errors.New("invalid node name")

	// ErrInvalidRoute indicates a conditional edge returned a label
	// outside its declared target set.
	ErrInvalidRoute = errors.New("invalid conditional route")

	// ErrMaxSteps indicates the per-run node execution cap was hit.
	ErrMaxSteps = errors.New("max steps exceeded")
)

// NodeError wraps a fatal node failure with the node's name.
type NodeError struct {
	Node string
	Err  error
}

// Error returns the formatted message.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q failed: %v", e.Node, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error {
	return e.Err
}
