package dag

import (
	"sync"
	"sync/atomic"

	"github.com/vk/voxpipe/internal/config"
)

// Graph is the complete, validated execution plan: a collection of nodes and
// their dependency links.
type Graph struct {
	Nodes map[string]*Node
}

// Node is a single vertex in the execution graph, representing one unit of
// work (executing a stage) or a stateful entity (a resource).
type Node struct {
	// ID is the unique, machine-readable identifier for the node.
	// Example: "stage.script.train_diffusion"
	ID string
	// Name is the human-readable instance name from the configuration.
	Name string
	// Type distinguishes between nodes that represent stages and resources.
	Type NodeType

	// StageConfig holds the configuration for a stage node. It is nil for resources.
	StageConfig *config.Stage
	// ResourceConfig holds the configuration for a resource node. It is nil for stages.
	ResourceConfig *config.Resource

	// Deps holds the set of nodes that this node depends on (predecessors).
	Deps map[string]*Node
	// Dependents holds the set of nodes that depend on this node (successors).
	Dependents map[string]*Node

	// Error stores any error that occurred during the node's execution.
	Error error
	// Output stores the result of the node's execution for use by downstream nodes.
	Output any

	// --- Internal state management ---

	// depCount is an atomic counter for unmet dependencies, used by the executor.
	depCount atomic.Int32
	// descendantCount is an atomic counter for a resource's stage dependents,
	// used for efficient resource cleanup.
	descendantCount atomic.Int32
	// state is the node's current execution state, managed atomically.
	state atomic.Int32
	// destroyOnce ensures a node's cleanup/destruction logic is run exactly once.
	destroyOnce sync.Once
	// skipOnce ensures a node is marked as skipped and processed exactly once.
	skipOnce sync.Once
}

// NodeType distinguishes between different kinds of nodes in the graph.
type NodeType int

const (
	// StageNode represents a node that executes a unit of pipeline work.
	StageNode NodeType = iota
	// ResourceNode represents a node that manages a stateful resource.
	ResourceNode
)

// State represents the execution state of a node in the graph.
type State int32

const (
	// Pending indicates the node is waiting for its dependencies to complete.
	Pending State = iota
	// Running indicates the node is currently being executed by a worker.
	Running
	// Done indicates the node has completed execution successfully.
	Done
	// Failed indicates the node has failed execution or was skipped.
	Failed
)

// SetInitialCounters snapshots the dependency topology into the atomic
// counters the executor decrements at runtime.
func (n *Node) SetInitialCounters() {
	n.depCount.Store(int32(len(n.Deps)))

	if n.Type == ResourceNode {
		stageDependents := int32(0)
		for _, dependent := range n.Dependents {
			if dependent.Type == StageNode {
				stageDependents++
			}
		}
		n.descendantCount.Store(stageDependents)
	}
}

// DepCount atomically returns the current number of unmet dependencies.
func (n *Node) DepCount() int32 {
	return n.depCount.Load()
}

// DecrementDepCount atomically decrements the dependency counter and returns the new value.
func (n *Node) DecrementDepCount() int32 {
	return n.depCount.Add(-1)
}

// DescendantCount atomically returns the number of remaining stage dependents.
func (n *Node) DescendantCount() int32 {
	return n.descendantCount.Load()
}

// DecrementDescendantCount atomically decrements the resource descendant counter.
func (n *Node) DecrementDescendantCount() int32 {
	return n.descendantCount.Add(-1)
}

// SetState atomically sets the node's execution state.
func (n *Node) SetState(s State) {
	n.state.Store(int32(s))
}

// GetState atomically retrieves the node's execution state.
func (n *Node) GetState() State {
	return State(n.state.Load())
}

// Destroy executes the given cleanup function exactly once, making it safe to
// call multiple times.
func (n *Node) Destroy(f func()) {
	n.destroyOnce.Do(f)
}

// Skip marks a node as failed and decrements the WaitGroup counter. It uses a
// sync.Once to guarantee this happens only once, returning true if it was the
// first time this node was skipped.
func (n *Node) Skip(err error, wg *sync.WaitGroup) bool {
	var wasSkipped bool
	n.skipOnce.Do(func() {
		n.SetState(Failed)
		n.Error = err
		wg.Done()
		wasSkipped = true
	})
	return wasSkipped
}
