// Package app wires configuration loading, module registration, graph
// construction, and execution into a single application lifecycle.
package app
