// Package executor runs a built dependency graph: a pool of workers pulls
// ready nodes from a channel, decodes their arguments against the live
// evaluation context, invokes the registered Go handlers, and propagates
// failure by cancelling the run and skipping dependents. Resources are
// created on demand and destroyed as soon as their last consumer finishes.
package executor
