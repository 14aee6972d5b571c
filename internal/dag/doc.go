// Package dag turns a loaded config model into a validated dependency graph:
// one node per stage or resource, edges from explicit depends_on entries and
// from implicit references inside HCL expressions, with cycle detection.
package dag
