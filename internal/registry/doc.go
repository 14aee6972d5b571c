// Package registry holds the mapping between manifest-declared runner and
// asset types and the Go handler functions that implement them, and
// validates at startup that the two sides agree.
package registry
