// Package runner implements Fizil's test-execution abstraction: the
// polymorphic Runner interface and its two implementations, one
// spawning the target as a child process (parallelizable) and one
// loading it in-process via Go's plugin mechanism (serial only).
package runner

import (
	"context"

	"fizil"
)

// Runner executes one test case against the target and returns its
// result plus the observed coverage snapshot. Implementations fill in
// Result.SharedMemory but never Result.NewPathFound, that is the
// aggregator's job.
type Runner interface {
	Execute(ctx context.Context, tc fizil.TestCase) (fizil.Result, error)

	// Parallel reports whether concurrent calls to Execute are safe.
	// OutOfProcessRunner returns true; InProcessRunner returns false.
	Parallel() bool

	// Close releases any resources the runner owns (coverage regions,
	// loaded plugins, worker state).
	Close() error
}
