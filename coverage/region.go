// Package coverage implements Fizil's shared-memory coverage channel:
// a named region the instrumented target writes edge-coverage into and
// the core reads back after each execution. Go has no stdlib POSIX
// shm_open, so the region is backed by a memory-mapped temp file, the
// fallback for platforms lacking named shared memory: a MAP_SHARED
// mapping of a regular file gives the same "create, write, map, read"
// semantics, and any other process that is given the file's path
// (through an environment variable) can join it.
package coverage

import (
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// counter guarantees unique region names within one fizil process even
// across concurrent out-of-process workers.
var counter atomic.Uint64

// Region is one live coverage-bitmap mapping. It is owned exclusively by
// whoever called Create; a region must never be shared across
// concurrent out-of-process workers.
type Region struct {
	file *os.File
	data []byte
}

// Create allocates a fresh region of size bytes backed by a new temp
// file and maps it into the process. The returned Region's Name is what
// the caller publishes to the target via the coverage environment
// variable.
func Create(size int) (*Region, error) {
	n := counter.Add(1)
	f, err := os.CreateTemp("", fmt.Sprintf("fizil-cov-%d-*", n))
	if err != nil {
		return nil, fmt.Errorf("coverage: create backing file: %w", err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("coverage: truncate backing file: %w", err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("coverage: mmap: %w", err)
	}
	return &Region{file: f, data: data}, nil
}

// Name returns the filesystem path the instrumented target must be
// told about (via the coverage environment variable) to join this
// region.
func (r *Region) Name() string { return r.file.Name() }

// Clear zeroes the region in place, for reuse across successive
// in-process executions.
func (r *Region) Clear() {
	for i := range r.data {
		r.data[i] = 0
	}
}

// Bytes returns a copy of the region's current contents. The core never
// hands out the live mapping, callers (notably the aggregator, which
// retains results past the region's lifetime) must not alias mmap'd
// memory.
func (r *Region) Bytes() []byte {
	out := make([]byte, len(r.data))
	copy(out, r.data)
	return out
}

// Dispose unmaps and removes the backing file. The region must not be
// used afterward.
func (r *Region) Dispose() error {
	err := unix.Munmap(r.data)
	closeErr := r.file.Close()
	removeErr := os.Remove(r.file.Name())
	if err != nil {
		return fmt.Errorf("coverage: munmap: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("coverage: close backing file: %w", closeErr)
	}
	if removeErr != nil {
		return fmt.Errorf("coverage: remove backing file: %w", removeErr)
	}
	return nil
}
