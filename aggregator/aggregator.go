// Package aggregator implements Fizil's single-consumer result
// aggregator: one goroutine owns the run's mutable state (observed
// coverage hashes, the findings directory, the next finding number) and
// every decision about novelty and persistence is made there, so no
// locking is needed anywhere else in the engine.
package aggregator

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fizil"
)

// Aggregator receives results over a channel and decides, one at a
// time, whether each represents a newly observed coverage path and
// whether it should be persisted as a finding.
type Aggregator struct {
	results   chan fizil.Result
	drain     chan chan Summary
	sink      fizil.StatusSink
	done      chan struct{}
	onFinding func()
}

// Summary is returned by Drain once every in-flight result has been
// processed.
type Summary struct {
	TestsRun       int
	PathsFound     int
	FindingsSaved  int
	FindingsFolder string
}

// New starts the aggregator's consumer goroutine. examplesDir is the
// examples root a uniquely-named findings_* folder is created under;
// sink receives a StatusEvent for every processed result plus one
// InitializeEvent when Start is called. onFinding, if non-nil, is
// called once for every finding successfully persisted to disk.
func New(examplesDir string, sink fizil.StatusSink, queueDepth int, onFinding func()) (*Aggregator, error) {
	if sink == nil {
		sink = fizil.NoopStatusSink{}
	}
	folder, err := uniqueFindingsFolder(examplesDir, time.Now())
	if err != nil {
		return nil, err
	}
	// Reserve the name immediately so a second aggregator started in the
	// same process within the same second sees it and picks another.
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("aggregator: create findings folder: %w", err)
	}

	a := &Aggregator{
		results:   make(chan fizil.Result, queueDepth),
		drain:     make(chan chan Summary),
		sink:      sink,
		done:      make(chan struct{}),
		onFinding: onFinding,
	}
	go a.run(folder)
	return a, nil
}

// Submit enqueues a result for processing. It blocks if the queue is
// full, that backpressure is how the engine's worker pool is
// throttled to the aggregator's consumption rate.
func (a *Aggregator) Submit(r fizil.Result) {
	a.results <- r
}

// Start emits the run's InitializeEvent. Call it once, before
// submitting the first result.
func (a *Aggregator) Start(exampleCount int, exampleBytes int64) {
	a.sink.Notify(fizil.StatusEvent{Initialize: &fizil.InitializeEvent{
		StartTime:    time.Now(),
		ExampleBytes: exampleBytes,
		ExampleCount: exampleCount,
	}})
}

// Drain blocks until every result submitted before this call has been
// processed, then returns a final Summary. This is the synchronous
// barrier the engine waits on after closing off new work, it is safe
// to call exactly once, after the last Submit.
func (a *Aggregator) Drain() Summary {
	reply := make(chan Summary, 1)
	a.drain <- reply
	return <-reply
}

func (a *Aggregator) run(findingsFolder string) {
	state := &aggregatorState{observedPaths: make(map[string]struct{}), findingsFolder: findingsFolder}
	for {
		select {
		case r := <-a.results:
			a.process(state, r)
		case reply := <-a.drain:
			// Flush anything already queued before replying, so Drain
			// truly means "every Submit before this call is reflected."
			for {
				select {
				case r := <-a.results:
					a.process(state, r)
					continue
				default:
				}
				break
			}
			reply <- Summary{
				TestsRun:       state.testsRun,
				PathsFound:     len(state.observedPaths),
				FindingsSaved:  state.findingsSaved,
				FindingsFolder: state.findingsFolder,
			}
			return
		}
	}
}

type aggregatorState struct {
	observedPaths  map[string]struct{}
	findingName    int
	findingsFolder string
	testsRun       int
	findingsSaved  int
}

func (a *Aggregator) process(state *aggregatorState, r fizil.Result) {
	state.testsRun++

	hash := hashCoverage(r.SharedMemory)
	_, seen := state.observedPaths[hash]
	r.NewPathFound = !seen
	if !seen {
		state.observedPaths[hash] = struct{}{}
	}

	if shouldPersist(r) {
		if err := a.persist(state, r); err != nil {
			// Persistence failure is logged via the status sink as a
			// best-effort notice; it never aborts the run.
			r.TestResult.Stderr += fmt.Sprintf("\nfizil: persist finding: %v", err)
		} else {
			state.findingsSaved++
			if a.onFinding != nil {
				a.onFinding()
			}
		}
	}

	a.sink.Notify(fizil.StatusEvent{Update: &r})
}

// shouldPersist is Fizil's finding-recording policy: only a crash on a
// newly discovered path is worth keeping, and only when it was not
// already present in the seed corpus (a crashing seed is a broken seed,
// not a finding).
func shouldPersist(r fizil.Result) bool {
	return r.TestResult.Crashed && r.NewPathFound && !r.TestCase.IsSeed()
}

func (a *Aggregator) persist(state *aggregatorState, r fizil.Result) error {
	if err := os.MkdirAll(state.findingsFolder, 0o755); err != nil {
		return fmt.Errorf("mkdir findings folder: %w", err)
	}
	name := fmt.Sprintf("%06d%s", state.findingName, r.TestCase.FileExtension)
	state.findingName++
	path := filepath.Join(state.findingsFolder, name)
	return os.WriteFile(path, r.TestCase.Data, 0o644)
}

func hashCoverage(coverage []byte) string {
	sum := md5.Sum(coverage)
	return hex.EncodeToString(sum[:])
}

// uniqueFindingsFolder builds a findings_<yyyy-MM-dd_HH-mm-ss> folder
// name under examplesDir and appends "_" until it names a path that
// does not yet exist.
func uniqueFindingsFolder(examplesDir string, now time.Time) (string, error) {
	base := "findings_" + now.Format("2006-01-02_15-04-05")
	name := base
	for {
		path := filepath.Join(examplesDir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		} else if err != nil {
			return "", fmt.Errorf("aggregator: stat findings folder candidate: %w", err)
		}
		name += "_"
	}
}
