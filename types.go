// Package fizil defines the core data model shared by every stage of the
// fuzzing pipeline: the mutation strategies, the runner, and the result
// aggregator all speak in terms of TestCase, Stage, TestResult, and Result.
package fizil

import "time"

// TestCasesPerExample describes, for display purposes only, how many test
// cases a Stage is expected to produce from a single example of a given
// length. It is never consulted to bound the actual sequence, that is
// purely a property of the Stage's TestCases channel.
type TestCasesPerExample interface {
	// Count returns the expected number of test cases for an example of
	// exampleLen bytes.
	Count(exampleLen int) int
}

// PerByte reports an expected total proportional to the example length,
// e.g. bitFlip(1) produces roughly 8 cases per byte.
type PerByte int

func (p PerByte) Count(exampleLen int) int { return exampleLen * int(p) }

// PerExample reports a fixed expected total independent of example length,
// e.g. useOriginal always produces exactly one case.
type PerExample int

func (p PerExample) Count(int) int { return int(p) }

// Stage is one mutation strategy applied to one example: a name for
// display, the expected-count metadata, and a lazy, finite, single-pass
// sequence of mutated buffers. The channel is closed by its producer once
// exhausted; nothing else closes it and nothing restarts it.
type Stage struct {
	Name                string
	TestCasesPerExample TestCasesPerExample
	TestCases           <-chan []byte
}

// TestCase is an immutable unit of work: the bytes to feed the target,
// the extension used to name a persisted finding, the originating seed
// path (absent for generated mutations), and the stage that produced it.
type TestCase struct {
	Data          []byte
	FileExtension string
	SourceFile    *string
	Stage         Stage
}

// IsSeed reports whether this test case is an unmutated example rather
// than a generated mutation.
func (tc TestCase) IsSeed() bool { return tc.SourceFile != nil }

// TestResult is the target's observable outcome for one execution.
type TestResult struct {
	Crashed  bool
	ExitCode int
	Stderr   string
	Stdout   string
}

// Result bundles a TestCase with its TestResult and the coverage bitmap
// observed during execution. NewPathFound starts false and is filled in
// exclusively by the aggregator.
type Result struct {
	TestCase     TestCase
	TestResult   TestResult
	SharedMemory []byte
	NewPathFound bool
}

// StatusEvent is the sum type the core emits: Initialize once at run
// start, Update once per completed test. Consumers (a console display, a
// log sink, a metrics exporter) are external collaborators.
type StatusEvent struct {
	Initialize *InitializeEvent
	Update     *Result
}

// InitializeEvent reports the shape of the run before any test executes.
type InitializeEvent struct {
	StartTime    time.Time
	ExampleBytes int64
	ExampleCount int
}

// StatusSink receives StatusEvents. Implementations must not block the
// caller for long, the aggregator emits one event per completed test.
type StatusSink interface {
	Notify(StatusEvent)
}

// NoopStatusSink discards every event. Useful as a default when a caller
// has no status consumer wired up.
type NoopStatusSink struct{}

func (NoopStatusSink) Notify(StatusEvent) {}
