package runner

import (
	"context"
	"fmt"
	"os"
	"plugin"

	"fizil"
	"fizil/coverage"
)

// EntryPointSymbol is the exported symbol name the instrumentation
// contract requires an in-process target to expose. It must resolve to
// either func([]byte) fizil.TestResult or func(string) fizil.TestResult.
const EntryPointSymbol = "FizilEntryPoint"

type entryFunc func(input []byte) fizil.TestResult

// InProcessRunner loads the target as a Go plugin and calls its entry
// point directly in-process, reusing a single coverage region across
// every execution. Because the loaded target and the region are shared
// mutable state, InProcessRunner forbids concurrent Execute calls, the
// engine must run it serially.
type InProcessRunner struct {
	entry  entryFunc
	region *coverage.Region
	envVar string
}

// NewInProcessRunner loads targetPath as a Go plugin, binds its entry
// point, and allocates the single coverage region every execution will
// reuse. It fails fast with a descriptive error if the plugin does not
// export a valid entry point.
func NewInProcessRunner(cfg fizil.RunConfig) (*InProcessRunner, error) {
	cfg = cfg.WithDefaults()

	p, err := plugin.Open(cfg.TargetPath)
	if err != nil {
		return nil, fmt.Errorf("runner: load in-process target: %w", err)
	}
	sym, err := p.Lookup(EntryPointSymbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fizil.ErrNoEntryPoint, err)
	}
	entry, err := bindEntryPoint(sym)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fizil.ErrNoEntryPoint, err)
	}

	region, err := coverage.Create(cfg.CoverageSize)
	if err != nil {
		return nil, fmt.Errorf("runner: create coverage region: %w", err)
	}
	// There is no child process to hand an environment to, so the core
	// publishes the region name in its own environment; the loaded
	// target reads it from there instead.
	if err := os.Setenv(cfg.CoverageEnvVar, region.Name()); err != nil {
		region.Dispose()
		return nil, fmt.Errorf("runner: publish coverage region name: %w", err)
	}

	return &InProcessRunner{entry: entry, region: region, envVar: cfg.CoverageEnvVar}, nil
}

// bindEntryPoint accepts either a []byte- or string-taking entry point,
// per the instrumentation contract's "bytes or string" allowance, and
// wraps it in a uniform entryFunc.
func bindEntryPoint(sym plugin.Symbol) (entryFunc, error) {
	switch fn := sym.(type) {
	case func([]byte) fizil.TestResult:
		return fn, nil
	case func(string) fizil.TestResult:
		return func(input []byte) fizil.TestResult { return fn(string(input)) }, nil
	default:
		return nil, fmt.Errorf("runner: entry point has unsupported signature %T", sym)
	}
}

func (r *InProcessRunner) Parallel() bool { return false }

func (r *InProcessRunner) Close() error { return r.region.Dispose() }

// Execute clears the shared region, invokes the entry point directly,
// and reads the region back. Callers must serialize calls to Execute;
// InProcessRunner does no locking of its own.
func (r *InProcessRunner) Execute(ctx context.Context, tc fizil.TestCase) (fizil.Result, error) {
	r.region.Clear()
	tr := r.entry(tc.Data)
	return fizil.Result{TestCase: tc, TestResult: tr, SharedMemory: r.region.Bytes()}, nil
}
