package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"fizil"
	"fizil/coverage"
)

// OutOfProcessRunner spawns the target as a fresh child process for
// every test case. Each execution gets its own coverage region, so
// concurrent calls to Execute from multiple goroutines are safe, this
// is the only Runner that the engine's worker pool parallelizes over.
type OutOfProcessRunner struct {
	targetPath     string
	inputDelivery  fizil.InputDeliveryMode
	coverageEnvVar string
	coverageSize   int
	crashExitCode  int
}

// NewOutOfProcessRunner builds a runner that spawns targetPath for
// every test case, per the given RunConfig.
func NewOutOfProcessRunner(cfg fizil.RunConfig) *OutOfProcessRunner {
	cfg = cfg.WithDefaults()
	return &OutOfProcessRunner{
		targetPath:     cfg.TargetPath,
		inputDelivery:  cfg.InputDeliver,
		coverageEnvVar: cfg.CoverageEnvVar,
		coverageSize:   cfg.CoverageSize,
		crashExitCode:  cfg.CrashExitCode,
	}
}

func (r *OutOfProcessRunner) Parallel() bool { return true }

func (r *OutOfProcessRunner) Close() error { return nil }

// Execute spawns the target, feeds it the test case bytes per the
// configured delivery mode, waits for exit, and classifies the outcome.
// A failure to even spawn the child is reported as a non-crash result
// with the spawn error recorded in Stderr: per-test execution errors
// never abort the run, so the caller still gets a usable Result and
// the returned error is nil.
func (r *OutOfProcessRunner) Execute(ctx context.Context, tc fizil.TestCase) (fizil.Result, error) {
	region, err := coverage.Create(r.coverageSize)
	if err != nil {
		return fizil.Result{}, fmt.Errorf("runner: create coverage region: %w", err)
	}
	defer region.Dispose()

	cmd := exec.CommandContext(ctx, r.targetPath)
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%s", r.coverageEnvVar, region.Name()))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	switch r.inputDelivery {
	case fizil.OnCommandLine:
		cmd.Args = append(cmd.Args, string(tc.Data))
	case fizil.OnStandardInput:
		cmd.Stdin = bytes.NewReader(tc.Data)
	}

	runErr := cmd.Run()

	tr := fizil.TestResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			tr.ExitCode = exitErr.ExitCode()
		} else {
			tr.Stderr += runErr.Error()
			return fizil.Result{TestCase: tc, TestResult: tr, SharedMemory: region.Bytes()}, nil
		}
	} else if cmd.ProcessState != nil {
		tr.ExitCode = cmd.ProcessState.ExitCode()
	}
	tr.Crashed = tr.ExitCode == r.crashExitCode

	return fizil.Result{TestCase: tc, TestResult: tr, SharedMemory: region.Bytes()}, nil
}
