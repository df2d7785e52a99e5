// Package engine wires the mutation pipeline, a Runner, and the
// aggregator into a complete run: the execute-observe-decide loop
// the mutation pipeline produces. It is the concurrent heart of Fizil:
// an out-of-process run drives bounded worker goroutines with
// golang.org/x/sync/errgroup, an in-process run drives a single serial
// loop, and either way every result funnels through one aggregator.
package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"fizil"
	"fizil/aggregator"
	"fizil/mutation"
	"fizil/pipeline"
	"fizil/runner"
)

// dictionaryFrom converts the config's plain DictionaryToken list into
// the form the mutation package's dictionary strategies consume.
func dictionaryFrom(tokens []fizil.DictionaryToken) mutation.Dictionary {
	if len(tokens) == 0 {
		return nil
	}
	dict := make(mutation.Dictionary, len(tokens))
	for i, t := range tokens {
		dict[i] = mutation.Token{Name: t.Name, Value: t.Value}
	}
	return dict
}

// Run executes a complete fuzzing run: it streams test cases from
// examples through the strategy pipeline, executes each against r, and
// feeds every result to a freshly started aggregator. It returns the
// aggregator's final Summary once every test case has been processed.
func Run(ctx context.Context, cfg fizil.RunConfig, r runner.Runner, examples []pipeline.Example, metrics *Metrics, sink fizil.StatusSink) (aggregator.Summary, error) {
	cfg = cfg.WithDefaults()
	if len(examples) == 0 {
		return aggregator.Summary{}, fizil.ErrNoExamples
	}

	var onFinding func()
	if metrics != nil {
		onFinding = metrics.ObserveFinding
	}
	agg, err := aggregator.New(cfg.ExamplesDir, sink, cfg.AggregatorQueueDepth, onFinding)
	if err != nil {
		return aggregator.Summary{}, fmt.Errorf("engine: start aggregator: %w", err)
	}

	var exampleBytes int64
	for _, ex := range examples {
		exampleBytes += int64(len(ex.Data))
	}
	startedAt := time.Now()
	agg.Start(len(examples), exampleBytes)

	stream := pipeline.Stream(examples, dictionaryFrom(cfg.Dictionary))

	if r.Parallel() {
		if err := runParallel(ctx, cfg, r, stream, agg, metrics); err != nil {
			return aggregator.Summary{}, err
		}
	} else {
		if err := runSerial(ctx, r, stream, agg, metrics); err != nil {
			return aggregator.Summary{}, err
		}
	}

	summary := agg.Drain()
	if err := NewReport(summary, startedAt).WriteFile(); err != nil {
		return summary, fmt.Errorf("engine: write report: %w", err)
	}
	return summary, nil
}

func runParallel(ctx context.Context, cfg fizil.RunConfig, r runner.Runner, stream <-chan fizil.TestCase, agg *aggregator.Aggregator, metrics *Metrics) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for tc := range stream {
		tc := tc
		g.Go(func() error {
			result, err := r.Execute(gctx, tc)
			if err != nil {
				// Per-test execution errors never abort the run: record
				// the failure as a non-crash result and continue.
				result = fizil.Result{TestCase: tc, TestResult: fizil.TestResult{Stderr: err.Error()}}
			}
			agg.Submit(result)
			if metrics != nil {
				metrics.Observe(result)
			}
			return nil
		})
	}
	return g.Wait()
}

func runSerial(ctx context.Context, r runner.Runner, stream <-chan fizil.TestCase, agg *aggregator.Aggregator, metrics *Metrics) error {
	for tc := range stream {
		result, err := r.Execute(ctx, tc)
		if err != nil {
			result = fizil.Result{TestCase: tc, TestResult: fizil.TestResult{Stderr: err.Error()}}
		}
		agg.Submit(result)
		if metrics != nil {
			metrics.Observe(result)
		}
	}
	return nil
}
