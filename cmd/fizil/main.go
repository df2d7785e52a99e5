package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"fizil"
	"fizil/engine"
	"fizil/mutation"
	"fizil/pipeline"
	"fizil/runner"
)

var (
	targetPath   = flag.String("target", "", "path to the target executable or plugin")
	examplesDir  = flag.String("examples", "", "directory of seed example files")
	dictPath     = flag.String("dictionary", "", "optional JSON dictionary file")
	inProcess    = flag.Bool("in-process", false, "load the target in-process via Go's plugin mechanism instead of spawning it")
	onStdin      = flag.Bool("stdin", false, "deliver test case bytes on the child's stdin instead of as a command-line argument")
	workers      = flag.Int("workers", 8, "number of concurrent out-of-process workers")
	metricsAddr  = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
	coverageSize = flag.Int("coverage-size", 64*1024, "size in bytes of the shared-memory coverage region")
)

func main() {
	flag.Parse()

	if *targetPath == "" || *examplesDir == "" {
		fmt.Fprintln(os.Stderr, "fizil: -target and -examples are required")
		flag.Usage()
		os.Exit(2)
	}

	examples, err := loadExamples(*examplesDir)
	if err != nil {
		log.Fatalf("fizil: load examples: %v", err)
	}

	var dict mutation.Dictionary
	if *dictPath != "" {
		dict, err = mutation.Load(*dictPath)
		if err != nil {
			log.Fatalf("fizil: load dictionary: %v", err)
		}
	}

	delivery := fizil.OnCommandLine
	if *onStdin {
		delivery = fizil.OnStandardInput
	}

	cfg := fizil.RunConfig{
		TargetPath:   *targetPath,
		InputDeliver: delivery,
		ExamplesDir:  *examplesDir,
		Dictionary:   dictionaryTokens(dict),
		CoverageSize: *coverageSize,
		Workers:      *workers,
		MetricsAddr:  *metricsAddr,
	}.WithDefaults()

	var r runner.Runner
	if *inProcess {
		r, err = runner.NewInProcessRunner(cfg)
		if err != nil {
			log.Fatalf("fizil: load in-process target: %v", err)
		}
	} else {
		r = runner.NewOutOfProcessRunner(cfg)
	}
	defer r.Close()

	var metrics *engine.Metrics
	if cfg.MetricsAddr != "" {
		metrics = engine.NewMetrics()
		metrics.Serve(cfg.MetricsAddr)
		defer metrics.Close()
	}

	sink := engine.NewLogrusSink(nil)

	summary, err := engine.Run(context.Background(), cfg, r, examples, metrics, sink)
	if err != nil {
		log.Fatalf("fizil: run failed: %v", err)
	}

	fmt.Printf("tests run: %d, paths found: %d, findings saved: %d, findings folder: %s\n",
		summary.TestsRun, summary.PathsFound, summary.FindingsSaved, summary.FindingsFolder)
}

func dictionaryTokens(dict mutation.Dictionary) []fizil.DictionaryToken {
	if len(dict) == 0 {
		return nil
	}
	tokens := make([]fizil.DictionaryToken, len(dict))
	for i, tok := range dict {
		tokens[i] = fizil.DictionaryToken{Name: tok.Name, Value: tok.Value}
	}
	return tokens
}

func loadExamples(dir string) ([]pipeline.Example, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var examples []pipeline.Example
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read example %s: %w", path, err)
		}
		examples = append(examples, pipeline.Example{
			Data:          data,
			FileExtension: filepath.Ext(e.Name()),
			SourceFile:    path,
		})
	}
	return examples, nil
}
