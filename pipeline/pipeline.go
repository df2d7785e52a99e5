// Package pipeline assembles the fixed strategy order into a single
// stream of test cases spanning every seed example: useOriginal, then
// the bit/byte flip widths, then the
// arithmetic and interest widths, then the dictionary strategies, each
// applied in turn to every example before the next strategy starts.
package pipeline

import (
	"fizil"
	"fizil/mutation"
)

// Example is one seed: its bytes, the extension findings derived from it
// should carry, and its source path for provenance.
type Example struct {
	Data          []byte
	FileExtension string
	SourceFile    string
}

// Order returns the fixed strategy sequence, with
// the dictionary strategies included only when dict is non-empty.
func Order(dict mutation.Dictionary) []mutation.Strategy {
	strategies := []mutation.Strategy{
		mutation.UseOriginal,
		mutation.BitFlip(1),
		mutation.BitFlip(2),
		mutation.BitFlip(4),
		mutation.ByteFlip(1),
		mutation.ByteFlip(2),
		mutation.ByteFlip(4),
		mutation.Arith(1),
		mutation.Arith(2),
		mutation.Arith(4),
		mutation.Interest(1),
		mutation.Interest(2),
		mutation.Interest(4),
	}
	if len(dict) > 0 {
		strategies = append(strategies,
			mutation.DictionaryOverwrite(dict),
			mutation.DictionaryInsert(dict),
		)
	}
	return strategies
}

// Stream fans the strategy order across every example, strategy by
// strategy: every example runs through useOriginal before any example
// starts bitFlip(1), and so on. Each test case carries the originating
// example's extension and source path, and a nil SourceFile for every
// case past the first (useOriginal), only the unmutated copy is a seed.
func Stream(examples []Example, dict mutation.Dictionary) <-chan fizil.TestCase {
	out := make(chan fizil.TestCase, 64)
	go func() {
		defer close(out)
		for _, strat := range Order(dict) {
			for _, ex := range examples {
				stage := strat(ex.Data)
				first := true
				for data := range stage.TestCases {
					tc := fizil.TestCase{
						Data:          data,
						FileExtension: ex.FileExtension,
						Stage:         stage,
					}
					if first && stage.Name == "useOriginal" {
						src := ex.SourceFile
						tc.SourceFile = &src
					}
					first = false
					out <- tc
				}
			}
		}
	}()
	return out
}
