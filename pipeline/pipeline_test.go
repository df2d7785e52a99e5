package pipeline

import (
	"testing"

	"fizil/mutation"
)

func TestStreamRunsEachStrategyAcrossAllExamplesBeforeTheNext(t *testing.T) {
	examples := []Example{
		{Data: []byte{0x00}, FileExtension: ".bin", SourceFile: "a.bin"},
		{Data: []byte{0xff}, FileExtension: ".bin", SourceFile: "b.bin"},
	}
	ch := Stream(examples, nil)

	var stageNames []string
	for tc := range ch {
		if len(stageNames) == 0 || stageNames[len(stageNames)-1] != tc.Stage.Name {
			stageNames = append(stageNames, tc.Stage.Name)
		}
	}
	// useOriginal must run for both examples before bitflip 1/1 starts,
	// which must run for both examples before bitflip 2/1 starts, etc.,
	// so the observed run of distinct consecutive stage names must equal
	// the number of distinct stages, not the number of (stage, example)
	// pairs.
	distinct := map[string]bool{}
	for _, n := range stageNames {
		distinct[n] = true
	}
	if len(stageNames) != len(distinct) {
		t.Fatalf("stage order interleaved across examples: %v", stageNames)
	}
}

func TestStreamOnlyUseOriginalCasesAreSeeds(t *testing.T) {
	examples := []Example{{Data: []byte{0x01, 0x02}, FileExtension: ".bin", SourceFile: "seed.bin"}}
	ch := Stream(examples, nil)

	seeds := 0
	total := 0
	for tc := range ch {
		total++
		if tc.IsSeed() {
			seeds++
			if *tc.SourceFile != "seed.bin" {
				t.Fatalf("seed source file mismatch: %s", *tc.SourceFile)
			}
		}
	}
	if seeds != 1 {
		t.Fatalf("expected exactly 1 seed test case, got %d out of %d total", seeds, total)
	}
}

func TestOrderOmitsDictionaryStrategiesWhenEmpty(t *testing.T) {
	order := Order(nil)
	for _, s := range order {
		stage := s([]byte{0x01})
		if stage.Name == "dictionary overwrite" || stage.Name == "dictionary insert" {
			t.Fatalf("dictionary strategy present with empty dictionary: %s", stage.Name)
		}
	}
}

func TestOrderIncludesDictionaryStrategiesWhenPresent(t *testing.T) {
	dict := mutation.Dictionary{{Name: "t", Value: []byte{0x01}}}
	order := Order(dict)
	names := map[string]bool{}
	for _, s := range order {
		names[s([]byte{0x01, 0x02}).Name] = true
	}
	if !names["dictionary overwrite"] || !names["dictionary insert"] {
		t.Fatal("expected both dictionary strategies present with a non-empty dictionary")
	}
}
