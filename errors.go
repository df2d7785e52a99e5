package fizil

import "errors"

// ErrNoExamples is returned by Run when the seed corpus is empty. This is
// the "ExamplesNotFound" outcome the top-level entry point must surface;
// the run never starts.
var ErrNoExamples = errors.New("fizil: no examples found")

// ErrNoEntryPoint is returned when an in-process runner cannot locate a
// valid tagged entry point in the loaded target.
var ErrNoEntryPoint = errors.New("fizil: no valid in-process entry point found")
