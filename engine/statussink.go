package engine

import (
	"github.com/sirupsen/logrus"

	"fizil"
)

// LogrusSink adapts fizil.StatusSink to structured logging via logrus.
// It is the core's only opinion about how status events look on a
// terminal or in a log aggregator, callers that want the bespoke
// console display are expected to provide their own StatusSink
// instead.
type LogrusSink struct {
	log *logrus.Logger
}

// NewLogrusSink wraps log (nil selects logrus's standard logger) as a
// StatusSink.
func NewLogrusSink(log *logrus.Logger) *LogrusSink {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogrusSink{log: log}
}

func (s *LogrusSink) Notify(ev fizil.StatusEvent) {
	switch {
	case ev.Initialize != nil:
		s.log.WithFields(logrus.Fields{
			"example_count": ev.Initialize.ExampleCount,
			"example_bytes": ev.Initialize.ExampleBytes,
			"start_time":    ev.Initialize.StartTime,
		}).Info("run initialized")
	case ev.Update != nil:
		r := ev.Update
		entry := s.log.WithFields(logrus.Fields{
			"stage":          r.TestCase.Stage.Name,
			"exit_code":      r.TestResult.ExitCode,
			"crashed":        r.TestResult.Crashed,
			"new_path_found": r.NewPathFound,
		})
		if r.TestResult.Crashed {
			entry.Warn("test execution crashed")
		} else {
			entry.Debug("test execution completed")
		}
	}
}
