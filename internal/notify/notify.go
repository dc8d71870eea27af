package notify

import (
	"context"
	"time"

	"github.com/dvloznov/daily-balance/internal/ledger"
	"github.com/dvloznov/daily-balance/internal/logger"
)

// Notice describes the outcome of one reconciliation run.
type Notice struct {
	RunID  string
	Source string
	Sink   string

	// Step is the name of the failing step; empty when the run succeeded.
	Step string
	Err  error

	Summary     ledger.Summary
	Diagnostics []ledger.Diagnostic

	Started  time.Time
	Duration time.Duration
}

// Succeeded reports whether the run finished without error.
func (n Notice) Succeeded() bool {
	return n.Err == nil
}

// Finished returns the time the run ended.
func (n Notice) Finished() time.Time {
	return n.Started.Add(n.Duration)
}

// LogNotifier writes run outcomes to the context logger.
type LogNotifier struct{}

// Notify logs the notice. It never fails.
func (LogNotifier) Notify(ctx context.Context, n Notice) error {
	log := logger.WithRun(logger.FromContext(ctx), n.RunID)

	if !n.Succeeded() {
		log.Error().
			Err(n.Err).
			Str("source", n.Source).
			Str("sink", n.Sink).
			Str("step", n.Step).
			Dur("duration", n.Duration).
			Msg("Run failed")
		return nil
	}

	log.Info().
		Str("source", n.Source).
		Str("sink", n.Sink).
		Int("output_rows", n.Summary.OutputRows).
		Int("diagnostics", n.Summary.Diagnostics).
		Dur("duration", n.Duration).
		Msg("Run succeeded")
	return nil
}
