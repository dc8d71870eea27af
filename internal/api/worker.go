package api

import (
	"context"
	"errors"

	"github.com/dvloznov/daily-balance/internal/config"
	"github.com/dvloznov/daily-balance/internal/jobs"
	"github.com/dvloznov/daily-balance/internal/ledger"
	"github.com/dvloznov/daily-balance/internal/logger"
	"github.com/dvloznov/daily-balance/internal/pipeline"
	"github.com/dvloznov/daily-balance/internal/storage"
)

// DepsBuilder builds run dependencies for a pair of endpoints.
type DepsBuilder interface {
	Deps(source, sink config.EndpointConfig) (pipeline.Deps, error)
}

// ReconcileJobHandler runs reconcile jobs through the pipeline and records the
// run id and summary on the job. Errors no retry can fix are marked permanent.
func ReconcileJobHandler(builder DepsBuilder) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.ReconcileJob) error {
		log := logger.FromContext(ctx)
		log.Info().
			Str("source", job.Source.URI).
			Str("sink", job.Sink.URI).
			Msg("Processing reconcile job")

		deps, err := builder.Deps(endpoint(job.Source), endpoint(job.Sink))
		if err != nil {
			return jobs.Permanent(err)
		}

		report, err := pipeline.RunDailyBalanceWithDeps(ctx, deps)
		if report != nil {
			job.RunID = report.RunID
		}
		if err != nil {
			if permanent(err) {
				return jobs.Permanent(err)
			}
			return err
		}

		summary := report.Summary
		job.Summary = &summary
		job.Diagnostics = report.Diagnostics
		return nil
	}
}

func endpoint(ep jobs.Endpoint) config.EndpointConfig {
	return config.EndpointConfig{Kind: ep.Kind, URI: ep.URI}
}

func permanent(err error) bool {
	return errors.Is(err, ledger.ErrNotTabular) ||
		errors.Is(err, storage.ErrInvalidURI) ||
		errors.Is(err, storage.ErrNotFound)
}
