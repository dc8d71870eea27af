package pipeline

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"

	"github.com/dvloznov/daily-balance/internal/config"
	infra "github.com/dvloznov/daily-balance/internal/infra/bigquery"
	"github.com/dvloznov/daily-balance/internal/ledger"
	"github.com/dvloznov/daily-balance/internal/logger"
	"github.com/dvloznov/daily-balance/internal/notify"
	"github.com/dvloznov/daily-balance/internal/storage"
)

// Deps are the collaborators of one reconciliation run. Notifier is optional.
type Deps struct {
	Runs     RunRepository
	Source   TableSource
	Sink     TableSink
	Engine   *ledger.Engine
	Notifier Notifier
}

// RunReport describes a finished run.
type RunReport struct {
	RunID       string              `json:"run_id"`
	Source      string              `json:"source"`
	Sink        string              `json:"sink"`
	Summary     ledger.Summary      `json:"summary"`
	Diagnostics []ledger.Diagnostic `json:"diagnostics,omitempty"`
}

// RunDailyBalanceWithDeps reconciles the source extract into the sink using
// the given collaborators.
func RunDailyBalanceWithDeps(ctx context.Context, deps Deps) (*RunReport, error) {
	if deps.Runs == nil || deps.Source == nil || deps.Sink == nil || deps.Engine == nil {
		return nil, errors.New("RunDailyBalance: incomplete dependencies")
	}

	state := &PipelineState{Source: deps.Source.Describe(), Sink: deps.Sink.Describe()}
	err := NewDailyBalancePipeline(deps).Execute(ctx, state)

	report := &RunReport{
		RunID:  state.RunID,
		Source: deps.Source.Describe(),
		Sink:   deps.Sink.Describe(),
	}
	if state.Result != nil {
		report.Summary = state.Result.Summary
		report.Diagnostics = state.Result.Diagnostics
	}
	if err != nil {
		return report, err
	}

	log := logger.WithRun(logger.FromContext(ctx), state.RunID)
	if report.Summary.Empty() {
		log.Warn().Str("source", report.Source).Msg("No data: wrote an empty daily balance table")
	}
	log.Info().
		Str("source", report.Source).
		Str("sink", report.Sink).
		Int("output_rows", report.Summary.OutputRows).
		Int("diagnostics", report.Summary.Diagnostics).
		Msg("Run completed")
	return report, nil
}

// Factory builds run dependencies from configuration. It owns the storage and
// warehouse clients shared by every run it builds.
type Factory struct {
	cfg      *config.Config
	store    storage.ObjectStore
	gcs      *storage.GCSStore
	repo     *infra.BigQueryRepository
	engine   *ledger.Engine
	notifier Notifier
}

// NewFactory creates the clients the configuration needs. The GCS client is
// created only when a bucket or credentials are configured, or an endpoint
// URI points at gs://; the BigQuery client only when a project is set.
func NewFactory(ctx context.Context, cfg *config.Config) (*Factory, error) {
	f := &Factory{
		cfg: cfg,
		engine: ledger.NewEngine(ledger.Options{
			Workers:        cfg.Engine.Workers,
			SkipValidation: cfg.Engine.SkipValidation,
		}),
	}

	switch cfg.Notify.Kind {
	case config.NotifySMTP:
		f.notifier = notify.NewSMTPNotifier(cfg.Notify)
	case config.NotifyLog:
		f.notifier = notify.LogNotifier{}
	}

	var opts []option.ClientOption
	if cfg.GCS.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCS.CredentialsFile))
	}

	if needsGCS(cfg) {
		gcs, err := storage.NewGCSStore(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("NewFactory: %w", err)
		}
		f.gcs = gcs
	}
	if f.gcs != nil {
		f.store = storage.NewRouter(f.gcs, nil)
	} else {
		f.store = storage.NewRouter(nil, nil)
	}

	if cfg.BigQuery.ProjectID != "" {
		repo, err := infra.NewBigQueryRepository(ctx, infra.Tables{
			ProjectID:    cfg.BigQuery.ProjectID,
			Dataset:      cfg.BigQuery.Dataset,
			RawLedger:    cfg.BigQuery.RawTable,
			DailyBalance: cfg.BigQuery.OutputTable,
			Runs:         cfg.BigQuery.RunsTable,
			BatchSize:    cfg.BigQuery.BatchSize,
		}, opts...)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("NewFactory: %w", err)
		}
		f.repo = repo
	}
	return f, nil
}

func needsGCS(cfg *config.Config) bool {
	if cfg.GCS.Bucket != "" || cfg.GCS.CredentialsFile != "" {
		return true
	}
	for _, ep := range []config.EndpointConfig{cfg.Source, cfg.Sink} {
		if loc, err := storage.ParseURI(ep.URI); err == nil && loc.Scheme == storage.SchemeGCS {
			return true
		}
	}
	return false
}

// Warehouse returns the BigQuery repository, or nil when no project is configured.
func (f *Factory) Warehouse() *infra.BigQueryRepository {
	return f.repo
}

// Deps builds the collaborators for a run between source and sink.
func (f *Factory) Deps(source, sink config.EndpointConfig) (Deps, error) {
	deps := Deps{Engine: f.engine, Runs: LogRunRepository{}, Notifier: f.notifier}
	if f.repo != nil {
		deps.Runs = f.repo
	}

	switch source.Kind {
	case config.KindBigQuery:
		if f.repo == nil {
			return Deps{}, errors.New("Deps: bigquery source without a configured project")
		}
		deps.Source = &WarehouseSource{Repo: f.repo}
	default:
		if source.URI == "" {
			return Deps{}, errors.New("Deps: source uri is empty")
		}
		deps.Source = &ObjectSource{Store: f.store, URI: source.URI}
	}

	switch sink.Kind {
	case config.KindBigQuery:
		if f.repo == nil {
			return Deps{}, errors.New("Deps: bigquery sink without a configured project")
		}
		deps.Sink = &WarehouseSink{Repo: f.repo}
	default:
		if sink.URI == "" {
			return Deps{}, errors.New("Deps: sink uri is empty")
		}
		deps.Sink = &ObjectSink{Store: f.store, URI: sink.URI}
	}
	return deps, nil
}

// Close releases the clients.
func (f *Factory) Close() error {
	var errs []error
	if f.gcs != nil {
		errs = append(errs, f.gcs.Close())
	}
	if f.repo != nil {
		errs = append(errs, f.repo.Close())
	}
	return errors.Join(errs...)
}

// RunDailyBalance runs one reconciliation between the configured source and sink.
func RunDailyBalance(ctx context.Context, cfg *config.Config) (*RunReport, error) {
	if err := cfg.RequireObjectURIs(); err != nil {
		return nil, fmt.Errorf("RunDailyBalance: %w", err)
	}

	f, err := NewFactory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("RunDailyBalance: %w", err)
	}
	defer f.Close()

	deps, err := f.Deps(cfg.Source, cfg.Sink)
	if err != nil {
		return nil, fmt.Errorf("RunDailyBalance: %w", err)
	}
	return RunDailyBalanceWithDeps(ctx, deps)
}
