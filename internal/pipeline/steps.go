package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/daily-balance/internal/ledger"
	"github.com/dvloznov/daily-balance/internal/logger"
	"github.com/dvloznov/daily-balance/internal/notify"
)

// PipelineStep represents a single step in the reconciliation pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Source string
	Sink   string
	RunID  string
	Table  *ledger.Table
	Result *ledger.Result
}

// StartRunStep records a run with status=RUNNING.
type StartRunStep struct {
	Runs RunRepository
}

func (s *StartRunStep) Name() string { return StepStartRun }

func (s *StartRunStep) Execute(ctx context.Context, state *PipelineState) error {
	runID, err := s.Runs.StartRun(ctx, state.Source)
	if err != nil {
		return err
	}
	state.RunID = runID
	return nil
}

// FetchRawTableStep loads the raw extract.
type FetchRawTableStep struct {
	Source TableSource
}

func (s *FetchRawTableStep) Name() string { return StepFetchRawTable }

func (s *FetchRawTableStep) Execute(ctx context.Context, state *PipelineState) error {
	t, err := s.Source.FetchTable(ctx)
	if err != nil {
		return err
	}
	state.Table = t
	log := logger.FromContext(ctx)
	log.Debug().
		Int("columns", len(t.Columns)).
		Int("rows", t.Len()).
		Msg("Raw extract loaded")
	return nil
}

// ReconcileStep runs the engine over the fetched table.
type ReconcileStep struct {
	Engine *ledger.Engine
}

func (s *ReconcileStep) Name() string { return StepReconcile }

func (s *ReconcileStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := s.Engine.Reconcile(ctx, state.Table)
	if err != nil {
		return err
	}
	state.Result = res
	return nil
}

// WriteOutputStep persists the reconciled rows.
type WriteOutputStep struct {
	Sink TableSink
}

func (s *WriteOutputStep) Name() string { return StepWriteOutput }

func (s *WriteOutputStep) Execute(ctx context.Context, state *PipelineState) error {
	return s.Sink.WriteDailyBalances(ctx, state.RunID, state.Result.Rows)
}

// MarkSuccessStep marks the run as SUCCESS with its row counts.
type MarkSuccessStep struct {
	Runs RunRepository
}

func (s *MarkSuccessStep) Name() string { return StepMarkSuccess }

func (s *MarkSuccessStep) Execute(ctx context.Context, state *PipelineState) error {
	return s.Runs.MarkRunSucceeded(ctx, state.RunID, state.Result.Summary.InputRows, len(state.Result.Rows))
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps    []PipelineStep
	runs     RunRepository
	notifier Notifier
}

// NewPipeline creates a new pipeline with the given steps. When runs is not
// nil, a failure after the run was started marks it FAILED.
func NewPipeline(runs RunRepository, steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps, runs: runs}
}

// WithNotifier sets the notifier told about the outcome of every execution.
func (p *Pipeline) WithNotifier(n Notifier) *Pipeline {
	p.notifier = n
	return p
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	started := time.Now()
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			err = fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
			if p.runs != nil && state.RunID != "" && step.Name() != StepMarkSuccess {
				p.runs.MarkRunFailed(ctx, state.RunID, err)
			}
			p.sendNotice(ctx, state, step.Name(), started, err)
			return err
		}
	}
	p.sendNotice(ctx, state, "", started, nil)
	return nil
}

func (p *Pipeline) sendNotice(ctx context.Context, state *PipelineState, step string, started time.Time, runErr error) {
	if p.notifier == nil {
		return
	}

	n := notify.Notice{
		RunID:    state.RunID,
		Source:   state.Source,
		Sink:     state.Sink,
		Step:     step,
		Err:      runErr,
		Started:  started,
		Duration: time.Since(started),
	}
	if state.Result != nil {
		n.Summary = state.Result.Summary
		n.Diagnostics = state.Result.Diagnostics
	}

	if err := p.notifier.Notify(ctx, n); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("run_id", state.RunID).
			Msg("Run notification failed")
	}
}

// NewDailyBalancePipeline creates the standard five-step reconciliation pipeline.
func NewDailyBalancePipeline(deps Deps) *Pipeline {
	return NewPipeline(deps.Runs,
		&StartRunStep{Runs: deps.Runs},
		&FetchRawTableStep{Source: deps.Source},
		&ReconcileStep{Engine: deps.Engine},
		&WriteOutputStep{Sink: deps.Sink},
		&MarkSuccessStep{Runs: deps.Runs},
	).WithNotifier(deps.Notifier)
}
