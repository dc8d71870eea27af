package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/daily-balance/internal/api/middleware"
	"github.com/dvloznov/daily-balance/internal/config"
	infra "github.com/dvloznov/daily-balance/internal/infra/bigquery"
	"github.com/dvloznov/daily-balance/internal/jobs"
	"github.com/dvloznov/daily-balance/internal/storage"
)

// RunLookup reads recorded runs.
type RunLookup interface {
	GetRun(ctx context.Context, runID string) (*infra.ReconciliationRunRow, error)
}

// RunsHandler enqueues reconciliation runs and reports recorded ones.
type RunsHandler struct {
	publisher jobs.Publisher
	lookup    RunLookup
	source    jobs.Endpoint
	sink      jobs.Endpoint
	log       zerolog.Logger
}

// NewRunsHandler creates a runs handler. source and sink are used for
// request fields left empty.
func NewRunsHandler(publisher jobs.Publisher, source, sink jobs.Endpoint, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{
		publisher: publisher,
		source:    source,
		sink:      sink,
		log:       log,
	}
}

type createRunRequest struct {
	Source *jobs.Endpoint `json:"source"`
	Sink   *jobs.Endpoint `json:"sink"`
}

// CreateRun handles POST /api/runs
func (h *RunsHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	job := &jobs.ReconcileJob{
		Source: pick(req.Source, h.source),
		Sink:   pick(req.Sink, h.sink),
	}
	if err := checkEndpoint("source", job.Source); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkEndpoint("sink", job.Sink); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.publisher.Publish(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue reconcile job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue reconcile job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("source", job.Source.URI).
		Str("sink", job.Sink.URI).
		Msg("Reconcile job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// SetRunLookup enables GET /api/runs/{id}.
func (h *RunsHandler) SetRunLookup(lookup RunLookup) {
	h.lookup = lookup
}

// GetRun handles GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.lookup == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "Run history requires a BigQuery project")
		return
	}
	runID := chi.URLParam(r, "id")

	run, err := h.lookup.GetRun(r.Context(), runID)
	if errors.Is(err, infra.ErrRunNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("run_id", runID).Msg("Failed to get run")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, run)
}

func pick(requested *jobs.Endpoint, fallback jobs.Endpoint) jobs.Endpoint {
	if requested == nil {
		return fallback
	}
	ep := *requested
	if ep.Kind == "" {
		ep.Kind = config.KindObject
	}
	return ep
}

func checkEndpoint(name string, ep jobs.Endpoint) error {
	switch ep.Kind {
	case config.KindBigQuery:
		return nil
	case config.KindObject:
		if ep.URI == "" {
			return errors.New(name + ".uri is required")
		}
		if _, err := storage.ParseURI(ep.URI); err != nil {
			return errors.New(name + ".uri is not a valid object URI")
		}
		return nil
	}
	return errors.New(name + ".kind must be object or bigquery")
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		RunID:  query.Get("run_id"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
