package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dvloznov/daily-balance/internal/api"
	"github.com/dvloznov/daily-balance/internal/api/handlers"
	"github.com/dvloznov/daily-balance/internal/config"
	"github.com/dvloznov/daily-balance/internal/domain"
	infra "github.com/dvloznov/daily-balance/internal/infra/bigquery"
	"github.com/dvloznov/daily-balance/internal/jobs"
	"github.com/dvloznov/daily-balance/internal/jobs/inmemory"
	"github.com/dvloznov/daily-balance/internal/ledger"
	"github.com/dvloznov/daily-balance/internal/logger"
	"github.com/dvloznov/daily-balance/internal/pipeline"
)

// MockPublisher is a mock implementation of jobs.Publisher for testing.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, job *jobs.ReconcileJob) error
	published   []*jobs.ReconcileJob
}

func (m *MockPublisher) Publish(ctx context.Context, job *jobs.ReconcileJob) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, job); err != nil {
			return err
		}
	}
	if job.JobID == "" {
		job.JobID = "job-1"
	}
	job.Status = jobs.JobStatusPending
	m.published = append(m.published, job)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

func newServer(t *testing.T, pub jobs.Publisher, store jobs.JobStore) *httptest.Server {
	t.Helper()
	log := logger.NewWithWriter(io.Discard)
	runs := handlers.NewRunsHandler(pub,
		jobs.Endpoint{Kind: config.KindObject, URI: "gs://raw/extrato.parquet"},
		jobs.Endpoint{Kind: config.KindObject, URI: "gs://gold/diario.parquet"},
		log)
	srv := httptest.NewServer(api.NewRouter(runs, handlers.NewJobsHandler(store, log), log))
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv := newServer(t, &MockPublisher{}, inmemory.NewStore())

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestCreateRun(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		publishErr error
		wantStatus int
		wantSource string
	}{
		{name: "defaults", body: "", wantStatus: http.StatusAccepted, wantSource: "gs://raw/extrato.parquet"},
		{name: "explicit source", body: `{"source":{"kind":"object","uri":"/data/extrato.parquet"}}`, wantStatus: http.StatusAccepted, wantSource: "/data/extrato.parquet"},
		{name: "kind defaults to object", body: `{"source":{"uri":"file:///data/x.parquet"}}`, wantStatus: http.StatusAccepted, wantSource: "file:///data/x.parquet"},
		{name: "bad json", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "bad kind", body: `{"sink":{"kind":"ftp","uri":"x"}}`, wantStatus: http.StatusBadRequest},
		{name: "bad uri", body: `{"source":{"kind":"object","uri":"s3://bucket/x"}}`, wantStatus: http.StatusBadRequest},
		{name: "queue closed", body: "", publishErr: inmemory.ErrQueueClosed, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &MockPublisher{}
			if tt.publishErr != nil {
				pub.PublishFunc = func(ctx context.Context, job *jobs.ReconcileJob) error { return tt.publishErr }
			}
			srv := newServer(t, pub, inmemory.NewStore())

			resp, err := http.Post(srv.URL+"/api/runs", "application/json", bytes.NewBufferString(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusAccepted {
				if len(pub.published) != 0 {
					t.Error("Expected nothing to be published")
				}
				return
			}
			if len(pub.published) != 1 {
				t.Fatalf("published %d jobs, want 1", len(pub.published))
			}
			if got := pub.published[0].Source.URI; got != tt.wantSource {
				t.Errorf("source = %q, want %q", got, tt.wantSource)
			}
		})
	}
}

func TestJobsEndpoints(t *testing.T) {
	store := inmemory.NewStore()
	err := store.SaveJob(context.Background(), &jobs.ReconcileJob{
		JobID:     "abc",
		RunID:     "run-1",
		Status:    jobs.JobStatusCompleted,
		CreatedAt: time.Now(),
		Summary:   &ledger.Summary{OutputRows: 7},
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := newServer(t, &MockPublisher{}, store)

	resp, err := http.Get(srv.URL + "/api/jobs/abc")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var job jobs.ReconcileJob
	decode(t, resp, &job)
	if job.RunID != "run-1" || job.Summary == nil || job.Summary.OutputRows != 7 {
		t.Errorf("job = %+v", job)
	}

	resp, err = http.Get(srv.URL + "/api/jobs/missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/jobs?status=completed")
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Count int `json:"count"`
	}
	decode(t, resp, &list)
	if list.Count != 1 {
		t.Errorf("count = %d, want 1", list.Count)
	}

	resp, err = http.Post(srv.URL+"/api/jobs", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/jobs status = %d, want 405", resp.StatusCode)
	}
}

// stubBuilder returns fixed dependencies.
type stubBuilder struct {
	deps pipeline.Deps
	err  error
}

func (b stubBuilder) Deps(source, sink config.EndpointConfig) (pipeline.Deps, error) {
	return b.deps, b.err
}

type staticSource struct {
	table *ledger.Table
	err   error
}

func (s staticSource) FetchTable(ctx context.Context) (*ledger.Table, error) { return s.table, s.err }
func (s staticSource) Describe() string { return "static" }

type discardSink struct{}

func (discardSink) WriteDailyBalances(ctx context.Context, runID string, rows []domain.DailyBalanceRow) error {
	return nil
}
func (discardSink) Describe() string { return "discard" }

func TestReconcileJobHandler(t *testing.T) {
	table := &ledger.Table{
		Columns: []string{"empresa_id", "ncodcc", "dperiodoinicial", "dperiodofinal", "ddatalancamento", "nsaldo"},
		Rows:    [][]any{{"A1", "CC1", "2025-05-01", "2025-05-02", "2025-05-01", 10.0}},
	}
	engine := ledger.NewEngine(ledger.Options{Workers: 1})

	t.Run("Success", func(t *testing.T) {
		handler := api.ReconcileJobHandler(stubBuilder{deps: pipeline.Deps{
			Runs:   pipeline.LogRunRepository{},
			Source: staticSource{table: table},
			Sink:   discardSink{},
			Engine: engine,
		}})

		job := &jobs.ReconcileJob{JobID: "j1"}
		if err := handler(context.Background(), job); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if job.RunID == "" {
			t.Error("Expected run id to be recorded")
		}
		if job.Summary == nil || job.Summary.Transactions != 1 || job.Summary.ClosingRecords != 2 {
			t.Errorf("Summary = %+v", job.Summary)
		}
	})

	t.Run("MalformedInputIsPermanent", func(t *testing.T) {
		handler := api.ReconcileJobHandler(stubBuilder{deps: pipeline.Deps{
			Runs:   pipeline.LogRunRepository{},
			Source: staticSource{table: &ledger.Table{Rows: [][]any{{"x"}}}},
			Sink:   discardSink{},
			Engine: engine,
		}})

		err := handler(context.Background(), &jobs.ReconcileJob{JobID: "j2"})
		if !errors.Is(err, jobs.ErrPermanent) {
			t.Errorf("Expected permanent error, got: %v", err)
		}
	})

	t.Run("TransientErrorRetries", func(t *testing.T) {
		handler := api.ReconcileJobHandler(stubBuilder{deps: pipeline.Deps{
			Runs:   pipeline.LogRunRepository{},
			Source: staticSource{err: errors.New("connection reset")},
			Sink:   discardSink{},
			Engine: engine,
		}})

		err := handler(context.Background(), &jobs.ReconcileJob{JobID: "j3"})
		if err == nil || errors.Is(err, jobs.ErrPermanent) {
			t.Errorf("Expected retryable error, got: %v", err)
		}
	})

	t.Run("BadEndpointsArePermanent", func(t *testing.T) {
		handler := api.ReconcileJobHandler(stubBuilder{err: errors.New("source uri is empty")})
		err := handler(context.Background(), &jobs.ReconcileJob{JobID: "j4"})
		if !errors.Is(err, jobs.ErrPermanent) {
			t.Errorf("Expected permanent error, got: %v", err)
		}
	})
}

// MockRunLookup is a mock implementation of handlers.RunLookup for testing.
type MockRunLookup struct {
	GetRunFunc func(ctx context.Context, runID string) (*infra.ReconciliationRunRow, error)
}

func (m *MockRunLookup) GetRun(ctx context.Context, runID string) (*infra.ReconciliationRunRow, error) {
	return m.GetRunFunc(ctx, runID)
}

func TestGetRun(t *testing.T) {
	log := logger.NewWithWriter(io.Discard)
	newRunsServer := func(lookup handlers.RunLookup) *httptest.Server {
		runs := handlers.NewRunsHandler(&MockPublisher{}, jobs.Endpoint{}, jobs.Endpoint{}, log)
		if lookup != nil {
			runs.SetRunLookup(lookup)
		}
		srv := httptest.NewServer(api.NewRouter(runs, handlers.NewJobsHandler(inmemory.NewStore(), log), log))
		t.Cleanup(srv.Close)
		return srv
	}

	lookup := &MockRunLookup{
		GetRunFunc: func(ctx context.Context, runID string) (*infra.ReconciliationRunRow, error) {
			if runID != "run-1" {
				return nil, infra.ErrRunNotFound
			}
			return &infra.ReconciliationRunRow{RunID: "run-1", Source: "bigquery", Status: infra.RunStatusSuccess}, nil
		},
	}

	tests := []struct {
		name       string
		lookup     handlers.RunLookup
		path       string
		wantStatus int
	}{
		{name: "no warehouse", lookup: nil, path: "/api/runs/run-1", wantStatus: http.StatusNotImplemented},
		{name: "found", lookup: lookup, path: "/api/runs/run-1", wantStatus: http.StatusOK},
		{name: "missing", lookup: lookup, path: "/api/runs/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newRunsServer(tt.lookup)
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}
