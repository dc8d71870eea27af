package pipeline

// Step names, used in error messages and logs.
const (
	StepStartRun      = "start_run"
	StepFetchRawTable = "fetch_raw_table"
	StepReconcile     = "reconcile"
	StepWriteOutput   = "write_output"
	StepMarkSuccess   = "mark_success"
)

// Source labels recorded on runs whose input is not an object URI.
const (
	SourceBigQuery = "bigquery"
)
