package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Source and sink kinds.
const (
	KindObject   = "object"
	KindBigQuery = "bigquery"
)

// Notifier kinds.
const (
	NotifyNone = "none"
	NotifyLog  = "log"
	NotifySMTP = "smtp"
)

// Config represents the service configuration
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Source   EndpointConfig `yaml:"source"`
	Sink     EndpointConfig `yaml:"sink"`
	GCS      GCSConfig      `yaml:"gcs"`
	BigQuery BigQueryConfig `yaml:"bigquery"`
	Engine   EngineConfig   `yaml:"engine"`
	API      APIConfig      `yaml:"api"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// ServiceConfig holds service-level settings
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// EndpointConfig says where the raw extract is read from or the reconciled table is written to.
// Object endpoints use URI (gs://bucket/object, file:// or a plain path); BigQuery
// endpoints use the table names of BigQueryConfig.
type EndpointConfig struct {
	Kind string `yaml:"kind"`
	URI  string `yaml:"uri"`
}

// GCSConfig holds object storage settings
type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
}

// BigQueryConfig holds warehouse settings
type BigQueryConfig struct {
	ProjectID   string `yaml:"project_id"`
	Dataset     string `yaml:"dataset"`
	RawTable    string `yaml:"raw_table"`
	OutputTable string `yaml:"output_table"`
	RunsTable   string `yaml:"runs_table"`
	BatchSize   int    `yaml:"batch_size"`
}

// EngineConfig holds reconciliation settings
type EngineConfig struct {
	Workers        int  `yaml:"workers"`
	SkipValidation bool `yaml:"skip_validation"`
}

// APIConfig holds HTTP server settings
type APIConfig struct {
	Port         string `yaml:"port"`
	QueueSize    int    `yaml:"queue_size"`
	QueueWorkers int    `yaml:"queue_workers"`
}

// NotifyConfig holds run notification settings. Port 465 uses implicit TLS;
// other ports upgrade with STARTTLS when the server offers it.
type NotifyConfig struct {
	Kind          string   `yaml:"kind"`
	SMTPHost      string   `yaml:"smtp_host"`
	SMTPPort      string   `yaml:"smtp_port"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	From          string   `yaml:"from"`
	Recipients    []string `yaml:"recipients"`
	SubjectPrefix string   `yaml:"subject_prefix"`
}

// Default returns the configuration used when no file or environment overrides are present.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "daily-balance",
			LogLevel:  "info",
			LogFormat: "console",
		},
		Source: EndpointConfig{Kind: KindObject},
		Sink:   EndpointConfig{Kind: KindObject},
		BigQuery: BigQueryConfig{
			Dataset:     "gold",
			RawTable:    "fato_extrato_conta_corrente",
			OutputTable: "fato_extrato_diario_conta_corrente",
			RunsTable:   "reconciliation_runs",
			BatchSize:   500,
		},
		Engine: EngineConfig{Workers: 4},
		API: APIConfig{
			Port:         "8080",
			QueueSize:    100,
			QueueWorkers: 5,
		},
		Notify: NotifyConfig{
			Kind:          NotifyLog,
			SMTPPort:      "465",
			SubjectPrefix: "daily-balance",
		},
	}
}

// Load reads an optional .env file, then the YAML file at path over the
// defaults, then environment overrides, and validates the result. An empty
// path skips the YAML file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("Load: reading .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("Load: reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("Load: parsing config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables looked up with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set("LEDGER_LOG_LEVEL", &c.Service.LogLevel)
	set("LEDGER_LOG_FORMAT", &c.Service.LogFormat)
	set("LEDGER_SOURCE_KIND", &c.Source.Kind)
	set("LEDGER_SOURCE_URI", &c.Source.URI)
	set("LEDGER_SINK_KIND", &c.Sink.Kind)
	set("LEDGER_SINK_URI", &c.Sink.URI)
	set("LEDGER_API_PORT", &c.API.Port)
	set("GCS_BUCKET", &c.GCS.Bucket)
	set("GOOGLE_APPLICATION_CREDENTIALS", &c.GCS.CredentialsFile)
	set("BQ_PROJECT_ID", &c.BigQuery.ProjectID)
	set("BQ_DATASET", &c.BigQuery.Dataset)
	set("NOTIFY_KIND", &c.Notify.Kind)
	set("SMTP_HOST", &c.Notify.SMTPHost)
	set("SMTP_PORT", &c.Notify.SMTPPort)
	set("SMTP_USER", &c.Notify.Username)
	set("SMTP_PASS", &c.Notify.Password)
	set("NOTIFY_FROM", &c.Notify.From)

	if v := strings.TrimSpace(getenv("NOTIFY_RECIPIENTS")); v != "" {
		c.Notify.Recipients = nil
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				c.Notify.Recipients = append(c.Notify.Recipients, r)
			}
		}
	}

	if v := strings.TrimSpace(getenv("LEDGER_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LEDGER_WORKERS must be an integer: %w", err)
		}
		c.Engine.Workers = n
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Engine.Workers < 1 {
		return fmt.Errorf("engine.workers must be at least 1")
	}
	if c.BigQuery.BatchSize < 1 {
		return fmt.Errorf("bigquery.batch_size must be at least 1")
	}

	for name, ep := range map[string]EndpointConfig{"source": c.Source, "sink": c.Sink} {
		switch ep.Kind {
		case KindObject:
		case KindBigQuery:
			if c.BigQuery.ProjectID == "" {
				return fmt.Errorf("%s.kind is bigquery but bigquery.project_id is empty", name)
			}
		default:
			return fmt.Errorf("%s.kind must be %q or %q, got %q", name, KindObject, KindBigQuery, ep.Kind)
		}
	}

	switch strings.ToLower(c.Service.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("service.log_format must be console or json, got %q", c.Service.LogFormat)
	}

	switch c.Notify.Kind {
	case NotifyNone, NotifyLog:
	case NotifySMTP:
		if c.Notify.SMTPHost == "" || c.Notify.SMTPPort == "" {
			return fmt.Errorf("notify.smtp_host and notify.smtp_port are required for smtp notifications")
		}
		if len(c.Notify.Recipients) == 0 {
			return fmt.Errorf("notify.recipients is empty")
		}
		if c.Notify.From == "" && c.Notify.Username == "" {
			return fmt.Errorf("notify.from or notify.username is required for smtp notifications")
		}
	default:
		return fmt.Errorf("notify.kind must be %q, %q or %q, got %q", NotifyNone, NotifyLog, NotifySMTP, c.Notify.Kind)
	}
	return nil
}

// RequireObjectURIs checks that object endpoints carry a URI. Only one-shot runs need it;
// the API receives URIs per request.
func (c *Config) RequireObjectURIs() error {
	if c.Source.Kind == KindObject && c.Source.URI == "" {
		return fmt.Errorf("source.uri is required for object sources")
	}
	if c.Sink.Kind == KindObject && c.Sink.URI == "" {
		return fmt.Errorf("sink.uri is required for object sinks")
	}
	return nil
}
