package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/dvloznov/daily-balance/internal/config"
	"github.com/dvloznov/daily-balance/internal/domain"
	"github.com/dvloznov/daily-balance/internal/logger"
	"github.com/dvloznov/daily-balance/internal/parquetio"
	"github.com/dvloznov/daily-balance/internal/pipeline"
	"github.com/dvloznov/daily-balance/internal/storage"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runReconcile()
	case "upload":
		runUpload(log)
	case "inspect":
		runInspect(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Daily Balance CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run       Reconcile a raw ledger extract into the daily balance table")
	fmt.Println("  upload    Upload a local extract file to GCS")
	fmt.Println("  inspect   Summarize a reconciled daily balance file")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runReconcile() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to YAML config file")
	source := fs.String("source", "", "Extract URI (gs://, file:// or path); overrides config")
	sink := fs.String("sink", "", "Output URI (gs://, file:// or path); overrides config")
	sourceKind := fs.String("source-kind", "", "object or bigquery; overrides config")
	sinkKind := fs.String("sink-kind", "", "object or bigquery; overrides config")
	workers := fs.Int("workers", 0, "Account partitions reconciled in parallel; overrides config")
	timeout := fs.Duration("timeout", 30*time.Minute, "Run timeout")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyRunFlags(cfg, *source, *sink, *sourceKind, *sinkKind, *workers)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewFromConfig(cfg.Service.LogLevel, cfg.Service.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("source_kind", cfg.Source.Kind).
		Str("source", cfg.Source.URI).
		Str("sink_kind", cfg.Sink.Kind).
		Str("sink", cfg.Sink.URI).
		Int("workers", cfg.Engine.Workers).
		Msg("Starting reconciliation")

	report, err := pipeline.RunDailyBalance(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Reconciliation failed")
	}

	printReport(os.Stdout, report)
}

// applyRunFlags overrides config fields with non-empty flag values.
func applyRunFlags(cfg *config.Config, source, sink, sourceKind, sinkKind string, workers int) {
	if source != "" {
		cfg.Source.URI = source
		if sourceKind == "" {
			cfg.Source.Kind = config.KindObject
		}
	}
	if sink != "" {
		cfg.Sink.URI = sink
		if sinkKind == "" {
			cfg.Sink.Kind = config.KindObject
		}
	}
	if sourceKind != "" {
		cfg.Source.Kind = sourceKind
	}
	if sinkKind != "" {
		cfg.Sink.Kind = sinkKind
	}
	if workers > 0 {
		cfg.Engine.Workers = workers
	}
}

func printReport(w io.Writer, report *pipeline.RunReport) {
	s := report.Summary
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Run\t%s\n", report.RunID)
	fmt.Fprintf(tw, "Source\t%s\n", report.Source)
	fmt.Fprintf(tw, "Sink\t%s\n", report.Sink)
	fmt.Fprintf(tw, "Input rows\t%d\n", s.InputRows)
	fmt.Fprintf(tw, "Accounts\t%d\n", s.Accounts)
	fmt.Fprintf(tw, "Periods\t%d\n", s.Periods)
	fmt.Fprintf(tw, "Sub-ledgers\t%d\n", s.SubLedgers)
	fmt.Fprintf(tw, "Placeholders dropped\t%d\n", s.PlaceholdersDropped)
	fmt.Fprintf(tw, "Transactions\t%d\n", s.Transactions)
	fmt.Fprintf(tw, "Closing records\t%d\n", s.ClosingRecords)
	fmt.Fprintf(tw, "Days with movement\t%d\n", s.DaysWithMovement)
	fmt.Fprintf(tw, "Days without movement\t%d\n", s.DaysWithoutMovement)
	fmt.Fprintf(tw, "Output rows\t%d\n", s.OutputRows)
	if len(s.MissingColumns) > 0 {
		fmt.Fprintf(tw, "Missing columns\t%v\n", s.MissingColumns)
	}
	fmt.Fprintf(tw, "Diagnostics\t%d\n", s.Diagnostics)
	tw.Flush()

	for _, d := range report.Diagnostics {
		fmt.Fprintf(w, "  - %s\n", d)
	}
}

func runUpload(log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket name (or set GCS_BUCKET env)")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local extract file")
	credentials := fs.String("credentials", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"), "Service account JSON file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}
	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	var opts []option.ClientOption
	if *credentials != "" {
		opts = append(opts, option.WithCredentialsFile(*credentials))
	}
	store, err := storage.NewGCSStore(ctx, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer store.Close()

	uri := storage.Location{Scheme: storage.SchemeGCS, Bucket: *bucketName, Path: *objectName}.String()

	log.Info().
		Str("file", *filePath).
		Str("uri", uri).
		Msg("Uploading file to GCS")

	if err := store.UploadFile(ctx, *filePath, uri); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, uri)
}

func runInspect(log zerolog.Logger) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	uri := fs.String("file", "", "Reconciled file URI (gs://, file:// or path)")
	credentials := fs.String("credentials", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"), "Service account JSON file")
	fs.Parse(os.Args[2:])

	if *uri == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var gcs storage.ObjectStore
	if loc, err := storage.ParseURI(*uri); err == nil && loc.Scheme == storage.SchemeGCS {
		var opts []option.ClientOption
		if *credentials != "" {
			opts = append(opts, option.WithCredentialsFile(*credentials))
		}
		store, err := storage.NewGCSStore(ctx, opts...)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer store.Close()
		gcs = store
	}

	data, err := storage.NewRouter(gcs, nil).Get(ctx, *uri)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read file")
	}
	rows, err := parquetio.DecodeDailyBalance(ctx, data)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to decode file")
	}

	printInspection(os.Stdout, summarize(rows))
}

// subLedgerStats aggregates one (account, sub-ledger) of a reconciled file.
type subLedgerStats struct {
	AccountID    string
	SubLedgerID  string
	Transactions int
	ClosingDays  int
	FirstDay     string
	LastDay      string
	LastClosing  *float64
}

// summarize groups rows by (account, sub-ledger), sorted by both.
func summarize(rows []domain.DailyBalanceRow) []subLedgerStats {
	type key struct{ account, sub string }
	idx := make(map[key]int)
	var out []subLedgerStats

	for _, r := range rows {
		k := key{r.AccountID, r.SubLedgerID}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, subLedgerStats{AccountID: r.AccountID, SubLedgerID: r.SubLedgerID})
		}
		st := &out[i]

		if r.Kind == domain.RowKindTransaction {
			st.Transactions++
			continue
		}
		st.ClosingDays++
		day := r.CalendarDay.String()
		if st.FirstDay == "" || day < st.FirstDay {
			st.FirstDay = day
		}
		if day >= st.LastDay {
			st.LastDay = day
			st.LastClosing = r.ClosingBalance
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountID != out[j].AccountID {
			return out[i].AccountID < out[j].AccountID
		}
		return out[i].SubLedgerID < out[j].SubLedgerID
	})
	return out
}

func printInspection(w io.Writer, stats []subLedgerStats) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tSUB-LEDGER\tTRANSACTIONS\tDAYS\tFROM\tTO\tLAST CLOSING")
	for _, st := range stats {
		closing := "-"
		if st.LastClosing != nil {
			closing = fmt.Sprintf("%.2f", *st.LastClosing)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			st.AccountID, st.SubLedgerID, st.Transactions, st.ClosingDays, st.FirstDay, st.LastDay, closing)
	}
	tw.Flush()
}
