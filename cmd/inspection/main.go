package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws-samples/genai-data-governance-assistant/internal/app"
	"github.com/aws-samples/genai-data-governance-assistant/internal/batch"
	"github.com/aws-samples/genai-data-governance-assistant/internal/catalog"
	"github.com/aws-samples/genai-data-governance-assistant/internal/sample"
	"github.com/aws-samples/genai-data-governance-assistant/internal/util"
	"github.com/aws-samples/genai-data-governance-assistant/internal/version"
	"github.com/aws-samples/genai-data-governance-assistant/pkg/llm/gemini"
	"github.com/aws-samples/genai-data-governance-assistant/pkg/schema"
	"github.com/aws-samples/genai-data-governance-assistant/pkg/vecindex"
	"github.com/aws-samples/genai-data-governance-assistant/pkg/vecindex/local"
	"github.com/aws-samples/genai-data-governance-assistant/pkg/vecindex/opensearch"
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "version":
		fmt.Println(version.Current)
		return
	case "sample":
		os.Exit(runSample(os.Args[2:]))
	case "inspect":
		os.Exit(runInspect(ctx, os.Args[2:]))
	case "detect":
		os.Exit(runDetect(ctx, os.Args[2:]))
	case "curate":
		os.Exit(runCurate(ctx, os.Args[2:]))
	case "batch":
		os.Exit(runBatch(ctx, os.Args[2:]))
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

func runSample(args []string) int {
	fs := flag.NewFlagSet("sample", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	inputPath := fs.String("input", "", "Input CSV file (header row plus data rows)")
	outputPath := fs.String("output", "", "Output CSV file for the sample")
	rows := fs.Int("rows", 100, "Number of data rows to sample")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *inputPath == "" || *outputPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "sample requires --input and --output")
		return 2
	}

	inF, err := os.Open(*inputPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "sample failed: %v\n", err)
		return 1
	}
	defer func() {
		_ = inF.Close()
	}()

	all, err := sample.ReadRows(inF)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "sample failed: %v\n", err)
		return 1
	}
	sampled := sample.Rows(all, *rows, newRand())
	if err := os.WriteFile(*outputPath, []byte(strings.Join(sampled, "\n")+"\n"), 0644); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "sample failed: %v\n", err)
		return 1
	}
	return 0
}

func runInspect(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	inputPath := fs.String("input", "", "Input CSV file for the table")
	database := fs.String("database", "default", "Catalog database name")
	table := fs.String("table", "", "Catalog table name")
	location := fs.String("location", "", "Data location recorded in the catalog entry")
	rows := fs.Int("rows", 100, "Data rows per inspection sample")
	reportPath := fs.String("report", "", "Optional path to write the run report JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *inputPath == "" || *table == "" {
		_, _ = fmt.Fprintln(os.Stderr, "inspect requires --input and --table")
		return 2
	}

	pipeline, closers, err := buildPipeline(ctx, true)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}
	defer closers.closeAll()

	report, err := runTable(ctx, pipeline, *database, *table, *location, *inputPath, *rows)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "inspect failed: %s\n", util.RedactSecrets(err.Error()))
		return 1
	}
	return writeReport(*reportPath, report)
}

// runDetect runs the pipeline without registering a catalog entry: the
// description is still indexed so later runs can match against it.
func runDetect(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	inputPath := fs.String("input", "", "Input CSV file for the table")
	table := fs.String("table", "", "Table name used in logs and the report")
	rows := fs.Int("rows", 100, "Data rows per inspection sample")
	reportPath := fs.String("report", "", "Optional path to write the run report JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *inputPath == "" || *table == "" {
		_, _ = fmt.Fprintln(os.Stderr, "detect requires --input and --table")
		return 2
	}

	pipeline, closers, err := buildPipeline(ctx, false)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}
	defer closers.closeAll()

	report, err := runTable(ctx, pipeline, "", *table, "", *inputPath, *rows)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "detect failed: %s\n", util.RedactSecrets(err.Error()))
		return 1
	}
	return writeReport(*reportPath, report)
}

// runCurate registers a previously produced run report with the catalog,
// without any model calls.
func runCurate(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("curate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	reportPath := fs.String("report", "", "Run report JSON produced by inspect or detect")
	database := fs.String("database", "default", "Catalog database name")
	location := fs.String("location", "", "Data location recorded in the catalog entry")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *reportPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "curate requires --report")
		return 2
	}

	b, err := os.ReadFile(*reportPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "curate failed: %v\n", err)
		return 1
	}
	var report app.Report
	if err := json.Unmarshal(b, &report); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "curate failed: parse report: %v\n", err)
		return 1
	}
	if report.Table == "" {
		_, _ = fmt.Fprintln(os.Stderr, "curate failed: report has no table name")
		return 1
	}

	store, err := openCatalog(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}
	defer func() {
		_ = store.Close()
	}()

	err = store.Register(ctx, catalog.Entry{
		Database:    *database,
		Table:       report.Table,
		Description: report.Description,
		Location:    *location,
		Schema:      report.Schema,
		Rules:       report.Rules,
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "curate failed: %s\n", util.RedactSecrets(err.Error()))
		return 1
	}
	return 0
}

func runBatch(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	manifestPath := fs.String("manifest", "", "YAML manifest listing the tables to inspect")
	workers := fs.Int("workers", envIntOr("WORKERS", 4), "Concurrent table runs (env: WORKERS)")
	maxRetries := fs.Int("max-retries", envIntOr("MAX_RETRIES", 3), "Max retries per table for transient failures (env: MAX_RETRIES)")
	tableTimeout := fs.Duration("table-timeout", envDurationOr("TABLE_TIMEOUT", 5*time.Minute), "Per-table pipeline timeout (env: TABLE_TIMEOUT)")
	rateLimitRPS := fs.Float64("rate-limit-rps", envFloatOr("RATE_LIMIT_RPS", 0), "Global table-start rate limit (RPS), 0 disables (env: RATE_LIMIT_RPS)")
	failFast := fs.Bool("fail-fast", envBoolOr("FAIL_FAST"), "Abort the batch on the first table failure (env: FAIL_FAST)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *manifestPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "batch requires --manifest")
		return 2
	}

	manifest, err := batch.LoadManifest(*manifestPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}

	pipeline, closers, err := buildPipeline(ctx, true)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}
	defer closers.closeAll()

	results, err := batch.Run(ctx, manifest.Tables, func(tableCtx context.Context, t batch.TableSpec) (app.Report, error) {
		return runTable(tableCtx, pipeline, manifest.Database, t.Name, t.Location, t.Path, manifest.SampleRows)
	}, batch.Options{
		Workers:      *workers,
		MaxRetries:   *maxRetries,
		TableTimeout: *tableTimeout,
		RateLimitRPS: *rateLimitRPS,
		FailFast:     *failFast,
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "batch failed: %s\n", util.RedactSecrets(err.Error()))
		return 1
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			_, _ = fmt.Fprintf(os.Stderr, "table %s failed: %s\n", res.Table.Name, util.RedactSecrets(res.Err.Error()))
		}
	}
	if failed > 0 {
		_, _ = fmt.Fprintf(os.Stderr, "batch finished with %d/%d tables failed\n", failed, len(results))
		return 1
	}
	return 0
}

func runTable(ctx context.Context, pipeline *app.Pipeline, database, table, location, inputPath string, rows int) (app.Report, error) {
	inF, err := os.Open(inputPath)
	if err != nil {
		return app.Report{}, err
	}
	defer func() {
		_ = inF.Close()
	}()

	all, err := sample.ReadRows(inF)
	if err != nil {
		return app.Report{}, err
	}
	sample1, sample2 := sample.Split(all, rows, newRand())
	return pipeline.Run(ctx, database, table, location, sample1, sample2)
}

type closerList []func() error

func (c closerList) closeAll() {
	for _, fn := range c {
		_ = fn()
	}
}

// buildPipeline wires the pipeline from environment config. When register is
// false the catalog is left untouched (detect-only runs).
func buildPipeline(ctx context.Context, register bool) (*app.Pipeline, closerList, error) {
	var closers closerList

	client, err := gemini.New(ctx, gemini.Config{
		APIKey:     strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		Model:      strings.TrimSpace(os.Getenv("GEMINI_MODEL")),
		EmbedModel: strings.TrimSpace(os.Getenv("GEMINI_EMBED_MODEL")),
		BaseURL:    strings.TrimSpace(os.Getenv("GEMINI_BASE_URL")),
	})
	if err != nil {
		return nil, closers, err
	}

	index, indexClosers, err := buildIndex(ctx)
	if err != nil {
		return nil, closers, err
	}
	closers = append(closers, indexClosers...)

	var registrar catalog.Registrar
	if register {
		store, err := openCatalog(ctx)
		if err != nil {
			closers.closeAll()
			return nil, nil, err
		}
		closers = append(closers, store.Close)
		registrar = store
	}

	var ruleLanguage string
	if p := strings.TrimSpace(os.Getenv("RULE_LANGUAGE_PATH")); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			closers.closeAll()
			return nil, nil, fmt.Errorf("read RULE_LANGUAGE_PATH file: %w", err)
		}
		ruleLanguage = string(b)
	}

	policy := schema.MergeDropUnknown
	if envBoolOr("STRICT_CORRECTIONS") {
		policy = schema.MergeErrorUnknown
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)
	pipeline := app.New(client, client, index, registrar, logger, app.Options{
		MergePolicy:  policy,
		RuleLanguage: ruleLanguage,
	})
	return pipeline, closers, nil
}

func openCatalog(ctx context.Context) (*catalog.Store, error) {
	dsn := strings.TrimSpace(os.Getenv("CATALOG_DSN"))
	if dsn == "" {
		dsn = "catalog.db"
	}
	return catalog.OpenStore(ctx, dsn)
}

func buildIndex(ctx context.Context) (vecindex.Index, closerList, error) {
	endpoint := strings.TrimSpace(os.Getenv("SEARCH_ENDPOINT"))
	if endpoint != "" {
		indexName := strings.TrimSpace(os.Getenv("SEARCH_INDEX"))
		if indexName == "" {
			return nil, nil, fmt.Errorf("SEARCH_INDEX is required when SEARCH_ENDPOINT is set")
		}
		client, err := opensearch.NewClient(
			endpoint,
			indexName,
			strings.TrimSpace(os.Getenv("SEARCH_TOKEN")),
			strings.TrimSpace(os.Getenv("SEARCH_CA_PATH")),
		)
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	}

	dsn := strings.TrimSpace(os.Getenv("INDEX_DSN"))
	if dsn == "" {
		dsn = "index.db"
	}
	idx, err := local.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return idx, closerList{idx.Close}, nil
}

func writeReport(path string, report app.Report) int {
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
		return 1
	}
	if path == "" {
		fmt.Println(string(b))
		return 0
	}
	if err := os.WriteFile(path, append(b, '\n'), 0644); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "write report: %v\n", err)
		return 1
	}
	return 0
}

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func usage(w *os.File) {
	_, _ = fmt.Fprintf(w, `inspection: schema inference and duplicate detection for tabular data sets

Usage:
  inspection <command> [flags]

Commands:
  sample   Write a random row sample of a CSV file
  inspect  Run the full pipeline for one table and register it
  detect   Run the pipeline for one table without touching the catalog
  curate   Register a saved run report with the catalog
  batch    Run the pipeline for every table in a YAML manifest
  version  Print the release version

Examples:
  inspection inspect --input orders.csv --table orders --database sales
  inspection batch --manifest tables.yaml --workers 4

Environment (Gemini):
  GEMINI_API_KEY      Gemini API key (required)
  GEMINI_MODEL        Generation model name (required)
  GEMINI_EMBED_MODEL  Embedding model name (default gemini-embedding-001)
  GEMINI_BASE_URL     Optional base URL override (proxies/testing)

Environment (similarity index):
  SEARCH_ENDPOINT  OpenSearch-style endpoint; when unset a local SQLite index is used
  SEARCH_INDEX     Index name (required with SEARCH_ENDPOINT)
  SEARCH_TOKEN     Optional bearer token
  SEARCH_CA_PATH   Optional PEM bundle to trust for TLS
  INDEX_DSN        Local index path (default index.db)

Environment (catalog and rules):
  CATALOG_DSN         Local catalog store path (default catalog.db)
  RULE_LANGUAGE_PATH  Optional rule-language definition; enables rule generation
  STRICT_CORRECTIONS  If true, corrections naming unknown columns fail the run

`)
}

func envIntOr(varName string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return out
}

func envFloatOr(varName string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return out
}

func envDurationOr(varName string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return out
}

func envBoolOr(varName string) bool {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return false
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return out
}
