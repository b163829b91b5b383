// Package app orchestrates the per-table inspection pipeline:
//
//	SAMPLED -> SCHEMA_INFERRED -> SCHEMA_REFINED -> DESCRIBED ->
//	CANDIDATES_RETRIEVED -> JUDGED
//
// Each arrow is one component call. A failure at any stage halts the run for
// that table and surfaces the stage's typed error; nothing is written to the
// index or the catalog unless every stage succeeded.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/aws-samples/genai-data-governance-assistant/internal/catalog"
	"github.com/aws-samples/genai-data-governance-assistant/internal/dq"
	"github.com/aws-samples/genai-data-governance-assistant/internal/dupdetect"
	"github.com/aws-samples/genai-data-governance-assistant/internal/inspect"
	"github.com/aws-samples/genai-data-governance-assistant/pkg/llm"
	"github.com/aws-samples/genai-data-governance-assistant/pkg/schema"
	"github.com/aws-samples/genai-data-governance-assistant/pkg/vecindex"
)

// Stage identifies one step of the per-table pipeline.
type Stage string

const (
	StageSampled             Stage = "SAMPLED"
	StageSchemaInferred      Stage = "SCHEMA_INFERRED"
	StageSchemaRefined       Stage = "SCHEMA_REFINED"
	StageDescribed           Stage = "DESCRIBED"
	StageCandidatesRetrieved Stage = "CANDIDATES_RETRIEVED"
	StageJudged              Stage = "JUDGED"
)

// StageError reports which stage aborted a table's run.
type StageError struct {
	Stage Stage
	Table string
	Err   error
}

func (e *StageError) Error() string {
	if e == nil || e.Err == nil {
		return "pipeline stage error"
	}
	return fmt.Sprintf("table %s stage %s: %v", e.Table, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Options configures one Pipeline.
type Options struct {
	// TopK bounds similarity retrieval. Defaults to dupdetect.MaxCandidates.
	TopK int

	// MergePolicy controls corrections naming unknown columns.
	MergePolicy schema.MergePolicy

	// RuleLanguage, when non-empty, enables data-quality rule generation
	// using the given rule-language definition text.
	RuleLanguage string
}

// Pipeline holds the injected collaborators for per-table runs. It owns no
// mutable state, so one Pipeline value is safe for concurrent table runs.
type Pipeline struct {
	inferencer *inspect.Inferencer
	refiner    *inspect.Refiner
	describer  *dupdetect.Describer
	judge      *dupdetect.Judge
	rules      *dq.Generator
	embedder   llm.Embedder
	index      vecindex.Index
	registrar  catalog.Registrar
	logger     *log.Logger
	opts       Options
}

// New wires a pipeline from its collaborators. registrar may be nil to skip
// catalog registration (detect-only runs).
func New(gen llm.Generator, embedder llm.Embedder, index vecindex.Index, registrar catalog.Registrar, logger *log.Logger, opts Options) *Pipeline {
	if opts.TopK <= 0 || opts.TopK > dupdetect.MaxCandidates {
		opts.TopK = dupdetect.MaxCandidates
	}
	return &Pipeline{
		inferencer: inspect.NewInferencer(gen),
		refiner:    inspect.NewRefiner(gen, opts.MergePolicy),
		describer:  dupdetect.NewDescriber(gen),
		judge:      dupdetect.NewJudge(gen),
		rules:      dq.NewGenerator(gen),
		embedder:   embedder,
		index:      index,
		registrar:  registrar,
		logger:     logger,
		opts:       opts,
	}
}

// Report is the outcome of one table's run.
type Report struct {
	RunID       string
	Table       string
	Schema      schema.Schema
	Corrections []schema.Correction
	Description string
	PassageID   string

	// Candidates is how many similar descriptions retrieval returned.
	// When zero, Matches is empty and the judge was never invoked.
	Candidates int
	Matches    []dupdetect.Match

	Rules string
}

// Run executes the full pipeline for one table: two-pass schema inference
// over the disjoint samples, duplicate detection against the index, then
// publication (index the description, register the catalog entry).
func (p *Pipeline) Run(ctx context.Context, database, table, location string, sample1, sample2 []string) (Report, error) {
	runID := uuid.NewString()
	logf := func(format string, args ...any) {
		if p.logger == nil {
			return
		}
		prefix := make([]any, 0, len(args)+2)
		prefix = append(prefix, runID, table)
		prefix = append(prefix, args...)
		p.logger.Printf("run=%s table=%s "+format, prefix...)
	}
	runStart := time.Now()
	report := Report{RunID: runID, Table: table}

	logf("pipeline start: stage=%s sample1=%d sample2=%d topK=%d", StageSampled, len(sample1), len(sample2), p.opts.TopK)

	stageStart := time.Now()
	base, _, err := p.inferencer.Infer(ctx, sample1)
	if err != nil {
		return report, &StageError{Stage: StageSchemaInferred, Table: table, Err: err}
	}
	logf("stage=%s columns=%d duration=%s", StageSchemaInferred, len(base.Columns), time.Since(stageStart).Round(time.Millisecond))

	stageStart = time.Now()
	merged, changes, _, err := p.refiner.Refine(ctx, base, sample2)
	if err != nil {
		return report, &StageError{Stage: StageSchemaRefined, Table: table, Err: err}
	}
	report.Schema = merged
	report.Corrections = changes
	logf("stage=%s corrections=%d duration=%s", StageSchemaRefined, len(changes), time.Since(stageStart).Round(time.Millisecond))

	stageStart = time.Now()
	desc, err := p.describer.Describe(ctx, merged)
	if err != nil {
		return report, &StageError{Stage: StageDescribed, Table: table, Err: err}
	}
	report.Description = desc
	logf("stage=%s descriptionBytes=%d duration=%s", StageDescribed, len(desc), time.Since(stageStart).Round(time.Millisecond))

	stageStart = time.Now()
	vector, err := p.embedder.Embed(ctx, desc)
	if err != nil {
		return report, &StageError{Stage: StageCandidatesRetrieved, Table: table, Err: err}
	}
	passageID := uuid.NewString()
	report.PassageID = passageID
	query := vecindex.Passage{ID: passageID, Text: desc, Vector: vector}
	hits, err := p.index.Query(ctx, query, p.opts.TopK)
	if err != nil {
		return report, &StageError{Stage: StageCandidatesRetrieved, Table: table, Err: err}
	}
	report.Candidates = len(hits)
	logf("stage=%s candidates=%d duration=%s", StageCandidatesRetrieved, len(hits), time.Since(stageStart).Round(time.Millisecond))

	if len(hits) == 0 {
		// Nothing similar is indexed: no duplicates possible, and the judge
		// is never invoked with zero candidates.
		logf("stage=%s verdict=no-duplicates", StageJudged)
	} else {
		stageStart = time.Now()
		candidates := make([]dupdetect.Candidate, 0, len(hits))
		for _, h := range hits {
			candidates = append(candidates, dupdetect.Candidate{ID: h.Passage.ID, Text: h.Passage.Text})
		}
		matches, err := p.judge.Judge(ctx, desc, candidates)
		if err != nil {
			return report, &StageError{Stage: StageJudged, Table: table, Err: err}
		}
		report.Matches = matches
		logf("stage=%s matches=%d duration=%s", StageJudged, len(matches), time.Since(stageStart).Round(time.Millisecond))
	}

	if p.opts.RuleLanguage != "" {
		rules, err := p.rules.Generate(ctx, sample1, merged, desc, p.opts.RuleLanguage)
		if err != nil {
			return report, &StageError{Stage: StageJudged, Table: table, Err: err}
		}
		report.Rules = rules
		logf("rules generated: bytes=%d", len(rules))
	}

	// Publication happens only after every stage succeeded, so an aborted run
	// leaves no partial index or catalog writes.
	if err := p.index.Index(ctx, query); err != nil {
		return report, &StageError{Stage: StageJudged, Table: table, Err: err}
	}
	if p.registrar != nil {
		entry := catalog.Entry{
			Database:    database,
			Table:       table,
			Description: desc,
			Location:    location,
			Schema:      merged,
			Rules:       report.Rules,
		}
		if err := p.registrar.Register(ctx, entry); err != nil {
			return report, &StageError{Stage: StageJudged, Table: table, Err: err}
		}
	}

	logf("pipeline complete: candidates=%d totalDuration=%s", report.Candidates, time.Since(runStart).Round(time.Millisecond))
	return report, nil
}
