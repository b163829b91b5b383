package dupdetect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws-samples/genai-data-governance-assistant/pkg/llm"
)

// MaxCandidates caps how many retrieved descriptions are shown to the model
// in one judgment call, to bound prompt size.
const MaxCandidates = 3

// Match is one confidence-scored duplicate judgment for a query/candidate
// pair. Confidence is always within [0,1]: 0 means no evidence of
// duplication, 1 means certainty.
type Match struct {
	SourceDescription    string
	CandidateDescription string
	CandidateID          string
	Table                string
	Confidence           float64
	Reason               string
}

// Candidate is one retrieved description to be judged against the query.
type Candidate struct {
	ID   string
	Text string
}

// Judge asks the model whether retrieved similar descriptions are duplicates
// of the query description.
type Judge struct {
	gen llm.Generator
}

func NewJudge(gen llm.Generator) *Judge {
	return &Judge{gen: gen}
}

const judgePromptHeader = `You are an expert in databases, and duplicate schema detection. Your task is to look at the following new schema
and the top similar schemas. It's unlikely that a duplicate would match exactly. Rather, a person may have accidentally created
a duplicate schema with very similar column names, possibly in a different order.

For each of the similar schemas, provide a confidence score ranging from 0.0 (no confidence) to 1.0 (certainty) showing whether the similar
schema is a duplicate of the original schema. Also provide a reason for the score.

Provide this output format:
<response_format>
{
  "possible_matches": [
  {
    "table": "other_table_1",
    "confidence": 0.0,
    "reason": "reason"
  },
  {
    "table": "other_table_2",
    "confidence": 0.75,
    "reason": "reason"
  }
  ]
}
</response_format>

<new_schema>
`

type possibleMatch struct {
	Table      string  `json:"table"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Judge runs one generative call over the query description and up to
// MaxCandidates candidates (extra candidates are dropped) and returns one
// Match per judged candidate, in the supplied order.
//
// The model may skip a weak match; skipped candidates are reported with
// confidence 0 rather than dropped, so the output length always equals the
// judged candidate count. Out-of-range confidences are clamped to [0,1].
func (j *Judge) Judge(ctx context.Context, queryDesc string, candidates []Candidate) ([]Match, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates to judge")
	}
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}

	raw, err := j.gen.Generate(ctx, buildJudgePrompt(queryDesc, candidates))
	if err != nil {
		return nil, &llm.GenerationError{Op: "duplicate judgment", Err: err}
	}

	payload, err := llm.ExtractJSON(raw, "response_format")
	if err != nil {
		return nil, err
	}
	var doc struct {
		PossibleMatches []possibleMatch `json:"possible_matches"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, &llm.MalformedGenerationError{Raw: raw, Err: fmt.Errorf("decode possible_matches: %w", err)}
	}

	// Model entries map to candidates positionally; entries beyond the
	// candidate count are dropped.
	out := make([]Match, len(candidates))
	for i, c := range candidates {
		m := Match{
			SourceDescription:    queryDesc,
			CandidateDescription: c.Text,
			CandidateID:          c.ID,
			Confidence:           0,
			Reason:               "not evaluated by the model",
		}
		if i < len(doc.PossibleMatches) {
			pm := doc.PossibleMatches[i]
			m.Table = strings.TrimSpace(pm.Table)
			m.Confidence = clamp01(pm.Confidence)
			m.Reason = pm.Reason
		}
		out[i] = m
	}
	return out, nil
}

func buildJudgePrompt(queryDesc string, candidates []Candidate) string {
	var b strings.Builder
	b.WriteString(judgePromptHeader)
	b.WriteString(queryDesc)
	b.WriteString("\n</new_schema>")
	for i, c := range candidates {
		fmt.Fprintf(&b, "\n<possible_match_%d>\n%s\n</possible_match_%d>", i+1, c.Text, i+1)
	}
	return b.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
