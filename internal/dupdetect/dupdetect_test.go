package dupdetect

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws-samples/genai-data-governance-assistant/pkg/llm"
	"github.com/aws-samples/genai-data-governance-assistant/pkg/schema"
)

type fakeGen struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGen) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestDescribeUsesResponseVerbatim(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{response: "This table tracks customer orders. The id column identifies each order."}
	s := schema.Schema{Columns: []schema.ColumnSpec{
		{Name: "id", Type: "integer", Description: "order id"},
	}}

	desc, err := NewDescriber(gen).Describe(context.Background(), s)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if desc != gen.response {
		t.Fatalf("desc = %q, want the model response verbatim", desc)
	}
	if !strings.Contains(gen.prompts[0], `"id"`) {
		t.Fatal("describe prompt missing the schema")
	}
}

func TestDescribeServiceFailure(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{err: errors.New("boom")}
	_, err := NewDescriber(gen).Describe(context.Background(), schema.Schema{})
	var gerr *llm.GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("err = %v, want GenerationError", err)
	}
}

func testCandidates(n int) []Candidate {
	out := make([]Candidate, 0, n)
	names := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	for i := 0; i < n; i++ {
		out = append(out, Candidate{ID: names[i], Text: "table " + names[i]})
	}
	return out
}

func TestJudgeParsesMatches(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{response: `<response_format>
{
  "possible_matches": [
    {"table": "orders_copy", "confidence": 0.9, "reason": "same columns reordered"},
    {"table": "invoices", "confidence": 0.1, "reason": "different purpose"}
  ]
}
</response_format>`}

	matches, err := NewJudge(gen).Judge(context.Background(), "query description", testCandidates(2))
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
	if matches[0].Table != "orders_copy" || matches[0].Confidence != 0.9 {
		t.Fatalf("matches[0] = %+v", matches[0])
	}
	if matches[0].CandidateID != "alpha" || matches[1].CandidateID != "beta" {
		t.Fatalf("candidate ids out of order: %+v", matches)
	}
	for _, m := range matches {
		if m.SourceDescription != "query description" {
			t.Fatalf("source description missing: %+v", m)
		}
	}
}

func TestJudgeCapsCandidates(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{response: `<response_format>{"possible_matches": []}</response_format>`}
	matches, err := NewJudge(gen).Judge(context.Background(), "q", testCandidates(5))
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if len(matches) != MaxCandidates {
		t.Fatalf("matches = %d, want %d", len(matches), MaxCandidates)
	}
	// Only the kept candidates appear in the prompt.
	if strings.Contains(gen.prompts[0], "table delta") {
		t.Fatal("prompt includes candidates beyond the cap")
	}
}

func TestJudgeSkippedCandidatesGetZeroConfidence(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{response: `<response_format>
{"possible_matches": [{"table": "alpha_copy", "confidence": 0.8, "reason": "close"}]}
</response_format>`}

	matches, err := NewJudge(gen).Judge(context.Background(), "q", testCandidates(3))
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("matches = %d, want one per judged candidate", len(matches))
	}
	if matches[1].Confidence != 0 || matches[2].Confidence != 0 {
		t.Fatalf("skipped candidates must score 0: %+v", matches[1:])
	}
}

func TestJudgeClampsConfidence(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{response: `<response_format>
{"possible_matches": [
  {"table": "a", "confidence": 1.7, "reason": "x"},
  {"table": "b", "confidence": -0.3, "reason": "y"}
]}
</response_format>`}

	matches, err := NewJudge(gen).Judge(context.Background(), "q", testCandidates(2))
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if matches[0].Confidence != 1 || matches[1].Confidence != 0 {
		t.Fatalf("confidences not clamped: %+v", matches)
	}
}

func TestJudgeNoCandidates(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{}
	if _, err := NewJudge(gen).Judge(context.Background(), "q", nil); err == nil {
		t.Fatal("Judge accepted zero candidates")
	}
	if len(gen.prompts) != 0 {
		t.Fatal("Judge must not call the model with zero candidates")
	}
}

func TestJudgeMalformedResponse(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{response: "the first candidate looks like a duplicate"}
	_, err := NewJudge(gen).Judge(context.Background(), "q", testCandidates(1))
	var merr *llm.MalformedGenerationError
	if !errors.As(err, &merr) {
		t.Fatalf("err = %v, want MalformedGenerationError", err)
	}
}
