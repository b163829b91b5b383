package dq

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
	prompt   string
}

func (f *fakeGen) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func TestGenerateBuildsPromptFromAllInputs(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{response: `Rules = [ IsComplete "id" ]`}
	s := schema.Schema{Columns: []schema.ColumnSpec{{Name: "id", Type: "integer", Description: "row id"}}}
	sample := []string{"id,name", "1,alice"}

	out, err := NewGenerator(gen).Generate(context.Background(), sample, s, "a table of people", "RuleGrammar v1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != gen.response {
		t.Fatalf("out = %q, want the model response verbatim", out)
	}
	for _, want := range []string{"1,alice", `"id"`, "a table of people", "RuleGrammar v1"} {
		if !strings.Contains(gen.prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}

func TestGenerateServiceFailure(t *testing.T) {
	t.Parallel()

	gen := &fakeGen{err: errors.New("boom")}
	_, err := NewGenerator(gen).Generate(context.Background(), []string{"id"}, schema.Schema{}, "", "grammar")
	var gerr *llm.GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("err = %v, want GenerationError", err)
	}
}
