package inspect

import (
	"context"
	"fmt"

	"github.com/aws-samples/genai-data-governance-assistant/pkg/llm"
	"github.com/aws-samples/genai-data-governance-assistant/pkg/schema"
)

// Refiner asks the model to review an existing schema against a second,
// disjoint row sample and merges the proposed corrections.
type Refiner struct {
	gen    llm.Generator
	policy schema.MergePolicy
}

func NewRefiner(gen llm.Generator, policy schema.MergePolicy) *Refiner {
	return &Refiner{gen: gen, policy: policy}
}

// Refine returns the merged schema plus the corrections the model proposed
// and the raw generation text. An empty correction list is valid and yields
// a schema equal to base.
func (r *Refiner) Refine(ctx context.Context, base schema.Schema, sample []string) (schema.Schema, []schema.Correction, string, error) {
	if len(sample) == 0 {
		return schema.Schema{}, nil, "", fmt.Errorf("empty row sample")
	}

	prompt, err := buildRefinePrompt(base, sample)
	if err != nil {
		return schema.Schema{}, nil, "", err
	}
	raw, err := r.gen.Generate(ctx, prompt)
	if err != nil {
		return schema.Schema{}, nil, "", &llm.GenerationError{Op: "schema refinement", Err: err}
	}

	payload, err := llm.ExtractJSON(raw, "response_format")
	if err != nil {
		return schema.Schema{}, nil, raw, err
	}
	changes, err := schema.DecodeChanges(payload)
	if err != nil {
		return schema.Schema{}, nil, raw, err
	}

	merged, err := schema.Merge(base, changes, r.policy)
	if err != nil {
		return schema.Schema{}, changes, raw, err
	}
	return merged, changes, raw, nil
}
