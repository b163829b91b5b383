// Package inspect derives a column schema from row samples via two-pass
// generative refinement: one inference call over the first sample, then one
// correction call over a second sample merged into the base schema.
package inspect

import (
	"context"
	"fmt"

	"github.com/aws-samples/genai-data-governance-assistant/pkg/llm"
	"github.com/aws-samples/genai-data-governance-assistant/pkg/schema"
)

// Inferencer turns a row sample into a structured column schema.
type Inferencer struct {
	gen llm.Generator
}

func NewInferencer(gen llm.Generator) *Inferencer {
	return &Inferencer{gen: gen}
}

// Infer runs one generative call over the sample and parses the resulting
// schema. The raw generation text is returned alongside the schema for
// catalog records and debugging. Service failures are not retried here.
func (in *Inferencer) Infer(ctx context.Context, sample []string) (schema.Schema, string, error) {
	if len(sample) == 0 {
		return schema.Schema{}, "", fmt.Errorf("empty row sample")
	}

	raw, err := in.gen.Generate(ctx, buildInspectPrompt(sample))
	if err != nil {
		return schema.Schema{}, "", &llm.GenerationError{Op: "schema inspection", Err: err}
	}

	payload, err := llm.ExtractJSON(raw, "sample_json")
	if err != nil {
		return schema.Schema{}, raw, err
	}
	s, err := schema.Decode(payload)
	if err != nil {
		return schema.Schema{}, raw, err
	}
	return s, raw, nil
}
