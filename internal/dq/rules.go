// Package dq generates data-quality rules for an inspected table. This is a
// single-shot generation task: the response is stored as free text next to
// the catalog entry, not parsed.
package dq

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aws-samples/genai-data-governance-assistant/pkg/llm"
	"github.com/aws-samples/genai-data-governance-assistant/pkg/schema"
)

const rulesPromptHeader = `Below is a set of sample rows from a data set. For this dataset, I already have the schema and a description of the table. I want to write a set of data quality rules that help me enforce data quality. I have the data quality language definition available as well. Using these inputs, write a set of data quality rules for the dataset.

Provide the output in a JSON structure in this format.

<sample_json>
Rules = [
    rule 1,
   rule 2
]
</sample_json>

<data>
`

// Generator produces rule text from a sample, schema, description, and the
// rule-language definition.
type Generator struct {
	gen llm.Generator
}

func NewGenerator(gen llm.Generator) *Generator {
	return &Generator{gen: gen}
}

// Generate returns the model's rule text verbatim.
func (g *Generator) Generate(ctx context.Context, sample []string, s schema.Schema, tableDesc, ruleLanguage string) (string, error) {
	schemaJSON, err := json.Marshal(s)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(rulesPromptHeader)
	b.WriteString(strings.Join(sample, "\n"))
	b.WriteString("\n</data>")
	b.WriteString("\n<schema>")
	b.Write(schemaJSON)
	b.WriteString("\n</schema>")
	b.WriteString("\n<table_description>")
	b.WriteString(tableDesc)
	b.WriteString("\n</table_description>")
	b.WriteString("\n<dqdl>")
	b.WriteString(ruleLanguage)
	b.WriteString("\n</dqdl>")

	out, err := g.gen.Generate(ctx, b.String())
	if err != nil {
		return "", &llm.GenerationError{Op: "data quality rules", Err: err}
	}
	return out, nil
}
