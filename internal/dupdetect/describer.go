// Package dupdetect finds likely duplicate table definitions: it renders a
// schema as a natural-language description, retrieves similar indexed
// descriptions, and asks the model for confidence-scored match judgments.
//
// The retrieval-then-judge structure follows the ReMatch method
// (https://arxiv.org/html/2403.01567v1).
package dupdetect

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aws-samples/genai-data-governance-assistant/pkg/llm"
	"github.com/aws-samples/genai-data-governance-assistant/pkg/schema"
)

const describePromptHeader = `Here's a table schema in JSON format. Please write a paragraph describing this table. Include a description of the table's purpose and a brief description of each column.

<schema>
`

// Describer turns a schema into the free-text description that gets embedded
// and indexed.
type Describer struct {
	gen llm.Generator
}

func NewDescriber(gen llm.Generator) *Describer {
	return &Describer{gen: gen}
}

// Describe returns a natural-language summary of the schema. The response is
// used verbatim; no JSON payload is expected.
func (d *Describer) Describe(ctx context.Context, s schema.Schema) (string, error) {
	schemaJSON, err := json.Marshal(s)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(describePromptHeader)
	b.Write(schemaJSON)
	b.WriteString("\n</schema>")

	out, err := d.gen.Generate(ctx, b.String())
	if err != nil {
		return "", &llm.GenerationError{Op: "schema description", Err: err}
	}
	return out, nil
}
