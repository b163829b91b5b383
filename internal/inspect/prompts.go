package inspect

import (
	"encoding/json"
	"strings"

	"github.com/aws-samples/genai-data-governance-assistant/pkg/schema"
)

const inspectPromptHeader = `Below is a set of sample rows from one data set. Help me create a business catalog entry for this data set, including the column names, data types, and column descriptions.

Use only these data types: string, integer, float, number, date, boolean.

Provide the output in a JSON structure in this format.

<sample_json>
{
"columns": [
  {
    "name": "DOB",
    "type": "date",
    "description": "date of birth"
  },
  {
    "name": "first_name",
    "type": "string",
    "description": "first name"
  }
]
}
</sample_json>

<data>
`

// buildInspectPrompt asks for a first-pass schema for the sampled rows.
func buildInspectPrompt(sample []string) string {
	var b strings.Builder
	b.WriteString(inspectPromptHeader)
	b.WriteString(strings.Join(sample, "\n"))
	b.WriteString("\n</data>")
	return b.String()
}

const refinePromptHeader = `The last time we chatted, I sent you a set of sample rows from a data set. I asked you to help me create a business catalog entry for this data set, including the column names, data types, and column descriptions.

Here's what you sent me:

<catalog>
`

const refinePromptFooter = `
</catalog>

I'm sending you a different sample of rows from the same data set. Look at that, and see if you'd suggest any changes to the original business catalog entries you provided.

<data>
`

const refinePromptFormat = `
</data>

Provide your response in this JSON format:

<response_format>
{
  "Changes": [
  {
    "name": "units_sold",
    "original_type": "string",
    "original_description": "Quantity of units sold",
    "new_type": "integer",
    "new_description": "Quantity of units sold"
  }
   ]
}
</response_format>

If there are no changes necessary, you can return an empty list in JSON format.
`

// buildRefinePrompt shows the model its earlier schema verbatim plus a second
// sample and asks for a Changes list.
func buildRefinePrompt(base schema.Schema, sample []string) (string, error) {
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(refinePromptHeader)
	b.Write(baseJSON)
	b.WriteString(refinePromptFooter)
	b.WriteString(strings.Join(sample, "\n"))
	b.WriteString(refinePromptFormat)
	return b.String(), nil
}
