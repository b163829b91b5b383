// Package catalog registers finalized schemas with a data catalog.
//
// Registration semantics (create-or-replace, engine column types) are owned
// here, at the boundary; the inspection core only produces Schema values.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws-samples/genai-data-governance-assistant/pkg/schema"
)

// Entry is one finalized catalog record for a table.
type Entry struct {
	Database    string
	Table       string
	Description string
	Location    string
	Schema      schema.Schema

	// Rules holds generated data-quality rules, when rule generation ran.
	Rules string
}

// Registrar accepts finalized catalog entries.
type Registrar interface {
	Register(ctx context.Context, e Entry) error
}

// MapColumnType maps an inferred column type token to the catalog engine's
// column type. Unknown tokens are an error: a bad type must fail
// registration rather than silently land in the catalog.
func MapColumnType(t string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "string":
		return "string", nil
	case "integer":
		return "int", nil
	case "float", "number":
		return "double", nil
	case "date":
		return "date", nil
	case "boolean":
		return "boolean", nil
	default:
		return "", fmt.Errorf("unknown column type %q", t)
	}
}

// TruncateDescription cuts a generated table description at the first "1."
// list marker. Models tend to append a numbered per-column list after the
// summary paragraph, and only the paragraph belongs in the catalog.
func TruncateDescription(desc string) string {
	if idx := strings.Index(desc, "1."); idx >= 0 {
		return strings.TrimSpace(desc[:idx])
	}
	return strings.TrimSpace(desc)
}
