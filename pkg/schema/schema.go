// Package schema holds the column-schema values produced by inspection and
// the merge logic for model-proposed corrections.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ColumnSpec describes one column of a table.
//
// Type is an open-ended token (the inspection prompt restricts it to
// string/integer/float/number/date/boolean); mapping to storage-engine
// column types is owned by the catalog layer.
type ColumnSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Schema is the ordered column list for one table. Values are immutable once
// published; merges produce a new Schema rather than mutating the base.
type Schema struct {
	Columns []ColumnSpec `json:"columns"`
}

// Correction is a model-proposed change to one column, referenced by exact
// name. A correction naming a column absent from the base schema never
// creates a column.
type Correction struct {
	Name                string `json:"name"`
	OriginalType        string `json:"original_type,omitempty"`
	OriginalDescription string `json:"original_description,omitempty"`
	NewType             string `json:"new_type"`
	NewDescription      string `json:"new_description"`
}

// ShapeError reports parsed JSON that lacks the required structure.
type ShapeError struct {
	Want string
	Err  error
}

func (e *ShapeError) Error() string {
	if e == nil {
		return "schema shape error"
	}
	msg := "schema shape error"
	if e.Want != "" {
		msg += ": want " + e.Want
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ShapeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Decode parses a JSON document of the form {"columns": [...]}.
//
// An empty columns list is a valid (empty) schema; a missing columns field
// or a non-object document is a ShapeError.
func Decode(raw json.RawMessage) (Schema, error) {
	var doc struct {
		Columns *[]ColumnSpec `json:"columns"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Schema{}, &ShapeError{Want: `object with "columns" list`, Err: err}
	}
	if doc.Columns == nil {
		return Schema{}, &ShapeError{Want: `object with "columns" list`, Err: fmt.Errorf("missing columns field")}
	}
	s := Schema{Columns: *doc.Columns}
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// DecodeChanges parses a JSON document of the form {"Changes": [...]}.
// An empty or absent list is valid and yields no corrections.
func DecodeChanges(raw json.RawMessage) ([]Correction, error) {
	var doc struct {
		Changes []Correction `json:"Changes"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ShapeError{Want: `object with "Changes" list`, Err: err}
	}
	return doc.Changes, nil
}

// Validate checks that every column has a name and that names are unique
// within the schema.
func (s Schema) Validate() error {
	seen := make(map[string]struct{}, len(s.Columns))
	for i, c := range s.Columns {
		name := c.Name
		if strings.TrimSpace(name) == "" {
			return &ShapeError{Want: "named columns", Err: fmt.Errorf("column %d has no name", i)}
		}
		if _, ok := seen[name]; ok {
			return &ShapeError{Want: "unique column names", Err: fmt.Errorf("duplicate column %q", name)}
		}
		seen[name] = struct{}{}
	}
	return nil
}

// MergePolicy controls how corrections naming unknown columns are handled.
type MergePolicy int

const (
	// MergeDropUnknown silently drops corrections whose name matches no base
	// column. This mirrors the sequential scan-and-overwrite the merge always
	// performed.
	MergeDropUnknown MergePolicy = iota
	// MergeErrorUnknown rejects the whole correction list if any name is
	// unknown.
	MergeErrorUnknown
)

// Merge applies corrections to base and returns a new Schema.
//
// Matching is exact and case-sensitive. When multiple corrections target the
// same column, the last one in the list wins. The merged schema always has
// exactly the base's column name set: corrections change type and
// description only, never add or remove columns.
func Merge(base Schema, changes []Correction, policy MergePolicy) (Schema, error) {
	known := make(map[string]struct{}, len(base.Columns))
	for _, c := range base.Columns {
		known[c.Name] = struct{}{}
	}
	if policy == MergeErrorUnknown {
		for _, ch := range changes {
			if _, ok := known[ch.Name]; !ok {
				return Schema{}, &ShapeError{Want: "corrections for existing columns", Err: fmt.Errorf("correction names unknown column %q", ch.Name)}
			}
		}
	}

	merged := Schema{Columns: make([]ColumnSpec, len(base.Columns))}
	copy(merged.Columns, base.Columns)
	for i := range merged.Columns {
		for _, ch := range changes {
			if ch.Name != merged.Columns[i].Name {
				continue
			}
			merged.Columns[i].Type = ch.NewType
			merged.Columns[i].Description = ch.NewDescription
		}
	}
	return merged, nil
}
