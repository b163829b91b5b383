package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	fenceOpen  = "```json"
	fenceClose = "```"
)

// MalformedGenerationError reports generated text that did not contain a
// recoverable JSON payload. Raw carries the full response for prompt/response
// debugging.
type MalformedGenerationError struct {
	Raw string
	Err error
}

func (e *MalformedGenerationError) Error() string {
	if e == nil {
		return "malformed generation"
	}
	if e.Err != nil {
		return "malformed generation: " + e.Err.Error()
	}
	return "malformed generation"
}

func (e *MalformedGenerationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ExtractJSON recovers the JSON document embedded in generated text.
//
// Marker priority is fixed: the first ```json fenced block wins, then the
// first of the given named wrappers (<name>...</name>), then the whole input
// is treated as raw JSON. Searching is anchored to the first occurrence of
// each marker so that a marker echoed later in the response (models sometimes
// repeat the prompt's format instructions) cannot shadow the real payload.
func ExtractJSON(raw string, wrappers ...string) (json.RawMessage, error) {
	if idx := strings.Index(raw, fenceOpen); idx >= 0 {
		rest := raw[idx+len(fenceOpen):]
		end := strings.Index(rest, fenceClose)
		if end < 0 {
			return nil, &MalformedGenerationError{Raw: raw, Err: fmt.Errorf("unterminated %s block", fenceOpen)}
		}
		return validJSON(raw, rest[:end])
	}

	for _, name := range wrappers {
		open := "<" + name + ">"
		idx := strings.Index(raw, open)
		if idx < 0 {
			continue
		}
		rest := raw[idx+len(open):]
		closeTag := "</" + name + ">"
		end := strings.Index(rest, closeTag)
		if end < 0 {
			return nil, &MalformedGenerationError{Raw: raw, Err: fmt.Errorf("missing %s", closeTag)}
		}
		return validJSON(raw, rest[:end])
	}

	return validJSON(raw, raw)
}

func validJSON(raw, payload string) (json.RawMessage, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, &MalformedGenerationError{Raw: raw, Err: fmt.Errorf("empty payload")}
	}
	if !json.Valid([]byte(payload)) {
		return nil, &MalformedGenerationError{Raw: raw, Err: fmt.Errorf("payload is not valid JSON")}
	}
	return json.RawMessage(payload), nil
}
