package opensearch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws-samples/genai-data-governance-assistant/internal/util"
)

// errorEnvelope is the standard OpenSearch error response shape. Responses
// may include additional fields; we intentionally ignore them.
type errorEnvelope struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// HTTPError is a sanitized summary of a non-2xx index API response.
//
// Important: do not include raw response bodies here (they can echo indexed
// passages and credentials).
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string
	ErrorType  string
	Reason     string

	// Snippet is a redacted, truncated hint for non-envelope responses.
	Snippet string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "opensearch http error"
	}
	parts := []string{
		fmt.Sprintf("opensearch api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.ErrorType) != "" {
		parts = append(parts, "type="+strings.TrimSpace(e.ErrorType))
	}
	if strings.TrimSpace(e.Reason) != "" {
		parts = append(parts, "reason="+strings.TrimSpace(e.Reason))
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

func newHTTPError(op string, resp *http.Response, body []byte) error {
	h := &HTTPError{Op: op}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
	}

	// Best effort: parse the OpenSearch error envelope.
	var env errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		h.ErrorType = strings.TrimSpace(env.Error.Type)
		h.Reason = strings.TrimSpace(env.Error.Reason)
		if h.ErrorType != "" || h.Reason != "" {
			return h
		}
	}

	// Fallback: include a small, redacted hint only.
	h.Snippet = redactAndTruncate(body)
	return h
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	// Keep this small: response bodies can contain indexed passage text.
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := util.RedactSecrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}
