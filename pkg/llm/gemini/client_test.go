package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/aws-samples/genai-data-governance-assistant/pkg/llm"
)

func TestClassifyErr(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		err       error
		transient bool
	}{
		{"rate limited", genai.APIError{Code: 429, Message: "quota exceeded"}, true},
		{"server error", genai.APIError{Code: 503, Message: "overloaded"}, true},
		{"bad request", genai.APIError{Code: 400, Message: "invalid argument"}, false},
		{"unauthorized", genai.APIError{Code: 401, Message: "bad key"}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := classifyErr(tc.err)
			var te *llm.TransientError
			if isTransient := errors.As(got, &te); isTransient != tc.transient {
				t.Fatalf("transient = %v, want %v (err %v)", isTransient, tc.transient, got)
			}
			// The original error stays reachable for diagnostics.
			var apiErr genai.APIError
			if errors.As(tc.err, &apiErr) && !errors.As(got, &apiErr) {
				t.Fatalf("classified error lost the API error: %v", got)
			}
		})
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Config{Model: "gemini-2.5-flash"}); err == nil {
		t.Fatal("missing API key accepted")
	}
	if _, err := New(context.Background(), Config{APIKey: "k"}); err == nil {
		t.Fatal("missing model accepted")
	}
}
