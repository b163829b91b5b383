// Package llm defines the narrow interfaces to the generative-model and
// embedding services, plus the tolerant extractor for JSON payloads embedded
// in free-form generated text.
package llm

import "context"

// Generator is the generative text service surface: one prompt in, one
// complete response out. No streaming.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder produces a fixed-length vector representation for a text passage.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenerationError reports a failed or unusable generative-model call.
//
// Components never retry these internally; retry policy belongs to the
// batch driver.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	if e == nil || e.Err == nil {
		return "generation error"
	}
	if e.Op != "" {
		return "generate " + e.Op + ": " + e.Err.Error()
	}
	return "generate: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EmbeddingError reports a failed embedding-service call. No fallback vector
// is ever synthesized.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	if e == nil || e.Err == nil {
		return "embedding error"
	}
	return "embed: " + e.Err.Error()
}

func (e *EmbeddingError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TransientError marks an error as retryable by the batch driver.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// LimitedTransientError is retryable but caps its own extra retries below
// the driver's default budget.
type LimitedTransientError struct {
	Err          error
	ExtraRetries int
}

func (e *LimitedTransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *LimitedTransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// MaxExtraRetries reports the per-error retry cap.
func (e *LimitedTransientError) MaxExtraRetries() int {
	if e == nil {
		return 0
	}
	return e.ExtraRetries
}
