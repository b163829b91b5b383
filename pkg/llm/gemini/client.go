// Package gemini implements llm.Generator and llm.Embedder on the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/aws-samples/genai-data-governance-assistant/pkg/llm"
	"google.golang.org/genai"
)

type Config struct {
	APIKey string
	Model  string

	// EmbedModel is the embedding model name. Defaults to gemini-embedding-001.
	EmbedModel string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	// MaxOutputTokens bounds the generation response. <=0 uses the default.
	MaxOutputTokens int32
}

const (
	defaultEmbedModel      = "gemini-embedding-001"
	defaultMaxOutputTokens = 2048
)

// Client wraps one genai client for both generation and embedding calls.
type Client struct {
	client          *genai.Client
	model           string
	embedModel      string
	maxOutputTokens int32
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}

	embedModel := strings.TrimSpace(cfg.EmbedModel)
	if embedModel == "" {
		embedModel = defaultEmbedModel
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxOutputTokens
	}
	return &Client{
		client:          client,
		model:           strings.TrimSpace(cfg.Model),
		embedModel:      embedModel,
		maxOutputTokens: maxTokens,
	}, nil
}

// Generate sends one prompt and returns the complete response text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(
		ctx,
		c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			CandidateCount:  1,
			MaxOutputTokens: c.maxOutputTokens,
		},
	)
	if err != nil {
		return "", classifyErr(err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &llm.GenerationError{Op: c.model, Err: fmt.Errorf("empty response")}
	}
	return text, nil
}

// Embed returns the embedding vector for one text passage.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}
	result, err := c.client.Models.EmbedContent(ctx,
		c.embedModel,
		contents,
		&genai.EmbedContentConfig{
			TaskType: "SEMANTIC_SIMILARITY",
		},
	)
	if err != nil {
		return nil, &llm.EmbeddingError{Err: classifyErr(err)}
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, &llm.EmbeddingError{Err: fmt.Errorf("no embedding returned")}
	}
	return result.Embeddings[0].Values, nil
}

func classifyErr(err error) error {
	// Wrap transient failures so the batch driver will retry with backoff.
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return &llm.TransientError{Err: err}
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && (ne.Timeout() || ne.Temporary()) {
		return &llm.TransientError{Err: err}
	}
	return err
}
