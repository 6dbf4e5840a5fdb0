// Package textintel provides the opaque text-intelligence capability:
// text to vectors, text to structured JSON, and prompt completion.
//
// The core never depends on a specific model identity, only on these three
// shapes. Structured extraction is fail-open by contract: callers receive an
// error and fall back to a conservative default instead of aborting the
// request.
package textintel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/memoryd/internal/vectorstore"
)

// Sentinel errors.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrExtractionFailed indicates the model returned unusable output.
	ErrExtractionFailed = errors.New("structured extraction failed")
)

// Rate limiter defaults: 50 requests per minute with small bursts.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
	defaultTimeout   = 30 * time.Second
)

// Intelligence is the completion/extraction capability.
type Intelligence interface {
	// Complete returns the model's completion for prompt.
	Complete(ctx context.Context, prompt string) (string, error)

	// ExtractJSON asks the model for JSON matching out's shape and decodes
	// into it. Malformed model output returns ErrExtractionFailed.
	ExtractJSON(ctx context.Context, prompt string, out any) error
}

// Config holds configuration for the OpenAI-compatible client.
type Config struct {
	// BaseURL overrides the API endpoint. Empty uses the provider default.
	BaseURL string

	// APIKey authenticates requests.
	APIKey string

	// Model is the completion model.
	Model string

	// EmbedModel is the embedding model.
	EmbedModel string

	// Timeout bounds each model call.
	Timeout time.Duration
}

// Client implements Intelligence and vectorstore.Embedder against any
// OpenAI-compatible endpoint.
type Client struct {
	llm      *openai.LLM
	embedder embeddings.Embedder
	limiter  *rate.Limiter
	timeout  time.Duration
}

// NewClient creates a client from config.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key required", ErrInvalidConfig)
	}
	opts := []openai.Option{openai.WithToken(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.EmbedModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(cfg.EmbedModel))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		llm:      llm,
		embedder: embedder,
		limiter:  rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		timeout:  timeout,
	}, nil
}

// Embedder returns the vectorstore.Embedder view of this client.
func (c *Client) Embedder() vectorstore.Embedder { return c }

// EmbedDocuments generates embeddings for multiple texts.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d documents: %w", len(texts), err)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return vector, nil
}

// Complete returns the model's completion for prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, llms.WithTemperature(0.2))
	if err != nil {
		return "", fmt.Errorf("completing prompt: %w", err)
	}
	return out, nil
}

// ExtractJSON asks the model for JSON and decodes it into out.
func (c *Client) ExtractJSON(ctx context.Context, prompt string, out any) error {
	raw, err := c.Complete(ctx, prompt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), out); err != nil {
		return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	return nil
}

// StripCodeFence removes a surrounding markdown code fence, which models
// routinely wrap JSON responses in.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
