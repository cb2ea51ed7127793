package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Ensure Client implements both interfaces.
var (
	_ Embedder   = (*Client)(nil)
	_ ChatClient = (*Client)(nil)
)

// Config holds OpenAI client settings.
type Config struct {
	APIKey              string
	ChatModel           string
	EmbeddingModel      string
	EmbeddingDimensions int
}

// Client wraps the OpenAI API for chat completions and embeddings.
type Client struct {
	api            openai.Client
	chatModel      string
	embeddingModel string
	dimensions     int
}

// NewClient creates an OpenAI-backed client. The API key is required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.ChatModel == "" {
		return nil, fmt.Errorf("openai: chat model is required")
	}
	if cfg.EmbeddingModel == "" {
		return nil, fmt.Errorf("openai: embedding model is required")
	}
	return &Client{
		api:            openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		dimensions:     cfg.EmbeddingDimensions,
	}, nil
}

// Complete sends one chat completion request and returns the message content.
// The response format is constrained to a JSON object.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.chatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	// gpt-5 family models reject explicit temperature overrides.
	if !strings.HasPrefix(c.chatModel, "gpt-5") {
		params.Temperature = openai.Float(0.1)
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// ModelName returns the configured chat model.
func (c *Client) ModelName() string {
	return c.chatModel
}

// Embed returns the embedding for one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns embeddings for the given texts in order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	}
	// Only text-embedding-3 models accept a dimensions parameter.
	if c.dimensions > 0 && strings.HasPrefix(c.embeddingModel, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(c.dimensions))
	}

	resp, err := c.api.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// Dimensions returns the configured embedding dimension.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op; the underlying HTTP client needs no explicit cleanup.
func (c *Client) Close() error {
	return nil
}
