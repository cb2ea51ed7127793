// Package llm provides the chat and embedding clients used for question
// answering.
package llm

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// ChatClient produces a completion from a system and user prompt. Implementations
// must request a JSON object response so the answer contract can be parsed.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
	ModelName() string
	Close() error
}
