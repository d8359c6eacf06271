package llm

import (
	"context"
)

// LLMClient generates a completion for a prompt. The dedupe escalator is
// the only production caller; it expects a JSON object in the response.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EmbedderClient turns text into a vector. Not every provider supports it;
// the factory returns nil when the configured provider cannot embed.
type EmbedderClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
