// Package llm provides the language-model collaborator used by the
// migration pipeline. The core treats the model as an opaque service:
// prompt in, text out. A memoizing cache wrapper avoids redundant billed
// calls for identical prompts within a run.
package llm

import "context"

// Client defines the interface for LLM providers.
type Client interface {
	// Complete sends a prompt and returns the completion text.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteWithMaxTokens sends a prompt with an explicit output budget.
	// maxTokens <= 0 means the provider default.
	CompleteWithMaxTokens(ctx context.Context, prompt string, maxTokens int) (string, error)
}
