package llm

import "context"

type Provider interface {
	// Complete returns the model's full answer for a one-shot prompt.
	Complete(ctx context.Context, prompt string) (string, error)
	Close() error
}
