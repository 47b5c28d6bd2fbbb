package embed

import "context"

// Provider extracts a speaker embedding from an audio clip. Deterministic for
// identical audio bytes; failures are transient (network/service).
type Provider interface {
	Embed(ctx context.Context, clip []byte) ([]float32, error)
}
