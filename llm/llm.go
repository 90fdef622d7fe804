package llm

import "context"

// Client abstracts the multimodal inference provider used by the analyzer.
// Implementations must be concurrency-safe if used across goroutines.
type Client interface {
	// AnalyzeShopImage takes raw image bytes plus their MIME type and
	// returns a single text blob, nominally JSON per the analysis schema.
	// The context bounds the remote call; implementations must honor
	// cancellation.
	AnalyzeShopImage(ctx context.Context, imageData []byte, mimeType string) (string, error)
	// SourceName returns a short provider label for logs (e.g., "Gemini").
	SourceName() string
}
