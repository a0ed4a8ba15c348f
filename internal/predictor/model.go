package predictor

import (
	"context"
	"fmt"

	"selfheal/internal/embedding"
)

// Model is an opaque inference function over codec vectors. Implementations
// must be safe for concurrent Infer calls once constructed.
type Model interface {
	// Name identifies the backend and artifact for logs.
	Name() string

	// Infer reads the embedded locator from in and writes the predicted
	// embedding to out. An all-zero out means "no prediction".
	Infer(ctx context.Context, in, out *Tensor) error

	// Close releases backend resources.
	Close() error
}

// Loader builds the model for a predictor. It runs at most once per Predictor.
type Loader func(ctx context.Context, cfg Config, codec embedding.Codec) (Model, error)

// Backend names accepted by Config.Backend.
const (
	BackendNeighbor = "neighbor"
	BackendGenAI    = "genai"
)

// DefaultLoader selects the backend named by cfg.Backend.
func DefaultLoader(ctx context.Context, cfg Config, codec embedding.Codec) (Model, error) {
	switch cfg.Backend {
	case BackendNeighbor, "":
		return loadNeighborModel(cfg, codec)
	case BackendGenAI:
		return newGenAIModel(ctx, cfg, codec)
	default:
		return nil, fmt.Errorf("unsupported model backend: %s (use '%s' or '%s')", cfg.Backend, BackendNeighbor, BackendGenAI)
	}
}
