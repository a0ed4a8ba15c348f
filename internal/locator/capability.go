package locator

import (
	"context"
	"time"
)

// Prober answers whether a locator currently resolves to an element. It
// waits up to timeout for the element to appear; a miss is not an error.
type Prober interface {
	Exists(ctx context.Context, locator string, timeout time.Duration) bool
}

// Capability is the page-automation surface page objects drive. The
// Resolver itself only needs Prober.
type Capability interface {
	Prober
	Fill(ctx context.Context, locator, value string) error
	Click(ctx context.Context, locator string) error
	ReadText(ctx context.Context, locator string) (string, error)
}

// Predictor proposes a replacement for a locator that no longer matches.
// An empty string means no proposal.
type Predictor interface {
	Predict(ctx context.Context, locator string) (string, error)
}
