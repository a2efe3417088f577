package llm

import "context"

// Provider turns a prompt into raw model text.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	Model() string
}

// Classifier standardizes a single product name.
type Classifier interface {
	Classify(ctx context.Context, name string) (Classification, error)
}

// Request is one chat exchange.
type Request struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Classification is the product standardization answer.
type Classification struct {
	StandardizedName string `json:"standardized_name"`
	Category         string `json:"category"`
	IsFrozen         bool   `json:"is_frozen"`
}
