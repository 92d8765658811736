package ports

import (
	"context"
	"iter"
)

// Image is an opaque still image attached to a prompt.
type Image struct {
	Data     []byte
	MIMEType string
}

// Turn is one earlier exchange replayed to the model for chat context.
type Turn struct {
	Role string // "user" or "model"
	Text string
}

// GenerateRequest is one call to a remote text/vision model.
type GenerateRequest struct {
	Model     string
	System    string
	Prompt    string
	History   []Turn
	Image     *Image
	JSON      bool // ask for a JSON reply when the provider supports it
	WebSearch bool // enable the provider's web search tool
}

// Generator produces text from a remote model. Implementations return errors
// wrapping domain.ErrNetworkOrService or domain.ErrMissingCredential.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	// GenerateStream yields text increments in arrival order. Iteration stops
	// after the first error.
	GenerateStream(ctx context.Context, req GenerateRequest) iter.Seq2[string, error]
}
