package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/randomtoy/pickwheel/internal/domain"
	"github.com/randomtoy/pickwheel/internal/ports"
)

// PromptRequest is one structured call whose reply must decode into Shape.
type PromptRequest struct {
	Model     string // empty uses the generator default
	System    string
	Prompt    string
	Image     *ports.Image
	Shape     domain.Shape
	WebSearch bool
}

// NormalizerOptions tunes model fallback and JSON repair.
type NormalizerOptions struct {
	FallbackModels []string
	// Repairs is how many corrective re-prompts follow a malformed reply.
	Repairs int
	// Timeout bounds each generation call; zero means no bound.
	Timeout time.Duration
}

// Normalizer sends prompts to a Generator and turns the replies into
// shape-checked results.
type Normalizer struct {
	gen    ports.Generator
	opts   NormalizerOptions
	logger *slog.Logger
}

func NewNormalizer(gen ports.Generator, opts NormalizerOptions, logger *slog.Logger) *Normalizer {
	if opts.Repairs < 0 {
		opts.Repairs = 0
	}
	return &Normalizer{gen: gen, opts: opts, logger: logger}
}

// Invoke dispatches req and normalizes the reply. Errors wrap
// domain.ErrNetworkOrService, domain.ErrMissingCredential or
// domain.ErrMalformedResponse.
func (n *Normalizer) Invoke(ctx context.Context, req PromptRequest) (domain.NormalizedResult, error) {
	models := make([]string, 0, 1+len(n.opts.FallbackModels))
	models = append(models, req.Model)
	models = append(models, n.opts.FallbackModels...)

	var lastErr error
	for _, model := range models {
		res, err := n.invokeWithModel(ctx, req, model)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, domain.ErrMissingCredential) || ctx.Err() != nil {
			return domain.NormalizedResult{}, err
		}
		lastErr = err
		if len(models) > 1 {
			n.logger.WarnContext(ctx, "model failed, trying next", "model", model, "error", err)
		}
	}

	return domain.NormalizedResult{}, lastErr
}

func (n *Normalizer) invokeWithModel(ctx context.Context, req PromptRequest, model string) (domain.NormalizedResult, error) {
	genReq := ports.GenerateRequest{
		Model:     model,
		System:    req.System,
		Prompt:    req.Prompt,
		Image:     req.Image,
		JSON:      true,
		WebSearch: req.WebSearch,
	}

	start := time.Now()
	content, err := n.generate(ctx, genReq)
	if err != nil {
		return domain.NormalizedResult{}, err
	}
	n.logger.DebugContext(ctx, "generation finished", "model", model, "latency_ms", time.Since(start).Milliseconds())

	res, err := domain.Normalize(content, req.Shape)
	for attempt := 1; err != nil && attempt <= n.opts.Repairs; attempt++ {
		n.logger.WarnContext(ctx, "model returned malformed JSON, retrying", "model", model, "shape", req.Shape, "attempt", attempt, "error", err)
		content, err = n.generate(ctx, ports.GenerateRequest{
			Model:  model,
			System: req.System,
			Prompt: retryPrompt(content, req.Shape),
			JSON:   true,
		})
		if err != nil {
			return domain.NormalizedResult{}, err
		}
		res, err = domain.Normalize(content, req.Shape)
	}
	return res, err
}

func (n *Normalizer) generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	if n.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.opts.Timeout)
		defer cancel()
	}
	return n.gen.Generate(ctx, req)
}

// InvokeInto is Invoke followed by decoding the payload into T.
func InvokeInto[T any](ctx context.Context, n *Normalizer, req PromptRequest) (T, error) {
	var out T
	res, err := n.Invoke(ctx, req)
	if err != nil {
		return out, err
	}
	if err := res.Into(&out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func retryPrompt(bad string, shape domain.Shape) string {
	return fmt.Sprintf(`Your previous response was not valid JSON. Here is what you returned:
%s

Return ONLY the corrected JSON (%s) with the same content, no markdown, no code fences, no extra text.`, bad, shapeHint(shape))
}

func shapeHint(shape domain.Shape) string {
	switch shape {
	case domain.ShapeArrayOfObject:
		return "an array of objects"
	case domain.ShapeArrayOfString:
		return "an array of strings"
	case domain.ShapeSingleObject:
		return "a single object"
	default:
		return "an array"
	}
}
