package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/randomtoy/pickwheel/internal/domain"
	"github.com/randomtoy/pickwheel/internal/ports"
)

// Options configures the Gemini client.
type Options struct {
	APIKey     string
	BaseURL    string // optional endpoint override
	Model      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements ports.Generator with the Google GenAI SDK.
type Client struct {
	client *genai.Client // nil when no API key is configured
	model  string
	logger *slog.Logger
}

// New builds a client. Without an API key the client is still returned, and
// every call fails with domain.ErrMissingCredential.
func New(ctx context.Context, opts Options) (*Client, error) {
	c := &Client{model: opts.Model, logger: opts.Logger}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if opts.APIKey == "" {
		return c, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create GenAI client: %w", err)
	}
	c.client = client
	return c, nil
}

func (c *Client) Generate(ctx context.Context, in ports.GenerateRequest) (string, error) {
	if c.client == nil {
		return "", domain.ErrMissingCredential
	}
	model := c.modelFor(in)
	resp, err := c.client.Models.GenerateContent(ctx, model, buildContents(in), buildConfig(in))
	if err != nil {
		return "", c.wrap(ctx, model, err)
	}
	text := resp.Text()
	if text == "" && len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates in response", domain.ErrNetworkOrService)
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) GenerateStream(ctx context.Context, in ports.GenerateRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if c.client == nil {
			yield("", domain.ErrMissingCredential)
			return
		}
		model := c.modelFor(in)
		for resp, err := range c.client.Models.GenerateContentStream(ctx, model, buildContents(in), buildConfig(in)) {
			if err != nil {
				yield("", c.wrap(ctx, model, err))
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

func (c *Client) modelFor(in ports.GenerateRequest) string {
	if in.Model != "" {
		return in.Model
	}
	return c.model
}

func (c *Client) wrap(ctx context.Context, model string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		c.logger.WarnContext(ctx, "gemini API error", "model", model, "code", apiErr.Code, "status", apiErr.Status)
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			return fmt.Errorf("%w: %w: %w", domain.ErrNetworkOrService, domain.ErrMissingCredential, err)
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrNetworkOrService, err)
}

func buildContents(in ports.GenerateRequest) []*genai.Content {
	contents := make([]*genai.Content, 0, len(in.History)+1)
	for _, t := range in.History {
		var role genai.Role = genai.RoleUser
		if t.Role == string(domain.RoleModel) {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}

	parts := []*genai.Part{genai.NewPartFromText(in.Prompt)}
	if in.Image != nil {
		parts = append(parts, genai.NewPartFromBytes(in.Image.Data, in.Image.MIMEType))
	}
	return append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
}

func buildConfig(in ports.GenerateRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if in.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(in.System, genai.RoleUser)
	}
	// The API rejects a JSON MIME type combined with tools, so search wins
	// and the normalizer copes with the prose.
	switch {
	case in.WebSearch:
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	case in.JSON:
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}
