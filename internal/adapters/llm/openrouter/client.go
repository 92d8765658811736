package openrouter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"github.com/randomtoy/pickwheel/internal/domain"
	"github.com/randomtoy/pickwheel/internal/ports"
)

// Client implements ports.Generator via the OpenRouter (OpenAI-compatible) API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	logger     *slog.Logger
}

func NewClient(httpClient *http.Client, apiKey, baseURL, model string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		logger:     logger,
	}
}

// chatRequest / chatResponse mirror the OpenAI-compatible API shapes.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentPart
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type streamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *Client) Generate(ctx context.Context, in ports.GenerateRequest) (string, error) {
	resp, err := c.post(ctx, in, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", domain.ErrNetworkOrService, err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", domain.ErrNetworkOrService, err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", domain.ErrNetworkOrService)
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

func (c *Client) GenerateStream(ctx context.Context, in ports.GenerateRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := c.post(ctx, in, true)
		if err != nil {
			yield("", err)
			return
		}
		defer resp.Body.Close()

		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			data, ok := strings.CutPrefix(sc.Text(), "data:")
			if !ok {
				continue // blank separators and ": OPENROUTER PROCESSING" comments
			}
			data = strings.TrimSpace(data)
			if data == "[DONE]" {
				return
			}
			var chunk streamResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				yield("", fmt.Errorf("%w: decode stream chunk: %w", domain.ErrNetworkOrService, err))
				return
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if !yield(chunk.Choices[0].Delta.Content, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield("", fmt.Errorf("%w: read stream: %w", domain.ErrNetworkOrService, err))
		}
	}
}

func (c *Client) post(ctx context.Context, in ports.GenerateRequest, stream bool) (*http.Response, error) {
	if c.apiKey == "" {
		return nil, domain.ErrMissingCredential
	}

	reqBody := chatRequest{
		Model:    c.modelFor(in),
		Messages: buildMessages(in),
		Stream:   stream,
	}
	if in.JSON {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	if in.WebSearch {
		// OpenRouter enables web search through the ":online" model suffix.
		reqBody.Model += ":online"
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http call: %w", domain.ErrNetworkOrService, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.WarnContext(ctx, "openrouter returned non-200", "status", resp.StatusCode, "model", reqBody.Model)
		return nil, fmt.Errorf("%w: upstream status %d: %s", domain.ErrNetworkOrService, resp.StatusCode, string(respBody))
	}
	return resp, nil
}

func (c *Client) modelFor(in ports.GenerateRequest) string {
	if in.Model != "" {
		return in.Model
	}
	return c.model
}

func buildMessages(in ports.GenerateRequest) []chatMessage {
	msgs := make([]chatMessage, 0, len(in.History)+2)
	if in.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: in.System})
	}
	for _, t := range in.History {
		role := t.Role
		if role == string(domain.RoleModel) {
			role = "assistant"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: t.Text})
	}

	if in.Image == nil {
		return append(msgs, chatMessage{Role: "user", Content: in.Prompt})
	}
	dataURI := fmt.Sprintf("data:%s;base64,%s", in.Image.MIMEType, base64.StdEncoding.EncodeToString(in.Image.Data))
	return append(msgs, chatMessage{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: in.Prompt},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
		},
	})
}
