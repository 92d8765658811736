package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/randomtoy/pickwheel/internal/domain"
	"github.com/randomtoy/pickwheel/internal/ports"
)

// RecognitionFailedMessage is shown when the OCR reply cannot be used.
const RecognitionFailedMessage = "recognition failed, please retry"

const defaultSuggestCount = 8

// SuggestFoodsRequest asks the model for wheel options.
type SuggestFoodsRequest struct {
	Cuisine   string
	Location  string
	Count     int
	Exclude   []string
	WebSearch bool
}

// ExtractTodosRequest carries notes and/or an image to turn into todos.
type ExtractTodosRequest struct {
	Text  string
	Image *ports.Image
	Today time.Time
}

// Assistant implements the AI-backed features of the app on top of a Normalizer.
type Assistant struct {
	norm    *Normalizer
	prompts ports.PromptStore
	logger  *slog.Logger
	now     func() time.Time
}

func NewAssistant(norm *Normalizer, prompts ports.PromptStore, logger *slog.Logger) *Assistant {
	return &Assistant{norm: norm, prompts: prompts, logger: logger, now: time.Now}
}

// SuggestFoods returns dish suggestions as wheel options. A malformed reply
// yields an empty list and no error.
func (a *Assistant) SuggestFoods(ctx context.Context, req SuggestFoodsRequest) ([]domain.Option, error) {
	req.Count = clampCount(req.Count)

	tmpl, err := a.prompts.Prompt(ctx, ports.FeatureFoodSuggest)
	if err != nil {
		return nil, err
	}
	prompt, err := renderPrompt(tmpl, req)
	if err != nil {
		return nil, err
	}

	names, err := InvokeInto[[]string](ctx, a.norm, PromptRequest{
		Model:     tmpl.Model,
		System:    tmpl.System,
		Prompt:    prompt,
		Shape:     tmpl.Shape,
		WebSearch: req.WebSearch || tmpl.WebSearch,
	})
	if err != nil {
		if errors.Is(err, domain.ErrMalformedResponse) {
			a.logger.WarnContext(ctx, "unusable food suggestions", "feature", ports.FeatureFoodSuggest, "error", err)
			return []domain.Option{}, nil
		}
		return nil, fmt.Errorf("suggest foods: %w", err)
	}

	return domain.OptionsFromTexts(cleanSuggestions(names, req.Exclude, req.Count)), nil
}

// RecognizeText runs OCR on img. A malformed reply yields a failed
// Recognition with a retry message and no error.
func (a *Assistant) RecognizeText(ctx context.Context, img ports.Image) (domain.Recognition, error) {
	if len(img.Data) == 0 {
		return domain.Recognition{}, fmt.Errorf("%w: empty image", domain.ErrInvalidState)
	}

	tmpl, err := a.prompts.Prompt(ctx, ports.FeatureRecognize)
	if err != nil {
		return domain.Recognition{}, err
	}
	prompt, err := renderPrompt(tmpl, nil)
	if err != nil {
		return domain.Recognition{}, err
	}

	rec, err := InvokeInto[domain.Recognition](ctx, a.norm, PromptRequest{
		Model:  tmpl.Model,
		System: tmpl.System,
		Prompt: prompt,
		Image:  &img,
		Shape:  tmpl.Shape,
	})
	if err != nil {
		if errors.Is(err, domain.ErrMalformedResponse) {
			a.logger.WarnContext(ctx, "unusable recognition", "feature", ports.FeatureRecognize, "error", err)
			return recognitionFailed(), nil
		}
		return domain.Recognition{}, fmt.Errorf("recognize text: %w", err)
	}

	rec.Text = strings.TrimSpace(rec.Text)
	rec.Language = strings.ToLower(strings.TrimSpace(rec.Language))
	return rec, nil
}

// ExtractTodos turns notes and/or an image into calendar todos. A malformed
// reply yields an empty list and no error.
func (a *Assistant) ExtractTodos(ctx context.Context, req ExtractTodosRequest) ([]domain.Todo, error) {
	if strings.TrimSpace(req.Text) == "" && req.Image == nil {
		return nil, fmt.Errorf("%w: nothing to extract todos from", domain.ErrInvalidState)
	}
	if req.Today.IsZero() {
		req.Today = a.now()
	}

	tmpl, err := a.prompts.Prompt(ctx, ports.FeatureExtractTodos)
	if err != nil {
		return nil, err
	}
	prompt, err := renderPrompt(tmpl, map[string]any{
		"Today":    req.Today.Format("2006-01-02 (Monday)"),
		"Text":     strings.TrimSpace(req.Text),
		"HasImage": req.Image != nil,
	})
	if err != nil {
		return nil, err
	}

	todos, err := InvokeInto[[]domain.Todo](ctx, a.norm, PromptRequest{
		Model:  tmpl.Model,
		System: tmpl.System,
		Prompt: prompt,
		Image:  req.Image,
		Shape:  tmpl.Shape,
	})
	if err != nil {
		if errors.Is(err, domain.ErrMalformedResponse) {
			a.logger.WarnContext(ctx, "unusable todo extraction", "feature", ports.FeatureExtractTodos, "error", err)
			return []domain.Todo{}, nil
		}
		return nil, fmt.Errorf("extract todos: %w", err)
	}

	out := make([]domain.Todo, 0, len(todos))
	for _, td := range todos {
		td.Title = strings.TrimSpace(td.Title)
		if td.Title == "" {
			continue
		}
		out = append(out, td)
	}
	return out, nil
}

func recognitionFailed() domain.Recognition {
	return domain.Recognition{Failed: true, Message: RecognitionFailedMessage}
}

func clampCount(n int) int {
	switch {
	case n == 0:
		return defaultSuggestCount
	case n < domain.MinOptions:
		return domain.MinOptions
	case n > domain.MaxOptions:
		return domain.MaxOptions
	}
	return n
}

// cleanSuggestions trims, drops blanks, duplicates and excluded names, and caps the list.
func cleanSuggestions(names, exclude []string, limit int) []string {
	seen := make(map[string]bool, len(names)+len(exclude))
	for _, e := range exclude {
		seen[strings.ToLower(strings.TrimSpace(e))] = true
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
		if len(out) == limit {
			break
		}
	}
	return out
}

var promptFuncs = template.FuncMap{"join": strings.Join}

func renderPrompt(tmpl ports.PromptTemplate, data any) (string, error) {
	t, err := template.New(string(tmpl.Feature)).Funcs(promptFuncs).Parse(tmpl.User)
	if err != nil {
		return "", fmt.Errorf("parse prompt %s: %w", tmpl.Feature, err)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", tmpl.Feature, err)
	}
	return strings.TrimSpace(b.String()), nil
}
