package app_test

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/randomtoy/pickwheel/internal/domain"
	"github.com/randomtoy/pickwheel/internal/ports"
)

type reply struct {
	text string
	err  error
	// hang blocks the call until its context ends.
	hang bool
}

// scriptedGenerator returns replies in order and records every request.
type scriptedGenerator struct {
	mu        sync.Mutex
	replies   []reply
	calls     []ports.GenerateRequest
	chunks    []string
	streamErr error
}

func (g *scriptedGenerator) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	if len(g.replies) == 0 {
		g.mu.Unlock()
		return "", domain.ErrNetworkOrService
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	g.mu.Unlock()

	if r.hang {
		<-ctx.Done()
		return "", fmt.Errorf("%w: %w", domain.ErrNetworkOrService, ctx.Err())
	}
	return r.text, r.err
}

func (g *scriptedGenerator) GenerateStream(_ context.Context, req ports.GenerateRequest) iter.Seq2[string, error] {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	chunks, streamErr := g.chunks, g.streamErr
	g.mu.Unlock()

	return func(yield func(string, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
		if streamErr != nil {
			yield("", streamErr)
		}
	}
}

func (g *scriptedGenerator) requests() []ports.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ports.GenerateRequest(nil), g.calls...)
}

type stubPromptStore struct{}

func (stubPromptStore) Prompt(_ context.Context, f ports.Feature) (ports.PromptTemplate, error) {
	switch f {
	case ports.FeatureFoodSuggest:
		return ports.PromptTemplate{Feature: f, System: "food", User: "Suggest {{.Count}}{{if .Cuisine}} {{.Cuisine}}{{end}} dishes.", Shape: domain.ShapeArrayOfString}, nil
	case ports.FeatureRecognize:
		return ports.PromptTemplate{Feature: f, System: "ocr", User: "Read it.", Shape: domain.ShapeSingleObject}, nil
	case ports.FeatureExtractTodos:
		return ports.PromptTemplate{Feature: f, System: "todos", User: "Today is {{.Today}}. {{.Text}}", Shape: domain.ShapeArrayOfObject}, nil
	case ports.FeatureChat:
		return ports.PromptTemplate{Feature: f, System: "chat", User: "{{.Text}}"}, nil
	}
	return ports.PromptTemplate{}, domain.ErrPromptNotFound
}

func (stubPromptStore) Presets(context.Context) ([]ports.Preset, error) {
	return []ports.Preset{{ID: "lunch", Name: "Lunch", Options: []string{"Noodles", "Dumplings", "Burger", "Salad"}}}, nil
}
