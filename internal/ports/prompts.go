package ports

import (
	"context"

	"github.com/randomtoy/pickwheel/internal/domain"
)

// Feature names a prompt template.
type Feature string

const (
	FeatureFoodSuggest  Feature = "food_suggest"
	FeatureRecognize    Feature = "recognize_text"
	FeatureExtractTodos Feature = "extract_todos"
	FeatureChat         Feature = "chat"
)

// PromptTemplate is the stored prompt for one feature.
type PromptTemplate struct {
	Feature   Feature
	Model     string // optional override of the default model
	System    string
	User      string // text/template source
	Shape     domain.Shape
	WebSearch bool
}

// Preset is a named default option list for a new wheel.
type Preset struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Options []string `json:"options"`
}

// PromptStore provides prompt templates and wheel presets.
type PromptStore interface {
	Prompt(ctx context.Context, feature Feature) (PromptTemplate, error)
	Presets(ctx context.Context) ([]Preset, error)
}
