package prompts

import (
	"context"
	"embed"
	"fmt"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/randomtoy/pickwheel/internal/domain"
	"github.com/randomtoy/pickwheel/internal/ports"
)

//go:embed data/*.yaml
var dataFS embed.FS

const (
	promptsFile = "data/prompts.yaml"
	presetsFile = "data/presets.yaml"
)

type promptEntry struct {
	Feature   string `yaml:"feature"`
	Model     string `yaml:"model"`
	Shape     string `yaml:"shape"`
	WebSearch bool   `yaml:"web_search"`
	System    string `yaml:"system"`
	User      string `yaml:"user"`
}

type presetEntry struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Options []string `yaml:"options"`
}

// EmbeddedStore loads prompt templates and wheel presets from embedded YAML.
type EmbeddedStore struct {
	once    sync.Once
	prompts map[ports.Feature]ports.PromptTemplate
	presets []ports.Preset
	err     error
}

func NewEmbeddedStore() *EmbeddedStore {
	return &EmbeddedStore{}
}

func (s *EmbeddedStore) init() {
	raw, err := dataFS.ReadFile(promptsFile)
	if err != nil {
		s.err = fmt.Errorf("read embedded prompts: %w", err)
		return
	}
	s.prompts, s.err = parsePrompts(raw)
	if s.err != nil {
		return
	}

	raw, err = dataFS.ReadFile(presetsFile)
	if err != nil {
		s.err = fmt.Errorf("read embedded presets: %w", err)
		return
	}
	s.presets, s.err = parsePresets(raw)
}

func parsePrompts(raw []byte) (map[ports.Feature]ports.PromptTemplate, error) {
	var entries []promptEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	out := make(map[ports.Feature]ports.PromptTemplate, len(entries))
	for _, e := range entries {
		tmpl := ports.PromptTemplate{
			Feature:   ports.Feature(e.Feature),
			Model:     e.Model,
			System:    e.System,
			User:      e.User,
			WebSearch: e.WebSearch,
		}
		if e.Shape != "" {
			shape, err := domain.ParseShape(e.Shape)
			if err != nil {
				return nil, fmt.Errorf("prompt %s: %w", e.Feature, err)
			}
			tmpl.Shape = shape
		}
		out[tmpl.Feature] = tmpl
	}
	return out, nil
}

func parsePresets(raw []byte) ([]ports.Preset, error) {
	var entries []presetEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	out := make([]ports.Preset, 0, len(entries))
	for _, e := range entries {
		if err := domain.ValidateOptionCount(len(e.Options)); err != nil {
			return nil, fmt.Errorf("preset %s: %w", e.ID, err)
		}
		out = append(out, ports.Preset{ID: e.ID, Name: e.Name, Options: e.Options})
	}
	return out, nil
}

func (s *EmbeddedStore) Prompt(_ context.Context, feature ports.Feature) (ports.PromptTemplate, error) {
	s.once.Do(s.init)
	if s.err != nil {
		return ports.PromptTemplate{}, s.err
	}
	p, ok := s.prompts[feature]
	if !ok {
		return ports.PromptTemplate{}, fmt.Errorf("%w: %s", domain.ErrPromptNotFound, feature)
	}
	return p, nil
}

func (s *EmbeddedStore) Presets(_ context.Context) ([]ports.Preset, error) {
	s.once.Do(s.init)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]ports.Preset, len(s.presets))
	for i, p := range s.presets {
		p.Options = slices.Clone(p.Options)
		out[i] = p
	}
	return out, nil
}
