package prompts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randomtoy/pickwheel/internal/adapters/prompts"
	"github.com/randomtoy/pickwheel/internal/domain"
	"github.com/randomtoy/pickwheel/internal/ports"
)

func TestEmbeddedStore_Prompts(t *testing.T) {
	s := prompts.NewEmbeddedStore()
	ctx := context.Background()

	cases := map[ports.Feature]domain.Shape{
		ports.FeatureFoodSuggest:  domain.ShapeArrayOfString,
		ports.FeatureRecognize:    domain.ShapeSingleObject,
		ports.FeatureExtractTodos: domain.ShapeArrayOfObject,
		ports.FeatureChat:         "",
	}
	for feature, shape := range cases {
		p, err := s.Prompt(ctx, feature)
		require.NoError(t, err, feature)
		assert.Equal(t, shape, p.Shape, feature)
		assert.NotEmpty(t, p.System, feature)
		assert.NotEmpty(t, p.User, feature)
	}
}

func TestEmbeddedStore_UnknownPrompt(t *testing.T) {
	_, err := prompts.NewEmbeddedStore().Prompt(context.Background(), "horoscope")
	assert.ErrorIs(t, err, domain.ErrPromptNotFound)
}

func TestEmbeddedStore_Presets(t *testing.T) {
	s := prompts.NewEmbeddedStore()
	presets, err := s.Presets(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, presets)

	for _, p := range presets {
		assert.NotEmpty(t, p.ID)
		assert.NoError(t, domain.ValidateOptionCount(len(p.Options)), p.ID)
	}

	// Callers get copies.
	presets[0].Options[0] = "changed"
	again, err := s.Presets(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "changed", again[0].Options[0])
}
