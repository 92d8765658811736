package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randomtoy/pickwheel/internal/domain"
)

func TestOptionsFromTexts(t *testing.T) {
	opts := domain.OptionsFromTexts([]string{"  Pho ", "", "   ", "\t", "Ramen"})
	require.Len(t, opts, 2)
	assert.Equal(t, "Pho", opts[0].Text)
	assert.Equal(t, "Ramen", opts[1].Text)
	assert.NotEqual(t, opts[0].ID, opts[1].ID)
}
