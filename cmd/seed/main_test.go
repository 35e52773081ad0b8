package main

import (
	"bytes"
	"image/png"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
)

func TestProducts_AreUploadable(t *testing.T) {
	for _, p := range products {
		t.Run(p.name, func(t *testing.T) {
			assert.True(t, slices.Contains(domain.Categories, p.category))
			assert.Positive(t, p.offeredPrice)
			assert.LessOrEqual(t, p.offeredPrice, p.originalPrice)
			assert.GreaterOrEqual(t, p.stock, 0)
		})
	}
}

func TestPlaceholderPNG(t *testing.T) {
	data, err := placeholderPNG(3)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
}
