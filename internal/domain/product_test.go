package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_Discount(t *testing.T) {
	tests := []struct {
		name     string
		offered  float64
		original float64
		want     string
	}{
		{"quarter off", 75, 100, "25"},
		{"rounds", 66, 99, "33"},
		{"no markdown", 100, 100, "0"},
		{"offered above original", 120, 100, "0"},
		{"no original", 50, 0, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Product{OfferedPrice: tt.offered, OriginalPrice: tt.original}
			assert.Equal(t, tt.want, p.Discount().String())
		})
	}
}

func TestProduct_Rating(t *testing.T) {
	assert.Equal(t, "0", Product{}.Rating().String())

	p := Product{Reviews: []Review{{Rating: 4}, {Rating: 5}, {Rating: 4}}}
	assert.Equal(t, "4.3", p.Rating().String())
}

func TestProduct_InStockAndPublisher(t *testing.T) {
	assert.False(t, Product{}.InStock())
	assert.True(t, Product{Stock: 2}.InStock())

	assert.Equal(t, "Not Available", Product{}.Publisher())
	assert.Equal(t, "Acme", Product{PublisherName: "Acme"}.Publisher())
}

func TestFeatures_AcceptsArrayOrText(t *testing.T) {
	var fromArray Product
	require.NoError(t, json.Unmarshal([]byte(`{"features":["a","b"]}`), &fromArray))
	assert.Equal(t, Features{"a", "b"}, fromArray.Features)

	var fromText Product
	require.NoError(t, json.Unmarshal([]byte(`{"features":"12MP camera\n 5G , ,OLED"}`), &fromText))
	assert.Equal(t, Features{"12MP camera", "5G", "OLED"}, fromText.Features)

	var bad Product
	assert.Error(t, json.Unmarshal([]byte(`{"features":12}`), &bad))
}
