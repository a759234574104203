package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	text := "Order #1: Ceramic Mug, quantity 2."
	hash := Hash(text)

	tests := []struct {
		name         string
		existingHash string
		newText      string
		want         Classification
	}{
		{"no prior record", "", text, New},
		{"identical text", hash, text, Unchanged},
		{"different text", hash, text + " updated", Changed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, newHash := Classify(tt.existingHash, tt.newText)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, Hash(tt.newText), newHash)
		})
	}
}

func TestHash_Stability(t *testing.T) {
	// A row whose updated_at advanced but whose rendered text is identical
	// must hash identically, so the indexer classifies it Unchanged.
	text := "Product MUG-01 \"Ceramic Mug\": price 12.00 EUR."
	assert.Equal(t, Hash(text), Hash(text))
	assert.Len(t, Hash(text), 64)
}

func TestClassification_String(t *testing.T) {
	assert.Equal(t, "new", New.String())
	assert.Equal(t, "changed", Changed.String())
	assert.Equal(t, "unchanged", Unchanged.String())
}
