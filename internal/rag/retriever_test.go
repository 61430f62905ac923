package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stocklens/stocklens/internal/models"
)

func TestFormatResults(t *testing.T) {
	results := []models.SearchResult{
		{Content: "RSI below 30 signals oversold conditions", Score: 0.91},
		{Content: "High P/E ratios compress future returns", Score: 0.745},
	}

	formatted := FormatResults(results)
	assert.Equal(t,
		"1. [score=0.91] RSI below 30 signals oversold conditions\n"+
			"2. [score=0.74] High P/E ratios compress future returns",
		formatted)
}

func TestFormatResults_Empty(t *testing.T) {
	assert.Equal(t, "No relevant context found for this query.", FormatResults(nil))
}
