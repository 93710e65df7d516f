package extractpipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractReturnsOnlyKnownCategories(t *testing.T) {
	llm := chatStub(t, `{"basic_information": "A 4-star resort.", "contacts": "", "not_a_category": "ignored"}`)
	ex := NewExtractor(llm)

	out := ex.Extract(context.Background(), "https://example.com/about", "# About\nA 4-star resort.", "Example Resort")

	assert.Equal(t, "A 4-star resort.", out["basic_information"])
	_, hasUnknown := out["not_a_category"]
	assert.False(t, hasUnknown)
}

func TestExtractDegradesToEmptyMapOnUnparseableOutput(t *testing.T) {
	llm := chatStub(t, "Sorry, I can't help with that.")
	ex := NewExtractor(llm)

	out := ex.Extract(context.Background(), "https://example.com/about", "# About", "Example Resort")
	require.NotNil(t, out)
	assert.Empty(t, out)
}
