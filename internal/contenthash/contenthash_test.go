package contenthash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSumIsStableAcrossRuns(t *testing.T) {
	const m = "Ocean-view rooms from $199."
	assert.Equal(t, Sum(m), Sum(m))
}

func TestSumNFCNormalizesEquivalentForms(t *testing.T) {
	// "é" as a precomposed codepoint vs "e" + combining acute accent.
	precomposed := "Café"
	decomposed := "Café"
	assert.Equal(t, Sum(precomposed), Sum(decomposed))
}

func TestSumDiffersForDifferentContent(t *testing.T) {
	assert.NotEqual(t, Sum("Ocean-view rooms from $199."), Sum("Ocean-view rooms from $229."))
}

func TestSumIsLowercaseHexSHA256Length(t *testing.T) {
	h := Sum("any input")
	assert.Len(t, h, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", h)
}
