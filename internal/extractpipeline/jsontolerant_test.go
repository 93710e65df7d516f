package extractpipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONObjectParsesCleanJSON(t *testing.T) {
	var m map[string]string
	ok := ExtractJSONObject(`{"basic_information": "A 4-star hotel."}`, &m)
	assert.True(t, ok)
	assert.Equal(t, "A 4-star hotel.", m["basic_information"])
}

func TestExtractJSONObjectStripsSurroundingProse(t *testing.T) {
	var m map[string]string
	ok := ExtractJSONObject(`Sure, here is the JSON: {"contacts": "555-0100"} Hope that helps!`, &m)
	assert.True(t, ok)
	assert.Equal(t, "555-0100", m["contacts"])
}

func TestExtractJSONObjectFallsBackToCodeFence(t *testing.T) {
	var m map[string]string
	// The trailing "{above}" makes the outermost-brace span invalid JSON, so
	// only the code-fence pass can succeed.
	raw := "```json\n{\"amenities\": \"pool, spa\"}\n```\nSee {above}."
	ok := ExtractJSONObject(raw, &m)
	assert.True(t, ok)
	assert.Equal(t, "pool, spa", m["amenities"])
}

func TestExtractJSONObjectFailsOnGarbage(t *testing.T) {
	var m map[string]string
	ok := ExtractJSONObject("not json at all", &m)
	assert.False(t, ok)
}
