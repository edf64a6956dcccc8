package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_FencedMatchesBare(t *testing.T) {
	bare := `{"title":"Fractions","questions":[{"index":1}]}`
	fenced := "```json\n" + bare + "\n```"

	want := ExtractJSON(bare)
	require.NotNil(t, want)
	assert.Equal(t, want, ExtractJSON(fenced))
	assert.Equal(t, want, ExtractJSON("```\n"+bare+"\n```"))
}

func TestExtractJSON_SurroundingProse(t *testing.T) {
	raw := "Here is your lesson:\n{\"title\": \"Shapes\", \"n\": 2}\nEnjoy!"
	obj := ExtractJSON(raw)
	require.NotNil(t, obj)
	assert.Equal(t, "Shapes", obj["title"])
	assert.EqualValues(t, 2, obj["n"])
}

func TestExtractJSON_ReturnsNil(t *testing.T) {
	for _, raw := range []string{
		"Sorry, I can't help with that.",
		"",
		"{not json}",
		"[1, 2, 3]",
		"} backwards {",
	} {
		assert.Nil(t, ExtractJSON(raw), raw)
	}
}
