package ingestion

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"only whitespace", "   \n\t\n  ", ""},
		{"line endings", "a\r\nb\rc\nd", "a\nb\nc\nd"},
		{"inner spaces", "Line    with \t multiple   spaces   ", "Line with multiple spaces"},
		{"blank runs", "\n\nPara one\n\n\n\n\nPara two\n\n", "Para one\n\nPara two"},
		{"headings flush left", "   ## Buyers", "## Buyers"},
		{"prose loses indent", "\tSeasonal  peaks in   Q4", "Seasonal peaks in Q4"},
		{"nested list", "- Etsy\n    - Gift buyers\n\t* Teachers", "- Etsy\n    - Gift buyers\n    * Teachers"},
		{"numbered list", "  1. Validate demand\n  2)  Launch", "  1. Validate demand\n  2) Launch"},
		{"unicode bullets", "• Prints\n· Frames", "• Prints\n· Frames"},
		{"dash without space is prose", "   -30% margin", "-30% margin"},
		{"unicode text", "émojis 🚀 and   spéciàl", "émojis 🚀 and spéciàl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalize_MarketNotes(t *testing.T) {
	input := "# Print-on-demand notes\r\n\r\n\r\n\r\n## Buyers\n   - Etsy   shoppers\n• Gift buyers\n\tSeasonal  peaks in   Q4   \n"
	assert.Equal(t, "# Print-on-demand notes\n\n## Buyers\n  - Etsy shoppers\n• Gift buyers\nSeasonal peaks in Q4", Normalize(input))
	assert.Equal(t, Normalize(input), Normalize(Normalize(input)), "normalizing twice changes nothing")
}

func TestClip(t *testing.T) {
	text, cut := Clip("short", 100)
	assert.Equal(t, "short", text)
	assert.False(t, cut)

	text, cut = Clip("anything", 0)
	assert.Equal(t, "anything", text)
	assert.False(t, cut)

	// the break sits in the last quarter, so the cut moves back to it
	long := strings.Repeat("a", 90) + "\n" + strings.Repeat("b", 50)
	text, cut = Clip(long, 100)
	assert.True(t, cut)
	assert.Equal(t, strings.Repeat("a", 90), text)

	// no usable break: hard cut on a rune boundary
	text, cut = Clip(strings.Repeat("é", 30), 10)
	assert.True(t, cut)
	assert.Equal(t, strings.Repeat("é", 10), text)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "niches.md")
	require.NoError(t, os.WriteFile(path, []byte("# Wall art niches\n\n\n\nBotanical   prints sell year round\n"), 0644))

	text, meta, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Wall art niches\n\nBotanical prints sell year round", text)
	assert.Equal(t, KindFile, meta.Kind)
	assert.Equal(t, path, meta.Origin)
	assert.Equal(t, "niches.md", meta.Label())
	assert.Len(t, meta.Digest, 64)

	_, again, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, meta.Digest, again.Digest)
}

func TestFromFile_Errors(t *testing.T) {
	text, meta, err := FromFile("/nonexistent/notes.txt")
	require.Error(t, err)
	assert.Empty(t, text)
	assert.Nil(t, meta)
	assert.Contains(t, err.Error(), "file not found")

	blank := filepath.Join(t.TempDir(), "blank.txt")
	require.NoError(t, os.WriteFile(blank, []byte(" \n\t\n"), 0644))
	_, _, err = FromFile(blank)
	assert.ErrorIs(t, err, ErrNoContent)
}
