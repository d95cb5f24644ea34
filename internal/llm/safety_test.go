package llm

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSafetySettings(t *testing.T) {
	want := map[HarmCategory]BlockThreshold{
		HarmHateSpeech:       BlockOnlyHigh,
		HarmDangerousContent: BlockNone,
		HarmHarassment:       BlockMediumAndAbove,
		HarmSexuallyExplicit: BlockLowAndAbove,
	}
	got := make(map[HarmCategory]BlockThreshold)
	for _, s := range DefaultSafetySettings() {
		got[s.Category] = s.Threshold
	}
	assert.Equal(t, want, got)
}

func TestToGenaiSafety(t *testing.T) {
	settings, err := toGenaiSafety(DefaultSafetySettings())
	require.NoError(t, err)
	require.Len(t, settings, 4)
	assert.Equal(t, genai.HarmCategoryHateSpeech, settings[0].Category)
	assert.Equal(t, genai.HarmBlockOnlyHigh, settings[0].Threshold)
	assert.Equal(t, genai.HarmBlockNone, settings[1].Threshold)
}

func TestSafetySetting_Validate(t *testing.T) {
	assert.NoError(t, SafetySetting{Category: HarmHarassment, Threshold: BlockNone}.Validate())
	assert.Error(t, SafetySetting{Category: "HARM_CATEGORY_GOSSIP", Threshold: BlockNone}.Validate())
	assert.Error(t, SafetySetting{Category: HarmHarassment, Threshold: "BLOCK_SOMETIMES"}.Validate())

	_, err := toGenaiSafety([]SafetySetting{{Category: HarmHarassment, Threshold: "nope"}})
	assert.Error(t, err)
}

func TestExtractTextFromResponse(t *testing.T) {
	_, err := extractTextFromResponse(&genai.GenerateContentResponse{})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = extractTextFromResponse(&genai.GenerateContentResponse{
		PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety},
	})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = extractTextFromResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{}}},
	})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	text, err := extractTextFromResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"a":`), genai.Text(`1}`)}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, text)
}
