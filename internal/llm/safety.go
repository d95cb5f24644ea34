package llm

import (
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

// HarmCategory names a content category the provider can filter.
type HarmCategory string

// Harm categories understood by the Gemini API.
const (
	HarmHateSpeech       HarmCategory = "HARM_CATEGORY_HATE_SPEECH"
	HarmDangerousContent HarmCategory = "HARM_CATEGORY_DANGEROUS_CONTENT"
	HarmHarassment       HarmCategory = "HARM_CATEGORY_HARASSMENT"
	HarmSexuallyExplicit HarmCategory = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
)

// BlockThreshold is the probability level at which content is blocked.
type BlockThreshold string

// Block thresholds, least to most restrictive.
const (
	BlockNone           BlockThreshold = "BLOCK_NONE"
	BlockOnlyHigh       BlockThreshold = "BLOCK_ONLY_HIGH"
	BlockMediumAndAbove BlockThreshold = "BLOCK_MEDIUM_AND_ABOVE"
	BlockLowAndAbove    BlockThreshold = "BLOCK_LOW_AND_ABOVE"
)

// SafetySetting pairs a harm category with its blocking threshold.
type SafetySetting struct {
	Category  HarmCategory   `json:"category" yaml:"category"`
	Threshold BlockThreshold `json:"threshold" yaml:"threshold"`
}

// DefaultSafetySettings is the filter set every stage uses unless overridden.
func DefaultSafetySettings() []SafetySetting {
	return []SafetySetting{
		{Category: HarmHateSpeech, Threshold: BlockOnlyHigh},
		{Category: HarmDangerousContent, Threshold: BlockNone},
		{Category: HarmHarassment, Threshold: BlockMediumAndAbove},
		{Category: HarmSexuallyExplicit, Threshold: BlockLowAndAbove},
	}
}

var genaiCategories = map[HarmCategory]genai.HarmCategory{
	HarmHateSpeech:       genai.HarmCategoryHateSpeech,
	HarmDangerousContent: genai.HarmCategoryDangerousContent,
	HarmHarassment:       genai.HarmCategoryHarassment,
	HarmSexuallyExplicit: genai.HarmCategorySexuallyExplicit,
}

var genaiThresholds = map[BlockThreshold]genai.HarmBlockThreshold{
	BlockNone:           genai.HarmBlockNone,
	BlockOnlyHigh:       genai.HarmBlockOnlyHigh,
	BlockMediumAndAbove: genai.HarmBlockMediumAndAbove,
	BlockLowAndAbove:    genai.HarmBlockLowAndAbove,
}

// Validate reports unknown categories or thresholds.
func (s SafetySetting) Validate() error {
	if _, ok := genaiCategories[s.Category]; !ok {
		return fmt.Errorf("unknown harm category %q", s.Category)
	}
	if _, ok := genaiThresholds[s.Threshold]; !ok {
		return fmt.Errorf("unknown block threshold %q for %s", s.Threshold, s.Category)
	}
	return nil
}

// ValidateSafety checks every setting in a list.
func ValidateSafety(settings []SafetySetting) error {
	for _, s := range settings {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func toGenaiSafety(settings []SafetySetting) ([]*genai.SafetySetting, error) {
	out := make([]*genai.SafetySetting, 0, len(settings))
	for _, s := range settings {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		out = append(out, &genai.SafetySetting{
			Category:  genaiCategories[s.Category],
			Threshold: genaiThresholds[s.Threshold],
		})
	}
	return out, nil
}
