package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/venture-planner/internal/llm"
)

// MarketSignals is the structured summary of a discovery source.
type MarketSignals struct {
	Topic       string   `json:"topic"`
	Offerings   []string `json:"offerings"`
	Audiences   []string `json:"audiences,omitempty"`
	PricePoints []string `json:"price_points,omitempty"`
	PainPoints  []string `json:"pain_points"`
	Trends      []string `json:"trends,omitempty"`
}

// Empty reports whether the model found nothing worth keeping.
func (s *MarketSignals) Empty() bool {
	return s == nil || (s.Topic == "" && len(s.Offerings) == 0 && len(s.PainPoints) == 0 && len(s.Trends) == 0)
}

// ExtractSignals asks the lite tier to summarize page text into market signals.
func ExtractSignals(ctx context.Context, client llm.Client, text string) (*MarketSignals, error) {
	if client == nil {
		return nil, errors.New("llm client required for signal extraction")
	}

	prompt := llm.BuildExtractionPrompt(llm.MarketSignalsSchema(), text)
	resp, err := client.GenerateJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	resp = llm.CleanJSONBlock(resp)

	var signals MarketSignals
	if err := json.Unmarshal([]byte(resp), &signals); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w (content: %s)", err, resp)
	}
	return &signals, nil
}

// Format renders signals as the plain-text context block fed to discovery.
func (s *MarketSignals) Format() string {
	var sb strings.Builder
	if s.Topic != "" {
		sb.WriteString("Topic: " + s.Topic + "\n\n")
	}
	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		sb.WriteString(title + ":\n")
		for _, item := range items {
			sb.WriteString("- " + item + "\n")
		}
		sb.WriteString("\n")
	}
	section("Offerings", s.Offerings)
	section("Audiences", s.Audiences)
	section("Price points", s.PricePoints)
	section("Pain points", s.PainPoints)
	section("Trends", s.Trends)
	return strings.TrimSpace(sb.String())
}
