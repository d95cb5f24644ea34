// Package llm - extractor.go provides generic LLM-based structured extraction.
package llm

import (
	"fmt"
	"strings"
)

// ExtractionSchema describes what to pull out of free text.
type ExtractionSchema struct {
	Name        string        // e.g. "MarketSignals"
	Description string        // preamble describing the extraction task
	Fields      []SchemaField // expected output fields
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // type hint shown to the model
	Description string
	Required    bool
}

// BuildExtractionPrompt constructs the LLM prompt from schema and input text.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\nReturn ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = `"string"`
		}
		sb.WriteString(fmt.Sprintf("  %q: %s", field.Name, typeHint))
		if field.Required {
			sb.WriteString(" (required)")
		}
		if field.Description != "" {
			sb.WriteString(" // " + field.Description)
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Use only facts stated in the text; leave a list empty rather than guessing.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n\n")

	sb.WriteString("Input text:\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// MarketSignalsSchema extracts the parts of a web page that matter when
// looking for business opportunities: the offering, audience, pricing and gaps.
func MarketSignalsSchema() ExtractionSchema {
	return ExtractionSchema{
		Name: "MarketSignals",
		Description: `You are a market researcher reading a web page on behalf of an entrepreneur.
Summarize what the page reveals about products, customers and unmet needs.
Ignore navigation, cookie banners, legal boilerplate and unrelated ads.`,
		Fields: []SchemaField{
			{Name: "topic", Type: `"string"`, Description: "What the page is about in one line", Required: true},
			{Name: "offerings", Type: `["string"]`, Description: "Products or services described on the page", Required: true},
			{Name: "audiences", Type: `["string"]`, Description: "Customer segments the page targets or mentions"},
			{Name: "price_points", Type: `["string"]`, Description: "Prices or pricing models mentioned, verbatim"},
			{Name: "pain_points", Type: `["string"]`, Description: "Complaints, gaps or unmet needs the text reveals", Required: true},
			{Name: "trends", Type: `["string"]`, Description: "Demand or technology trends the text mentions"},
		},
	}
}
