package prompts

import (
	"fmt"
	"strings"

	"github.com/jonathan/venture-planner/internal/schemas"
	"github.com/jonathan/venture-planner/internal/types"
)

// Variant selects the build-mode specific section of a template.
type Variant string

// Prompt variants.
const (
	VariantAgnostic   Variant = "agnostic"
	VariantInHouse    Variant = "in-house"
	VariantOutSourced Variant = "out-sourced"
)

// VariantFor maps a build mode to its prompt variant. No mode means agnostic.
func VariantFor(mode types.BuildMode) Variant {
	switch mode {
	case types.BuildModeInHouse:
		return VariantInHouse
	case types.BuildModeOutSourced:
		return VariantOutSourced
	}
	return VariantAgnostic
}

// Template is a base prompt whose {{.ModeSection}} is filled from the key "<Key>.<variant>".
type Template struct {
	File string
	Key  string
}

// Stage templates with build-mode variants.
var (
	StrategyTemplate = Template{File: "strategy.json", Key: "build-strategy"}
	TasksTemplate    = Template{File: "tasks.json", Key: "extract-tasks"}
)

// Build returns the base template with the variant section spliced in.
// Other placeholders are left for the caller to fill.
func (t Template) Build(v Variant) (string, error) {
	base, err := Get(t.File, t.Key)
	if err != nil {
		return "", err
	}
	section, err := Get(t.File, t.Key+"."+string(v))
	if err != nil {
		return "", fmt.Errorf("template %s has no %s variant: %w", t.Key, v, err)
	}
	return Format(base, map[string]string{"ModeSection": section}), nil
}

// Variants lists the variants a template defines.
func (t Template) Variants() ([]Variant, error) {
	keys, err := List(t.File)
	if err != nil {
		return nil, err
	}
	var out []Variant
	prefix := t.Key + "."
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Variant(strings.TrimPrefix(k, prefix)))
		}
	}
	return out, nil
}

// OutputFormat renders the output instructions for a contract.
func OutputFormat(c *schemas.Contract) string {
	var sb strings.Builder
	sb.WriteString("Respond with a single JSON object and nothing else. No markdown, no commentary.\n")
	sb.WriteString("Fields:\n")
	sb.WriteString(c.Outline())
	return strings.TrimRight(sb.String(), "\n")
}
