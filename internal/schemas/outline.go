package schemas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// schemaNode is the subset of JSON Schema needed to describe a contract to the model.
type schemaNode struct {
	Type        string       `json:"type"`
	Description string       `json:"description"`
	Properties  orderedProps `json:"properties"`
	Items       *schemaNode  `json:"items"`
	Required    []string     `json:"required"`
	Enum        []string     `json:"enum"`
	Pattern     string       `json:"pattern"`
	MinItems    *int         `json:"minItems"`
	MaxItems    *int         `json:"maxItems"`
	Minimum     *float64     `json:"minimum"`
	Maximum     *float64     `json:"maximum"`
}

// orderedProps keeps schema properties in document order so prompts list fields as authored.
type orderedProps struct {
	keys  []string
	nodes map[string]*schemaNode
}

func (p *orderedProps) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("properties must be an object")
	}
	p.nodes = make(map[string]*schemaNode)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected property key %v", tok)
		}
		var node schemaNode
		if err := dec.Decode(&node); err != nil {
			return fmt.Errorf("property %s: %w", key, err)
		}
		p.keys = append(p.keys, key)
		p.nodes[key] = &node
	}
	_, err = dec.Token()
	return err
}

func buildOutline(source string) (string, error) {
	var root schemaNode
	if err := json.Unmarshal([]byte(source), &root); err != nil {
		return "", err
	}
	var sb strings.Builder
	writeProps(&sb, &root, 0)
	return sb.String(), nil
}

func writeProps(sb *strings.Builder, node *schemaNode, depth int) {
	required := make(map[string]bool, len(node.Required))
	for _, r := range node.Required {
		required[r] = true
	}
	indent := strings.Repeat("  ", depth)
	for _, key := range node.Properties.keys {
		child := node.Properties.nodes[key]
		sb.WriteString(fmt.Sprintf("%s- %q (%s", indent, key, typeHint(child)))
		for _, c := range constraints(child) {
			sb.WriteString(", " + c)
		}
		if required[key] {
			sb.WriteString(", required")
		}
		sb.WriteString(")")
		if child.Description != "" {
			sb.WriteString(": " + child.Description)
		}
		sb.WriteString("\n")

		switch {
		case child.Type == "object":
			writeProps(sb, child, depth+1)
		case child.Type == "array" && child.Items != nil && child.Items.Type == "object":
			writeProps(sb, child.Items, depth+1)
		}
	}
}

func typeHint(n *schemaNode) string {
	if n.Type == "array" && n.Items != nil {
		return "array of " + n.Items.Type
	}
	return n.Type
}

func constraints(n *schemaNode) []string {
	var out []string
	if len(n.Enum) > 0 {
		out = append(out, "one of: "+strings.Join(n.Enum, " | "))
	}
	if n.Pattern != "" {
		out = append(out, "pattern "+n.Pattern)
	}
	switch {
	case n.MinItems != nil && n.MaxItems != nil && *n.MinItems == *n.MaxItems:
		out = append(out, fmt.Sprintf("exactly %d items", *n.MinItems))
	case n.MinItems != nil && *n.MinItems > 0:
		out = append(out, fmt.Sprintf("at least %d items", *n.MinItems))
	}
	if n.Minimum != nil && n.Maximum != nil {
		out = append(out, fmt.Sprintf("between %g and %g", *n.Minimum, *n.Maximum))
	} else if n.Minimum != nil {
		out = append(out, fmt.Sprintf("minimum %g", *n.Minimum))
	}
	return out
}
