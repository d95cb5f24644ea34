// Package llm - util.go provides shared utilities for LLM response processing.
package llm

import "strings"

// CleanJSONBlock strips markdown fences and surrounding chatter from a model response,
// returning the first complete JSON object or array it contains.
// Text without a balanced JSON value is returned trimmed but otherwise untouched.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = stripFence(text)
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	var value string
	if text[start] == '{' {
		value = extractJSONObject(text[start:])
	} else {
		value = extractJSONArray(text[start:])
	}
	if value == "" {
		return text
	}
	return value
}

func stripFence(text string) string {
	text = strings.TrimPrefix(text, "```")
	// a short first line without spaces or braces is a language tag
	if idx := strings.Index(text, "\n"); idx >= 0 {
		first := text[:idx]
		if len(first) < 20 && !strings.ContainsAny(first, " {[") {
			text = text[idx+1:]
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

func extractJSONObject(s string) string {
	return extractBalanced(s, '{', '}')
}

func extractJSONArray(s string) string {
	return extractBalanced(s, '[', ']')
}

// extractBalanced returns the prefix of s that closes the bracket s starts with.
// Brackets inside string literals are ignored.
func extractBalanced(s string, open, close byte) string {
	if s == "" || s[0] != open {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
