package ingestion

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxSourceChars caps the text kept from one fetched page.
const MaxSourceChars = 12000

var (
	innerSpace = regexp.MustCompile(`[ \t\f\v]+`)
	listItem   = regexp.MustCompile(`^([-*+•·]|\d{1,3}[.)])\s`)
)

// Normalize tidies discovery material: unified line endings, collapsed runs of
// spaces and at most one blank line between paragraphs. Lines are flush left
// except list items, which keep their nesting as two spaces per level.
func Normalize(content string) string {
	content = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(content)

	var b strings.Builder
	pendingBreak := false
	for _, raw := range strings.Split(content, "\n") {
		line := normalizeLine(raw)
		if line == "" {
			pendingBreak = b.Len() > 0
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
			if pendingBreak {
				b.WriteByte('\n')
			}
		}
		pendingBreak = false
		b.WriteString(line)
	}
	return b.String()
}

func normalizeLine(line string) string {
	body := strings.TrimLeft(line, " \t")
	indent := line[:len(line)-len(body)]
	body = strings.TrimRightFunc(body, unicode.IsSpace)
	if body == "" {
		return ""
	}
	body = innerSpace.ReplaceAllString(body, " ")
	if !listItem.MatchString(body) {
		return body
	}
	return strings.Repeat("  ", indentWidth(indent)/2) + body
}

func indentWidth(indent string) int {
	w := 0
	for _, r := range indent {
		if r == '\t' {
			w += 4
		} else {
			w++
		}
	}
	return w
}

// Clip shortens text to at most max runes. When a line break falls in the last
// quarter of the kept text the cut moves back to it. Reports whether text was cut.
func Clip(text string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text, false
	}
	cut := string([]rune(text)[:max])
	if i := strings.LastIndexByte(cut, '\n'); i >= len(cut)*3/4 {
		cut = cut[:i]
	}
	return strings.TrimRightFunc(cut, unicode.IsSpace), true
}

// FromFile reads a local notes file to use as discovery context.
func FromFile(path string) (string, *Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("file not found: %w", err)
		}
		return "", nil, fmt.Errorf("failed to read file: %w", err)
	}

	text := Normalize(string(raw))
	if text == "" {
		return "", nil, fmt.Errorf("%w: %s", ErrNoContent, path)
	}
	meta := newMetadata(KindFile, path, text)
	meta.Title = filepath.Base(path)
	return text, meta, nil
}
