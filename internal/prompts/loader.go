// Package prompts holds the stage prompt templates. Templates live in JSON files
// embedded at compile time; each file maps a key to a template with {{.Name}} placeholders.
// A key of the form "<base>.<variant>" is a section spliced into the base template.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

var placeholderRe = regexp.MustCompile(`\{\{\.([A-Za-z]+)\}\}`)

var (
	libraryOnce sync.Once
	library     map[string]map[string]string
	libraryErr  error
)

func loadLibrary() {
	library = make(map[string]map[string]string)
	names, err := fs.Glob(promptFiles, "*.json")
	if err != nil {
		libraryErr = err
		return
	}
	for _, name := range names {
		data, err := promptFiles.ReadFile(name)
		if err != nil {
			libraryErr = fmt.Errorf("failed to read prompt file %s: %w", name, err)
			return
		}
		var templates map[string]string
		if err := json.Unmarshal(data, &templates); err != nil {
			libraryErr = fmt.Errorf("failed to parse prompt file %s: %w", name, err)
			return
		}
		for key := range templates {
			base, _, isSection := strings.Cut(key, ".")
			if _, ok := templates[base]; isSection && !ok {
				libraryErr = fmt.Errorf("prompt file %s: section %q has no base template %q", name, key, base)
				return
			}
		}
		library[name] = templates
	}
}

func file(filename string) (map[string]string, error) {
	libraryOnce.Do(loadLibrary)
	if libraryErr != nil {
		return nil, libraryErr
	}
	templates, ok := library[filename]
	if !ok {
		return nil, fmt.Errorf("unknown prompt file %s", filename)
	}
	return templates, nil
}

// Get retrieves a prompt by filename and key, e.g. Get("tasks.json", "extract-tasks").
func Get(filename, key string) (string, error) {
	templates, err := file(filename)
	if err != nil {
		return "", err
	}
	prompt, ok := templates[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return prompt, nil
}

// MustGet is Get for prompts known to exist; it panics otherwise.
func MustGet(filename, key string) string {
	prompt, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return prompt
}

// List returns the keys of a prompt file, sorted.
func List(filename string) ([]string, error) {
	templates, err := file(filename)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(templates))
	for key := range templates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Placeholders returns the distinct placeholder names of a template in order of first use.
func Placeholders(template string) []string {
	var names []string
	seen := map[string]bool{}
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Format fills {{.Key}} placeholders from data. Placeholders without a value are left in place.
func Format(template string, data map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(ph string) string {
		if v, ok := data[ph[3:len(ph)-2]]; ok {
			return v
		}
		return ph
	})
}

// Render is Format that fails when a placeholder has no value.
func Render(template string, data map[string]string) (string, error) {
	var missing []string
	for _, name := range Placeholders(template) {
		if _, ok := data[name]; !ok {
			missing = append(missing, "{{."+name+"}}")
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("unfilled prompt placeholders: %s", strings.Join(missing, ", "))
	}
	return Format(template, data), nil
}
