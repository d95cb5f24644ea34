// Package schemas provides the versioned stage contracts and JSON Schema validation of model output.
package schemas

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// rootField names the document itself in field paths.
const rootField = "(root)"

// FieldError is one violation at a dotted field path, e.g. "actionPlan.0.tasks.2.priority".
type FieldError struct {
	Field   string
	Rule    string // gojsonschema error type: required, enum, pattern, ...
	Message string
}

// ValidationError lists every violation of one document against one schema,
// ordered by field path.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	if ve.Schema != "" {
		fmt.Fprintf(&sb, "validation failed against %s:\n", ve.Schema)
	} else {
		sb.WriteString("validation failed:\n")
	}
	for i, fe := range ve.Errors {
		fmt.Fprintf(&sb, "  %d. %s: %s\n", i+1, fe.Field, fe.Message)
	}
	return sb.String()
}

// Fields returns the distinct failing field paths.
func (ve *ValidationError) Fields() []string {
	seen := make(map[string]bool, len(ve.Errors))
	var fields []string
	for _, fe := range ve.Errors {
		if !seen[fe.Field] {
			seen[fe.Field] = true
			fields = append(fields, fe.Field)
		}
	}
	return fields
}

// SchemaLoadError reports a schema that cannot be read or compiled.
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// ValidateJSON validates a JSON file against a JSON Schema file.
func ValidateJSON(schemaPath, jsonPath string) error {
	schema, err := readDocument("schema", schemaPath)
	if err != nil {
		return err
	}
	doc, err := readDocument("JSON", jsonPath)
	if err != nil {
		return err
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return &SchemaLoadError{Path: schemaPath, Message: "invalid schema", Cause: err}
	}
	return validateWith(compiled, schemaPath, doc)
}

// ValidateJSONString validates JSON content against schema content.
func ValidateJSONString(schemaContent, jsonContent string) error {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaContent))
	if err != nil {
		return &SchemaLoadError{Path: "(inline schema)", Message: "invalid schema", Cause: err}
	}
	return validateWith(compiled, "", []byte(jsonContent))
}

func readDocument(kind, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s file not found: %s", kind, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s file: %w", kind, err)
	}
	return data, nil
}

// validateWith runs a compiled schema. A document that is not JSON at all is
// reported as a root violation rather than a load failure.
func validateWith(schema *gojsonschema.Schema, name string, doc []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return &ValidationError{Schema: name, Errors: []FieldError{{
			Field:   rootField,
			Rule:    "json",
			Message: fmt.Sprintf("document is not valid JSON: %v", err),
		}}}
	}
	if result.Valid() {
		return nil
	}

	ve := &ValidationError{Schema: name, Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = rootField
		}
		ve.Errors = append(ve.Errors, FieldError{Field: field, Rule: desc.Type(), Message: desc.Description()})
	}
	sort.SliceStable(ve.Errors, func(i, j int) bool { return ve.Errors[i].Field < ve.Errors[j].Field })
	return ve
}
