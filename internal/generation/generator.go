// Package generation calls the model for one pipeline stage and enforces the stage's
// input shape and output contract. A call either yields a value that satisfies the
// contract or one of the typed errors in errors.go.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/venture-planner/internal/llm"
	"github.com/jonathan/venture-planner/internal/schemas"
	"github.com/jonathan/venture-planner/internal/types"
)

// Call describes one contract-checked generation.
type Call struct {
	Stage    schemas.Stage
	Prompt   string
	Input    any // struct validated with validator tags; nil skips the check
	Contract *schemas.Contract

	Tier        llm.ModelTier
	Model       string
	Temperature *float32
	Safety      []llm.SafetySetting
}

// Generator performs contract-checked calls against an llm.Client.
type Generator struct {
	client llm.Client
}

// New creates a Generator.
func New(client llm.Client) *Generator {
	return &Generator{client: client}
}

// Client returns the underlying provider client.
func (g *Generator) Client() llm.Client {
	return g.client
}

// Call validates c.Input, makes exactly one provider call, checks the answer
// against c.Contract and decodes it into out.
func (g *Generator) Call(ctx context.Context, c Call, out any) error {
	if c.Contract == nil {
		return fmt.Errorf("%s: no output contract", c.Stage)
	}
	if c.Input != nil {
		if err := types.Validate(c.Input); err != nil {
			return &InputValidationError{Stage: c.Stage, Cause: err}
		}
	}

	raw, err := g.client.GenerateStructured(ctx, llm.Request{
		Tag:         string(c.Stage),
		Prompt:      c.Prompt,
		Tier:        c.Tier,
		Model:       c.Model,
		Temperature: c.Temperature,
		Safety:      c.Safety,
	})
	if err != nil {
		if errors.Is(err, llm.ErrEmptyResponse) {
			return &EmptyOutputError{Stage: c.Stage, Cause: err}
		}
		if errors.Is(err, llm.ErrConfig) {
			return &ConfigError{Stage: c.Stage, Cause: err}
		}
		return &ProviderError{Stage: c.Stage, Model: c.Model, Cause: err}
	}

	cleaned := llm.CleanJSONBlock(raw)
	if cleaned == "" || cleaned == "null" {
		return &EmptyOutputError{Stage: c.Stage}
	}

	if err := c.Contract.Validate(cleaned); err != nil {
		var verr *schemas.ValidationError
		if errors.As(err, &verr) {
			return &OutputValidationError{Stage: c.Stage, Contract: c.Contract.Name(), Fields: verr.Errors}
		}
		return &OutputValidationError{Stage: c.Stage, Contract: c.Contract.Name(), Cause: err}
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return &OutputValidationError{Stage: c.Stage, Contract: c.Contract.Name(), Cause: fmt.Errorf("decode: %w", err)}
	}

	if err := validateOutput(out); err != nil {
		oe := &OutputValidationError{Stage: c.Stage, Contract: c.Contract.Name(), Fields: fieldErrors(err)}
		if len(oe.Fields) == 0 {
			oe.Cause = err
		}
		return oe
	}
	return nil
}

// validateOutput runs struct-level rules on decoded output. Slices of structs are
// checked element by element; other shapes pass through.
func validateOutput(out any) error {
	v := types.Validator()
	if err := v.Struct(out); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		return err
	}
	return nil
}

func fieldErrors(err error) []schemas.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]schemas.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		out = append(out, schemas.FieldError{
			Field:   ns,
			Message: fmt.Sprintf("failed %q rule", fe.Tag()),
		})
	}
	return out
}
