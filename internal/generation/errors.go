package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/venture-planner/internal/schemas"
)

// ErrorKind classifies a generation failure.
type ErrorKind string

// Error kinds reported by Classify.
const (
	KindInput    ErrorKind = "input"
	KindConfig   ErrorKind = "config"
	KindProvider ErrorKind = "provider"
	KindOutput   ErrorKind = "output"
	KindEmpty    ErrorKind = "empty"
	KindUnknown  ErrorKind = "unknown"
)

// InputValidationError means the stage input was rejected before any remote call.
type InputValidationError struct {
	Stage schemas.Stage
	Cause error
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("%s: invalid input: %v", e.Stage, e.Cause)
}

func (e *InputValidationError) Unwrap() error {
	return e.Cause
}

// ConfigError means the client could not send the request as configured.
type ConfigError struct {
	Stage schemas.Stage
	Cause error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: client misconfigured: %v", e.Stage, e.Cause)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// ProviderError wraps a failed call to the model provider.
type ProviderError struct {
	Stage schemas.Stage
	Model string
	Cause error
}

func (e *ProviderError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%s: provider call to %s failed: %v", e.Stage, e.Model, e.Cause)
	}
	return fmt.Sprintf("%s: provider call failed: %v", e.Stage, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// EmptyOutputError means the provider answered with nothing usable.
type EmptyOutputError struct {
	Stage schemas.Stage
	Cause error
}

func (e *EmptyOutputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: empty output: %v", e.Stage, e.Cause)
	}
	return fmt.Sprintf("%s: empty output", e.Stage)
}

func (e *EmptyOutputError) Unwrap() error {
	return e.Cause
}

// OutputValidationError means the model output did not satisfy the stage contract.
type OutputValidationError struct {
	Stage    schemas.Stage
	Contract string
	Fields   []schemas.FieldError
	Cause    error
}

func (e *OutputValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: output violates %s", e.Stage, e.Contract))
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}
	for _, f := range e.Fields {
		sb.WriteString(fmt.Sprintf("; %s: %s", f.Field, f.Message))
	}
	return sb.String()
}

func (e *OutputValidationError) Unwrap() error {
	return e.Cause
}

// Classify reports which kind of generation failure err carries.
func Classify(err error) ErrorKind {
	var (
		inputErr    *InputValidationError
		configErr   *ConfigError
		providerErr *ProviderError
		emptyErr    *EmptyOutputError
		outputErr   *OutputValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &inputErr):
		return KindInput
	case errors.As(err, &configErr):
		return KindConfig
	case errors.As(err, &providerErr):
		return KindProvider
	case errors.As(err, &emptyErr):
		return KindEmpty
	case errors.As(err, &outputErr):
		return KindOutput
	}
	return KindUnknown
}

// Retryable reports whether err is a provider failure worth retrying.
// Cancellation is never retried.
func Retryable(err error) bool {
	return Classify(err) == KindProvider && !errors.Is(err, context.Canceled)
}
