package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/venture-planner/internal/generation"
	"github.com/jonathan/venture-planner/internal/pipeline"
	"github.com/jonathan/venture-planner/internal/store"
	"github.com/jonathan/venture-planner/internal/types"
)

// ErrEmailAlreadyExists indicates email is already registered
type ErrEmailAlreadyExists struct {
	Email string
}

func (e *ErrEmailAlreadyExists) Error() string {
	return fmt.Sprintf("email already registered: %s", e.Email)
}

// ErrInvalidCredentials indicates invalid login credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid email or password"
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch err.(type) {
	case *ErrEmailAlreadyExists:
		return http.StatusConflict
	case *ErrInvalidCredentials:
		return http.StatusUnauthorized
	case *ErrValidation:
		return http.StatusBadRequest
	}

	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, pipeline.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrVersionConflict),
		errors.Is(err, store.ErrEmailTaken),
		errors.Is(err, pipeline.ErrRunInProgress),
		errors.Is(err, pipeline.ErrBuildModeAlreadySelected),
		errors.Is(err, pipeline.ErrOpportunityAlreadySelected),
		errors.Is(err, pipeline.ErrNotAwaitingSelection):
		return http.StatusConflict
	case errors.Is(err, types.ErrInvalidBuildMode),
		errors.Is(err, pipeline.ErrUnknownOpportunity),
		errors.Is(err, pipeline.ErrInvalidStart):
		return http.StatusBadRequest
	}

	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		return kindStatus(stageErr.Kind)
	}
	if kind := generation.Classify(err); kind != generation.KindUnknown {
		return kindStatus(kind)
	}

	var fieldErrs validator.ValidationErrors
	switch {
	case errors.As(err, &fieldErrs):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func kindStatus(kind generation.ErrorKind) int {
	switch kind {
	case generation.KindInput:
		return http.StatusBadRequest
	case generation.KindProvider, generation.KindOutput, generation.KindEmpty:
		return http.StatusBadGateway
	case pipeline.KindTimeout:
		return http.StatusGatewayTimeout
	case pipeline.KindCancelled:
		return http.StatusServiceUnavailable
	case pipeline.KindDependency:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
