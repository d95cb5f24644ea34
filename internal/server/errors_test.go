package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/venture-planner/internal/generation"
	"github.com/jonathan/venture-planner/internal/pipeline"
	"github.com/jonathan/venture-planner/internal/store"
	"github.com/jonathan/venture-planner/internal/types"
)

func TestHTTPStatus(t *testing.T) {
	_, modeErr := types.ParseBuildMode("sideways")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"email taken", &ErrEmailAlreadyExists{Email: "a@b.co"}, http.StatusConflict},
		{"bad credentials", &ErrInvalidCredentials{}, http.StatusUnauthorized},
		{"validation", &ErrValidation{Field: "password", Message: "too long"}, http.StatusBadRequest},
		{"missing plan", fmt.Errorf("plan x: %w", store.ErrNotFound), http.StatusNotFound},
		{"missing run", pipeline.ErrRunNotFound, http.StatusNotFound},
		{"version conflict", store.ErrVersionConflict, http.StatusConflict},
		{"run in progress", pipeline.ErrRunInProgress, http.StatusConflict},
		{"second build mode", pipeline.ErrBuildModeAlreadySelected, http.StatusConflict},
		{"invalid build mode", modeErr, http.StatusBadRequest},
		{"invalid start", pipeline.ErrInvalidStart, http.StatusBadRequest},
		{"provider stage", &pipeline.StageError{Stage: "rank", Kind: generation.KindProvider, Cause: errors.New("x")}, http.StatusBadGateway},
		{"input stage", &pipeline.StageError{Stage: "discover", Kind: generation.KindInput, Cause: errors.New("x")}, http.StatusBadRequest},
		{"selection timeout", &pipeline.StageError{Kind: pipeline.KindTimeout, Cause: pipeline.ErrBuildModeTimeout}, http.StatusGatewayTimeout},
		{"cancelled", &pipeline.StageError{Kind: pipeline.KindCancelled, Cause: context.Canceled}, http.StatusServiceUnavailable},
		{"misconfigured client", &pipeline.StageError{Stage: "rank", Kind: generation.KindConfig, Cause: errors.New("x")}, http.StatusInternalServerError},
		{"bare empty output", &generation.EmptyOutputError{}, http.StatusBadGateway},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
