package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/venture-planner/internal/types"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	users *UserService
	jwt   *JWTService
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(users *UserService, jwtService *JWTService) *AuthHandler {
	return &AuthHandler{
		users: users,
		jwt:   jwtService,
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.users.Register(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respondWithToken(w, http.StatusCreated, user)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.users.Login(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respondWithToken(w, http.StatusOK, user)
}

func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := types.Validate(v); err != nil {
		errorResponse(w, http.StatusBadRequest, extractValidationErrors(err))
		return false
	}
	return true
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, user *types.User) {
	resp, err := h.jwt.Issue(user)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	jsonResponse(w, status, resp)
}

// extractValidationErrors reports the first failing field of a validator error.
func extractValidationErrors(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
		ve := validationErrors[0]
		return fmt.Sprintf("validation error: %s - %s", ve.Field(), ve.Tag())
	}
	return "validation error: invalid request"
}
