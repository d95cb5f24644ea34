package types

import (
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	sharedValid   *validator.Validate
)

// Validator returns the shared validator with the plan-specific rules registered.
// validator.Validate caches struct metadata and is safe for concurrent use.
func Validator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()
		// score10 accepts a string holding an integer in 1..10
		_ = v.RegisterValidation("score10", func(fl validator.FieldLevel) bool {
			n, err := strconv.Atoi(strings.TrimSpace(fl.Field().String()))
			return err == nil && n >= 1 && n <= 10
		})
		sharedValid = v
	})
	return sharedValid
}

// Validate runs struct validation with the shared validator.
func Validate(v any) error {
	return Validator().Struct(v)
}
