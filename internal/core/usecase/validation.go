package usecase

import (
	"github.com/go-playground/validator/v10"

	"github.com/kirillkom/docscan/internal/core/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateInput(op string, v any) error {
	if err := validate.Struct(v); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, op, err)
	}
	return nil
}
