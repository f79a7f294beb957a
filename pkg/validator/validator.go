package validator

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/jhoicas/stockledger-api/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct valida los tags `validate` del struct. Devuelve domain.ValidationErrors
// (errors.Is(err, domain.ErrValidation) == true) o nil.
func Struct(data any) error {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	out := make(domain.ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, domain.FieldError{
			Field: fe.Namespace(),
			Tag:   fe.Tag(),
			Value: fe.Param(),
		})
	}
	return out
}
