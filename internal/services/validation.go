package services

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/williamsoaresdev/bip-core/internal/models"
)

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct against its validate tags, converting
// failures into the ValidationError kind.
func (vh *ValidationHelper) ValidateStruct(s any) error {
	err := vh.validator.Struct(s)
	if err == nil {
		return nil
	}

	if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		return &models.ValidationError{
			Message: fmt.Sprintf("field %s failed validation on '%s'", first.Field(), first.Tag()),
		}
	}
	return &models.ValidationError{Message: err.Error()}
}
