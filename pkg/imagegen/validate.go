// ABOUTME: Request validation using go-playground/validator struct tags
// ABOUTME: A single shared validator instance; it caches struct metadata

package imagegen

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the request's required fields.
func (r *GenerationRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
