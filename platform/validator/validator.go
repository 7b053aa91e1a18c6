// Package validator wraps go-playground/validator so services validate
// tagged structs without importing the library directly.
package validator

import "github.com/go-playground/validator/v10"

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New()}
}

// Struct validates s against its `validate` tags.
func (val *Validator) Struct(s any) error {
	return val.v.Struct(s)
}

// RegisterValidation adds a custom tag.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}
