package server

import (
	"github.com/go-playground/validator/v10"
	"github.com/stardustagi/ScriptPilot/validation"
)

// CustomValidator 让 echo 的 c.Validate 走统一的校验规则
type CustomValidator struct {
	Validator *validator.Validate
}

func NewCustomValidator() *CustomValidator {
	return &CustomValidator{Validator: validation.Validator()}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return validation.Struct(i)
}
