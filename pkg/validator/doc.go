/*
Package validator provides input validation with custom validation rules.

This package wraps go-playground/validator with additional custom validations:
  - slug: URL-safe slug format
  - password_strong: minimum length of 8 characters (no character-class rules)
  - phone_e164: E.164 phone number format

Usage:

	import "github.com/RomainDECOSTER/scoutquest/pkg/validator"

	v := validator.New()

	// Validate struct
	err := v.ValidateStruct(myStruct)

	// Validate single value
	err := v.ValidateVar(email, "required,email")
*/
package validator
