package httpapi

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	maxNameLen     = 64
	maxEmailLen    = 64
	minPasswordLen = 8
	maxPasswordLen = 20
)

var (
	namePattern  = regexp.MustCompile(`(?i)^[a-z]`)
	emailPattern = regexp.MustCompile(`(?i)^\w+(\.?\w)+@([a-z][-\w]*\.)*[a-z]{2,}\.[a-z]{2,63}$`)

	passwordLower  = regexp.MustCompile(`[a-z]`)
	passwordUpper  = regexp.MustCompile(`[A-Z]`)
	passwordSymbol = regexp.MustCompile(`[-0-9_!@#$%^&*()+=\\/{}\[\]:;"'<>,.?|]`)
)

// fieldRule pairs an ozzo rule with the error reported when it fails.
type fieldRule struct {
	rule validation.Rule
	err  FieldError
}

func fieldRules(name string, max int) []fieldRule {
	return []fieldRule{
		{validation.Required, FieldError{Name: name, Message: "missing"}},
		{validation.RuneLength(0, max), FieldError{Name: name, Message: "length", Max: max}},
	}
}

var (
	nameRules = append(fieldRules("name", maxNameLen),
		fieldRule{validation.Match(namePattern), FieldError{Name: "name", Message: "invalid"}},
	)
	emailRules = append(fieldRules("email", maxEmailLen),
		fieldRule{validation.Match(emailPattern), FieldError{Name: "email", Message: "invalid"}},
	)
	passwordInvalid = FieldError{Name: "password", Message: "invalid", Required: "upper case, lower case, symbol"}
	passwordRules   = []fieldRule{
		{validation.Required, FieldError{Name: "password", Message: "missing"}},
		{validation.RuneLength(minPasswordLen, maxPasswordLen),
			FieldError{Name: "password", Message: "length", Min: minPasswordLen, Max: maxPasswordLen}},
		{validation.Match(passwordLower), passwordInvalid},
		{validation.Match(passwordUpper), passwordInvalid},
		{validation.Match(passwordSymbol), passwordInvalid},
	}
)

// firstFailure returns the error of the first rule value breaks.
func firstFailure(value string, rules []fieldRule) (FieldError, bool) {
	for _, r := range rules {
		if err := validation.Validate(value, r.rule); err != nil {
			return r.err, true
		}
	}
	return FieldError{}, false
}

// validateNewUser checks the registration fields in name, email, password
// order, reporting at most one error per field.
func validateNewUser(req registerRequest) []FieldError {
	var errs []FieldError
	for _, f := range []struct {
		value string
		rules []fieldRule
	}{
		{req.Name, nameRules},
		{req.Email, emailRules},
		{req.Password, passwordRules},
	} {
		if e, bad := firstFailure(f.value, f.rules); bad {
			errs = append(errs, e)
		}
	}
	return errs
}
