package reconcile

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Reasons a registration row is filtered.
const (
	ReasonMissingName  = "missing_name"
	ReasonInvalidEmail = "invalid_email"
	ReasonNameTooLong  = "name_too_long"
	ReasonJunk         = "junk"
)

// junkSubstrings mark test and placeholder form submissions.
var junkSubstrings = []string{
	"asdf", "qwerty", "lorem ipsum", "test user", "test student", "placeholder",
	"do not use", "dummy", "xxx", "n/a", "sample name", "your name",
}

// junkValues are names that are junk only when they are the whole value.
var junkValues = map[string]bool{
	"test": true, "testing": true, "none": true, "name": true, "anonymous": true,
	"unknown": true, "null": true, "undefined": true, "na": true, "-": true,
}

// registrationRow is the validated view of a registration. An empty email is
// allowed; the row can still attach to an existing participant by name.
type registrationRow struct {
	Name  string `validate:"required,namelen,nojunk"`
	Email string `validate:"omitempty,contains=@"`
}

type rowValidator struct {
	validate *validator.Validate
}

func newRowValidator(maxNameLength int) *rowValidator {
	v := validator.New()
	_ = v.RegisterValidation("nojunk", func(fl validator.FieldLevel) bool {
		return !IsJunk(fl.Field().String())
	})
	_ = v.RegisterValidation("namelen", func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(fl.Field().String()) <= maxNameLength
	})
	return &rowValidator{validate: v}
}

// check returns "" for a valid row or the reason it is filtered.
func (rv *rowValidator) check(name, email string) string {
	err := rv.validate.Struct(registrationRow{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)})
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ReasonJunk
	}
	fe := verrs[0]
	switch {
	case fe.Field() == "Email":
		return ReasonInvalidEmail
	case fe.Tag() == "required":
		return ReasonMissingName
	case fe.Tag() == "namelen":
		return ReasonNameTooLong
	default:
		return ReasonJunk
	}
}

// IsJunk reports whether name looks like a placeholder or test entry.
func IsJunk(name string) bool {
	l := strings.ToLower(strings.TrimSpace(name))
	if junkValues[l] {
		return true
	}
	for _, s := range junkSubstrings {
		if strings.Contains(l, s) {
			return true
		}
	}
	return false
}
