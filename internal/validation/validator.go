// Package validation holds input rules shared by the HTTP layer and the
// services.
package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator
)

const (
	notBlankTag = "notblank"
	usernameTag = "username"
	passwordTag = "password"
)

func init() {
	Validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	Translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(Validate, Translator)

	// Report fields by their JSON names.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	_ = Validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && strings.TrimSpace(s) != ""
	})
	_ = Validate.RegisterValidation(usernameTag, func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && ValidateUsername(s) == nil
	})
	_ = Validate.RegisterValidation(passwordTag, func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && ValidatePassword(s) == nil
	})

	registerCustomTranslations(notBlankTag, usernameTag, passwordTag)
}

func registerCustomTranslations(tags ...string) {
	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range tags {
		_ = Validate.RegisterTranslation(tag, Translator, registerFn, translateCustom)
	}
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return fe.Field() + " cannot be blank"
	case usernameTag:
		if err := ValidateUsername(stringValue(fe)); err != nil {
			return err.Error()
		}
	case passwordTag:
		if err := ValidatePassword(stringValue(fe)); err != nil {
			return err.Error()
		}
	}
	return fe.Field() + " is invalid"
}

func stringValue(fe validator.FieldError) string {
	s, _ := fe.Value().(string)
	return s
}

// FieldErrors maps a JSON field name to a readable message.
type FieldErrors map[string]string

// Error returns the message of the first field in name order.
func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return ""
	}
	names := make([]string, 0, len(fe))
	for name := range fe {
		names = append(names, name)
	}
	sort.Strings(names)
	return fe[names[0]]
}

// Struct validates s against its `validate` tags. Failures come back as
// FieldErrors; anything else (a non-struct argument) is returned as is.
func Struct(s any) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(FieldErrors, len(verrs))
	for _, v := range verrs {
		if _, seen := out[v.Field()]; !seen {
			out[v.Field()] = v.Translate(Translator)
		}
	}
	return out
}
