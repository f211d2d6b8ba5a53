package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator

	// custom validation tags & texts
	notBlankTag  = "notblank"
	notBlankText = "this field cannot be blank"

	usernameTag   = "username"
	usernameText  = "only letters, digits, dots, dashes, underscores and @ are allowed"
	usernameRegex = regexp.MustCompile(`^[\w.@-]+$`)

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// Instantiate the validator for use.
func init() {
	Validate = validator.New()

	// Register the english error messages for validation errors.
	_en := en.New()
	uni := ut.New(_en, _en)
	Translator, _ = uni.GetTranslator("en")
	InitValidators(Validate, Translator)
}

// InitValidators registers translations, json field names and custom validators on `validate`.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslation(validate, translator, notBlankTag, notBlankText)

	_ = validate.RegisterValidation(usernameTag, usernameValidation)
	RegisterCustomTranslation(validate, translator, usernameTag, usernameText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// ValidateStruct validates `s` and converts validator errors into a *ValidationError
// carrying one translated FieldError per failing field.
// `msg` is used as the error message; it defaults to the first field error.
func ValidateStruct(s interface{}, msg ...string) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return err
	}
	flds := make([]FieldError, 0, len(valErrs))
	for _, vErr := range valErrs {
		flds = append(flds, FieldError{Field: vErr.Field(), Error: vErr.Translate(Translator)})
	}
	text := flds[0].Field + ": " + flds[0].Error
	if len(msg) > 0 && msg[0] != "" {
		text = msg[0]
	}
	return NewValidationError(errors.New(text), flds...)
}

// AsValidationError finds the first *ValidationError in err's chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr, true
	}
	return nil, false
}

// Custom Global Validators

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

// usernameValidation allows school-issued login ids: letters, digits and `.@-_`.
func usernameValidation(fl validator.FieldLevel) bool {
	return usernameRegex.MatchString(fl.Field().String())
}
