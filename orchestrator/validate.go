package orchestrator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidationError lists the fields of a form that failed validation. Message
// is the text shown inline, taken from the first failing field.
type ValidationError struct {
	Fields  map[string]string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// validateForm checks form, a pointer to a struct with validate tags. A
// field's msg tag names the message used when it fails; tag-specific
// overrides are written as "tag=key" pairs, e.g. msg:"enter_title,min=too_short".
func validateForm(form any, lang Lang) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	structType := reflect.TypeOf(form)
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}
	ve := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		field, _ := structType.FieldByName(fe.StructField())
		name := field.Tag.Get("json")
		if name == "" || name == "-" {
			name = strings.ToLower(fe.StructField())
		} else {
			name = strings.Split(name, ",")[0]
		}
		msg := parseMessage(field.Tag.Get("msg"), name, fe, lang)
		ve.Fields[name] = msg
		if ve.Message == "" {
			ve.Message = msg
		}
	}
	return ve
}

func parseMessage(tag, name string, fe validator.FieldError, lang Lang) string {
	if tag == "" {
		return Message(lang, msgInvalidField, name)
	}
	parts := strings.Split(tag, ",")
	for _, p := range parts[1:] {
		if k, v, ok := strings.Cut(p, "="); ok && k == fe.Tag() {
			return Message(lang, v)
		}
	}
	return Message(lang, parts[0])
}
