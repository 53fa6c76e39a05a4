package library

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their json name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

var fieldMessages = map[string]string{
	"required": "%s is required",
	"gt":       "%s must be greater than %s",
	"gte":      "%s must be at least %s",
	"ltefield": "%s must not exceed %s",
}

// validateInput checks s against its struct tags and folds every failing field
// into one ErrInvalidInput.
func validateInput(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	sort.Strings(msgs)
	return invalidInput("%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	tmpl, ok := fieldMessages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
	if strings.Count(tmpl, "%s") == 2 {
		param := fe.Param()
		if fe.Tag() == "ltefield" {
			param = "qty_total"
		}
		return fmt.Sprintf(tmpl, fe.Field(), param)
	}
	return fmt.Sprintf(tmpl, fe.Field())
}

// ParseYear reads an optional publication year. Blank input means unknown.
func ParseYear(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	y, err := strconv.Atoi(s)
	if err != nil {
		return nil, invalidInput("year must be a number")
	}
	return &y, nil
}

// ParseQuantity reads a copy count typed by an operator.
func ParseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, invalidInput("quantity must be an integer")
	}
	return n, nil
}
