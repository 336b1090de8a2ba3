package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._+-]*[a-zA-Z0-9])?@[a-zA-Z0-9]([a-zA-Z0-9.-]*[a-zA-Z0-9])?\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)
	lowercase     = regexp.MustCompile(`[a-z]`)
	uppercase     = regexp.MustCompile(`[A-Z]`)
	number        = regexp.MustCompile(`\d`)
)

func Email(email string) error {
	const maxlength = 64

	if len(email) > maxlength {
		return fmt.Errorf("long_email")
	}

	if !emailRegex.MatchString(email) {
		return fmt.Errorf("bad_format")
	}

	domain := strings.ToLower(email[strings.LastIndex(email, "@")+1:])
	for i := range len(domains) {
		if domain == domains[i] {
			return nil
		}
	}

	return fmt.Errorf("unknown_domain")
}

func Password(password string) error {
	length := len(password)
	if length < 6 {
		return fmt.Errorf("short_password")
	} else if length > 32 {
		return fmt.Errorf("long_password")
	}

	if !lowercase.MatchString(password) {
		return fmt.Errorf("no_lowercase")
	}
	if !uppercase.MatchString(password) {
		return fmt.Errorf("no_uppercase")
	}
	if !number.MatchString(password) {
		return fmt.Errorf("no_number")
	}
	return nil
}

func Username(username string) error {
	length := len(username)
	if length < 3 {
		return fmt.Errorf("short_username")
	} else if length > 32 {
		return fmt.Errorf("long_username")
	}

	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("bad_format")
	}
	return nil
}

// Name checks display, server and channel names. Surrounding whitespace
// doesn't count towards the length.
func Name(name string, min int, max int) error {
	length := utf8.RuneCountInString(strings.TrimSpace(name))
	if length == 0 {
		return fmt.Errorf("empty")
	} else if length < min {
		return fmt.Errorf("short_name")
	} else if length > max {
		return fmt.Errorf("long_name")
	}
	return nil
}

var rules = map[string]func(value string, param string) error{
	"chatemail":    func(value string, _ string) error { return Email(value) },
	"chatpassword": func(value string, _ string) error { return Password(value) },
	"username":     func(value string, _ string) error { return Username(value) },
	"chatname": func(value string, param string) error {
		min, max := nameLimits(param)
		return Name(value, min, max)
	},
}

// nameLimits parses the chatname parameter, "max" or "min-max".
func nameLimits(param string) (int, int) {
	minParam, maxParam, found := strings.Cut(param, "-")
	if !found {
		minParam, maxParam = "1", param
	}

	min, err := strconv.Atoi(minParam)
	if err != nil || min < 1 {
		min = 1
	}
	max, err := strconv.Atoi(maxParam)
	if err != nil {
		max = 100
	}
	return min, max
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})

	for tag, rule := range rules {
		err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return rule(fl.Field().String(), fl.Param()) == nil
		})
		if err != nil {
			panic(err)
		}
	}

	return v
}

// Struct validates a request body. It returns nil when the body is valid,
// otherwise the failed fields mapped to the reason they failed.
func Struct(s any) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]string{"body": "invalid"}
	}

	fields := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fields[fieldErr.Field()] = reason(fieldErr)
	}
	return fields
}

func reason(fieldErr validator.FieldError) string {
	rule, ok := rules[fieldErr.Tag()]
	if !ok {
		return fieldErr.Tag()
	}

	value, _ := fieldErr.Value().(string)
	err := rule(value, fieldErr.Param())
	if err == nil {
		return fieldErr.Tag()
	}
	return err.Error()
}
