package model

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Validator checks a single value. Use Check to attach one to a property.
type Validator interface {
	// Validate returns nil if value is valid, or an error whose text is the
	// message to show.
	Validate(value any) error
}

// ValidatorFunc is a function that implements Validator.
type ValidatorFunc func(value any) error

// Validate calls f(value).
func (f ValidatorFunc) Validate(value any) error {
	return f(value)
}

// ValidationError is the failure returned by the built-in validators.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the message, which is what rules built with Check show.
func (e ValidationError) Error() string {
	return e.Message
}

// NotEmpty validates that the value is non-empty.
func NotEmpty(msg string) Validator {
	if msg == "" {
		msg = "This field is required"
	}
	return ValidatorFunc(func(value any) error {
		if isEmpty(value) {
			return ValidationError{Message: msg}
		}
		return nil
	})
}

// MinLength validates that a string has at least n characters.
func MinLength(n int, msg string) Validator {
	if msg == "" {
		msg = fmt.Sprintf("Must be at least %d characters", n)
	}
	return ValidatorFunc(func(value any) error {
		s := toString(value)
		if s == "" {
			return nil // NotEmpty handles empty values
		}
		if len([]rune(s)) < n {
			return ValidationError{Message: msg}
		}
		return nil
	})
}

// MaxLength validates that a string has at most n characters.
func MaxLength(n int, msg string) Validator {
	if msg == "" {
		msg = fmt.Sprintf("Must be at most %d characters", n)
	}
	return ValidatorFunc(func(value any) error {
		if len([]rune(toString(value))) > n {
			return ValidationError{Message: msg}
		}
		return nil
	})
}

// Pattern validates that a string matches re.
func Pattern(re *regexp.Regexp, msg string) Validator {
	if msg == "" {
		msg = "Invalid format"
	}
	return ValidatorFunc(func(value any) error {
		s := toString(value)
		if s == "" {
			return nil
		}
		if !re.MatchString(s) {
			return ValidationError{Message: msg}
		}
		return nil
	})
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Email validates that the value looks like an email address.
func Email(msg string) Validator {
	if msg == "" {
		msg = "Invalid email address"
	}
	return Pattern(emailPattern, msg)
}

// URL validates that the value is an absolute URL.
func URL(msg string) Validator {
	if msg == "" {
		msg = "Invalid URL"
	}
	return ValidatorFunc(func(value any) error {
		s := toString(value)
		if s == "" {
			return nil
		}
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return ValidationError{Message: msg}
		}
		return nil
	})
}

// Min validates that a numeric value is >= n.
func Min(n float64, msg string) Validator {
	if msg == "" {
		msg = fmt.Sprintf("Must be at least %v", n)
	}
	return ValidatorFunc(func(value any) error {
		if isEmpty(value) {
			return nil
		}
		if toFloat64(value) < n {
			return ValidationError{Message: msg}
		}
		return nil
	})
}

// Max validates that a numeric value is <= n.
func Max(n float64, msg string) Validator {
	if msg == "" {
		msg = fmt.Sprintf("Must be at most %v", n)
	}
	return ValidatorFunc(func(value any) error {
		if isEmpty(value) {
			return nil
		}
		if toFloat64(value) > n {
			return ValidationError{Message: msg}
		}
		return nil
	})
}

// Custom creates a validator from a function.
func Custom(fn func(value any) error) Validator {
	return ValidatorFunc(fn)
}

// All runs validators in order and returns the first failure.
func All(validators ...Validator) Validator {
	return ValidatorFunc(func(value any) error {
		for _, v := range validators {
			if err := v.Validate(value); err != nil {
				return err
			}
		}
		return nil
	})
}

// ParseTag parses a comma-separated validation tag such as
// "required,min=3,max=20" into validators. kind selects between length and
// numeric bounds for min and max.
func ParseTag(tag string, kind reflect.Kind) ([]Validator, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, nil
	}

	rules := strings.Split(tag, ",")
	validators := make([]Validator, 0, len(rules))

	for _, rule := range rules {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}

		name, value, _ := strings.Cut(rule, "=")
		v, err := validatorFromTag(name, value, kind)
		if err != nil {
			return nil, err
		}
		validators = append(validators, v)
	}

	return validators, nil
}

func validatorFromTag(name, value string, kind reflect.Kind) (Validator, error) {
	sized := kind == reflect.String || kind == reflect.Slice || kind == reflect.Map
	switch name {
	case "required":
		return NotEmpty(""), nil
	case "min", "max":
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("model: %s needs an integer, got %q", name, value)
		}
		switch {
		case name == "min" && sized:
			return MinLength(n, ""), nil
		case name == "min":
			return Min(float64(n), ""), nil
		case sized:
			return MaxLength(n, ""), nil
		default:
			return Max(float64(n), ""), nil
		}
	case "email":
		return Email(""), nil
	case "url":
		return URL(""), nil
	case "pattern", "regex":
		re, err := regexp.Compile(value)
		if err != nil {
			return nil, fmt.Errorf("model: bad pattern %q: %w", value, err)
		}
		return Pattern(re, ""), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownValidator, name)
	}
}

// isEmpty reports whether a value counts as absent. Numbers and booleans are
// never empty.
func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) == ""
	case []byte:
		return len(v) == 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	default:
		return false
	}
}

func toString(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toFloat64(value any) float64 {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint8:
		return float64(v)
	case uint16:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}
