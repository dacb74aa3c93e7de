package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrorKind classifies a field validation failure.
type ErrorKind string

// Validation error kinds.
const (
	KindRequired      ErrorKind = "required"
	KindTooShort      ErrorKind = "too_short"
	KindTooLong       ErrorKind = "too_long"
	KindOutOfRange    ErrorKind = "out_of_range"
	KindInvalidFormat ErrorKind = "invalid_format"
)

// Error is a local, field-level validation failure. It never reaches the
// network layer.
type Error struct {
	Field   string    `json:"field,omitempty"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Required rejects values that are empty after trimming whitespace.
func Required() Func {
	return func(value string) error {
		if strings.TrimSpace(value) == "" {
			return &Error{Kind: KindRequired, Message: "is required"}
		}
		return nil
	}
}

// MinLength rejects values shorter than n characters after trimming.
func MinLength(n int) Func {
	return func(value string) error {
		if utf8.RuneCountInString(strings.TrimSpace(value)) < n {
			return &Error{Kind: KindTooShort, Message: fmt.Sprintf("must be at least %d characters", n)}
		}
		return nil
	}
}

// MaxLength rejects values longer than n characters.
func MaxLength(n int) Func {
	return func(value string) error {
		if utf8.RuneCountInString(value) > n {
			return &Error{Kind: KindTooLong, Message: fmt.Sprintf("must be at most %d characters", n)}
		}
		return nil
	}
}

// IntRange requires an integer between lo and hi inclusive.
func IntRange(lo, hi int) Func {
	return func(value string) error {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return &Error{Kind: KindInvalidFormat, Message: "must be a whole number"}
		}
		if n < lo || n > hi {
			return &Error{Kind: KindOutOfRange, Message: fmt.Sprintf("must be between %d and %d", lo, hi)}
		}
		return nil
	}
}

// Email requires a single bare address ("name@example.edu").
func Email() Func {
	return func(value string) error {
		value = strings.TrimSpace(value)
		addr, err := mail.ParseAddress(value)
		if err != nil || addr.Address != value {
			return &Error{Kind: KindInvalidFormat, Message: "must be a valid email address"}
		}
		return nil
	}
}

// Pattern requires the trimmed value to match re.
func Pattern(re *regexp.Regexp, message string) Func {
	return func(value string) error {
		if !re.MatchString(strings.TrimSpace(value)) {
			return &Error{Kind: KindInvalidFormat, Message: message}
		}
		return nil
	}
}

// Optional skips fn when the value is blank.
func Optional(fn Func) Func {
	return func(value string) error {
		if strings.TrimSpace(value) == "" {
			return nil
		}
		return fn(value)
	}
}

// All runs rules in order and returns the first failure.
func All(rules ...Func) Func {
	return func(value string) error {
		for _, rule := range rules {
			if err := rule(value); err != nil {
				return err
			}
		}
		return nil
	}
}
