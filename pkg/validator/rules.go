package validator

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Rule names shared by the builders below.
const (
	RulePresence = "presence"
	RuleInteger  = "integer"
	RuleLength   = "length"
	RuleMaxLen   = "max_length"
	RuleAlpha    = "alpha"
	RuleFormat   = "format"
)

var integerPattern = regexp.MustCompile(`^[+-]?\d+$`)

// Present fails on nil, nil pointers and blank strings.
func Present() Rule {
	return Rule{
		Name:    RulePresence,
		Message: "is required",
		Check: func(value any, _ Attributes) bool {
			return IsPresent(value)
		},
	}
}

// Integer fails unless the value is a whole number. Strings are accepted when
// they spell an integer; floats only when they carry no fractional part.
func Integer() Rule {
	return Rule{
		Name:    RuleInteger,
		Message: "must be a whole number",
		Check: func(value any, _ Attributes) bool {
			return IsInteger(value)
		},
	}
}

// MaxLength fails when the value has more than max characters.
func MaxLength(max int) Rule {
	return Rule{
		Name:    RuleMaxLen,
		Message: fmt.Sprintf("must be at most %d characters", max),
		Check: func(value any, _ Attributes) bool {
			return utf8.RuneCountInString(StringValue(value)) <= max
		},
	}
}

// LengthBetween fails unless min <= length <= max. Both bounds are inclusive.
func LengthBetween(min, max int) Rule {
	return Rule{
		Name:    RuleLength,
		Message: fmt.Sprintf("must be between %d and %d characters", min, max),
		Check: func(value any, _ Attributes) bool {
			n := utf8.RuneCountInString(StringValue(value))
			return n >= min && n <= max
		},
	}
}

// Alpha fails when any character falls outside a-z and A-Z. Empty values pass.
func Alpha() Rule {
	return Rule{
		Name:    RuleAlpha,
		Message: "must contain only letters",
		Check: func(value any, _ Attributes) bool {
			return IsASCIIAlpha(StringValue(value))
		},
	}
}

// Matches fails when the value does not match pattern.
func Matches(pattern *regexp.Regexp, message string) Rule {
	return Rule{
		Name:    RuleFormat,
		Message: message,
		Check: func(value any, _ Attributes) bool {
			return pattern.MatchString(StringValue(value))
		},
	}
}

// Satisfies wraps an arbitrary predicate as a named rule.
func Satisfies(name, message string, check func(value any, attrs Attributes) bool) Rule {
	return Rule{Name: name, Message: message, Check: check}
}

// IsPresent reports whether value counts as set.
func IsPresent(value any) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) != ""
	case *string:
		return v != nil && strings.TrimSpace(*v) != ""
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return !rv.IsNil()
	}
	return true
}

// IsInteger reports whether value is a whole number.
func IsInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	case *int:
		return v != nil
	case *int64:
		return v != nil
	case float32:
		return isWholeFloat(float64(v))
	case float64:
		return isWholeFloat(v)
	case string:
		return integerPattern.MatchString(strings.TrimSpace(v))
	default:
		return false
	}
}

func isWholeFloat(f float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return f == math.Trunc(f)
}

// IsASCIIAlpha reports whether s only holds a-z and A-Z.
func IsASCIIAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

// StringValue renders value as a string for length and pattern rules.
// nil becomes the empty string.
func StringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case fmt.Stringer:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}
