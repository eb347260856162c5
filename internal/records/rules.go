package records

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rpattn/recordkeep/internal/domain"
	"github.com/rpattn/recordkeep/pkg/validator"
)

const (
	maxStringLength = 255
	minNameLength   = 2
	phoneDigits     = 10

	RulePhoneCharset  = "phone_charset"
	RulePhoneDigits   = "phone_digits"
	RuleRequiresFirst = "requires_first"
	RuleRowRange      = "row_range"
)

// Local part: letters, digits and _.+- ; domain: dot separated labels that
// neither start nor end with a hyphen, then an alphabetic TLD of two or more.
var emailPattern = regexp.MustCompile(`(?i)^[\w+\-.]+@(?:[a-z\d](?:[a-z\d-]*[a-z\d])?\.)+[a-z]{2,}$`)

var phonePunctuation = strings.NewReplacer("-", "", ".", "", "(", "", ")", "")

// RecordSchema returns the rule table for domain.Record attributes.
func RecordSchema() validator.Schema {
	return validator.Schema{
		{Field: domain.FieldRow, Rules: []validator.Rule{validator.Present(), validator.Integer(), rowRangeRule()}},
		{Field: domain.FieldIdentifier, Rules: []validator.Rule{validator.Present()}},
		{Field: domain.FieldEmail, Rules: []validator.Rule{
			validator.Present(),
			validator.Matches(emailPattern, "is not a valid email address"),
			validator.MaxLength(maxStringLength),
		}},
		{Field: domain.FieldPhone, Rules: []validator.Rule{
			validator.Present(),
			phoneCharsetRule(),
			phoneDigitCountRule(),
		}},
		{Field: domain.FieldFirst, Rules: []validator.Rule{
			validator.LengthBetween(minNameLength, maxStringLength),
			validator.Alpha(),
		}},
		{Field: domain.FieldLast, Rules: []validator.Rule{
			lastNameLengthRule(),
			requiresFirstRule(),
			validator.Alpha(),
		}},
	}
}

// RecordErrorSchema returns the rule table for domain.RecordError attributes.
func RecordErrorSchema() validator.Schema {
	return validator.Schema{
		{Field: domain.FieldRow, Rules: []validator.Rule{validator.Present(), validator.Integer(), rowRangeRule()}},
		{Field: domain.FieldIdentifier, Rules: []validator.Rule{validator.Present()}},
		{Field: domain.FieldText, Rules: []validator.Rule{validator.Present(), validator.MaxLength(maxStringLength)}},
	}
}

// StripPhone drops the punctuation allowed inside phone numbers.
func StripPhone(raw string) string {
	return phonePunctuation.Replace(raw)
}

func phoneCharsetRule() validator.Rule {
	return validator.Satisfies(RulePhoneCharset, "contains invalid characters", func(value any, _ validator.Attributes) bool {
		stripped := StripPhone(validator.StringValue(value))
		for i := 0; i < len(stripped); i++ {
			if !isDigit(stripped[i]) {
				return false
			}
		}
		return true
	})
}

func phoneDigitCountRule() validator.Rule {
	return validator.Satisfies(RulePhoneDigits, "must contain exactly 10 digits", func(value any, _ validator.Attributes) bool {
		stripped := StripPhone(validator.StringValue(value))
		count := 0
		for i := 0; i < len(stripped); i++ {
			if isDigit(stripped[i]) {
				count++
			}
		}
		return count == phoneDigits
	})
}

// Whole numbers that do not fit a row_number column.
func rowRangeRule() validator.Rule {
	return validator.Satisfies(RuleRowRange, "is out of range", func(value any, _ validator.Attributes) bool {
		if !validator.IsInteger(value) {
			return true
		}
		_, err := ParseRow(value)
		return err == nil
	})
}

// last may only be blank when first is blank too.
func lastNameLengthRule() validator.Rule {
	return validator.Satisfies(validator.RuleLength, "must be between 2 and 255 characters", func(value any, attrs validator.Attributes) bool {
		if !validator.IsPresent(value) {
			return !validator.IsPresent(attrs.Get(domain.FieldFirst))
		}
		n := utf8.RuneCountInString(validator.StringValue(value))
		return n >= minNameLength && n <= maxStringLength
	})
}

func requiresFirstRule() validator.Rule {
	return validator.Satisfies(RuleRequiresFirst, "requires first", func(value any, attrs validator.Attributes) bool {
		if !validator.IsPresent(value) {
			return true
		}
		return validator.IsPresent(attrs.Get(domain.FieldFirst))
	})
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
