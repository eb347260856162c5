package validator_test

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/recordkeep/pkg/validator"
)

func TestSchemaValidate_ReportsEveryViolation(t *testing.T) {
	schema := validator.Schema{
		{Field: "name", Rules: []validator.Rule{validator.Present(), validator.LengthBetween(2, 4), validator.Alpha()}},
		{Field: "count", Rules: []validator.Rule{validator.Present(), validator.Integer()}},
	}

	result := schema.Validate(validator.Attributes{"name": "a1b2c", "count": nil})

	assert.False(t, result.Valid)
	assert.Equal(t, []string{"must be between 2 and 4 characters", "must contain only letters"}, result.Errors.Get("name"))
	assert.Equal(t, []string{"is required", "must be a whole number"}, result.Errors.Get("count"))
	assert.Equal(t, []string{"count", "name"}, result.Errors.Fields())
}

func TestSchemaValidate_ValidCandidate(t *testing.T) {
	schema := validator.Schema{
		{Field: "name", Rules: []validator.Rule{validator.Present(), validator.MaxLength(10)}},
	}

	result := schema.Validate(validator.Attributes{"name": "Alice"})

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.NoError(t, result.Err())
}

func TestSchemaValidate_CrossFieldRule(t *testing.T) {
	requiresOther := validator.Satisfies("requires_other", "requires other", func(value any, attrs validator.Attributes) bool {
		return !validator.IsPresent(value) || validator.IsPresent(attrs.Get("other"))
	})
	schema := validator.Schema{{Field: "mine", Rules: []validator.Rule{requiresOther}}}

	assert.True(t, schema.Validate(validator.Attributes{"mine": "x", "other": "y"}).Valid)
	assert.True(t, schema.Validate(validator.Attributes{}).Valid)
	assert.False(t, schema.Validate(validator.Attributes{"mine": "x"}).Valid)
}

func TestSchemaRuleLookup(t *testing.T) {
	schema := validator.Schema{
		{Field: "name", Rules: []validator.Rule{validator.Present(), validator.Alpha()}},
	}

	rule, ok := schema.Rule("name", validator.RuleAlpha)
	require.True(t, ok)
	assert.False(t, rule.Check("abc1", nil))

	_, ok = schema.Rule("name", validator.RuleFormat)
	assert.False(t, ok)
	_, ok = schema.Rule("missing", validator.RulePresence)
	assert.False(t, ok)
}

func TestFieldErrors_Error(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "validation failed", validator.FieldErrors{}.Error())
	})

	t.Run("sorted by field", func(t *testing.T) {
		fe := validator.FieldErrors{}
		fe.Add("phone", "is required")
		fe.Add("email", "is invalid")
		fe.Add("email", "is too long")

		assert.Equal(t, "validation failed: email: is invalid; email: is too long; phone: is required", fe.Error())
		assert.True(t, fe.Has("email"))
		assert.False(t, fe.Has("first"))
	})
}

func TestExtractFieldErrors(t *testing.T) {
	fe := validator.FieldErrors{"row": {"is required"}}
	wrapped := fmt.Errorf("save record: %w", fe)

	got, ok := validator.ExtractFieldErrors(wrapped)
	require.True(t, ok)
	assert.Equal(t, fe, got)

	_, ok = validator.ExtractFieldErrors(fmt.Errorf("boom"))
	assert.False(t, ok)
	_, ok = validator.ExtractFieldErrors(nil)
	assert.False(t, ok)
}

func TestIsPresent(t *testing.T) {
	var nilPtr *struct{}
	blank := "  "

	assert.False(t, validator.IsPresent(nil))
	assert.False(t, validator.IsPresent(""))
	assert.False(t, validator.IsPresent("   "))
	assert.False(t, validator.IsPresent(nilPtr))
	assert.False(t, validator.IsPresent(&blank))
	assert.True(t, validator.IsPresent(0))
	assert.True(t, validator.IsPresent("x"))
	assert.True(t, validator.IsPresent(&struct{}{}))
}

func TestIsInteger(t *testing.T) {
	cases := []struct {
		value any
		want  bool
	}{
		{0, true},
		{int64(-12), true},
		{uint8(3), true},
		{float64(4), true},
		{4.5, false},
		{"17", true},
		{"+3", true},
		{"-3", true},
		{"3.0", false},
		{"3.5", false},
		{"abc", false},
		{"", false},
		{nil, false},
		{true, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, validator.IsInteger(tc.value), "value %#v", tc.value)
	}
}

func TestLengthBoundsAreInclusive(t *testing.T) {
	rule := validator.LengthBetween(2, 255)

	assert.False(t, rule.Check("a", nil))
	assert.True(t, rule.Check("aa", nil))
	assert.True(t, rule.Check(strings.Repeat("a", 255), nil))
	assert.False(t, rule.Check(strings.Repeat("a", 256), nil))

	maxRule := validator.MaxLength(3)
	assert.True(t, maxRule.Check("héé", nil), "length counts characters, not bytes")
	assert.False(t, maxRule.Check("abcd", nil))
}

func TestAlpha(t *testing.T) {
	rule := validator.Alpha()

	assert.True(t, rule.Check("", nil))
	assert.True(t, rule.Check("abcXYZ", nil))
	assert.False(t, rule.Check("abc ", nil))
	assert.False(t, rule.Check("é", nil))
	assert.False(t, rule.Check("a-b", nil))
}

func TestMatches(t *testing.T) {
	rule := validator.Matches(regexp.MustCompile(`^\d{3}$`), "must be three digits")

	assert.Equal(t, validator.RuleFormat, rule.Name)
	assert.True(t, rule.Check("123", nil))
	assert.False(t, rule.Check("12", nil))
	assert.False(t, rule.Check(nil, nil))
}
