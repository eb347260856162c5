package validator

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Attributes is the candidate field -> value mapping handed to a Schema.
type Attributes map[string]any

// Get returns the value stored for field, or nil when the field is absent.
func (a Attributes) Get(field string) any {
	if a == nil {
		return nil
	}
	return a[field]
}

// Clone returns a shallow copy so callers can swap values without touching the original.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Rule is a single named predicate over one field.
// attrs gives cross-field rules access to sibling values.
type Rule struct {
	Name    string
	Message string
	Check   func(value any, attrs Attributes) bool
}

// FieldRules binds an ordered rule list to a field name.
type FieldRules struct {
	Field string
	Rules []Rule
}

// Schema is an ordered list of per-field rules.
type Schema []FieldRules

// FieldErrors maps a field to the messages of every rule it failed.
type FieldErrors map[string][]string

func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return "validation failed"
	}

	parts := make([]string, 0, len(fe))
	for _, field := range fe.Fields() {
		for _, message := range fe[field] {
			parts = append(parts, fmt.Sprintf("%s: %s", field, message))
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a message for field.
func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

// Has reports whether field failed at least one rule.
func (fe FieldErrors) Has(field string) bool {
	return len(fe[field]) > 0
}

// Get returns the messages recorded for field.
func (fe FieldErrors) Get(field string) []string {
	return fe[field]
}

// Fields returns the failing field names in sorted order.
func (fe FieldErrors) Fields() []string {
	fields := make([]string, 0, len(fe))
	for field := range fe {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Messages flattens the errors into "field: message" strings, sorted by field.
func (fe FieldErrors) Messages() []string {
	var messages []string
	for _, field := range fe.Fields() {
		for _, message := range fe[field] {
			messages = append(messages, fmt.Sprintf("%s: %s", field, message))
		}
	}
	return messages
}

// Result is the outcome of validating one candidate.
type Result struct {
	Valid  bool        `json:"valid"`
	Errors FieldErrors `json:"errors"`
}

// Err returns nil for a valid result and the FieldErrors otherwise.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return r.Errors
}

// Validate runs every rule of every field. Rules never short-circuit so
// all violations are reported together.
func (s Schema) Validate(attrs Attributes) Result {
	result := Result{
		Valid:  true,
		Errors: FieldErrors{},
	}

	for _, field := range s {
		value := attrs.Get(field.Field)
		for _, rule := range field.Rules {
			if rule.Check == nil || rule.Check(value, attrs) {
				continue
			}
			result.Valid = false
			result.Errors.Add(field.Field, rule.Message)
		}
	}

	return result
}

// Field returns the rules registered for name.
func (s Schema) Field(name string) (FieldRules, bool) {
	for _, field := range s {
		if field.Field == name {
			return field, true
		}
	}
	return FieldRules{}, false
}

// Rule looks up a single rule by field and rule name. Useful for exercising
// one predicate in isolation.
func (s Schema) Rule(field, name string) (Rule, bool) {
	fr, ok := s.Field(field)
	if !ok {
		return Rule{}, false
	}
	for _, rule := range fr.Rules {
		if rule.Name == name {
			return rule, true
		}
	}
	return Rule{}, false
}

// ExtractFieldErrors pulls FieldErrors out of an error chain.
func ExtractFieldErrors(err error) (FieldErrors, bool) {
	if err == nil {
		return nil, false
	}
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
