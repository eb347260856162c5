// Package validator evaluates ordered, per-field rule lists against a
// candidate attribute map.
//
// Every rule runs regardless of earlier failures, so a single pass reports all
// violations. Failures are returned as data (FieldErrors) and never panic.
//
//	schema := validator.Schema{
//		{Field: "email", Rules: []validator.Rule{validator.Present(), validator.MaxLength(255)}},
//	}
//	result := schema.Validate(validator.Attributes{"email": "me@mail.com"})
//	if !result.Valid {
//		return result.Err()
//	}
package validator
