// Package validation accumulates field problems so callers can report every
// invalid input at once instead of stopping at the first one.
package validation

import (
	"slices"
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"

	dErrors "docdesk/pkg/domain-errors"
)

// Collector gathers field errors. The zero value is ready to use.
type Collector struct {
	fields []dErrors.FieldError
}

// Add records a problem. Only the first problem reported for a field is kept.
func (c *Collector) Add(field, message string) {
	if c.Has(field) {
		return
	}
	c.fields = append(c.fields, dErrors.FieldError{Field: field, Message: message})
}

// Extend adds problems reported by another validator.
func (c *Collector) Extend(problems []dErrors.FieldError) {
	for _, p := range problems {
		c.Add(p.Field, p.Message)
	}
}

// Has reports whether field already has a problem.
func (c *Collector) Has(field string) bool {
	return slices.ContainsFunc(c.fields, func(f dErrors.FieldError) bool { return f.Field == field })
}

// Required reports a blank value and returns whether the value was present.
func (c *Collector) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		c.Add(field, "is required")
		return false
	}
	return true
}

// Length checks a required value is between min and max characters.
func (c *Collector) Length(field, value string, minLen, maxLen int) {
	if !c.Required(field, value) {
		return
	}
	if !govalidator.StringLength(strings.TrimSpace(value), strconv.Itoa(minLen), strconv.Itoa(maxLen)) {
		c.Add(field, "must be between "+strconv.Itoa(minLen)+" and "+strconv.Itoa(maxLen)+" characters")
	}
}

// Exact checks a required value has exactly n characters.
func (c *Collector) Exact(field, value string, n int) {
	if !c.Required(field, value) {
		return
	}
	if !govalidator.StringLength(value, strconv.Itoa(n), strconv.Itoa(n)) {
		c.Add(field, "must be exactly "+strconv.Itoa(n)+" characters")
	}
}

// Email checks a required value is a syntactically valid address.
func (c *Collector) Email(field, value string) {
	if !c.Required(field, value) {
		return
	}
	if !govalidator.IsEmail(value) {
		c.Add(field, "must be a valid email address")
	}
}

// Phone checks a required value is digits with an optional leading plus.
func (c *Collector) Phone(field, value string) {
	if !c.Required(field, value) {
		return
	}
	digits := strings.TrimPrefix(strings.TrimSpace(value), "+")
	if digits == "" || !govalidator.IsNumeric(digits) {
		c.Add(field, "must contain only digits")
	}
}

// OneOf checks a required value is among allowed.
func (c *Collector) OneOf(field, value string, allowed ...string) {
	if !c.Required(field, value) {
		return
	}
	if !slices.Contains(allowed, value) {
		c.Add(field, "must be one of "+strings.Join(allowed, ", "))
	}
}

func (c *Collector) Fields() []dErrors.FieldError {
	return c.fields
}

// Err returns a validation error listing every collected field, or nil.
func (c *Collector) Err(message string) error {
	if len(c.fields) == 0 {
		return nil
	}
	return dErrors.Validation(message, c.fields)
}
