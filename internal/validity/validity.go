// Package validity computes whether a document's validity window is current.
//
// Calculations are pure: callers pass "now" explicitly, typically from an
// injected Clock or requestcontext.Now.
package validity

import (
	"strings"
	"time"

	dErrors "docdesk/pkg/domain-errors"
)

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// MaxDurationLabel bounds the free-text label of a fixed validity.
const MaxDurationLabel = 20

// Clock returns the current time.
type Clock func() time.Time

// State is the computed validity of a document.
type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
)

// Kind names the variant of a Spec.
type Kind string

const (
	KindFixed  Kind = "fixed"
	KindRanged Kind = "ranged"
)

// Date is a calendar day in UTC.
type Date struct {
	t time.Time
}

// NewDate truncates t to its UTC calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, dErrors.New(dErrors.CodeInvalidInput, "date must be formatted as YYYY-MM-DD")
	}
	return NewDate(t), nil
}

func (d Date) Time() time.Time    { return d.t }
func (d Date) IsZero() bool       { return d.t.IsZero() }
func (d Date) String() string     { return d.t.Format(DateLayout) }
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) After(o Date) bool  { return d.t.After(o.t) }

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Fixed is a validity expressed only as a label such as "5 years". It has no
// computable end date.
type Fixed struct {
	DurationLabel string `json:"duration_label"`
}

// Ranged is a validity between two inclusive calendar days.
type Ranged struct {
	From Date `json:"from"`
	To   Date `json:"to"`
}

// Spec is a tagged union: exactly one of Fixed or Ranged is set.
type Spec struct {
	Fixed  *Fixed  `json:"fixed,omitempty"`
	Ranged *Ranged `json:"ranged,omitempty"`
}

func NewFixed(label string) Spec {
	return Spec{Fixed: &Fixed{DurationLabel: label}}
}

func NewRanged(from, to Date) Spec {
	return Spec{Ranged: &Ranged{From: from, To: to}}
}

// Kind returns the populated variant, or "" when the spec is not well formed.
func (s Spec) Kind() Kind {
	switch {
	case s.Fixed != nil && s.Ranged == nil:
		return KindFixed
	case s.Ranged != nil && s.Fixed == nil:
		return KindRanged
	default:
		return ""
	}
}

// Problems lists what is wrong with the spec, keyed by field path.
// An empty result means the spec is valid.
func (s Spec) Problems() []dErrors.FieldError {
	var out []dErrors.FieldError
	switch {
	case s.Fixed == nil && s.Ranged == nil:
		return append(out, dErrors.FieldError{Field: "validity", Message: "exactly one of fixed or ranged is required"})
	case s.Fixed != nil && s.Ranged != nil:
		return append(out, dErrors.FieldError{Field: "validity", Message: "fixed and ranged are mutually exclusive"})
	}

	if s.Fixed != nil {
		label := strings.TrimSpace(s.Fixed.DurationLabel)
		if label == "" {
			out = append(out, dErrors.FieldError{Field: "validity.fixed.duration_label", Message: "is required"})
		} else if len(label) > MaxDurationLabel {
			out = append(out, dErrors.FieldError{Field: "validity.fixed.duration_label", Message: "must be at most 20 characters"})
		}
		return out
	}

	if s.Ranged.From.IsZero() {
		out = append(out, dErrors.FieldError{Field: "validity.ranged.from", Message: "is required"})
	}
	if s.Ranged.To.IsZero() {
		out = append(out, dErrors.FieldError{Field: "validity.ranged.to", Message: "is required"})
	}
	if !s.Ranged.From.IsZero() && !s.Ranged.To.IsZero() && s.Ranged.From.After(s.Ranged.To) {
		out = append(out, dErrors.FieldError{Field: "validity.ranged", Message: "from must not be after to"})
	}
	return out
}

// Compute returns the state of spec at now.
//
// Ranged windows are compared at day precision in UTC and are inclusive on
// both ends. Fixed windows are always active; manual expiry is tracked by the
// document, not here. A malformed spec is reported as expired.
func Compute(spec Spec, now time.Time) State {
	switch spec.Kind() {
	case KindFixed:
		return StateActive
	case KindRanged:
		today := NewDate(now)
		if today.Before(spec.Ranged.From) || today.After(spec.Ranged.To) {
			return StateExpired
		}
		return StateActive
	default:
		return StateExpired
	}
}
