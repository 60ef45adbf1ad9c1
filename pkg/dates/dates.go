// Package dates handles the two date encodings the platform accepts.
//
// Certificate metadata arrives from operator forms in DD/MM/YYYY; stores and
// JSON responses use ISO 8601 (YYYY-MM-DD). Conversion is exact and
// reversible: no other normalization is applied, so a value saved and read
// back is byte-identical modulo this documented encoding change.
package dates

import (
	"time"

	dErrors "certo/pkg/domain-errors"
)

const (
	// ISO is the canonical wire and storage encoding.
	ISO = "2006-01-02"
	// Display is the operator-form encoding.
	Display = "02/01/2006"
)

// ParseFlexible accepts either encoding and returns the parsed date.
// The empty string parses to the zero time with no error.
func ParseFlexible(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(ISO, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(Display, s); err == nil {
		return t, nil
	}
	return time.Time{}, dErrors.Newf(dErrors.CodeValidation, "date %q must be YYYY-MM-DD or DD/MM/YYYY", s)
}

// FormatISO renders a date in the canonical encoding; zero time renders empty.
func FormatISO(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(ISO)
}

// FormatDisplay renders a date in the operator-form encoding; zero time renders empty.
func FormatDisplay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(Display)
}
