// Package types provides common types shared across the entitled packages.
package types

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// dateLayout is the wire and storage format for calendar dates.
const dateLayout = "2006-01-02"

// Date is a calendar date with no time-of-day component, anchored to UTC.
// The zero value is "no date" and compares unequal to every real date.
//
// Daily quota windows are keyed by Date: two instants belong to the same
// window iff DateOf returns the same Date for both.
type Date string

// DateOf returns the Date containing the given instant, evaluated in UTC.
func DateOf(t time.Time) Date {
	return Date(t.UTC().Format(dateLayout))
}

// ParseDate parses a "YYYY-MM-DD" string into a Date.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("types: parse date %q: %w", s, err)
	}
	return Date(s), nil
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == "" }

// String returns the "YYYY-MM-DD" representation.
func (d Date) String() string { return string(d) }

// Time returns the midnight UTC instant of the date.
// Returns the zero time for the zero Date.
func (d Date) Time() time.Time {
	if d.IsZero() {
		return time.Time{}
	}
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Next returns the following calendar day.
func (d Date) Next() Date { return d.AddDays(1) }

// Before reports whether d is strictly earlier than other.
// Lexicographic order coincides with chronological order for this layout.
func (d Date) Before(other Date) bool { return d < other }

// Value implements driver.Valuer so dates can be bound as TEXT.
func (d Date) Value() (driver.Value, error) {
	return string(d), nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*d = Date(v)
	case []byte:
		*d = Date(v)
	case time.Time:
		*d = DateOf(v)
	case nil:
		*d = ""
	default:
		return fmt.Errorf("types: cannot scan %T into Date", src)
	}
	return nil
}
