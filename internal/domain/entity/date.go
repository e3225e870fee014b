package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDate is wrapped by every date parse failure
var ErrInvalidDate = errors.New("invalid date")

// DateLayout is the wire and storage format of a Date
const DateLayout = "2006-01-02"

// Date is a calendar date without a time component
type Date struct {
	t time.Time
}

// NewDate creates a date from its components
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's location
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w %q: expected YYYY-MM-DD", ErrInvalidDate, s)
	}
	return Date{t: t}, nil
}

// IsZero reports whether the date is unset
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// Before reports whether d is strictly earlier than o
func (d Date) Before(o Date) bool {
	return d.t.Before(o.t)
}

// After reports whether d is strictly later than o
func (d Date) After(o Date) bool {
	return d.t.After(o.t)
}

// Equal reports whether both dates name the same day
func (d Date) Equal(o Date) bool {
	return d.t.Equal(o.t)
}

// Time returns midnight UTC of the date
func (d Date) Time() time.Time {
	return d.t
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// MarshalJSON encodes the date as "YYYY-MM-DD"
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes "YYYY-MM-DD"; an empty string yields the zero date
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: must be a string: %v", ErrInvalidDate, err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan implements sql.Scanner
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	case time.Time:
		*d = DateOf(v.UTC())
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(s string) error {
	if s == "" {
		*d = Date{}
		return nil
	}
	// sqlite may hand back a full timestamp for DATE columns
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
