// Package date provides a calendar-day value type. All streak, freeze and
// inactivity arithmetic is expressed in terms of Date so no caller ever
// compares raw "2006-01-02" strings.
package date

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Layout is the storage and wire format of a Date.
const Layout = "2006-01-02"

// MonthLayout is the format of a Month key.
const MonthLayout = "2006-01"

// Date is a civil calendar day. The zero value is "no date".
type Date struct {
	t time.Time // always midnight UTC
}

// Month identifies a calendar month, e.g. "2025-11". The empty Month means
// "never set".
type Month string

// Of returns the date for the given year, month and day. Out-of-range values
// normalize the way time.Date does.
func Of(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime returns the calendar day t falls on in t's own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Of(y, m, d)
}

// Today returns the current calendar day in loc. A nil loc means local time.
func Today(loc *time.Location) Date {
	now := time.Now()
	if loc != nil {
		now = now.In(loc)
	}
	return FromTime(now)
}

// Parse reads a Date in Layout form.
func Parse(s string) (Date, error) {
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// MustParse is Parse for literals in tests and fixtures.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d.t.IsZero() }

// AddDays returns d shifted by n days (negative n moves backward).
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Prev returns the day before d.
func (d Date) Prev() Date { return d.AddDays(-1) }

// DaysUntil returns the number of days from d to other; negative when other
// is earlier.
func (d Date) DaysUntil(other Date) int {
	return int(other.t.Sub(d.t).Hours() / 24)
}

// Adjacent reports whether d and other are consecutive days, in either order.
func (d Date) Adjacent(other Date) bool {
	n := d.DaysUntil(other)
	return n == 1 || n == -1
}

func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int { return d.t.Compare(other.t) }

// Within reports whether d lies in the closed interval [from, to].
func (d Date) Within(from, to Date) bool {
	return !d.Before(from) && !d.After(to)
}

// Month returns the month key d belongs to.
func (d Date) Month() Month { return Month(d.t.Format(MonthLayout)) }

// Time returns midnight UTC of d.
func (d Date) Time() time.Time { return d.t }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(Layout)
}

// Value implements driver.Valuer; dates are stored as TEXT.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan implements sql.Scanner for TEXT and timestamp columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	case time.Time:
		*d = FromTime(v.UTC())
		return nil
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

func (d *Date) scanString(s string) error {
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("decode date: %w", err)
	}
	return d.scanString(s)
}
