/*
Package calendar provides day-granularity dates and public-holiday lookup.

KEY CONCEPTS:
  - Date:     A calendar day in UTC, no time component
  - Range:    An inclusive [Start, End] span of dates
  - Holiday:  A public holiday with description and mandatory-off flag
  - Provider: Source of holidays for a year (HTTP API, cache, static)

All schedule arithmetic happens on Date. Anything carrying a wall-clock
time is converted with FromTime before it reaches the schedule engine.

SEE ALSO:
  - holiday.go: Holiday, Provider, Static
  - dayoff.go: HTTP holiday client
  - cache.go: Per-year cache
*/
package calendar

import (
	"time"

	"github.com/cockroachdb/errors"
)

// =============================================================================
// DATE - A calendar day
// =============================================================================

// Layout is the canonical wire and storage format of a Date.
const Layout = "2006-01-02"

// looseLayout accepts unpadded month and day ("2025-8-17").
const looseLayout = "2006-1-2"

type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime drops the clock part of t, keeping t's calendar day.
func FromTime(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses strict YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, errors.Wrapf(err, "invalid date %q", s)
	}
	return FromTime(t), nil
}

// ParseLooseDate parses YYYY-MM-DD or YYYY-M-D.
func ParseLooseDate(s string) (Date, error) {
	if d, err := ParseDate(s); err == nil {
		return d, nil
	}
	t, err := time.Parse(looseLayout, s)
	if err != nil {
		return Date{}, errors.Wrapf(err, "invalid date %q", s)
	}
	return FromTime(t), nil
}

func (d Date) Before(o Date) bool        { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool         { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool         { return d.Time.Equal(o.Time) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }
func (d Date) AddDays(n int) Date        { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) Year() int                 { return d.Time.Year() }
func (d Date) Weekday() time.Weekday     { return d.Time.Weekday() }
func (d Date) IsZero() bool              { return d.Time.IsZero() }
func (d Date) String() string            { return d.Time.Format(Layout) }

// WeekdayName is the English day name ("Monday").
func (d Date) WeekdayName() string { return d.Weekday().String() }

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseLooseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func StartOfYear(year int) Date { return NewDate(year, time.January, 1) }
func EndOfYear(year int) Date   { return NewDate(year, time.December, 31) }

// Strings formats dates in order.
func Strings(ds []Date) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}

// =============================================================================
// RANGE - Inclusive span of days
// =============================================================================

type Range struct {
	Start Date
	End   Date
}

// Empty is true when End precedes Start.
func (r Range) Empty() bool { return r.End.Before(r.Start) }

func (r Range) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.BeforeOrEqual(r.End)
}

// Days returns every date in the range, chronologically. Nil when empty.
func (r Range) Days() []Date {
	var days []Date
	for cur := r.Start; cur.BeforeOrEqual(r.End); cur = cur.AddDays(1) {
		days = append(days, cur)
	}
	return days
}

// Years lists the calendar years the range touches.
func (r Range) Years() []int {
	if r.Empty() {
		return nil
	}
	years := make([]int, 0, r.End.Year()-r.Start.Year()+1)
	for y := r.Start.Year(); y <= r.End.Year(); y++ {
		years = append(years, y)
	}
	return years
}

func (r Range) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}
