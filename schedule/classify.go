/*
Package schedule is the balance-charging scheduling engine.

PURPOSE:
  Companies buy operating days. A requested date range is split into
  billable active days and everything else, the company is charged a
  fixed rate per active day, and one schedule-day record is written per
  active day. Deleting a range removes the records and is billed the
  same way.

KEY CONCEPTS:
  - Classify:  Pure range classification (this file)
  - Engine:    Create/Delete use cases, one storage transaction each

CLASSIFICATION PRECEDENCE:
  For each date, in order:
    1. Saturday/Sunday or public holiday  -> off day (holiday detail kept)
    2. Already has a schedule-day record  -> already scheduled
    3. Otherwise                           -> active
  A date lands in exactly one bucket.

SEE ALSO:
  - engine.go: CreateSchedule / DeleteSchedule
  - listing.go: ListSchedules / MarkAttendance
*/
package schedule

import (
	"github.com/warp/workforce-billing/calendar"
)

// OffDay is a weekend or holiday inside a requested range.
// Detail is the holiday description, empty for a plain weekend.
type OffDay struct {
	Date    calendar.Date
	Weekday string
	Detail  string
}

// Classification splits a range into three disjoint buckets.
// Each bucket is in chronological order.
type Classification struct {
	Active           []calendar.Date
	OffDays          []OffDay
	AlreadyScheduled []calendar.Date
}

// ActiveDays is the billable day count.
func (c Classification) ActiveDays() int { return len(c.Active) }

// Classify walks [start, end] inclusive. start after end yields an empty
// classification. holidays is keyed by date string (calendar.Index).
func Classify(start, end calendar.Date, existing []calendar.Date, holidays map[string]calendar.Holiday) Classification {
	scheduled := make(map[string]struct{}, len(existing))
	for _, d := range existing {
		scheduled[d.String()] = struct{}{}
	}

	var c Classification
	for _, d := range (calendar.Range{Start: start, End: end}).Days() {
		key := d.String()
		holiday, isHoliday := holidays[key]

		switch {
		case d.IsWeekend() || isHoliday:
			off := OffDay{Date: d, Weekday: d.WeekdayName()}
			if isHoliday {
				off.Detail = holiday.Description
			}
			c.OffDays = append(c.OffDays, off)
		case contains(scheduled, key):
			c.AlreadyScheduled = append(c.AlreadyScheduled, d)
		default:
			c.Active = append(c.Active, d)
		}
	}
	return c
}

func contains(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}
