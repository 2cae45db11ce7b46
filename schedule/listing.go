package schedule

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/calendar"
)

// ListQuery filters and pages ListSchedules. Start and End are both set
// or both nil. Page is 1-based; zero means the first page.
type ListQuery struct {
	Start *calendar.Date
	End   *calendar.Date
	Limit int
	Page  int
}

// AttendanceEntry is one roster member on a day (company view).
type AttendanceEntry struct {
	Username string
	Name     string
	Attend   bool
}

// DayView is a schedule day as the viewer sees it. Companies get the full
// roster in Attendance; employees only get Attend.
type DayView struct {
	Date       calendar.Date
	Weekday    string
	Attendance []AttendanceEntry
	Attend     *bool
}

// ListSchedules returns a page of the viewer's company schedule.
func (e *Engine) ListSchedules(ctx context.Context, viewer billing.Viewer, q ListQuery) ([]DayView, error) {
	if (q.Start == nil) != (q.End == nil) {
		return nil, billing.NewValidationError("", "Both start_date and end_date must be provided together, or neither")
	}
	var rng *calendar.Range
	if q.Start != nil {
		if err := ValidateRange(*q.Start, *q.End); err != nil {
			return nil, err
		}
		rng = &calendar.Range{Start: *q.Start, End: *q.End}
	}

	company, err := e.companyOf(ctx, viewer)
	if err != nil {
		return nil, err
	}

	days, err := e.store.ListScheduleDays(ctx, company, rng)
	if err != nil {
		return nil, errors.Wrap(err, "list schedules")
	}
	days = billing.Paginate(days, q.Limit, q.Page)
	if len(days) == 0 {
		return nil, billing.Messagef(billing.ErrNotFound, "No schedules found within the specified filter")
	}

	if viewer.Role != billing.RoleCompany {
		return lo.Map(days, func(d billing.ScheduleDay, _ int) DayView {
			return DayView{
				Date:    d.Date,
				Weekday: d.Weekday,
				Attend:  lo.ToPtr(lo.Contains(d.Attendance, viewer.Username)),
			}
		}), nil
	}

	roster, err := e.store.ListAccounts(ctx, billing.AccountFilter{Role: billing.RoleEmployee, Company: company})
	if err != nil {
		return nil, errors.Wrap(err, "list roster")
	}
	return lo.Map(days, func(d billing.ScheduleDay, _ int) DayView {
		present := lo.SliceToMap(d.Attendance, func(u string) (string, bool) { return u, true })
		return DayView{
			Date:    d.Date,
			Weekday: d.Weekday,
			Attendance: lo.Map(roster, func(emp billing.Account, _ int) AttendanceEntry {
				return AttendanceEntry{Username: emp.Username, Name: emp.Name, Attend: present[emp.Username]}
			}),
		}
	}), nil
}

// MarkAttendance records that employee attended today's schedule of their
// company. Marking twice is not an error; recorded reports whether this
// call added the entry.
func (e *Engine) MarkAttendance(ctx context.Context, employee string) (date calendar.Date, recorded bool, err error) {
	today := calendar.FromTime(e.Now())

	company, err := e.companyOf(ctx, billing.Viewer{Username: employee, Role: billing.RoleEmployee})
	if err != nil {
		return today, false, err
	}

	recorded, err = e.store.AddAttendance(ctx, company, today, employee)
	if err != nil {
		if billing.IsNotFound(err) {
			return today, false, billing.Messagef(billing.ErrNotFound, "There is no schedule today")
		}
		return today, false, errors.Wrap(err, "record attendance")
	}

	if recorded {
		e.log.WithContext(ctx).Infow("attendance recorded",
			"company", company, "employee", employee, "date", today.String())
	}
	return today, recorded, nil
}

func (e *Engine) companyOf(ctx context.Context, viewer billing.Viewer) (string, error) {
	if viewer.Role == billing.RoleCompany {
		return viewer.Username, nil
	}
	acct, err := e.store.GetAccount(ctx, viewer.Username)
	if err != nil {
		return "", errors.Wrap(err, "load account")
	}
	if acct == nil {
		return "", billing.Messagef(billing.ErrNotFound, "User not found")
	}
	if acct.Company == "" {
		return "", billing.NewValidationError("", "You are not associated with any company")
	}
	return acct.Company, nil
}
