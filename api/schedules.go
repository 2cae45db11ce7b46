package api

import (
	"net/http"

	"github.com/samber/lo"

	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/calendar"
	"github.com/warp/workforce-billing/schedule"
)

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// CreateSchedule charges the caller's company for a date range.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRangeRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.Schedules.ValidateCreateRange(start, end); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	res, err := h.Schedules.CreateSchedule(r.Context(), viewerOf(r).Username, start, end)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCreateScheduleResponse(res))
}

// DeleteSchedule removes the caller's schedule days in
// ?start_date=&end_date=.
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	start, err := requiredDate(r, "start_date")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	end, err := requiredDate(r, "end_date")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	res, err := h.Schedules.DeleteSchedule(r.Context(), viewerOf(r).Username, start, end)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeleteScheduleResponse(res))
}

// ListSchedules pages the schedule of the caller's company.
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	start, err := optionalDate(r, "start_date")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	end, err := optionalDate(r, "end_date")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	limit, page, err := parsePaging(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	days, err := h.Schedules.ListSchedules(r.Context(), viewerOf(r), schedule.ListQuery{
		Start: start,
		End:   end,
		Limit: limit,
		Page:  page,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ScheduleListResponse{
		Schedules: lo.Map(days, func(d schedule.DayView, _ int) ScheduleDayDTO { return toScheduleDayDTO(d) }),
	})
}

// MarkAttendance records the calling employee on today's schedule.
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	date, recorded, err := h.Schedules.MarkAttendance(r.Context(), viewerOf(r).Username)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	msg := "Attendance recorded"
	if !recorded {
		msg = "Attendance already recorded"
	}
	writeJSON(w, http.StatusOK, AttendanceResponse{Message: msg, Date: date.String()})
}

func parseRange(rawStart, rawEnd string) (calendar.Date, calendar.Date, error) {
	start, err := calendar.ParseDate(rawStart)
	if err != nil {
		return calendar.Date{}, calendar.Date{}, billing.NewValidationError("start_date", "start_date must be in YYYY-MM-DD format")
	}
	end, err := calendar.ParseDate(rawEnd)
	if err != nil {
		return calendar.Date{}, calendar.Date{}, billing.NewValidationError("end_date", "end_date must be in YYYY-MM-DD format")
	}
	return start, end, nil
}
