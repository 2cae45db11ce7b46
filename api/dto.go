/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON shapes of the HTTP API, decoupled from the billing model.
  Money is rendered as "$1.00", day counts as "10 days" and timestamps as
  "YYYY-MM-DD HH:mm".

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request bodies carry validator/v10 tags; see validate.go. Query strings
  are parsed in the handlers.

SEE ALSO:
  - handlers.go: Uses these types
  - errors.go: ErrorResponse
*/
package api

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/calendar"
	"github.com/warp/workforce-billing/company"
	"github.com/warp/workforce-billing/schedule"
)

// =============================================================================
// REQUESTS
// =============================================================================

type LoginRequest struct {
	Username string `json:"username" validate:"omitempty"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Username    string `json:"username" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Name        string `json:"name" validate:"required"`
	Password    string `json:"password" validate:"required,min=8"`
	Role        string `json:"role" validate:"required,oneof=employee company"`
	PhoneNumber string `json:"phone_number" validate:"required,numeric,min=12"`
	Address     string `json:"address" validate:"required"`
}

type ScheduleRangeRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type UpgradeRequest struct {
	PlanType string `json:"plan_type" validate:"required,oneof=standard premium"`
}

type InvitationRequest struct {
	InvitationLimit int `json:"invitation_limit" validate:"required,min=1"`
}

type JoinCompanyRequest struct {
	InvitationCode string `json:"invitation_code" validate:"required"`
}

type TopupRequest struct {
	Amount *billing.Money `json:"amount" validate:"required"`
}

type ReviewTopupRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}

// =============================================================================
// GENERIC RESPONSES
// =============================================================================

type MessageResponse struct {
	Message string `json:"message"`
}

type TokenResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// =============================================================================
// SCHEDULES
// =============================================================================

type OffDayDTO struct {
	Day    string `json:"day"`
	Date   string `json:"date"`
	Detail string `json:"detail"`
}

type CreateScheduleResponse struct {
	Message           string      `json:"message"`
	Datetime          string      `json:"datetime"`
	Charge            string      `json:"charge"`
	NumberOfActiveDay string      `json:"number_of_active_day"`
	ActiveDays        []string    `json:"active_days"`
	OffDays           []OffDayDTO `json:"off_days"`
	ExistingDays      []string    `json:"existing_days"`
}

type DeleteScheduleResponse struct {
	Message          string   `json:"message"`
	Datetime         string   `json:"datetime"`
	Charge           string   `json:"charge"`
	DeletedSchedules []string `json:"deleted_schedules"`
}

type AttendanceDTO struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Attend   bool   `json:"attend"`
}

type ScheduleDayDTO struct {
	Date       string          `json:"date"`
	Day        string          `json:"day"`
	Attendance []AttendanceDTO `json:"attendance,omitempty"`
	Attend     *bool           `json:"attend,omitempty"`
}

type ScheduleListResponse struct {
	Schedules []ScheduleDayDTO `json:"schedules"`
}

type AttendanceResponse struct {
	Message string `json:"message"`
	Date    string `json:"date"`
}

// =============================================================================
// ACCOUNTS AND COMPANIES
// =============================================================================

type ProfileDTO struct {
	Username        string  `json:"username"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	PhoneNumber     string  `json:"phone_number"`
	Address         string  `json:"address"`
	Role            string  `json:"role"`
	Balance         *string `json:"balance,omitempty"`
	PlanType        string  `json:"plan_type,omitempty"`
	InvitationCode  string  `json:"invitation_code,omitempty"`
	InvitationLimit *int    `json:"invitation_limit,omitempty"`
	Company         *string `json:"company,omitempty"`
}

type CompanySummaryDTO struct {
	Username      string `json:"username"`
	Name          string `json:"name"`
	PlanType      string `json:"plan_type"`
	TotalEmployee int    `json:"total_employee"`
	TotalSpent    string `json:"total_spent"`
	Balance       string `json:"balance"`
}

type CompanyListResponse struct {
	Companies []CompanySummaryDTO `json:"companies"`
}

type CompanyContactDTO struct {
	Username    string `json:"username"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
}

type EmployerResponse struct {
	Company CompanyContactDTO `json:"company"`
}

type EmployeeDTO struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

type EmployeeDetailDTO struct {
	Username    string `json:"username"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
	Company     string `json:"company"`
}

type EmployeeListResponse struct {
	TotalEmployees         int           `json:"total_employees"`
	TotalEmployeesFiltered int           `json:"total_employees_filtered"`
	EmployeesFiltered      []EmployeeDTO `json:"employees_filtered"`
}

type InvitationResponse struct {
	InvitationCode  string `json:"invitation_code"`
	InvitationLimit int    `json:"invitation_limit"`
}

// =============================================================================
// LEDGER AND TOP-UPS
// =============================================================================

type TransactionDTO struct {
	TransactionID int64    `json:"transaction_id"`
	Username      string   `json:"username"`
	Type          string   `json:"type"`
	Datetime      string   `json:"datetime"`
	Charge        string   `json:"charge"`
	Detail        string   `json:"detail,omitempty"`
	ScheduleDates []string `json:"schedule_dates,omitempty"`
}

type TransactionListResponse struct {
	Count        int              `json:"count"`
	TotalCharge  string           `json:"total_charge"`
	Transactions []TransactionDTO `json:"transactions"`
}

type TopupDTO struct {
	TopupID  int64  `json:"topup_id"`
	Username string `json:"username"`
	Amount   string `json:"amount"`
	Status   string `json:"status"`
	Datetime string `json:"datetime"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func dayCount(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func toCreateScheduleResponse(res *schedule.CreateResult) CreateScheduleResponse {
	return CreateScheduleResponse{
		Message:           "Schedule created successfully",
		Datetime:          res.Transaction.Timestamp.Format(billing.DatetimeLayout),
		Charge:            res.Charge.Dollars(),
		NumberOfActiveDay: dayCount(res.ActiveDays),
		ActiveDays:        calendar.Strings(res.Scheduled),
		OffDays: lo.Map(res.OffDays, func(d schedule.OffDay, _ int) OffDayDTO {
			return OffDayDTO{Day: d.Weekday, Date: d.Date.String(), Detail: d.Detail}
		}),
		ExistingDays: calendar.Strings(res.AlreadyScheduled),
	}
}

func toDeleteScheduleResponse(res *schedule.DeleteResult) DeleteScheduleResponse {
	return DeleteScheduleResponse{
		Message:          "Schedules deleted successfully",
		Datetime:         res.Transaction.Timestamp.Format(billing.DatetimeLayout),
		Charge:           res.Charge.Dollars(),
		DeletedSchedules: calendar.Strings(res.Deleted),
	}
}

func toScheduleDayDTO(d schedule.DayView) ScheduleDayDTO {
	dto := ScheduleDayDTO{Date: d.Date.String(), Day: d.Weekday, Attend: d.Attend}
	if d.Attendance != nil {
		dto.Attendance = lo.Map(d.Attendance, func(a schedule.AttendanceEntry, _ int) AttendanceDTO {
			return AttendanceDTO{Username: a.Username, Name: a.Name, Attend: a.Attend}
		})
	}
	return dto
}

func toProfileDTO(a *billing.Account) ProfileDTO {
	dto := ProfileDTO{
		Username:    a.Username,
		Name:        a.Name,
		Email:       a.Email,
		PhoneNumber: a.Phone,
		Address:     a.Address,
		Role:        string(a.Role),
	}
	switch a.Role {
	case billing.RoleCompany:
		dto.Balance = lo.ToPtr(a.Balance.Dollars())
		dto.PlanType = string(a.Plan)
		dto.InvitationCode = a.InvitationCode
		dto.InvitationLimit = lo.ToPtr(a.InvitationLimit)
	case billing.RoleEmployee:
		dto.Company = lo.ToPtr(a.Company)
	}
	return dto
}

func toCompanySummaryDTO(s company.Summary) CompanySummaryDTO {
	return CompanySummaryDTO{
		Username:      s.Username,
		Name:          s.Name,
		PlanType:      string(s.Plan),
		TotalEmployee: s.TotalEmployees,
		TotalSpent:    s.TotalSpent.Dollars(),
		Balance:       s.Balance.Dollars(),
	}
}

func toEmployeeDTO(a billing.Account, _ int) EmployeeDTO {
	return EmployeeDTO{Username: a.Username, Name: a.Name, Email: a.Email}
}

// toTransactionDTO renders an entry. The list view omits detail and dates.
func toTransactionDTO(tx billing.Transaction, full bool) TransactionDTO {
	dto := TransactionDTO{
		TransactionID: tx.ID,
		Username:      tx.Company,
		Type:          string(tx.Type),
		Datetime:      tx.Timestamp.Format(billing.DatetimeLayout),
		Charge:        tx.Charge.Dollars(),
	}
	if full {
		dto.Detail = tx.Detail
		dto.ScheduleDates = calendar.Strings(tx.ScheduleDates)
	}
	return dto
}

func toTopupDTO(t billing.Topup, _ int) TopupDTO {
	return TopupDTO{
		TopupID:  t.ID,
		Username: t.Company,
		Amount:   t.Amount.Dollars(),
		Status:   string(t.Status),
		Datetime: t.RequestedAt.Format(billing.DatetimeLayout),
	}
}
