/*
api_test.go - End-to-end tests of the HTTP API

Tests for:
- Registration, login and role guards
- Top-up request and admin approval
- Schedule create/delete charging through the router
- Error mapping (insufficient balance, nothing to schedule, validation)
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workforce-billing/api"
	"github.com/warp/workforce-billing/auth"
	"github.com/warp/workforce-billing/calendar"
	"github.com/warp/workforce-billing/company"
	"github.com/warp/workforce-billing/logger"
	"github.com/warp/workforce-billing/schedule"
	"github.com/warp/workforce-billing/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// Monday 2025-03-03
var fixedNow = time.Date(2025, time.March, 3, 9, 30, 0, 0, time.UTC)

type testAPI struct {
	t        *testing.T
	router   http.Handler
	holidays *calendar.Static
	engine   *schedule.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logger.Nop()
	holidays := calendar.NewStatic()

	engine := schedule.NewEngine(store, holidays, nil, log, schedule.DefaultConfig())
	engine.Now = func() time.Time { return fixedNow }

	companies := company.NewService(store, nil, log)
	companies.Now = func() time.Time { return fixedNow }

	issuer := auth.NewIssuer("test-secret", time.Hour)
	accounts := auth.NewService(store, issuer, companies, log)
	require.NoError(t, accounts.SeedAdmin(context.Background(), "admin", "admin-pass"))

	h := api.NewHandler(accounts, engine, companies, log)
	return &testAPI{
		t:        t,
		router:   api.NewRouter(h, api.RouterOptions{}),
		holidays: holidays,
		engine:   engine,
	}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *testAPI) register(username, role string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/register", "", api.RegisterRequest{
		Username:    username,
		Email:       username + "@example.com",
		Name:        "Name " + username,
		Password:    "password123",
		Role:        role,
		PhoneNumber: "628123456789",
		Address:     "Jakarta",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[api.TokenResponse](a.t, rec).Token
}

func (a *testAPI) login(username, password string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/login", "", api.LoginRequest{Username: username, Password: password})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[api.TokenResponse](a.t, rec).Token
}

// fund requests a top-up as the company and approves it as admin.
func (a *testAPI) fund(companyToken, amount string) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/topup", companyToken, map[string]any{"amount": json.RawMessage(amount)})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	topup := decode[api.TopupDTO](a.t, rec)

	rec = a.do(http.MethodPut, "/api/topup/"+strconv.FormatInt(topup.TopupID, 10), a.login("admin", "admin-pass"), map[string]any{"accept": true})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestRegisterLoginProfile(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("acme", "company")

	rec := a.do(http.MethodPost, "/api/login", "", api.LoginRequest{Email: "ACME@example.com", Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Login successful", decode[api.TokenResponse](t, rec).Message)

	rec = a.do(http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[api.ProfileDTO](t, rec)
	assert.Equal(t, "company", profile.Role)
	require.NotNil(t, profile.Balance)
	assert.Equal(t, "$0.00", *profile.Balance)
	assert.Equal(t, "free", profile.PlanType)
	assert.NotEmpty(t, profile.InvitationCode)
	require.NotNil(t, profile.InvitationLimit)
	assert.Equal(t, 10, *profile.InvitationLimit)
}

func TestRegister_Validation(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodPost, "/api/register", "", api.RegisterRequest{
		Username: "acme", Email: "not-an-email", Name: "Acme", Password: "password123",
		Role: "company", PhoneNumber: "628123456789", Address: "Jakarta",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[api.ErrorResponse](t, rec).Message, "email")

	rec = a.do(http.MethodPost, "/api/register", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decode[api.ErrorResponse](t, rec).Message)

	a.register("acme", "company")
	rec = a.do(http.MethodPost, "/api/register", "", api.RegisterRequest{
		Username: "acme", Email: "other@example.com", Name: "Acme", Password: "password123",
		Role: "company", PhoneNumber: "628123456789", Address: "Jakarta",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogin_Failures(t *testing.T) {
	a := newTestAPI(t)
	a.register("acme", "company")

	rec := a.do(http.MethodPost, "/api/login", "", api.LoginRequest{Username: "acme", Password: "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Wrong password", decode[api.ErrorResponse](t, rec).Message)

	rec = a.do(http.MethodPost, "/api/login", "", api.LoginRequest{Username: "ghost", Password: "password123"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodPost, "/api/login", "", api.LoginRequest{Username: "acme", Email: "acme@example.com", Password: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthGuards(t *testing.T) {
	a := newTestAPI(t)
	employee := a.register("budi", "employee")

	rec := a.do(http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodGet, "/api/profile", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decode[api.ErrorResponse](t, rec).Message)

	rec = a.do(http.MethodPost, "/api/schedule", employee, api.ScheduleRangeRequest{StartDate: "2025-03-10", EndDate: "2025-03-14"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodGet, "/api/companies", employee, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// SCHEDULES
// =============================================================================

func TestSchedule_CreateChargesBalance(t *testing.T) {
	// GIVEN: A company funded with $5.00
	// WHEN: Scheduling two working weeks
	// THEN: $1.00 is charged, the profile shows $4.00, the ledger has two entries

	a := newTestAPI(t)
	token := a.register("acme", "company")
	a.fund(token, "5")

	rec := a.do(http.MethodPost, "/api/schedule", token, api.ScheduleRangeRequest{StartDate: "2025-03-10", EndDate: "2025-03-21"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[api.CreateScheduleResponse](t, rec)
	assert.Equal(t, "$1.00", created.Charge)
	assert.Equal(t, "10 days", created.NumberOfActiveDay)
	assert.Equal(t, "2025-03-03 09:30", created.Datetime)
	assert.Len(t, created.ActiveDays, 10)
	assert.Len(t, created.OffDays, 2)
	assert.Equal(t, "Saturday", created.OffDays[0].Day)

	rec = a.do(http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, "$4.00", *decode[api.ProfileDTO](t, rec).Balance)

	rec = a.do(http.MethodGet, "/api/transactions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[api.TransactionListResponse](t, rec)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, "Top up", list.Transactions[0].Type)
	assert.Equal(t, "Create schedules", list.Transactions[1].Type)
	assert.Empty(t, list.Transactions[1].ScheduleDates, "list view is compact")

	rec = a.do(http.MethodGet, "/api/transactions/2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[api.TransactionDTO](t, rec).ScheduleDates, 10)

	rec = a.do(http.MethodGet, "/api/schedule?limit=5&offset=2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	days := decode[api.ScheduleListResponse](t, rec).Schedules
	require.Len(t, days, 5)
	assert.Equal(t, "2025-03-17", days[0].Date)
}

func TestSchedule_InsufficientBalance(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("acme", "company")

	rec := a.do(http.MethodPost, "/api/schedule", token, api.ScheduleRangeRequest{StartDate: "2025-03-10", EndDate: "2025-03-21"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Message string `json:"message"`
		Details struct {
			Balance    string `json:"balance"`
			Charge     string `json:"charge"`
			ActiveDays int    `json:"active_days"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Insufficient balance", body.Message)
	assert.Equal(t, "$0.00", body.Details.Balance)
	assert.Equal(t, "$1.00", body.Details.Charge)
	assert.Equal(t, 10, body.Details.ActiveDays)
}

func TestSchedule_NothingToSchedule(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("acme", "company")
	a.fund(token, "5")
	a.holidays.Add(calendar.Holiday{Date: calendar.NewDate(2025, time.March, 14), Description: "Holiday"})

	rec := a.do(http.MethodPost, "/api/schedule", token, api.ScheduleRangeRequest{StartDate: "2025-03-14", EndDate: "2025-03-16"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]any](t, rec)
	details := body["details"].(map[string]any)
	assert.EqualValues(t, 3, details["off_days"])
	assert.EqualValues(t, 0, details["already_scheduled"])
}

func TestSchedule_RangeValidation(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("acme", "company")

	rec := a.do(http.MethodPost, "/api/schedule", token, api.ScheduleRangeRequest{StartDate: "2025-03-03", EndDate: "2025-03-05"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "start_date must be greater than or equal to 2025-03-04", decode[api.ErrorResponse](t, rec).Message)

	rec = a.do(http.MethodPost, "/api/schedule", token, api.ScheduleRangeRequest{StartDate: "03/10/2025", EndDate: "2025-03-14"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodDelete, "/api/schedule?start_date=2025-03-10", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "end_date is required", decode[api.ErrorResponse](t, rec).Message)
}

func TestSchedule_Delete(t *testing.T) {
	a := newTestAPI(t)
	token := a.register("acme", "company")
	a.fund(token, "5")

	rec := a.do(http.MethodPost, "/api/schedule", token, api.ScheduleRangeRequest{StartDate: "2025-03-10", EndDate: "2025-03-21"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(http.MethodDelete, "/api/schedule?start_date=2025-03-10&end_date=2025-03-14", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	deleted := decode[api.DeleteScheduleResponse](t, rec)
	assert.Equal(t, "$0.50", deleted.Charge)
	assert.Len(t, deleted.DeletedSchedules, 5)

	rec = a.do(http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, "$3.50", *decode[api.ProfileDTO](t, rec).Balance)

	rec = a.do(http.MethodDelete, "/api/schedule?start_date=2025-03-10&end_date=2025-03-14", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// ROSTER AND ATTENDANCE
// =============================================================================

func TestJoinAndAttend(t *testing.T) {
	// GIVEN: A funded company with tomorrow scheduled and an employee
	// WHEN: The employee joins with the company's code and marks attendance
	// THEN: The company sees the employee as present

	a := newTestAPI(t)
	companyToken := a.register("acme", "company")
	employeeToken := a.register("budi", "employee")
	a.fund(companyToken, "5")

	rec := a.do(http.MethodPut, "/api/invitation_code", companyToken, api.InvitationRequest{InvitationLimit: 3})
	require.Equal(t, http.StatusOK, rec.Code)
	code := decode[api.InvitationResponse](t, rec).InvitationCode

	rec = a.do(http.MethodPost, "/api/company", employeeToken, api.JoinCompanyRequest{InvitationCode: code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Successfully joined Name acme", decode[api.MessageResponse](t, rec).Message)

	rec = a.do(http.MethodGet, "/api/company", employeeToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acme", decode[api.EmployerResponse](t, rec).Company.Username)

	rec = a.do(http.MethodPost, "/api/schedule", companyToken, api.ScheduleRangeRequest{StartDate: "2025-03-04", EndDate: "2025-03-04"})
	require.Equal(t, http.StatusCreated, rec.Code)

	a.engine.Now = func() time.Time { return fixedNow.AddDate(0, 0, 1) }
	rec = a.do(http.MethodPut, "/api/attendance", employeeToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Attendance recorded", decode[api.AttendanceResponse](t, rec).Message)

	rec = a.do(http.MethodPut, "/api/attendance", employeeToken, nil)
	assert.Equal(t, "Attendance already recorded", decode[api.AttendanceResponse](t, rec).Message)

	rec = a.do(http.MethodGet, "/api/schedule", companyToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	days := decode[api.ScheduleListResponse](t, rec).Schedules
	require.Len(t, days, 1)
	require.Len(t, days[0].Attendance, 1)
	assert.True(t, days[0].Attendance[0].Attend)

	rec = a.do(http.MethodGet, "/api/employees?name=acme", companyToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	roster := decode[api.EmployeeListResponse](t, rec)
	assert.Equal(t, 1, roster.TotalEmployees)
	assert.Equal(t, 0, roster.TotalEmployeesFiltered)

	rec = a.do(http.MethodPut, "/api/employees/budi", companyToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Successfully remove employee budi from company acme", decode[api.MessageResponse](t, rec).Message)
}

// =============================================================================
// ADMIN
// =============================================================================

func TestAdmin_CompaniesAndTopups(t *testing.T) {
	a := newTestAPI(t)
	acme := a.register("acme", "company")
	admin := a.login("admin", "admin-pass")
	a.fund(acme, "50")

	rec := a.do(http.MethodPut, "/api/upgrade", acme, api.UpgradeRequest{PlanType: "standard"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Successful upgrade plan type to standard", decode[api.MessageResponse](t, rec).Message)

	rec = a.do(http.MethodGet, "/api/companies/acme", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[api.CompanySummaryDTO](t, rec)
	assert.Equal(t, "standard", summary.PlanType)
	assert.Equal(t, "$30.00", summary.TotalSpent)
	assert.Equal(t, "$20.00", summary.Balance)

	rec = a.do(http.MethodGet, "/api/topup?status=approved", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.TopupDTO](t, rec), 1)

	rec = a.do(http.MethodGet, "/api/topup?status=bogus", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPut, "/api/topup/1", admin, map[string]any{"accept": false})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, "/api/topup", acme, map[string]any{"amount": 4})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/api/transactions?username=ghost", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodGet, "/api/transactions?start_date=2025-01-01&end_date=2025-01-31", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "No transactions occurred", decode[api.MessageResponse](t, rec).Message)
}
