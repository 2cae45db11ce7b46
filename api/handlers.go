/*
handlers.go - HTTP API handlers for the workforce billing backend

PURPOSE:
  Exposes the schedule engine and the company/account services via REST.
  Handles HTTP request/response, JSON serialization, and delegates to the
  services. Handlers never touch the store directly.

ENDPOINTS (all under /api):
  Accounts:
    POST   /login                    Token for username or email
    POST   /register                 Company or employee sign-up
    GET    /profile                  Caller's own account

  Schedules (schedules.go):
    POST   /schedule                 Charge and create a date range
    GET    /schedule                 List with attendance
    DELETE /schedule                 Charge and delete a date range
    PUT    /attendance               Employee marks today

  Companies (companies.go):
    GET    /companies[/{username}]   Admin company overview
    GET    /employees[/{username}]   Roster
    PUT    /employees/{username}     Remove from roster
    PUT    /upgrade                  Plan upgrade
    PUT    /invitation_code          New join code
    POST   /company                  Employee joins by code
    GET    /company                  Employee's employer
    GET    /transactions[/{id}]      Ledger
    GET    /topup, POST /topup       Top-up requests
    PUT    /topup/{id}               Admin review

REQUEST FLOW:
  1. Parse and validate (validator/v10 for bodies, helpers for queries)
  2. Call one service method with the authenticated viewer
  3. Serialize response DTO
  4. Map errors via writeServiceError

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"net/http"
	"strconv"

	"github.com/warp/workforce-billing/auth"
	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/calendar"
	"github.com/warp/workforce-billing/company"
	"github.com/warp/workforce-billing/logger"
	"github.com/warp/workforce-billing/schedule"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Accounts  *auth.Service
	Schedules *schedule.Engine
	Companies *company.Service

	validator *Validator
	log       *logger.Logger
}

func NewHandler(accounts *auth.Service, schedules *schedule.Engine, companies *company.Service, log *logger.Logger) *Handler {
	return &Handler{
		Accounts:  accounts,
		Schedules: schedules,
		Companies: companies,
		validator: NewValidator(),
		log:       log,
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	token, err := h.Accounts.Login(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Message: "Login successful", Token: token})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	token, acct, err := h.Accounts.Register(r.Context(), auth.RegisterInput{
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.PhoneNumber,
		Address:  req.Address,
		Role:     billing.Role(req.Role),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	msg := "Employee registration successful"
	if acct.Role == billing.RoleCompany {
		msg = "Company registration successful"
	}
	writeJSON(w, http.StatusCreated, TokenResponse{Message: msg, Token: token})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	viewer, _ := ViewerFrom(r.Context())
	acct, err := h.Accounts.Profile(r.Context(), viewer.Username)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(acct))
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

// parsePaging reads limit and offset (1-based page). offset needs limit.
func parsePaging(r *http.Request) (limit, page int, err error) {
	q := r.URL.Query()
	if limit, err = positiveInt(q.Get("limit"), "limit"); err != nil {
		return 0, 0, err
	}
	if page, err = positiveInt(q.Get("offset"), "offset"); err != nil {
		return 0, 0, err
	}
	if page > 0 && limit == 0 {
		return 0, 0, billing.NewValidationError("limit", "limit is required")
	}
	return limit, page, nil
}

func positiveInt(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, billing.NewValidationError(field, "%s must be a number", field)
	}
	if n < 1 {
		return 0, billing.NewValidationError(field, "%s must be greater than or equal to 1", field)
	}
	return n, nil
}

// optionalDate parses a YYYY-MM-DD query value; empty yields nil.
func optionalDate(r *http.Request, key string) (*calendar.Date, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return nil, billing.NewValidationError(key, "%s must be in YYYY-MM-DD format", key)
	}
	return &d, nil
}

// requiredDate is optionalDate that rejects an empty value.
func requiredDate(r *http.Request, key string) (calendar.Date, error) {
	d, err := optionalDate(r, key)
	if err != nil {
		return calendar.Date{}, err
	}
	if d == nil {
		return calendar.Date{}, billing.NewValidationError(key, "%s is required", key)
	}
	return *d, nil
}

func viewerOf(r *http.Request) billing.Viewer {
	v, _ := ViewerFrom(r.Context())
	return v
}
