package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/warp/workforce-billing/billing"
	"github.com/warp/workforce-billing/company"
)

// =============================================================================
// COMPANY HANDLERS (admin)
// =============================================================================

func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.Companies.ListCompanies(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CompanyListResponse{
		Companies: lo.Map(companies, func(s company.Summary, _ int) CompanySummaryDTO { return toCompanySummaryDTO(s) }),
	})
}

func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Companies.GetCompany(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompanySummaryDTO(*sum))
}

// =============================================================================
// ROSTER HANDLERS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	limit, page, err := parsePaging(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	res, err := h.Companies.ListEmployees(r.Context(), viewerOf(r).Username, company.EmployeeQuery{
		Name:  r.URL.Query().Get("name"),
		Limit: limit,
		Page:  page,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EmployeeListResponse{
		TotalEmployees:         res.Total,
		TotalEmployeesFiltered: len(res.Employees),
		EmployeesFiltered:      lo.Map(res.Employees, toEmployeeDTO),
	})
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Companies.GetEmployee(r.Context(), viewerOf(r), chi.URLParam(r, "username"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EmployeeDetailDTO{
		Username:    emp.Username,
		Name:        emp.Name,
		Email:       emp.Email,
		PhoneNumber: emp.Phone,
		Address:     emp.Address,
		Company:     emp.Company,
	})
}

func (h *Handler) RemoveEmployee(w http.ResponseWriter, r *http.Request) {
	companyName := viewerOf(r).Username
	employee := chi.URLParam(r, "username")
	if err := h.Companies.RemoveEmployee(r.Context(), companyName, employee); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Successfully remove employee %s from company %s", employee, companyName),
	})
}

func (h *Handler) GenerateInvitationCode(w http.ResponseWriter, r *http.Request) {
	var req InvitationRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	inv, err := h.Companies.GenerateInvitationCode(r.Context(), viewerOf(r).Username, req.InvitationLimit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, InvitationResponse{InvitationCode: inv.Code, InvitationLimit: inv.Limit})
}

func (h *Handler) JoinCompany(w http.ResponseWriter, r *http.Request) {
	var req JoinCompanyRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	joined, err := h.Companies.JoinCompany(r.Context(), viewerOf(r).Username, req.InvitationCode)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Successfully joined " + joined.Name})
}

func (h *Handler) GetEmployer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Companies.Employer(r.Context(), viewerOf(r).Username)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EmployerResponse{Company: CompanyContactDTO{
		Username:    c.Username,
		Name:        c.Name,
		Email:       c.Email,
		PhoneNumber: c.Phone,
		Address:     c.Address,
	}})
}

// =============================================================================
// PLAN
// =============================================================================

func (h *Handler) UpgradePlan(w http.ResponseWriter, r *http.Request) {
	var req UpgradeRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	res, err := h.Companies.UpgradePlan(r.Context(), viewerOf(r).Username, billing.Plan(req.PlanType))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Successful upgrade plan type to %s", res.To)})
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	from, err := optionalDate(r, "start_date")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	to, err := optionalDate(r, "end_date")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	list, err := h.Companies.ListTransactions(r.Context(), viewerOf(r), company.TransactionQuery{
		Company: r.URL.Query().Get("username"),
		From:    from,
		To:      to,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if list.Count == 0 {
		writeJSON(w, http.StatusOK, MessageResponse{Message: "No transactions occurred"})
		return
	}
	writeJSON(w, http.StatusOK, TransactionListResponse{
		Count:       list.Count,
		TotalCharge: list.Total.Dollars(),
		Transactions: lo.Map(list.Transactions, func(tx billing.Transaction, _ int) TransactionDTO {
			return toTransactionDTO(tx, false)
		}),
	})
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "transaction id must be a number", nil)
		return
	}
	tx, err := h.Companies.GetTransaction(r.Context(), viewerOf(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(*tx, true))
}

// =============================================================================
// TOP-UPS
// =============================================================================

func (h *Handler) RequestTopup(w http.ResponseWriter, r *http.Request) {
	var req TopupRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	t, err := h.Companies.RequestTopup(r.Context(), viewerOf(r).Username, *req.Amount)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTopupDTO(*t, 0))
}

func (h *Handler) ListTopups(w http.ResponseWriter, r *http.Request) {
	date, err := optionalDate(r, "date")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	limit, page, err := parsePaging(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	topups, err := h.Companies.ListTopups(r.Context(), viewerOf(r), company.TopupQuery{
		Status: billing.TopupStatus(r.URL.Query().Get("status")),
		Date:   date,
		Limit:  limit,
		Page:   page,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(topups, toTopupDTO))
}

func (h *Handler) ReviewTopup(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "topup_id must be a number", nil)
		return
	}
	var req ReviewTopupRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	res, err := h.Companies.ReviewTopup(r.Context(), id, *req.Accept)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("%s top up %s", res.Company.Name, res.Topup.Status)})
}
